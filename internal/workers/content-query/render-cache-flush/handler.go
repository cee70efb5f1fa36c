package cacheflush

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"cms-query-workers/internal/cache"
	apperrors "cms-query-workers/internal/common/errors"
	"cms-query-workers/internal/common/logger"
	"cms-query-workers/internal/common/metrics"
	"cms-query-workers/internal/common/validation"
)

const (
	TaskType = "render-cache-flush"
)

var schema = validation.MustCompile(InputSchema)

type Handler struct {
	config *Config
	cache  *cache.Store
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

// NewHandler builds the handler. With a nil renderCache jobs complete
// without flushing anything.
func NewHandler(config *Config, renderCache *cache.Store, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		cache:  renderCache,
		errors: apperrors.NewErrorHandler(log),
		logger: log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	timer := metrics.StartJob(TaskType)
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	input, err := parseInput(job.Variables)
	if err != nil {
		timer.Done(h.failJob(client, job, err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, input)
	if err != nil {
		timer.Done(h.failJob(client, job, err))
		return
	}

	h.completeJob(client, job, output)
	timer.Done("")
}

func parseInput(variables string) (*Input, error) {
	result, err := schema.ValidateJSON(variables)
	if err != nil {
		return nil, apperrors.NewInputValidationError(err.Error())
	}
	if !result.Valid {
		return nil, apperrors.NewInputValidationError(result.Summary())
	}
	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewInputValidationError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

// Execute drops every cached render depending on the given node ids or
// paths. Path flushes also hit entries whose path pattern matches.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, apperrors.NewInputValidationError("input cannot be nil")
	}

	output := &Output{
		UUIDs: distinct(input.UUID, input.UUIDs),
		Paths: distinct(input.Path, input.Paths),
	}
	if len(output.UUIDs) == 0 && len(output.Paths) == 0 {
		return nil, apperrors.NewInputValidationError("uuid or path is required")
	}
	if h.cache == nil {
		h.logger.Warn("render cache disabled, nothing flushed", nil)
		return output, nil
	}

	for _, id := range output.UUIDs {
		n, err := h.cache.FlushUUID(ctx, id)
		if err != nil {
			return nil, apperrors.NewCacheUnavailableError(fmt.Errorf("flush uuid %s: %w", id, err))
		}
		output.Flushed += n
	}
	for _, p := range output.Paths {
		n, err := h.cache.FlushPath(ctx, p)
		if err != nil {
			return nil, apperrors.NewCacheUnavailableError(fmt.Errorf("flush path %s: %w", p, err))
		}
		output.Flushed += n
	}

	h.logger.Info("render cache flushed", map[string]interface{}{
		"uuids":   len(output.UUIDs),
		"paths":   len(output.Paths),
		"flushed": output.Flushed,
	})
	return output, nil
}

func distinct(one string, many []string) []string {
	out := []string{}
	seen := make(map[string]struct{})
	for _, v := range append([]string{one}, many...) {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error) string {
	return string(h.errors.HandleJobError(context.Background(), client, job, err).Code)
}
