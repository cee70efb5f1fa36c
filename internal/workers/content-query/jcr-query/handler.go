package jcrqueryworker

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"cms-query-workers/internal/cache"
	apperrors "cms-query-workers/internal/common/errors"
	"cms-query-workers/internal/common/logger"
	"cms-query-workers/internal/common/metrics"
	"cms-query-workers/internal/common/validation"
	"cms-query-workers/internal/host"
	"cms-query-workers/internal/jcrquery"
)

const (
	TaskType = "jcr-query"
)

var schema = validation.MustCompile(InputSchema)

// TranslationSource resolves the translation nodes of excluded nodes.
type TranslationSource interface {
	Load(ctx context.Context, workspace jcrquery.Workspace, ids []string, language string) (host.TranslationMap, error)
}

type Handler struct {
	config       *Config
	executor     *jcrquery.Executor
	translations TranslationSource
	cache        *cache.Store
	errors       *apperrors.ErrorHandler
	logger       logger.Logger
}

// NewHandler builds the handler. translations and renderCache may be nil;
// without translations only the listed node ids are excluded.
func NewHandler(config *Config, executor *jcrquery.Executor, translations TranslationSource, renderCache *cache.Store, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		executor:     executor,
		translations: translations,
		cache:        renderCache,
		errors:       apperrors.NewErrorHandler(log),
		logger:       log,
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

// Execute builds the query from input, runs it and returns the rendered
// nodes, serving from the render cache when possible.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, apperrors.NewInputValidationError("input cannot be nil")
	}

	b, err := h.builder(ctx, input)
	if err != nil {
		return nil, err
	}
	cfg := b.Config()
	built := b.Build()

	output := &Output{
		Query:           built.QueryText,
		CacheDependency: built.CacheDependency,
	}

	opts := jcrquery.ExecuteOptions{
		Limit:   input.Limit,
		Offset:  input.Offset,
		Timeout: h.queryTimeout(input),
	}
	useCache := h.cache != nil && !input.NoCache
	key := cache.Key(
		string(cfg.Workspace),
		built.QueryText,
		cfg.Language,
		cfg.SubNodeView,
		pageValue(opts.Limit, cfg.Limit),
		pageValue(opts.Offset, cfg.Offset),
	)

	if useCache {
		if nodes, ok := h.cachedNodes(ctx, key); ok {
			output.Nodes = nodes
			output.NodeCount = len(nodes)
			output.Cached = true
			return output, nil
		}
	}

	nodes, err := h.executor.Execute(ctx, b, opts)
	if err != nil {
		return nil, err
	}

	if useCache {
		h.storeNodes(ctx, key, nodes, b.CacheDependency())
	}

	output.Nodes = nodes
	output.NodeCount = len(nodes)
	return output, nil
}

func (h *Handler) builder(ctx context.Context, input *Input) (*jcrquery.Builder, error) {
	cfg := input.Query
	if cfg.Language == "" {
		cfg.Language = h.config.DefaultLanguage
	}
	if cfg.SubNodeView == "" {
		cfg.SubNodeView = h.config.DefaultView
	}
	if len(input.ExcludeNodeIDs) > 0 {
		excluded, err := h.exclusions(ctx, cfg, input.ExcludeNodeIDs)
		if err != nil {
			return nil, err
		}
		cfg.ExcludeNodes = append(append([]jcrquery.ExcludedNode(nil), cfg.ExcludeNodes...), excluded...)
	}

	b, err := jcrquery.NewBuilder(cfg)
	if err != nil {
		return nil, err
	}
	if err := b.SetConstraints(input.Constraints); err != nil {
		return nil, err
	}

	// Explicit joiners win over the ones implied by set operators.
	props := make([]string, 0, len(input.Joiners))
	for prop := range input.Joiners {
		props = append(props, prop)
	}
	sort.Strings(props)
	for _, prop := range props {
		joiner, ok := jcrquery.ParseJoiner(input.Joiners[prop])
		if !ok {
			return nil, fmt.Errorf("%w: %q for %s", jcrquery.ErrInvalidJoiner, input.Joiners[prop], prop)
		}
		if err := b.SetConstraintJoiner(prop, joiner); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (h *Handler) exclusions(ctx context.Context, cfg jcrquery.Config, ids []string) ([]jcrquery.ExcludedNode, error) {
	nodes := make([]host.NodeIdentity, len(ids))
	for i, id := range ids {
		nodes[i] = host.NodeRef{ID: id}
	}
	if h.translations == nil {
		return jcrquery.ExcludeNodes(nodes, nil, cfg.Language), nil
	}

	workspace := jcrquery.Workspace(strings.ToUpper(string(cfg.Workspace)))
	lookup, err := h.translations.Load(ctx, workspace, ids, cfg.Language)
	if err != nil {
		return nil, err
	}
	return jcrquery.ExcludeNodes(nodes, lookup, cfg.Language), nil
}

func (h *Handler) queryTimeout(input *Input) time.Duration {
	if input.TimeoutMs > 0 {
		return time.Duration(input.TimeoutMs) * time.Millisecond
	}
	return h.config.QueryTimeout
}

func pageValue(values ...*int) string {
	for _, v := range values {
		if v != nil {
			return strconv.Itoa(*v)
		}
	}
	return ""
}

func (h *Handler) cachedNodes(ctx context.Context, key string) ([]jcrquery.RenderNode, bool) {
	raw, ok := h.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}
	var nodes []jcrquery.RenderNode
	if err := json.Unmarshal([]byte(raw), &nodes); err != nil {
		h.logger.Warn("discarding unreadable cache entry", map[string]interface{}{"error": err})
		return nil, false
	}
	return nodes, true
}

func (h *Handler) storeNodes(ctx context.Context, key string, nodes []jcrquery.RenderNode, dep host.CacheDependency) {
	data, err := json.Marshal(nodes)
	if err != nil {
		return
	}
	deps := make([]host.CacheDependency, 0, len(nodes)+1)
	deps = append(deps, dep)
	for _, n := range nodes {
		if n.UUID != "" {
			deps = append(deps, host.ForUUID(n.UUID))
		}
	}
	if err := h.cache.Set(ctx, key, string(data), h.config.CacheTTL, deps...); err != nil {
		h.logger.Warn("failed to cache query result", map[string]interface{}{"error": err})
	}
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
	stdErr := h.errors.HandleJobError(context.Background(), client, job, err)
	return string(stdErr.Code)
}
