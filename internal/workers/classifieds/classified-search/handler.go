package classifiedsearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"cms-query-workers/internal/classifieds"
	apperrors "cms-query-workers/internal/common/errors"
	"cms-query-workers/internal/common/logger"
	"cms-query-workers/internal/common/metrics"
	"cms-query-workers/internal/common/validation"
	"cms-query-workers/internal/jcrquery"
	"cms-query-workers/internal/savedsearch"
)

const (
	TaskType = "classified-search"
)

var schema = validation.MustCompile(InputSchema)

// SearchStore persists and restores search state.
type SearchStore interface {
	Save(ctx context.Context, name string, b *jcrquery.Builder) (*savedsearch.SavedSearch, error)
	Rehydrate(ctx context.Context, id string) (*jcrquery.Builder, error)
}

type Handler struct {
	config   *Config
	executor *jcrquery.Executor
	slots    *jcrquery.Slots
	searches SearchStore
	errors   *apperrors.ErrorHandler
	logger   logger.Logger
}

// NewHandler builds the handler. searches may be nil when persistence is
// disabled.
func NewHandler(config *Config, executor *jcrquery.Executor, searches SearchStore, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		executor: executor,
		slots:    jcrquery.NewSlots(),
		searches: searches,
		errors:   apperrors.NewErrorHandler(log),
		logger:   log,
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

// Execute runs one search. Within a session only the latest search
// completes; older ones in flight fail with jcrquery.ErrSuperseded.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, apperrors.NewInputValidationError("input cannot be nil")
	}

	b, err := h.builder(ctx, input)
	if err != nil {
		return nil, err
	}

	opts := jcrquery.ExecuteOptions{Timeout: h.config.QueryTimeout}
	if input.TimeoutMs > 0 {
		opts.Timeout = time.Duration(input.TimeoutMs) * time.Millisecond
	}

	var nodes []jcrquery.RenderNode
	if input.SessionID == "" {
		nodes, err = h.executor.Execute(ctx, b, opts)
	} else {
		runCtx, ticket := h.slots.Begin(ctx, input.SessionID)
		nodes, err = h.executor.Execute(runCtx, b, opts)
		err = ticket.Finish(err)
	}
	if err != nil {
		return nil, err
	}

	built := b.Build()
	constraints := b.Constraints()
	output := &Output{
		Config:          b.Config(),
		Constraints:     constraints,
		Selections:      classifieds.SelectionsFromConstraints(constraints),
		Query:           built.QueryText,
		CacheDependency: built.CacheDependency,
		Nodes:           nodes,
		SavedSearchID:   input.SavedSearchID,
	}
	if len(nodes) == 0 {
		output.Nodes = []jcrquery.RenderNode{{UUID: classifieds.NoResultsUUID}}
		output.NoResults = true
	}

	if name := strings.TrimSpace(input.SaveAs); name != "" {
		if h.searches == nil {
			h.logger.Warn("saved searches are disabled, not saving", map[string]interface{}{"name": name})
			return output, nil
		}
		saved, err := h.searches.Save(ctx, name, b)
		if err != nil {
			return nil, apperrors.NewDatabaseError(err)
		}
		output.SavedSearchID = saved.ID
	}
	return output, nil
}

// builder restores a saved search when one is named, then applies the
// request parameters on top. Facets present in the request replace the
// saved selection; the others are kept.
func (h *Handler) builder(ctx context.Context, input *Input) (*jcrquery.Builder, error) {
	if input.SavedSearchID != "" {
		if h.searches == nil {
			return nil, apperrors.NewSavedSearchNotFoundError(input.SavedSearchID)
		}
		b, err := h.searches.Rehydrate(ctx, input.SavedSearchID)
		if errors.Is(err, savedsearch.ErrNotFound) {
			return nil, apperrors.NewSavedSearchNotFoundError(input.SavedSearchID)
		}
		if err != nil {
			return nil, apperrors.NewDatabaseError(err)
		}
		for _, facet := range classifieds.FacetProperties {
			if values, ok := input.Params[facet]; ok {
				if err := classifieds.ApplyFacetValues(b, facet, values); err != nil {
					return nil, err
				}
			}
		}
		if minPrice, maxPrice := classifieds.PriceRangeFromParams(input.Params); minPrice != nil || maxPrice != nil {
			if err := classifieds.ApplyPriceRange(b, minPrice, maxPrice); err != nil {
				return nil, err
			}
		}
		return b, nil
	}

	language := input.Language
	if language == "" {
		language = h.config.DefaultLanguage
	}
	limit := input.Limit
	if limit <= 0 {
		limit = h.config.ResultsPerPage
	}
	cfg := classifieds.SearchConfig(h.workspace(input.Workspace), input.StartNodePath, input.UUID, language, limit)
	if h.config.SubNodeView != "" {
		cfg.SubNodeView = h.config.SubNodeView
	}

	b, err := jcrquery.NewBuilder(cfg)
	if err != nil {
		return nil, err
	}
	if err := b.SetConstraints(classifieds.SearchConstraints(input.Params)); err != nil {
		return nil, err
	}
	minPrice, maxPrice := classifieds.PriceRangeFromParams(input.Params)
	if err := classifieds.ApplyPriceRange(b, minPrice, maxPrice); err != nil {
		return nil, err
	}
	return b, nil
}

// workspace accepts EDIT/LIVE as well as the host names "default" and "live".
func (h *Handler) workspace(name string) jcrquery.Workspace {
	switch ws := jcrquery.Workspace(strings.ToUpper(strings.TrimSpace(name))); ws {
	case jcrquery.WorkspaceEdit, jcrquery.WorkspaceLive:
		return ws
	case "":
		return h.config.Workspace
	}
	return jcrquery.WorkspaceFor(strings.ToLower(name))
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
