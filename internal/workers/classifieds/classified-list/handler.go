package classifiedlist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"cms-query-workers/internal/cache"
	"cms-query-workers/internal/classifieds"
	apperrors "cms-query-workers/internal/common/errors"
	"cms-query-workers/internal/common/logger"
	"cms-query-workers/internal/common/metrics"
	"cms-query-workers/internal/common/validation"
	"cms-query-workers/internal/host"
	"cms-query-workers/internal/jcrquery"
)

const (
	TaskType = "classified-list"
)

var schema = validation.MustCompile(InputSchema)

type Handler struct {
	config  *Config
	graphql jcrquery.GraphQLExecutor
	cache   *cache.Store
	errors  *apperrors.ErrorHandler
	logger  logger.Logger
}

// NewHandler builds the handler. renderCache may be nil.
func NewHandler(config *Config, graphql jcrquery.GraphQLExecutor, renderCache *cache.Store, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  config,
		graphql: graphql,
		cache:   renderCache,
		errors:  apperrors.NewErrorHandler(log),
		logger:  log,
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

// Execute lists the ads of a folder. A folder that cannot be resolved
// yields an empty listing.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, apperrors.NewInputValidationError("input cannot be nil")
	}

	folder := classifieds.ResolveFolder(input.Folder)
	language := input.Language
	if language == "" {
		language = h.config.DefaultLanguage
	}
	locale := input.Locale
	if locale == "" {
		locale = language
	}
	order := classifieds.ParseSortOrder(input.Sort)

	output := &Output{
		Folder:            folder,
		Items:             []Item{},
		Sort:              order,
		CacheDependencies: []host.CacheDependency{},
	}
	if folder.IsZero() {
		h.logger.Debug("no folder to list", nil)
		return output, nil
	}
	constraint := nodeConstraint(input.NodeConstraint)
	if constraint != nil && folder.Path == "" {
		return nil, apperrors.NewInputValidationError("nodeConstraint requires a folder path")
	}

	all, cached, err := h.summaries(ctx, folder, language, constraint, input.NoCache)
	if err != nil {
		return nil, err
	}
	output.Cached = cached

	matching := classifieds.SortItems(classifieds.ApplyFilters(all, input.Filters), order)
	limit := h.config.MaxItems
	if input.MaxItems != nil {
		limit = *input.MaxItems
	}
	shown := classifieds.Limit(matching, limit)

	output.MatchCount = len(matching)
	output.ItemCount = len(shown)
	for _, s := range shown {
		output.Items = append(output.Items, label(s, locale))
	}
	output.CacheDependencies = append(folderDependencies(folder, constraint != nil), classifieds.CacheDependencies(shown)...)
	output.FilterLabels = filterLabels(input.Filters, locale)
	if input.IncludeFacets {
		facets := classifieds.ComputeFacets(all)
		output.Facets = &facets
	}
	return output, nil
}

// summaries returns every ad of the folder, unfiltered. With a constraint
// the ads are searched below the folder path instead.
func (h *Handler) summaries(ctx context.Context, folder classifieds.Folder, language string, constraint json.RawMessage, noCache bool) ([]classifieds.Summary, bool, error) {
	useCache := h.cache != nil && !noCache
	key := cache.Key(TaskType, folder.Path, folder.UUID, language, string(constraint))
	if useCache {
		if raw, ok := h.cache.Get(ctx, key); ok {
			var items []classifieds.Summary
			if err := json.Unmarshal([]byte(raw), &items); err == nil {
				return items, true, nil
			}
			h.logger.Warn("discarding unreadable cache entry", map[string]interface{}{"key": key})
		}
	}

	items, err := h.fetch(ctx, folder, language, constraint)
	if err != nil {
		return nil, false, err
	}

	if useCache {
		if data, err := json.Marshal(items); err == nil {
			deps := append(folderDependencies(folder, constraint != nil), classifieds.CacheDependencies(items)...)
			if err := h.cache.Set(ctx, key, string(data), h.config.CacheTTL, deps...); err != nil {
				h.logger.Warn("failed to cache listing", map[string]interface{}{"error": err})
			}
		}
	}
	return items, false, nil
}

func (h *Handler) fetch(ctx context.Context, folder classifieds.Folder, language string, constraint json.RawMessage) ([]classifieds.Summary, error) {
	if h.graphql == nil {
		return nil, jcrquery.ErrNoExecutor
	}

	var (
		query     string
		variables map[string]any
	)
	switch {
	case constraint != nil:
		query = classifieds.AdsSearchQuery
		variables = map[string]any{"paths": []string{folder.Path}, "constraint": constraint, "language": language}
	case folder.Path != "":
		query = classifieds.AdsByPathQuery
		variables = map[string]any{"path": folder.Path, "language": language}
	default:
		query = classifieds.AdsByUUIDQuery
		variables = map[string]any{"uuid": folder.UUID, "language": language}
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.FetchTimeout)
	defer cancel()

	resp, err := h.graphql(ctx, query, variables)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: listing %s", jcrquery.ErrQueryTimeout, folderName(folder))
		}
		return nil, err
	}
	if resp == nil {
		return []classifieds.Summary{}, nil
	}
	if len(resp.Errors) > 0 {
		return nil, &jcrquery.GraphQLError{Errors: resp.Errors}
	}

	nodes, err := classifieds.DecodeAds(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", jcrquery.ErrDecode, err)
	}
	return classifieds.MapNodes(nodes), nil
}

func folderName(f classifieds.Folder) string {
	if f.Path != "" {
		return f.Path
	}
	return f.UUID
}

// nodeConstraint returns nil for an absent or JSON null constraint.
func nodeConstraint(raw json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return raw
}

func folderDependencies(f classifieds.Folder, deep bool) []host.CacheDependency {
	var deps []host.CacheDependency
	if f.Path != "" {
		deps = append(deps, host.ForPath(f.Path))
		if deep {
			deps = append(deps, host.FlushOnPathMatching(strings.TrimSuffix(f.Path, "/")+"/.*"))
		}
	}
	if f.UUID != "" {
		deps = append(deps, host.ForUUID(f.UUID))
	}
	return deps
}

func label(s classifieds.Summary, locale string) Item {
	item := Item{
		Summary:           s,
		CategoryLabel:     classifieds.NormalizeLabel(s.Category),
		AvailabilityLabel: classifieds.NormalizeLabel(s.Availability),
		ConditionLabel:    classifieds.NormalizeLabel(s.Condition),
	}
	item.PriceLabel, _ = classifieds.FormatPrice(s.Price, s.PriceCurrency, s.PriceUnit, locale)
	item.PriceUnitLabel, _ = classifieds.DescribePriceUnit(s.PriceUnit)
	item.DateLabel, _ = classifieds.FormatDate(s.DatePosted, locale)
	return item
}

func filterLabels(f classifieds.Filters, locale string) map[string]string {
	labels := make(map[string]string)
	if f.Category != "" {
		labels["filterCategory"] = classifieds.NormalizeLabel(f.Category)
	}
	if f.Availability != "" {
		labels["filterAvailability"] = classifieds.NormalizeLabel(f.Availability)
	}
	if f.MinPrice != nil {
		labels["minPrice"], _ = classifieds.FormatFilterPrice(*f.MinPrice, locale)
	}
	if f.MaxPrice != nil {
		labels["maxPrice"], _ = classifieds.FormatFilterPrice(*f.MaxPrice, locale)
	}
	if len(labels) == 0 {
		return nil
	}
	return labels
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
