package jcrquery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DefaultTimeout bounds a single Execute call when no timeout is given.
const DefaultTimeout = 5 * time.Second

// RenderNode is a query hit with its rendered markup.
type RenderNode struct {
	UUID string `json:"uuid"`
	HTML string `json:"html"`
}

// Observer is notified around each execution. The package never logs on
// its own; attach an Observer for logs or metrics.
type Observer interface {
	QueryStarted(ctx context.Context, workspace Workspace, q BuiltQuery)
	QueryFinished(ctx context.Context, workspace Workspace, q BuiltQuery, nodes int, elapsed time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) QueryStarted(context.Context, Workspace, BuiltQuery) {}

func (nopObserver) QueryFinished(context.Context, Workspace, BuiltQuery, int, time.Duration, error) {}

// Observers fans notifications out to several observers in order.
type Observers []Observer

func (obs Observers) QueryStarted(ctx context.Context, workspace Workspace, q BuiltQuery) {
	for _, o := range obs {
		o.QueryStarted(ctx, workspace, q)
	}
}

func (obs Observers) QueryFinished(ctx context.Context, workspace Workspace, q BuiltQuery, nodes int, elapsed time.Duration, err error) {
	for _, o := range obs {
		o.QueryFinished(ctx, workspace, q, nodes, elapsed, err)
	}
}

// ExecuteOptions override the builder's limit and offset for one call.
type ExecuteOptions struct {
	Limit   *int
	Offset  *int
	Timeout time.Duration
}

// Executor runs built queries through a GraphQL executor. It holds no
// per-query state and may be shared between goroutines.
type Executor struct {
	run      GraphQLExecutor
	observer Observer
	timeout  time.Duration
}

type ExecutorOption func(*Executor)

func WithObserver(o Observer) ExecutorOption {
	return func(e *Executor) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithDefaultTimeout replaces DefaultTimeout for calls that do not set one.
func WithDefaultTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func NewExecutor(run GraphQLExecutor, opts ...ExecutorOption) *Executor {
	e := &Executor{run: run, observer: nopObserver{}, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type callResult struct {
	resp *GraphQLResponse
	err  error
}

// Execute builds b, sends it with rendering enabled and maps the returned
// nodes. The call is abandoned when the timeout elapses, even if the
// underlying executor ignores cancellation.
func (e *Executor) Execute(ctx context.Context, b *Builder, opts ExecuteOptions) ([]RenderNode, error) {
	if e == nil || e.run == nil {
		return nil, ErrNoExecutor
	}

	built := b.Build()
	cfg := b.config
	query := NodesQuery(NodesQueryOptions{
		RenderEnabled: true,
		Limit:         firstInt(opts.Limit, cfg.Limit),
		Offset:        firstInt(opts.Offset, cfg.Offset),
	})
	variables := map[string]any{
		"workspace": string(cfg.Workspace),
		"query":     built.QueryText,
		"view":      cfg.SubNodeView,
		"language":  cfg.Language,
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = e.timeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	e.observer.QueryStarted(ctx, cfg.Workspace, built)
	start := time.Now()
	nodes, err := e.call(callCtx, query, variables, timeout)
	e.observer.QueryFinished(ctx, cfg.Workspace, built, len(nodes), time.Since(start), err)
	return nodes, err
}

func (e *Executor) call(ctx context.Context, query string, variables map[string]any, timeout time.Duration) ([]RenderNode, error) {
	done := make(chan callResult, 1)
	go func() {
		resp, err := e.run(ctx, query, variables)
		done <- callResult{resp: resp, err: err}
	}()

	var res callResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}

	if res.err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrQueryTimeout, timeout)
		}
		return nil, res.err
	}
	return decodeNodes(res.resp)
}

func decodeNodes(resp *GraphQLResponse) ([]RenderNode, error) {
	if resp == nil {
		return []RenderNode{}, nil
	}
	if len(resp.Errors) > 0 {
		return nil, &GraphQLError{Errors: resp.Errors}
	}
	if len(resp.Data) == 0 {
		return []RenderNode{}, nil
	}

	var data nodesByQueryData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: decode nodesByQuery: %v", ErrDecode, err)
	}
	nodes := make([]RenderNode, 0, len(data.JCR.NodesByQuery.Nodes))
	for _, n := range data.JCR.NodesByQuery.Nodes {
		html := ""
		if n.RenderedContent != nil && n.RenderedContent.Output != nil {
			html = *n.RenderedContent.Output
		}
		nodes = append(nodes, RenderNode{UUID: n.UUID, HTML: html})
	}
	return nodes, nil
}

func firstInt(values ...*int) int {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return 0
}
