package jcrquery

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type recordedCall struct {
	query     string
	variables map[string]any
}

type recordingObserver struct {
	mu       sync.Mutex
	started  int
	finished []error
	nodes    []int
}

func (o *recordingObserver) QueryStarted(context.Context, Workspace, BuiltQuery) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started++
}

func (o *recordingObserver) QueryFinished(_ context.Context, _ Workspace, _ BuiltQuery, nodes int, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, err)
	o.nodes = append(o.nodes, nodes)
}

func staticExecutor(t *testing.T, data string, calls *[]recordedCall) GraphQLExecutor {
	t.Helper()
	return func(_ context.Context, query string, variables map[string]any) (*GraphQLResponse, error) {
		if calls != nil {
			*calls = append(*calls, recordedCall{query: query, variables: variables})
		}
		return &GraphQLResponse{Data: json.RawMessage(data)}, nil
	}
}

const twoNodes = `{"jcr":{"nodesByQuery":{"nodes":[
	{"workspace":"EDIT","uuid":"u1","path":"/sites/test/a","name":"a","renderedContent":{"output":"<p>a</p>"}},
	{"workspace":"EDIT","uuid":"u2","path":"/sites/test/b","name":"b","renderedContent":null}
]}}}`

// ==========================
// Execute
// ==========================

func TestExecute_Success(t *testing.T) {
	var calls []recordedCall
	obs := &recordingObserver{}
	exec := NewExecutor(staticExecutor(t, twoNodes, &calls), WithObserver(obs))
	b := createTestBuilder(t, func(c *Config) { c.Limit = Int(12) })

	nodes, err := exec.Execute(context.Background(), b, ExecuteOptions{})

	require.NoError(t, err)
	assert.Equal(t, []RenderNode{{UUID: "u1", HTML: "<p>a</p>"}, {UUID: "u2", HTML: ""}}, nodes)

	require.Len(t, calls, 1)
	assert.Equal(t, map[string]any{
		"workspace": "EDIT",
		"query":     b.Build().QueryText,
		"view":      "card",
		"language":  "en",
	}, calls[0].variables)
	assert.Contains(t, calls[0].query, "nodesByQuery(query: $query, limit: 12)")
	assert.Contains(t, calls[0].query, "renderedContent(view: $view, language: $language)")

	assert.Equal(t, 1, obs.started)
	assert.Equal(t, []error{nil}, obs.finished)
	assert.Equal(t, []int{2}, obs.nodes)
}

func TestExecute_OptionsOverrideLimitAndOffset(t *testing.T) {
	var calls []recordedCall
	exec := NewExecutor(staticExecutor(t, `{"jcr":{"nodesByQuery":{"nodes":[]}}}`, &calls))
	b := createTestBuilder(t, func(c *Config) {
		c.Limit = Int(12)
		c.Offset = Int(24)
	})

	nodes, err := exec.Execute(context.Background(), b, ExecuteOptions{Limit: Int(5), Offset: Int(0)})

	require.NoError(t, err)
	assert.Empty(t, nodes)
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].query, "nodesByQuery(query: $query, limit: 5)")
	assert.NotContains(t, calls[0].query, "offset")
}

func TestExecute_Errors(t *testing.T) {
	tests := []struct {
		name  string
		run   GraphQLExecutor
		check func(t *testing.T, err error)
	}{
		{
			name: "transport error passes through",
			run: func(context.Context, string, map[string]any) (*GraphQLResponse, error) {
				return nil, &TransportError{StatusCode: 502, Status: "Bad Gateway"}
			},
			check: func(t *testing.T, err error) {
				var te *TransportError
				require.True(t, errors.As(err, &te))
				assert.Equal(t, 502, te.StatusCode)
				assert.Equal(t, "graphql http error: 502 Bad Gateway", err.Error())
			},
		},
		{
			name: "payload errors",
			run: func(context.Context, string, map[string]any) (*GraphQLResponse, error) {
				return &GraphQLResponse{Errors: []json.RawMessage{json.RawMessage(`{"message":"boom"}`)}}, nil
			},
			check: func(t *testing.T, err error) {
				var ge *GraphQLError
				require.True(t, errors.As(err, &ge))
				assert.Equal(t, `graphql errors: [{"message":"boom"}]`, err.Error())
			},
		},
		{
			name: "undecodable data",
			run: func(context.Context, string, map[string]any) (*GraphQLResponse, error) {
				return &GraphQLResponse{Data: json.RawMessage(`{"jcr":{"nodesByQuery":{"nodes":"nope"}}}`)}, nil
			},
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "decode nodesByQuery")
				assert.ErrorIs(t, err, ErrDecode)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := &recordingObserver{}
			exec := NewExecutor(tt.run, WithObserver(obs))

			nodes, err := exec.Execute(context.Background(), createTestBuilder(t, nil), ExecuteOptions{})

			assert.Nil(t, nodes)
			require.Error(t, err)
			tt.check(t, err)
			require.Len(t, obs.finished, 1)
			assert.Equal(t, err, obs.finished[0])
		})
	}
}

func TestExecute_NoExecutor(t *testing.T) {
	_, err := NewExecutor(nil).Execute(context.Background(), createTestBuilder(t, nil), ExecuteOptions{})
	assert.ErrorIs(t, err, ErrNoExecutor)
}

func TestExecute_EmptyResponse(t *testing.T) {
	exec := NewExecutor(func(context.Context, string, map[string]any) (*GraphQLResponse, error) {
		return &GraphQLResponse{}, nil
	})

	nodes, err := exec.Execute(context.Background(), createTestBuilder(t, nil), ExecuteOptions{})
	require.NoError(t, err)
	assert.NotNil(t, nodes)
	assert.Empty(t, nodes)
}

func TestExecute_ObserversFanOut(t *testing.T) {
	first, second := &recordingObserver{}, &recordingObserver{}
	exec := NewExecutor(staticExecutor(t, twoNodes, nil), WithObserver(Observers{first, second}))

	_, err := exec.Execute(context.Background(), createTestBuilder(t, nil), ExecuteOptions{})
	require.NoError(t, err)

	for _, o := range []*recordingObserver{first, second} {
		assert.Equal(t, 1, o.started)
		assert.Equal(t, []int{2}, o.nodes)
	}
}

// ==========================
// Timeouts
// ==========================

func TestExecute_TimeoutWhenExecutorNeverResolves(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	var mu sync.Mutex
	hung := true
	exec := NewExecutor(func(ctx context.Context, query string, variables map[string]any) (*GraphQLResponse, error) {
		mu.Lock()
		block := hung
		mu.Unlock()
		if block {
			// ignores ctx on purpose
			<-release
			return nil, nil
		}
		return &GraphQLResponse{Data: json.RawMessage(twoNodes)}, nil
	})
	b := createTestBuilder(t, nil)

	start := time.Now()
	nodes, err := exec.Execute(context.Background(), b, ExecuteOptions{Timeout: 50 * time.Millisecond})

	assert.Nil(t, nodes)
	assert.ErrorIs(t, err, ErrQueryTimeout)
	assert.Less(t, time.Since(start), time.Second)

	mu.Lock()
	hung = false
	mu.Unlock()

	nodes, err = exec.Execute(context.Background(), b, ExecuteOptions{Timeout: 50 * time.Millisecond})
	require.NoError(t, err, "a timed out call must not affect later calls")
	assert.Len(t, nodes, 2)
}

func TestExecute_DefaultTimeoutOption(t *testing.T) {
	exec := NewExecutor(func(ctx context.Context, _ string, _ map[string]any) (*GraphQLResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, WithDefaultTimeout(20*time.Millisecond))

	_, err := exec.Execute(context.Background(), createTestBuilder(t, nil), ExecuteOptions{})
	assert.ErrorIs(t, err, ErrQueryTimeout)
}

func TestExecute_ParentCancellation(t *testing.T) {
	exec := NewExecutor(func(ctx context.Context, _ string, _ map[string]any) (*GraphQLResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exec.Execute(ctx, createTestBuilder(t, nil), ExecuteOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrQueryTimeout)
}

// ==========================
// NodesQuery
// ==========================

func TestNodesQuery(t *testing.T) {
	t.Run("without rendering", func(t *testing.T) {
		q := NodesQuery(NodesQueryOptions{})
		assert.Contains(t, q, "query GetContentPropertiesQuery($workspace: Workspace!, $query: String!, $language: String!)")
		assert.Contains(t, q, "nodesByQuery(query: $query)")
		assert.NotContains(t, q, "renderedContent")
		assert.NotContains(t, q, "$view")
	})

	t.Run("with fragment and paging", func(t *testing.T) {
		q := NodesQuery(NodesQueryOptions{
			Fragment:      &Fragment{Name: "adFields", Value: "fragment adFields on JCRNode { displayName }"},
			RenderEnabled: true,
			Limit:         24,
			Offset:        48,
		})
		assert.Contains(t, q, "$view: String!")
		assert.Contains(t, q, "nodesByQuery(query: $query, limit: 24, offset: 48)")
		assert.Contains(t, q, "...adFields")
		assert.Contains(t, q, "\nfragment adFields on JCRNode { displayName }")
	})
}
