package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"cms-query-workers/internal/jcrquery"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *metric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestObservability_RecordsQueriesAndJobs(t *testing.T) {
	reader := metric.NewManualReader()
	o, err := New("cms-query-workers-test", reader)
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Shutdown(context.Background()) })

	ctx := context.Background()
	o.QueryStarted(ctx, jcrquery.WorkspaceLive, jcrquery.BuiltQuery{})
	o.QueryFinished(ctx, jcrquery.WorkspaceLive, jcrquery.BuiltQuery{}, 4, 30*time.Millisecond, nil)
	o.QueryFinished(ctx, jcrquery.WorkspaceLive, jcrquery.BuiltQuery{}, 0, time.Second, errors.New("boom"))
	o.RecordJobProcessed(ctx, "jcr-query", "completed")
	o.RecordJobDuration(ctx, "jcr-query", 40*time.Millisecond, "completed")

	data := collect(t, reader)

	queries, ok := data["queries.executed"].(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range queries.DataPoints {
		total += dp.Value
	}
	assert.EqualValues(t, 2, total)
	assert.Len(t, queries.DataPoints, 2, "one series per status")

	jobs, ok := data["jobs.processed"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, jobs.DataPoints, 1)
	assert.EqualValues(t, 1, jobs.DataPoints[0].Value)

	_, ok = data["queries.duration"].(metricdata.Histogram[float64])
	assert.True(t, ok)
}

func TestObservability_NilSafe(t *testing.T) {
	var o *Observability
	assert.NotPanics(t, func() {
		o.RecordJobProcessed(context.Background(), "x", "completed")
		o.QueryFinished(context.Background(), jcrquery.WorkspaceEdit, jcrquery.BuiltQuery{}, 0, 0, nil)
		assert.NoError(t, o.Shutdown(context.Background()))
	})
}
