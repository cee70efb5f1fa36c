package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"cms-query-workers/internal/common/logger"
	"cms-query-workers/internal/jcrquery"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	QueryExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jcr_query_executions_total",
			Help: "Structured queries sent to the GraphQL endpoint by outcome",
		},
		[]string{"workspace", "status"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jcr_query_duration_seconds",
			Help:    "Latency of structured query execution",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"workspace"},
	)

	QueryNodes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jcr_query_nodes",
			Help:    "Nodes returned per successful query",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		},
		[]string{"workspace"},
	)

	RenderCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "render_cache_requests_total",
			Help: "Render cache lookups by result",
		},
		[]string{"result"},
	)
)

// Query status labels.
const (
	StatusSuccess    = "success"
	StatusTimeout    = "timeout"
	StatusSuperseded = "superseded"
	StatusCancelled  = "cancelled"
	StatusError      = "error"
)

// QueryStatus maps an execution error to its status label.
func QueryStatus(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, jcrquery.ErrQueryTimeout):
		return StatusTimeout
	case errors.Is(err, jcrquery.ErrSuperseded):
		return StatusSuperseded
	case errors.Is(err, context.Canceled):
		return StatusCancelled
	default:
		return StatusError
	}
}

// QueryObserver records executor activity in Prometheus and the log.
type QueryObserver struct {
	log logger.Logger
}

func NewQueryObserver(log logger.Logger) *QueryObserver {
	return &QueryObserver{log: log.Named("jcr-query")}
}

func (o *QueryObserver) QueryStarted(_ context.Context, workspace jcrquery.Workspace, q jcrquery.BuiltQuery) {
	o.log.Debug("executing query", map[string]interface{}{
		"workspace": string(workspace),
		"query":     q.QueryText,
	})
}

func (o *QueryObserver) QueryFinished(_ context.Context, workspace jcrquery.Workspace, q jcrquery.BuiltQuery, nodes int, elapsed time.Duration, err error) {
	ws := string(workspace)
	status := QueryStatus(err)
	QueryExecutions.WithLabelValues(ws, status).Inc()
	QueryDuration.WithLabelValues(ws).Observe(elapsed.Seconds())

	fields := map[string]interface{}{
		"workspace":  ws,
		"status":     status,
		"durationMs": elapsed.Milliseconds(),
	}
	if err != nil {
		fields["error"] = err
		fields["query"] = q.QueryText
		o.log.Warn("query failed", fields)
		return
	}
	QueryNodes.WithLabelValues(ws).Observe(float64(nodes))
	fields["nodes"] = nodes
	o.log.Debug("query executed", fields)
}

// CacheRecorder counts render cache lookups.
type CacheRecorder struct{}

func (CacheRecorder) RecordCacheResult(result string) {
	RenderCacheRequests.WithLabelValues(result).Inc()
}

// JobRecorder receives job outcomes alongside the Prometheus collectors.
type JobRecorder interface {
	RecordJobProcessed(ctx context.Context, taskType, status string)
	RecordJobDuration(ctx context.Context, taskType string, duration time.Duration, status string)
}

var (
	recorderMu sync.RWMutex
	recorder   JobRecorder
)

// UseJobRecorder forwards every finished JobTimer to r. Pass nil to detach.
func UseJobRecorder(r JobRecorder) {
	recorderMu.Lock()
	recorder = r
	recorderMu.Unlock()
}

// JobTimer tracks one job for the worker metrics.
type JobTimer struct {
	taskType string
	start    time.Time
}

func StartJob(taskType string) *JobTimer {
	WorkerJobsActive.WithLabelValues(taskType).Inc()
	return &JobTimer{taskType: taskType, start: time.Now()}
}

// Done records the job outcome. An empty errorCode counts as completed.
func (t *JobTimer) Done(errorCode string) {
	elapsed := time.Since(t.start)
	WorkerJobsActive.WithLabelValues(t.taskType).Dec()
	WorkerJobDuration.WithLabelValues(t.taskType).Observe(elapsed.Seconds())

	status := "completed"
	if errorCode == "" {
		WorkerJobsCompleted.WithLabelValues(t.taskType).Inc()
	} else {
		status = "failed"
		WorkerJobsFailed.WithLabelValues(t.taskType, errorCode).Inc()
	}

	recorderMu.RLock()
	r := recorder
	recorderMu.RUnlock()
	if r != nil {
		ctx := context.Background()
		r.RecordJobProcessed(ctx, t.taskType, status)
		r.RecordJobDuration(ctx, t.taskType, elapsed, status)
	}
}
