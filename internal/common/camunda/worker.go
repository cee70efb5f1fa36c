package camunda

import (
	"sync"

	"cms-query-workers/internal/common/config"
	"cms-query-workers/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// Workers opens job workers on one Zeebe client and closes them together.
type Workers struct {
	client zbc.Client
	log    logger.Logger

	mu      sync.Mutex
	workers map[string]worker.JobWorker
}

func NewWorkers(client zbc.Client, log logger.Logger) *Workers {
	return &Workers{client: client, log: log, workers: make(map[string]worker.JobWorker)}
}

// Start opens a job worker for taskType unless it is disabled. It reports
// whether a worker was opened.
func (w *Workers) Start(taskType string, wcfg config.WorkerConfig, handler worker.JobHandler) bool {
	fields := map[string]interface{}{"taskType": taskType}
	if !wcfg.Enabled {
		w.log.Info("worker disabled", fields)
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, running := w.workers[taskType]; running {
		w.log.Warn("worker already started", fields)
		return false
	}

	w.workers[taskType] = w.client.NewJobWorker().
		JobType(taskType).
		Handler(handler).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	fields["maxJobsActive"] = wcfg.MaxJobsActive
	fields["timeoutMs"] = wcfg.Timeout
	w.log.Info("worker started", fields)
	return true
}

// Running lists the task types with an open worker.
func (w *Workers) Running() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	types := make([]string, 0, len(w.workers))
	for t := range w.workers {
		types = append(types, t)
	}
	return types
}

// Stop closes every worker and waits for in-flight jobs to finish.
func (w *Workers) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for taskType, jw := range w.workers {
		jw.Close()
		jw.AwaitClose()
		w.log.Info("worker stopped", map[string]interface{}{"taskType": taskType})
		delete(w.workers, taskType)
	}
}
