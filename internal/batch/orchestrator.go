package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/aquasens/internal/metrics"
)

// ErrQueueFull is returned by Submit when no worker slot is free.
var ErrQueueFull = errors.New("batch queue is full")

// Orchestrator runs batch scoring jobs on a fixed pool of workers.
type Orchestrator struct {
	jobs   *JobStore
	queue  chan *Job
	worker *Worker
	log    *slog.Logger

	workers int
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stop    sync.Once
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(w *Worker, workers, queueSize int, jobTTL time.Duration, log *slog.Logger) *Orchestrator {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Orchestrator{
		jobs:    NewJobStore(jobTTL),
		queue:   make(chan *Job, queueSize),
		worker:  w,
		log:     log,
		workers: workers,
	}
}

// Start launches worker goroutines and the job store janitor.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.workers {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					metrics.BatchQueueDepth.Set(float64(len(o.queue)))
					o.worker.Process(workerCtx, job)
					metrics.BatchJobs.WithLabelValues(string(job.Snapshot().Status)).Inc()
				}
			}
		}()
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				if n := o.jobs.Cleanup(); n > 0 {
					o.log.Debug("evicted batch jobs", "count", n)
				}
			}
		}
	}()
}

// Stop cancels in-flight jobs and waits for workers to exit.
func (o *Orchestrator) Stop() {
	o.stop.Do(func() {
		if o.cancel != nil {
			o.cancel()
		}
		close(o.queue)
		o.wg.Wait()
	})
}

// Submit registers and queues a job for userID over the CSV bytes.
func (o *Orchestrator) Submit(userID, filename string, data []byte) (*Job, error) {
	job := NewJob(uuid.NewString(), userID, filename, data)
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		metrics.BatchQueueDepth.Set(float64(len(o.queue)))
		return job, nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		job.takeData()
		return job, fmt.Errorf("%w (%d)", ErrQueueFull, cap(o.queue))
	}
}

// GetJob returns a job by ID, or nil.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}
