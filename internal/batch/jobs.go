package batch

import (
	"sync"
	"time"
)

// JobStatus represents the state of a batch scoring job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusDecoding  JobStatus = "decoding"
	StatusScoring   JobStatus = "scoring"
	StatusCompleted JobStatus = "completed"
	StatusPartial   JobStatus = "partial"
	StatusFailed    JobStatus = "failed"
)

// Job tracks one uploaded CSV being scored row by row.
type Job struct {
	mu sync.Mutex

	ID       string
	UserID   string
	Filename string

	Status    JobStatus
	Phase     string
	Progress  Progress
	CreatedAt time.Time
	UpdatedAt time.Time

	data          []byte
	predictionIDs []string
}

// Progress counts rows through the job.
type Progress struct {
	TotalRows int      `json:"total_rows"`
	Processed int      `json:"rows_processed"`
	Succeeded int      `json:"rows_succeeded"`
	Failed    int      `json:"rows_failed"`
	Errors    []string `json:"errors"`
}

// NewJob returns a queued job over the raw CSV bytes.
func NewJob(id, userID, filename string, data []byte) *Job {
	now := time.Now()
	return &Job{
		ID:        id,
		UserID:    userID,
		Filename:  filename,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
		data:      data,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes jobs idle for longer than the TTL.
func (s *JobStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	removed := 0
	for id, job := range s.jobs {
		job.mu.Lock()
		idle := now.Sub(job.UpdatedAt)
		job.mu.Unlock()
		if idle > s.ttl {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// SetTotalRows records how many data rows the CSV holds.
func (j *Job) SetTotalRows(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalRows = n
	j.UpdatedAt = time.Now()
}

// RowSucceeded records a scored and stored row.
func (j *Job) RowSucceeded(predictionID string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Processed++
	j.Progress.Succeeded++
	j.predictionIDs = append(j.predictionIDs, predictionID)
	j.UpdatedAt = time.Now()
}

// RowFailed records a rejected row.
func (j *Job) RowFailed(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Processed++
	j.Progress.Failed++
	j.Progress.Errors = append(j.Progress.Errors, msg)
	j.UpdatedAt = time.Now()
}

// AddError records a job-level error.
func (j *Job) AddError(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Errors = append(j.Progress.Errors, msg)
	j.UpdatedAt = time.Now()
}

// takeData hands the CSV bytes to the worker and releases them from the job.
func (j *Job) takeData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	d := j.data
	j.data = nil
	return d
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID            string    `json:"job_id"`
	UserID        string    `json:"user_id"`
	Filename      string    `json:"filename"`
	Status        JobStatus `json:"status"`
	Phase         string    `json:"phase"`
	Progress      Progress  `json:"progress"`
	PredictionIDs []string  `json:"prediction_ids"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	p := j.Progress
	p.Errors = append([]string{}, j.Progress.Errors...)
	return JobSnapshot{
		ID:            j.ID,
		UserID:        j.UserID,
		Filename:      j.Filename,
		Status:        j.Status,
		Phase:         j.Phase,
		Progress:      p,
		PredictionIDs: append([]string{}, j.predictionIDs...),
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     j.UpdatedAt,
	}
}
