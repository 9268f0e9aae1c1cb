package job

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jaki95/pack-shuffler/internal/progress"
)

// Manager handles run bookkeeping
type Manager struct {
	mu        sync.RWMutex
	jobs      map[string]*Status
	retention int
}

// NewManager creates a new job manager keeping up to retention finished
// runs; a non-positive value uses DefaultRetention
func NewManager(retention int) *Manager {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Manager{
		jobs:      make(map[string]*Status),
		retention: retention,
	}
}

// CreateJob creates a new pending run. The returned context is cancelled by
// CancelJob.
func (m *Manager) CreateJob(parent context.Context, label string) (*Status, context.Context) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	job := &Status{
		ID:         uuid.NewString(),
		Label:      label,
		Status:     StatusPending,
		Message:    "Job created",
		StartTime:  time.Now(),
		cancelFunc: cancel,
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.pruneLocked()
	m.mu.Unlock()

	return job.snapshot(), ctx
}

// GetJob retrieves a copy of a run by ID
func (m *Manager) GetJob(jobID string) (*Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, exists := m.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	return job.snapshot(), nil
}

// StartJob marks a pending run as processing
func (m *Manager) StartJob(jobID string) error {
	return m.update(jobID, func(job *Status) error {
		if job.Status != StatusPending {
			return fmt.Errorf("%w: %s", ErrInvalidState, job.Status)
		}
		job.Status = StatusProcessing
		job.Message = "Shuffling"
		return nil
	})
}

// RecordEvent stores a progress event on an active run
func (m *Manager) RecordEvent(jobID string, event progress.Event) error {
	return m.update(jobID, func(job *Status) error {
		if job.Finished() {
			return nil
		}
		job.Progress = event.Progress
		if event.Message != "" {
			job.Message = event.Message
		}
		job.Events = append(job.Events, event)
		if len(job.Events) > MaxEvents {
			job.Events = job.Events[len(job.Events)-MaxEvents:]
		}
		return nil
	})
}

// CompleteJob marks a run as completed
func (m *Manager) CompleteJob(jobID, output string, tracks int, warnings []string) error {
	return m.finish(jobID, func(job *Status) {
		job.Status = StatusCompleted
		job.Progress = 100
		job.Message = fmt.Sprintf("Wrote %d tracks", tracks)
		job.Output = output
		job.Tracks = tracks
		job.Warnings = append([]string(nil), warnings...)
	})
}

// FailJob marks a run as failed
func (m *Manager) FailJob(jobID string, err error) error {
	return m.finish(jobID, func(job *Status) {
		job.Status = StatusFailed
		job.Message = "Shuffle failed"
		if err != nil {
			job.Error = err.Error()
		}
	})
}

// CancelJob cancels a run
func (m *Manager) CancelJob(jobID string) error {
	return m.finish(jobID, func(job *Status) {
		job.cancelFunc()
		job.Status = StatusCancelled
		job.Message = "Job cancelled by user"
	})
}

func (m *Manager) finish(jobID string, apply func(job *Status)) error {
	return m.update(jobID, func(job *Status) error {
		if job.Status != StatusProcessing && job.Status != StatusPending {
			return fmt.Errorf("%w: %s", ErrInvalidState, job.Status)
		}
		apply(job)
		endTime := time.Now()
		job.EndTime = &endTime
		job.cancelFunc()
		return nil
	})
}

func (m *Manager) update(jobID string, apply func(job *Status) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[jobID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	return apply(job)
}

// ListJobs lists runs, newest first, with pagination
func (m *Manager) ListJobs(page, pageSize int) *Response {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		pageSize = DefaultPageSize
	}

	m.mu.RLock()
	jobs := make([]*Status, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job.snapshot())
	}
	m.mu.RUnlock()
	sortNewestFirst(jobs)

	start := (page - 1) * pageSize
	end := start + pageSize
	totalPages := (len(jobs) + pageSize - 1) / pageSize

	if start >= len(jobs) {
		return &Response{
			Jobs:       []*Status{},
			Page:       page,
			PageSize:   pageSize,
			TotalJobs:  len(jobs),
			TotalPages: totalPages,
		}
	}

	if end > len(jobs) {
		end = len(jobs)
	}

	return &Response{
		Jobs:       jobs[start:end],
		Page:       page,
		PageSize:   pageSize,
		TotalJobs:  len(jobs),
		TotalPages: totalPages,
	}
}

// pruneLocked drops the oldest finished runs beyond the retention limit
func (m *Manager) pruneLocked() {
	var finished []*Status
	for _, job := range m.jobs {
		if job.Finished() {
			finished = append(finished, job)
		}
	}
	if len(finished) <= m.retention {
		return
	}
	sortNewestFirst(finished)
	for _, job := range finished[m.retention:] {
		delete(m.jobs, job.ID)
	}
}

func sortNewestFirst(jobs []*Status) {
	sort.SliceStable(jobs, func(i, j int) bool {
		if !jobs[i].StartTime.Equal(jobs[j].StartTime) {
			return jobs[i].StartTime.After(jobs[j].StartTime)
		}
		return jobs[i].ID < jobs[j].ID
	})
}

func (s *Status) snapshot() *Status {
	cp := *s
	cp.Warnings = append([]string(nil), s.Warnings...)
	cp.Events = append([]progress.Event(nil), s.Events...)
	if s.EndTime != nil {
		end := *s.EndTime
		cp.EndTime = &end
	}
	return &cp
}
