package job

import (
	"context"
	"time"

	"github.com/jaki95/pack-shuffler/internal/progress"
)

// Status represents the current state of a shuffle run
type Status struct {
	ID         string           `json:"id"`
	Label      string           `json:"label"`
	Status     string           `json:"status"`
	Progress   float64          `json:"progress"`
	Message    string           `json:"message"`
	Error      string           `json:"error,omitempty"`
	Output     string           `json:"output,omitempty"`
	Tracks     int              `json:"tracks"`
	Warnings   []string         `json:"warnings,omitempty"`
	Events     []progress.Event `json:"events"`
	StartTime  time.Time        `json:"startTime"`
	EndTime    *time.Time       `json:"endTime,omitempty"`
	cancelFunc context.CancelFunc
}

// Finished reports whether the run reached a terminal state
func (s *Status) Finished() bool {
	switch s.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Response represents a page of runs
type Response struct {
	Jobs       []*Status `json:"jobs"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	TotalJobs  int       `json:"totalJobs"`
	TotalPages int       `json:"totalPages"`
}

// Constants for job status
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// Constants for pagination
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// MaxEvents bounds the progress events kept per run
const MaxEvents = 50

// DefaultRetention is the number of finished runs kept by a Manager
const DefaultRetention = 100
