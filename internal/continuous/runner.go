// Package continuous regenerates a shuffled pack on a fixed interval. Each
// generation holds an exclusive lock on the output directory so that two
// processes never write the same output at once.
package continuous

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/jaki95/pack-shuffler/internal/domain"
	"github.com/jaki95/pack-shuffler/internal/job"
	"github.com/jaki95/pack-shuffler/internal/progress"
	"github.com/jaki95/pack-shuffler/internal/selection"
)

var ErrLocked = errors.New("output is locked by another shuffle")

// Shuffler produces one shuffled pack per call.
type Shuffler interface {
	CreateShuffled(ctx context.Context, req selection.ShuffleRequest) selection.Result
}

// PlayingFunc reports the track currently playing, or nil.
type PlayingFunc func() *domain.Track

// Runner is the continuous-mode loop.
type Runner struct {
	shuffler Shuffler
	jobs     *job.Manager
	request  selection.ShuffleRequest
	interval time.Duration
	playing  PlayingFunc
	logger   *slog.Logger

	lock *flock.Flock

	mu       sync.Mutex
	previous *domain.Pack
	current  string
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithPlaying supplies the currently playing track to each generation.
func WithPlaying(fn PlayingFunc) Option {
	return func(r *Runner) { r.playing = fn }
}

// WithProgress records the tracker's events on the active run.
func WithProgress(tracker *progress.Tracker) Option {
	return func(r *Runner) {
		if tracker == nil {
			return
		}
		tracker.AddListener(func(e progress.Event) {
			r.mu.Lock()
			id := r.current
			r.mu.Unlock()
			if id != "" {
				_ = r.jobs.RecordEvent(id, e)
			}
		})
	}
}

// New creates a runner generating req every interval. req.Output.PreviousPack
// seeds the first generation.
func New(shuffler Shuffler, jobs *job.Manager, req selection.ShuffleRequest, interval time.Duration, opts ...Option) *Runner {
	if shuffler == nil || jobs == nil {
		panic("continuous: shuffler and job manager are required")
	}
	if interval <= 0 {
		interval = time.Minute
	}
	r := &Runner{
		shuffler: shuffler,
		jobs:     jobs,
		request:  req,
		interval: interval,
		logger:   slog.Default(),
		previous: req.Output.PreviousPack,
		lock:     flock.New(LockPath(req.Output.Path)),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "continuous", "output", req.Output.Path)
	return r
}

// LockPath returns the lock file guarding an output container path.
func LockPath(containerPath string) string {
	base := filepath.Base(containerPath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(containerPath), "."+name+".lock")
}

// Previous returns the pack produced by the last successful generation.
func (r *Runner) Previous() *domain.Pack {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.previous
}

// Run generates immediately and then on every tick until ctx is done. A
// generation that finds the output locked is skipped.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("Continuous shuffle started", "interval", r.interval)
	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.Warn("Generation skipped", "error", err)
		}

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
		if ctx.Err() != nil {
			r.logger.Info("Continuous shuffle stopped")
			return nil
		}
	}
}

// RunOnce performs one locked generation and records it as a job.
func (r *Runner) RunOnce(ctx context.Context) (selection.Result, error) {
	if err := os.MkdirAll(filepath.Dir(r.lock.Path()), 0o755); err != nil {
		return selection.Result{}, fmt.Errorf("create output directory: %w", err)
	}
	ok, err := r.lock.TryLock()
	if err != nil {
		return selection.Result{}, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return selection.Result{}, fmt.Errorf("%w: %s", ErrLocked, r.lock.Path())
	}
	defer func() {
		if err := r.lock.Unlock(); err != nil {
			r.logger.Warn("Failed to release output lock", "error", err)
		}
	}()

	status, jobCtx := r.jobs.CreateJob(ctx, "shuffle "+filepath.Base(r.request.Output.Path))
	if err := r.jobs.StartJob(status.ID); err != nil {
		return selection.Result{}, err
	}

	req := r.request
	r.mu.Lock()
	req.Output.PreviousPack = r.previous
	r.current = status.ID
	r.mu.Unlock()
	if r.playing != nil {
		req.CurrentlyPlaying = r.playing()
	}

	result := r.shuffler.CreateShuffled(jobCtx, req)

	r.mu.Lock()
	r.current = ""
	if result.Success {
		r.previous = result.Pack
	}
	r.mu.Unlock()

	if !result.Success {
		err := result.Err
		if err == nil {
			err = errors.New(result.Message)
		}
		if ctx.Err() == nil {
			_ = r.jobs.FailJob(status.ID, err)
		} else {
			_ = r.jobs.CancelJob(status.ID)
		}
		return result, fmt.Errorf("generation %s failed: %w", status.ID, err)
	}

	if err := r.jobs.CompleteJob(status.ID, r.request.Output.Path, len(result.Pack.Tracks), result.Warnings); err != nil {
		r.logger.Warn("Failed to record generation", "job", status.ID, "error", err)
	}
	r.logger.Info("Generation complete", "job", status.ID, "tracks", len(result.Pack.Tracks), "warnings", len(result.Warnings))
	return result, nil
}
