package continuous

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jaki95/pack-shuffler/internal/converter"
	"github.com/jaki95/pack-shuffler/internal/domain"
	"github.com/jaki95/pack-shuffler/internal/job"
	"github.com/jaki95/pack-shuffler/internal/progress"
	"github.com/jaki95/pack-shuffler/internal/registry"
	"github.com/jaki95/pack-shuffler/internal/selection"
	"github.com/jaki95/pack-shuffler/internal/storage"
)

type mockShuffler struct {
	mock.Mock
}

func (m *mockShuffler) CreateShuffled(ctx context.Context, req selection.ShuffleRequest) selection.Result {
	return m.Called(ctx, req).Get(0).(selection.Result)
}

func TestLockPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/games", "zelda", ".shuffled.lock"), LockPath("/games/zelda/shuffled.msu"))
}

func TestRunOncePassesPreviousGeneration(t *testing.T) {
	out := filepath.Join(t.TempDir(), "shuffled.msu")
	first := &domain.Pack{ID: "gen-1", Tracks: []domain.Track{{SlotNumber: 1}}}
	second := &domain.Pack{ID: "gen-2", Tracks: []domain.Track{{SlotNumber: 1}, {SlotNumber: 2}}}
	playing := &domain.Track{SlotNumber: 1, SourcePackID: "source"}

	shuffler := &mockShuffler{}
	shuffler.On("CreateShuffled", mock.Anything, mock.MatchedBy(func(req selection.ShuffleRequest) bool {
		return req.Output.PreviousPack == nil
	})).Return(selection.Result{Success: true, Pack: first}).Once()
	shuffler.On("CreateShuffled", mock.Anything, mock.MatchedBy(func(req selection.ShuffleRequest) bool {
		return req.Output.PreviousPack == first && req.CurrentlyPlaying == playing
	})).Return(selection.Result{Success: true, Pack: second, Warnings: []string{"slot 3"}}).Once()

	jobs := job.NewManager(0)
	r := New(shuffler, jobs, selection.ShuffleRequest{Output: selection.Output{Path: out}}, time.Hour,
		WithPlaying(func() *domain.Track { return playing }))

	_, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, r.Previous())

	res, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Same(t, second, res.Pack)
	assert.Same(t, second, r.Previous())
	shuffler.AssertExpectations(t)

	list := jobs.ListJobs(1, 10)
	require.Equal(t, 2, list.TotalJobs)
	for _, s := range list.Jobs {
		assert.Equal(t, job.StatusCompleted, s.Status)
	}
	assert.Equal(t, 2, list.Jobs[0].Tracks)
	assert.Equal(t, []string{"slot 3"}, list.Jobs[0].Warnings)
}

func TestRunOnceRefusesWhenLocked(t *testing.T) {
	out := filepath.Join(t.TempDir(), "shuffled.msu")
	held := flock.New(LockPath(out))
	ok, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer held.Unlock()

	shuffler := &mockShuffler{}
	r := New(shuffler, job.NewManager(0), selection.ShuffleRequest{Output: selection.Output{Path: out}}, time.Hour)

	_, err = r.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrLocked)
	shuffler.AssertNotCalled(t, "CreateShuffled", mock.Anything, mock.Anything)
}

func TestRunOnceRecordsFailure(t *testing.T) {
	out := filepath.Join(t.TempDir(), "shuffled.msu")
	shuffler := &mockShuffler{}
	shuffler.On("CreateShuffled", mock.Anything, mock.Anything).
		Return(selection.Result{Success: false, Err: selection.ErrNoCandidates, Message: "No packs to shuffle"})

	jobs := job.NewManager(0)
	previous := &domain.Pack{ID: "seed"}
	req := selection.ShuffleRequest{Output: selection.Output{Path: out, PreviousPack: previous}}
	r := New(shuffler, jobs, req, time.Hour)

	_, err := r.RunOnce(context.Background())
	assert.ErrorIs(t, err, selection.ErrNoCandidates)
	assert.Same(t, previous, r.Previous(), "failed generations keep the previous pack")

	list := jobs.ListJobs(1, 10)
	require.Len(t, list.Jobs, 1)
	assert.Equal(t, job.StatusFailed, list.Jobs[0].Status)
	assert.Equal(t, selection.ErrNoCandidates.Error(), list.Jobs[0].Error)
}

func TestRunStopsOnCancel(t *testing.T) {
	out := filepath.Join(t.TempDir(), "shuffled.msu")
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	shuffler := &mockShuffler{}
	shuffler.On("CreateShuffled", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			calls++
			if calls == 3 {
				cancel()
			}
		}).
		Return(selection.Result{Success: true, Pack: &domain.Pack{}})

	r := New(shuffler, job.NewManager(0), selection.ShuffleRequest{Output: selection.Output{Path: out}}, time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop")
	}
	assert.Equal(t, 3, calls)
}

func TestRunnerWithEngine(t *testing.T) {
	slots := []domain.SlotDef{{Number: 1}, {Number: 2}}
	target := domain.NewTypeDef("game", "", slots, nil)
	reg := registry.New()
	require.NoError(t, reg.Register(target))

	src := t.TempDir()
	pack := &domain.Pack{ID: "a", Name: "a", Type: "game"}
	for _, n := range []int{1, 2} {
		path := filepath.Join(src, fmt.Sprintf("a-%d.pcm", n))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		pack.Tracks = append(pack.Tracks, domain.Track{SlotNumber: n, Path: path, SourcePackID: "a", OriginalSlotNumber: n})
	}

	tracker := progress.NewTracker()
	engine := selection.New(reg, converter.New(reg, nil), storage.NewLocalFileStorage(nil), nil,
		selection.WithSeed(3), selection.WithProgress(tracker))
	jobs := job.NewManager(0)
	out := filepath.Join(t.TempDir(), "shuffled.msu")
	r := New(engine, jobs, selection.ShuffleRequest{
		Packs:  []*domain.Pack{pack},
		Target: target,
		Output: selection.Output{Path: out},
	}, time.Hour, WithProgress(tracker))

	_, err := r.RunOnce(context.Background())
	require.NoError(t, err)

	// The source disappears; the second generation keeps the first one's files.
	require.NoError(t, os.Remove(pack.Tracks[0].Path))
	res, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Pack.Tracks, 2)
	assert.FileExists(t, filepath.Join(filepath.Dir(out), "shuffled-1.pcm"))

	list := jobs.ListJobs(1, 10)
	require.Len(t, list.Jobs, 2)
	assert.NotEmpty(t, list.Jobs[0].Events)
}
