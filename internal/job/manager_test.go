package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaki95/pack-shuffler/internal/progress"
)

func TestJobLifecycle(t *testing.T) {
	m := NewManager(0)

	job, ctx := m.CreateJob(context.Background(), "shuffle")
	assert.Equal(t, StatusPending, job.Status)
	assert.NotEmpty(t, job.ID)

	require.NoError(t, m.StartJob(job.ID))
	require.NoError(t, m.RecordEvent(job.ID, progress.Event{Stage: progress.StageSelecting, Progress: 40, Message: "Selecting"}))

	got, err := m.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, got.Status)
	assert.Equal(t, 40.0, got.Progress)
	assert.Len(t, got.Events, 1)

	require.NoError(t, m.CompleteJob(job.ID, "/out/shuffled.msu", 12, []string{"slot 5 empty"}))
	got, err = m.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 12, got.Tracks)
	assert.Equal(t, 100.0, got.Progress)
	assert.NotNil(t, got.EndTime)
	assert.ErrorIs(t, ctx.Err(), context.Canceled, "context is released once the run ends")

	assert.ErrorIs(t, m.CancelJob(job.ID), ErrInvalidState)
	assert.ErrorIs(t, m.StartJob(job.ID), ErrInvalidState)
}

func TestCancelJob(t *testing.T) {
	m := NewManager(0)
	job, ctx := m.CreateJob(context.Background(), "shuffle")

	require.NoError(t, m.CancelJob(job.ID))
	assert.ErrorIs(t, ctx.Err(), context.Canceled)

	got, err := m.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
}

func TestFailJob(t *testing.T) {
	m := NewManager(0)
	job, _ := m.CreateJob(context.Background(), "shuffle")
	require.NoError(t, m.StartJob(job.ID))
	require.NoError(t, m.FailJob(job.ID, errors.New("locked")))

	got, err := m.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "locked", got.Error)
}

func TestUnknownJob(t *testing.T) {
	m := NewManager(0)
	_, err := m.GetJob("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.CancelJob("missing"), ErrNotFound)
	assert.ErrorIs(t, m.StartJob("missing"), ErrNotFound)
}

func TestGetJobReturnsCopy(t *testing.T) {
	m := NewManager(0)
	job, _ := m.CreateJob(context.Background(), "shuffle")

	got, err := m.GetJob(job.ID)
	require.NoError(t, err)
	got.Status = StatusFailed

	again, err := m.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, again.Status)
}

func TestRecordEventKeepsRecentEvents(t *testing.T) {
	m := NewManager(0)
	job, _ := m.CreateJob(context.Background(), "shuffle")
	for i := 0; i < MaxEvents+10; i++ {
		require.NoError(t, m.RecordEvent(job.ID, progress.Event{Progress: float64(i)}))
	}
	got, err := m.GetJob(job.ID)
	require.NoError(t, err)
	require.Len(t, got.Events, MaxEvents)
	assert.Equal(t, float64(MaxEvents+9), got.Events[len(got.Events)-1].Progress)
}

func TestListJobs(t *testing.T) {
	m := NewManager(0)
	var ids []string
	for i := 0; i < 5; i++ {
		job, _ := m.CreateJob(context.Background(), "shuffle")
		ids = append(ids, job.ID)
		time.Sleep(time.Millisecond)
	}

	tests := []struct {
		name       string
		page       int
		pageSize   int
		expected   int
		totalPages int
	}{
		{name: "first page", page: 1, pageSize: 2, expected: 2, totalPages: 3},
		{name: "last page", page: 3, pageSize: 2, expected: 1, totalPages: 3},
		{name: "past the end", page: 4, pageSize: 2, expected: 0, totalPages: 3},
		{name: "defaults", page: 0, pageSize: 0, expected: 5, totalPages: 1},
		{name: "oversized page", page: 1, pageSize: MaxPageSize + 1, expected: 5, totalPages: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := m.ListJobs(tt.page, tt.pageSize)
			assert.Len(t, resp.Jobs, tt.expected)
			assert.Equal(t, 5, resp.TotalJobs)
			assert.Equal(t, tt.totalPages, resp.TotalPages)
		})
	}

	resp := m.ListJobs(1, 5)
	assert.Equal(t, ids[4], resp.Jobs[0].ID, "newest first")
}

func TestRetentionDropsOldestFinished(t *testing.T) {
	m := NewManager(2)
	var ids []string
	for i := 0; i < 4; i++ {
		job, _ := m.CreateJob(context.Background(), "shuffle")
		require.NoError(t, m.CompleteJob(job.ID, "", 1, nil))
		ids = append(ids, job.ID)
		time.Sleep(time.Millisecond)
	}
	active, _ := m.CreateJob(context.Background(), "shuffle")

	resp := m.ListJobs(1, 10)
	assert.Equal(t, 3, resp.TotalJobs)
	_, err := m.GetJob(ids[0])
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.GetJob(active.ID)
	assert.NoError(t, err)
}
