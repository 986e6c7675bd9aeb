package storage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore_InMemory(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = store.Close() // Ignore error in test
	}()

	assert.NotNil(t, store.db)
}

func TestNewStore_FilePath(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "test-*.db")
	require.NoError(t, err)
	func() {
		_ = tmpFile.Close() // Ignore error in test
	}()
	defer func() {
		_ = os.Remove(tmpFile.Name()) // Ignore error in test
	}()

	store, err := NewStore(tmpFile.Name())
	require.NoError(t, err)
	defer func() {
		_ = store.Close() // Ignore error in test
	}()

	assert.NotNil(t, store.db)
}

func TestEnqueueJobs_AssignsInitialState(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = store.Close() // Ignore error in test
	}()

	job := &DeleteJob{
		PublicID:  "products/rose-noir",
		ProductID: "prod-1",
		Status:    StatusFailed, // must be overridden
		Attempts:  7,            // must be overridden
	}
	err = store.EnqueueJobs(context.Background(), []*DeleteJob{job})
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)

	retrieved, err := store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, retrieved.Status)
	assert.Equal(t, 0, retrieved.Attempts)
	assert.Equal(t, "products/rose-noir", retrieved.PublicID)
	assert.Equal(t, "prod-1", retrieved.ProductID)
	assert.Empty(t, retrieved.LastError)
}

func TestEnqueueJobs_ImageURLsRoundTrip(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = store.Close() // Ignore error in test
	}()

	urls := []string{
		"https://res.cloudinary.com/demo/image/upload/v1/products/a.jpg",
		"https://res.cloudinary.com/demo/image/upload/v1/products/b.jpg",
	}
	job := &DeleteJob{ImageURLs: urls}
	require.NoError(t, store.EnqueueJobs(context.Background(), []*DeleteJob{job}))

	retrieved, err := store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, urls, retrieved.ImageURLs)
	assert.Empty(t, retrieved.PublicID)
}

func TestSelectPendingBatch_FIFOAndBounded(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = store.Close() // Ignore error in test
	}()

	var ids []string
	for i := 0; i < 5; i++ {
		job := &DeleteJob{PublicID: "banners/img-" + string(rune('0'+i))}
		require.NoError(t, store.EnqueueJobs(context.Background(), []*DeleteJob{job}))
		ids = append(ids, job.ID)
	}

	// Bounded selection
	batch, err := store.SelectPendingBatch(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	// Oldest first
	assert.Equal(t, ids[0], batch[0].ID)
	assert.Equal(t, ids[1], batch[1].ID)
	assert.Equal(t, ids[2], batch[2].ID)
}

func TestSelectPendingBatch_ExcludesTerminal(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = store.Close() // Ignore error in test
	}()

	completed := &DeleteJob{PublicID: "products/done"}
	failed := &DeleteJob{PublicID: "products/dead"}
	pending := &DeleteJob{PublicID: "products/waiting"}
	require.NoError(t, store.EnqueueJobs(context.Background(), []*DeleteJob{completed, failed, pending}))

	require.NoError(t, store.MarkCompleted(context.Background(), completed.ID))
	require.NoError(t, store.RecordFailure(context.Background(), failed.ID, 3, StatusFailed, "gone"))

	batch, err := store.SelectPendingBatch(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, pending.ID, batch[0].ID)
}

func TestMarkCompleted(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = store.Close() // Ignore error in test
	}()

	job := &DeleteJob{PublicID: "products/x"}
	require.NoError(t, store.EnqueueJobs(context.Background(), []*DeleteJob{job}))
	require.NoError(t, store.MarkCompleted(context.Background(), job.ID))

	retrieved, err := store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, retrieved.Status)
	assert.True(t, retrieved.Status.IsTerminal())
}

func TestRecordFailure_RetryableThenTerminal(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = store.Close() // Ignore error in test
	}()

	job := &DeleteJob{PublicID: "products/x"}
	require.NoError(t, store.EnqueueJobs(context.Background(), []*DeleteJob{job}))

	// First failure: still pending
	require.NoError(t, store.RecordFailure(context.Background(), job.ID, 1, StatusPending, "timeout"))
	retrieved, err := store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, retrieved.Status)
	assert.Equal(t, 1, retrieved.Attempts)
	assert.Equal(t, "timeout", retrieved.LastError)

	// Exhausted: terminal failed
	require.NoError(t, store.RecordFailure(context.Background(), job.ID, 3, StatusFailed, "still down"))
	retrieved, err = store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, retrieved.Status)
	assert.Equal(t, 3, retrieved.Attempts)
	assert.Equal(t, "still down", retrieved.LastError)
}

func TestGetJob_NotFound(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = store.Close() // Ignore error in test
	}()

	_, err = store.GetJob(context.Background(), "nonexistent")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "job not found")
}

func TestListJobs(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = store.Close() // Ignore error in test
	}()

	for i := 0; i < 5; i++ {
		job := &DeleteJob{PublicID: "products/p-" + string(rune('0'+i))}
		require.NoError(t, store.EnqueueJobs(context.Background(), []*DeleteJob{job}))
	}
	done := &DeleteJob{PublicID: "products/done"}
	require.NoError(t, store.EnqueueJobs(context.Background(), []*DeleteJob{done}))
	require.NoError(t, store.MarkCompleted(context.Background(), done.ID))

	jobs, err := store.ListJobs(context.Background(), ListJobsFilter{})
	require.NoError(t, err)
	assert.Equal(t, 6, len(jobs))

	jobs, err = store.ListJobs(context.Background(), ListJobsFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, len(jobs))

	jobs, err = store.ListJobs(context.Background(), ListJobsFilter{Status: string(StatusCompleted)})
	require.NoError(t, err)
	assert.Equal(t, 1, len(jobs))

	jobs, err = store.ListJobs(context.Background(), ListJobsFilter{Status: string(StatusFailed)})
	require.NoError(t, err)
	assert.Equal(t, 0, len(jobs))
}

func TestCountByStatus(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = store.Close() // Ignore error in test
	}()

	var jobs []*DeleteJob
	for i := 0; i < 3; i++ {
		jobs = append(jobs, &DeleteJob{PublicID: "products/p-" + string(rune('0'+i))})
	}
	require.NoError(t, store.EnqueueJobs(context.Background(), jobs))
	require.NoError(t, store.MarkCompleted(context.Background(), jobs[0].ID))

	count, err := store.CountByStatus(context.Background(), StatusPending)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = store.CountByStatus(context.Background(), StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = store.CountByStatus(context.Background(), StatusFailed)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestPruneTerminalJobs(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = store.Close() // Ignore error in test
	}()

	oldCompleted := &DeleteJob{PublicID: "products/old-done"}
	oldPending := &DeleteJob{PublicID: "products/old-waiting"}
	recentCompleted := &DeleteJob{PublicID: "products/new-done"}
	require.NoError(t, store.EnqueueJobs(context.Background(), []*DeleteJob{oldCompleted, oldPending, recentCompleted}))

	require.NoError(t, store.MarkCompleted(context.Background(), oldCompleted.ID))
	require.NoError(t, store.MarkCompleted(context.Background(), recentCompleted.ID))

	// Age the old rows directly
	cutoff := time.Now().Add(-48 * time.Hour).Unix()
	_, err = store.db.Exec("UPDATE delete_jobs SET updated_at = ? WHERE id IN (?, ?)", cutoff, oldCompleted.ID, oldPending.ID)
	require.NoError(t, err)

	pruned, err := store.PruneTerminalJobs(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	// Old completed row is gone
	_, err = store.GetJob(context.Background(), oldCompleted.ID)
	assert.Error(t, err)

	// Old pending row survives even past the cutoff
	job, err := store.GetJob(context.Background(), oldPending.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, job.Status)

	// Recent completed row survives
	_, err = store.GetJob(context.Background(), recentCompleted.ID)
	require.NoError(t, err)
}

func TestQueueUnavailable(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = store.Close() // Ignore error in test
	}()

	_, err = store.db.Exec("DROP TABLE delete_jobs")
	require.NoError(t, err)

	err = store.EnqueueJobs(context.Background(), []*DeleteJob{{PublicID: "products/x"}})
	assert.True(t, errors.Is(err, ErrQueueUnavailable))

	_, err = store.SelectPendingBatch(context.Background(), 10)
	assert.True(t, errors.Is(err, ErrQueueUnavailable))

	_, err = store.CountByStatus(context.Background(), StatusPending)
	assert.True(t, errors.Is(err, ErrQueueUnavailable))
}
