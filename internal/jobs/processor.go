// Package jobs implements the deferred media deletion queue: the enqueue
// path that registers deletion intents and the batch processor that drains
// them against the remote media API with per-job retry accounting.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/scenthaus/mediasweep/internal/cloudinary"
	"github.com/scenthaus/mediasweep/internal/metrics"
	"github.com/scenthaus/mediasweep/internal/storage"
	"github.com/scenthaus/mediasweep/pkg/types"
)

// Batch size and attempt bounds for one processing run
const (
	MinBatchSize       = 1
	MaxBatchSize       = 50
	DefaultBatchSize   = 25
	MinAttempts        = 1
	MaxAttempts        = 10
	DefaultMaxAttempts = 3
)

var errNoDeletableIDs = errors.New("no deletable public_id or image_urls found")

// JobStore is the storage surface the processor needs
type JobStore interface {
	EnqueueJobs(ctx context.Context, jobs []*storage.DeleteJob) error
	SelectPendingBatch(ctx context.Context, limit int) ([]*storage.DeleteJob, error)
	MarkCompleted(ctx context.Context, id string) error
	RecordFailure(ctx context.Context, id string, attempts int, status storage.JobStatus, lastError string) error
	ListJobs(ctx context.Context, filter storage.ListJobsFilter) ([]*storage.DeleteJob, error)
	CountByStatus(ctx context.Context, status storage.JobStatus) (int, error)
	PruneTerminalJobs(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Destroyer deletes one remote asset by public id
type Destroyer interface {
	Destroy(ctx context.Context, publicID string) (string, error)
}

// ArchiveCleaner removes archived copies of a deleted asset. Failures are
// swallowed by the processor; the contract is best-effort only.
type ArchiveCleaner interface {
	RemoveArchived(ctx context.Context, publicID string) error
}

// Processor drains pending delete jobs in bounded FIFO batches.
//
// Jobs within a batch run strictly sequentially; a mutex serializes
// overlapping ProcessBatch calls within one process. There is no
// cross-process row claim, so two daemon instances sharing a database
// could both attempt the same pending job.
type Processor struct {
	store     JobStore
	destroyer Destroyer
	archive   ArchiveCleaner // optional, may be nil
	mu        sync.Mutex
}

// NewProcessor creates a processor. archive may be nil when no archive
// bucket is configured.
func NewProcessor(store JobStore, destroyer Destroyer, archive ArchiveCleaner) *Processor {
	return &Processor{
		store:     store,
		destroyer: destroyer,
		archive:   archive,
	}
}

// ClampBatchSize bounds a requested batch size to [1,50], defaulting to 25
func ClampBatchSize(n int) int {
	if n <= 0 {
		return DefaultBatchSize
	}
	if n < MinBatchSize {
		return MinBatchSize
	}
	if n > MaxBatchSize {
		return MaxBatchSize
	}
	return n
}

// ClampMaxAttempts bounds a requested attempt limit to [1,10], defaulting to 3
func ClampMaxAttempts(n int) int {
	if n <= 0 {
		return DefaultMaxAttempts
	}
	if n < MinAttempts {
		return MinAttempts
	}
	if n > MaxAttempts {
		return MaxAttempts
	}
	return n
}

// ProcessBatch drains up to batchSize pending jobs, oldest first, and
// applies the retry policy. Per-job failures never propagate; they become
// attempts/status updates and appear in the report. Only selection or
// storage errors fail the whole call. Safe to invoke repeatedly: every
// call either advances jobs toward a terminal state or leaves them
// pending for the next call.
func (p *Processor) ProcessBatch(ctx context.Context, batchSize, maxAttempts int) (*types.ProcessReport, error) {
	batchSize = ClampBatchSize(batchSize)
	maxAttempts = ClampMaxAttempts(maxAttempts)

	p.mu.Lock()
	defer p.mu.Unlock()

	selected, err := p.store.SelectPendingBatch(ctx, batchSize)
	if err != nil {
		return nil, err
	}

	report := &types.ProcessReport{Results: []types.JobResult{}}
	for _, job := range selected {
		result := p.processJob(ctx, job, maxAttempts)
		report.Results = append(report.Results, result)
		metrics.JobsProcessed.WithLabelValues(result.Result).Inc()
	}
	report.Processed = len(report.Results)

	p.updatePendingGauge(ctx)

	return report, nil
}

// processJob attempts one job: resolve public ids, destroy each in order,
// and persist the outcome. The first destroy failure aborts the remaining
// ids of the job; success requires every id to delete cleanly.
func (p *Processor) processJob(ctx context.Context, job *storage.DeleteJob, maxAttempts int) types.JobResult {
	publicIDs := resolvePublicIDs(job)

	var procErr error
	if len(publicIDs) == 0 {
		procErr = errNoDeletableIDs
	} else {
		for _, pid := range publicIDs {
			if _, err := p.destroyer.Destroy(ctx, pid); err != nil {
				metrics.DestroyCalls.WithLabelValues("error").Inc()
				procErr = err
				break
			}
			metrics.DestroyCalls.WithLabelValues("ok").Inc()
		}
	}

	if procErr == nil {
		if err := p.store.MarkCompleted(ctx, job.ID); err != nil {
			logrus.WithError(err).WithField("job_id", job.ID).Error("Failed to mark job completed")
		}
		p.cleanupArchive(ctx, publicIDs)
		return types.JobResult{ID: job.ID, PublicID: publicIDs[0], Result: "ok"}
	}

	attempts := job.Attempts + 1
	status := storage.StatusPending
	if attempts >= maxAttempts {
		status = storage.StatusFailed
	}

	if err := p.store.RecordFailure(ctx, job.ID, attempts, status, procErr.Error()); err != nil {
		logrus.WithError(err).WithField("job_id", job.ID).Error("Failed to record job failure")
	}

	logrus.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"attempts": attempts,
		"status":   status,
	}).WithError(procErr).Warn("Delete job attempt failed")

	return types.JobResult{
		ID:       job.ID,
		PublicID: job.PublicID,
		Result:   string(status),
		Error:    procErr.Error(),
	}
}

// Enqueue registers deletion intents for the given URLs and public ids,
// one pending job row per resolved id. URLs that yield no public id are
// skipped. When the job table is missing the method falls back to direct
// synchronous deletion with per-id isolation: each id's outcome is
// recorded independently and one failure does not stop the rest.
func (p *Processor) Enqueue(ctx context.Context, req types.EnqueueRequest) (*types.EnqueueResponse, error) {
	publicIDs := cloudinary.ExtractPublicIDs(req.ImageURLs)
	for _, pid := range req.PublicIDs {
		if pid != "" {
			publicIDs = append(publicIDs, pid)
		}
	}

	if len(publicIDs) == 0 {
		return &types.EnqueueResponse{Queued: false, Count: 0}, nil
	}

	jobs := make([]*storage.DeleteJob, 0, len(publicIDs))
	for _, pid := range publicIDs {
		jobs = append(jobs, &storage.DeleteJob{
			PublicID:  pid,
			ProductID: req.ProductID,
		})
	}

	err := p.store.EnqueueJobs(ctx, jobs)
	if err == nil {
		metrics.JobsEnqueued.Add(float64(len(jobs)))
		p.updatePendingGauge(ctx)
		logrus.WithFields(logrus.Fields{
			"count":      len(jobs),
			"product_id": req.ProductID,
		}).Info("Enqueued delete jobs")
		return &types.EnqueueResponse{Queued: true, Count: len(jobs)}, nil
	}

	if !errors.Is(err, storage.ErrQueueUnavailable) {
		return nil, fmt.Errorf("failed to enqueue delete jobs: %w", err)
	}

	logrus.WithError(err).Warn("Delete-job queue unavailable, deleting assets directly")

	direct := make([]types.DirectDeletion, 0, len(publicIDs))
	for _, pid := range publicIDs {
		result, destroyErr := p.destroyer.Destroy(ctx, pid)
		if destroyErr != nil {
			metrics.DestroyCalls.WithLabelValues("error").Inc()
			direct = append(direct, types.DirectDeletion{PublicID: pid, Result: "error", Error: destroyErr.Error()})
			continue
		}
		metrics.DestroyCalls.WithLabelValues("ok").Inc()
		direct = append(direct, types.DirectDeletion{PublicID: pid, Result: result})
	}

	return &types.EnqueueResponse{Queued: false, Count: len(publicIDs), Direct: direct}, nil
}

// ListJobs returns admin-facing views of stored jobs
func (p *Processor) ListJobs(ctx context.Context, status string, limit, offset int) ([]types.JobView, error) {
	jobs, err := p.store.ListJobs(ctx, storage.ListJobsFilter{
		Status: status,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, err
	}

	views := make([]types.JobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, types.JobView{
			ID:        job.ID,
			PublicID:  job.PublicID,
			ImageURLs: job.ImageURLs,
			ProductID: job.ProductID,
			Status:    string(job.Status),
			Attempts:  job.Attempts,
			LastError: job.LastError,
			CreatedAt: job.CreatedAt,
			UpdatedAt: job.UpdatedAt,
		})
	}
	return views, nil
}

// PendingCount returns the number of jobs awaiting processing
func (p *Processor) PendingCount(ctx context.Context) (int, error) {
	return p.store.CountByStatus(ctx, storage.StatusPending)
}

// PruneTerminal removes completed/failed rows older than the given duration
func (p *Processor) PruneTerminal(ctx context.Context, olderThan time.Duration) (int64, error) {
	return p.store.PruneTerminalJobs(ctx, olderThan)
}

// resolvePublicIDs picks the ids to delete for one job: the stored
// public_id when present, otherwise ids derived from the stored URLs
// with unresolvable entries discarded.
func resolvePublicIDs(job *storage.DeleteJob) []string {
	if job.PublicID != "" {
		return []string{job.PublicID}
	}
	return cloudinary.ExtractPublicIDs(job.ImageURLs)
}

// cleanupArchive is strictly best-effort: errors are logged, never returned
func (p *Processor) cleanupArchive(ctx context.Context, publicIDs []string) {
	if p.archive == nil {
		return
	}
	for _, pid := range publicIDs {
		if err := p.archive.RemoveArchived(ctx, pid); err != nil {
			logrus.WithError(err).WithField("public_id", pid).Warn("Archive cleanup failed")
		}
	}
}

func (p *Processor) updatePendingGauge(ctx context.Context) {
	pending, err := p.store.CountByStatus(ctx, storage.StatusPending)
	if err != nil {
		logrus.WithError(err).Debug("Failed to refresh pending-jobs gauge")
		return
	}
	metrics.PendingJobs.Set(float64(pending))
}
