package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"propwise/models"
)

type FeaturedStore interface {
	ClearExpiredFeatured(ctx context.Context, now time.Time, limit int) (int64, error)
}

// FeaturedWorker removes the featured flag from listings whose promotion has ended
type FeaturedWorker struct {
	store     FeaturedStore
	ops       RunStore
	triggerCh chan struct{}
	logFunc   LogFunc
	now       func() time.Time
}

func NewFeaturedWorker(store FeaturedStore, ops RunStore) *FeaturedWorker {
	return &FeaturedWorker{
		store:     store,
		ops:       ops,
		triggerCh: make(chan struct{}, 1),
		logFunc:   NoOpLogger,
		now:       time.Now,
	}
}

func (w *FeaturedWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

// Trigger causes the worker to run immediately
func (w *FeaturedWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

func (w *FeaturedWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("featured worker stopping")
			return
		case <-ticker.C:
			w.RunOnce(ctx, batchSize)
		case <-w.triggerCh:
			log.Info().Msg("featured worker triggered manually")
			w.RunOnce(ctx, batchSize)
		}
	}
}

// RunOnce clears expired promotions in batches until none remain.
func (w *FeaturedWorker) RunOnce(ctx context.Context, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	run := &models.ScanRun{Job: models.JobFeaturedExpiry, StartedAt: w.now(), Status: models.RunStatusRunning}
	if w.ops != nil {
		if id, err := w.ops.CreateRun(run); err != nil {
			log.Warn().Err(err).Msg("featured worker: could not record run")
		} else {
			run.ID = id
		}
	}

	var total int64
	var runErr error
	for {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		n, err := w.store.ClearExpiredFeatured(ctx, w.now(), batchSize)
		if err != nil {
			runErr = fmt.Errorf("clear expired featured: %w", err)
			break
		}
		total += n
		if n < int64(batchSize) {
			break
		}
	}

	run.Status = models.RunStatusCompleted
	if runErr != nil {
		run.Status = models.RunStatusFailed
		run.ErrorsCount = 1
		log.Error().Err(runErr).Msg("featured worker failed")
		w.logFunc(models.LogLevelError, "featured", runErr.Error())
	}
	if total > 0 {
		msg := fmt.Sprintf("cleared featured flag on %d listings", total)
		log.Info().Int64("listings", total).Msg("featured promotions expired")
		w.logFunc(models.LogLevelInfo, "featured", msg)
	}

	finished := w.now()
	run.FinishedAt = &finished
	w.finishRun(run)

	return total, runErr
}

func (w *FeaturedWorker) finishRun(run *models.ScanRun) {
	if w.ops == nil || run.ID == 0 {
		return
	}
	if err := w.ops.UpdateRun(run); err != nil {
		log.Warn().Err(err).Msg("featured worker: could not update run")
	}
	if err := w.ops.UpdateJobStats(run.Job); err != nil {
		log.Warn().Err(err).Msg("featured worker: could not update job stats")
	}
}
