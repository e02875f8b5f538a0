// Package jobs defines River Queue job types for async processing.
package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"smartfarm.io/farm/internal/pkg/logger"
	"smartfarm.io/farm/internal/pkg/worker"
	"smartfarm.io/farm/internal/repository"
	"smartfarm.io/farm/internal/storage"
)

// ImageCleanupArgs carries the URLs of images whose activities are gone.
type ImageCleanupArgs struct {
	URLs []string `json:"urls"`
}

// Kind returns the job kind identifier for image cleanup.
func (ImageCleanupArgs) Kind() string { return "image_cleanup" }

// InsertOpts retries store failures a few times.
func (ImageCleanupArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: 5,
	}
}

// ImageCleanupWorker deletes orphaned images from the image store.
type ImageCleanupWorker struct {
	river.WorkerDefaults[ImageCleanupArgs]
	store storage.Store
}

// NewImageCleanupWorker creates a cleanup worker over store.
func NewImageCleanupWorker(store storage.Store) *ImageCleanupWorker {
	return &ImageCleanupWorker{store: store}
}

// Work deletes every image in the job. Any failure fails the job so River
// retries it; deleting an already missing object succeeds.
func (w *ImageCleanupWorker) Work(ctx context.Context, job *river.Job[ImageCleanupArgs]) error {
	if w == nil || w.store == nil {
		return fmt.Errorf("image cleanup worker is not initialized")
	}
	deleted, err := DeleteImages(ctx, w.store, job.Args.URLs)
	logger.Info("image cleanup completed",
		zap.Int64("job_id", job.ID),
		zap.Int("deleted", deleted),
		zap.Int("requested", len(job.Args.URLs)),
		zap.Error(err),
	)
	return err
}

// DeleteImages removes the objects behind urls. URLs that do not belong to
// store (external links) are skipped.
func DeleteImages(ctx context.Context, store storage.Store, urls []string) (int, error) {
	var (
		deleted int
		errs    []error
	)
	for _, url := range urls {
		key, ok := store.KeyFromURL(url)
		if !ok {
			logger.Debug("skipping image not owned by store",
				zap.String("url", url),
				zap.String("backend", store.Backend()),
			)
			continue
		}
		if err := store.Delete(ctx, key); err != nil {
			errs = append(errs, err)
			continue
		}
		deleted++
	}
	return deleted, errors.Join(errs...)
}

// ImageCleanup schedules deletion of images no record references anymore.
// Schedule is called inside the transaction that removed the references;
// nothing is deleted if that transaction rolls back.
type ImageCleanup interface {
	Schedule(ctx context.Context, tx repository.Repository, urls []string) error
}

type pgxTxer interface {
	Tx() pgx.Tx
}

type commitHooker interface {
	AfterCommit(fn func())
}

// RiverImageCleanup enqueues an ImageCleanupArgs job.
type RiverImageCleanup struct {
	client *river.Client[pgx.Tx]
}

// NewRiverImageCleanup wraps a started River client.
func NewRiverImageCleanup(client *river.Client[pgx.Tx]) *RiverImageCleanup {
	return &RiverImageCleanup{client: client}
}

// Schedule inserts the job in the repository transaction when it is a pgx
// one, so the job only becomes visible on commit.
func (c *RiverImageCleanup) Schedule(ctx context.Context, tx repository.Repository, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	args := ImageCleanupArgs{URLs: urls}
	if t, ok := tx.(pgxTxer); ok && t.Tx() != nil {
		if _, err := c.client.InsertTx(ctx, t.Tx(), args, nil); err != nil {
			return fmt.Errorf("enqueue image cleanup: %w", err)
		}
		return nil
	}
	if _, err := c.client.Insert(ctx, args, nil); err != nil {
		return fmt.Errorf("enqueue image cleanup: %w", err)
	}
	return nil
}

// DetachedImageCleanup deletes images on the storage worker pool once the
// transaction commits. It is used with the memory driver, where no job
// queue is available; work is lost on restart.
type DetachedImageCleanup struct {
	pools *worker.Pools
	store storage.Store
}

// NewDetachedImageCleanup creates a pool-backed cleanup.
func NewDetachedImageCleanup(pools *worker.Pools, store storage.Store) *DetachedImageCleanup {
	return &DetachedImageCleanup{pools: pools, store: store}
}

func (c *DetachedImageCleanup) Schedule(_ context.Context, tx repository.Repository, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	urls = append([]string(nil), urls...)
	run := func() {
		err := c.pools.SubmitDetached("storage", func(ctx context.Context) {
			if _, err := DeleteImages(ctx, c.store, urls); err != nil {
				logger.Warn("image cleanup failed", zap.Strings("urls", urls), zap.Error(err))
			}
		})
		if err != nil {
			logger.Warn("image cleanup not scheduled", zap.Int("count", len(urls)), zap.Error(err))
		}
	}
	if h, ok := tx.(commitHooker); ok {
		h.AfterCommit(run)
		return nil
	}
	run()
	return nil
}
