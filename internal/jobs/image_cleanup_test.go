package jobs

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartfarm.io/farm/internal/domain"
	"smartfarm.io/farm/internal/pkg/logger"
	"smartfarm.io/farm/internal/pkg/worker"
	"smartfarm.io/farm/internal/repository"
	"smartfarm.io/farm/internal/repository/memory"
	"smartfarm.io/farm/internal/storage"
)

func init() {
	_ = logger.Init("error", "json")
}

func putImage(t *testing.T, store storage.Store, key string) string {
	t.Helper()
	url, err := store.Put(context.Background(), key, "image/png", bytes.NewReader([]byte("x")), 1)
	require.NoError(t, err)
	return url
}

func TestImageCleanupArgs(t *testing.T) {
	t.Parallel()

	args := ImageCleanupArgs{}
	assert.Equal(t, "image_cleanup", args.Kind())
	opts := args.InsertOpts()
	assert.Equal(t, river.QueueDefault, opts.Queue)
	assert.Equal(t, 5, opts.MaxAttempts)
}

func TestImageCleanupWorkerWork_Uninitialized(t *testing.T) {
	t.Parallel()

	var w *ImageCleanupWorker
	err := w.Work(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "not initialized"))

	err = (&ImageCleanupWorker{}).Work(context.Background(), nil)
	require.Error(t, err)
}

func TestImageCleanupWorkerWork(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewLocal(dir, "/media")
	require.NoError(t, err)
	url := putImage(t, store, "activities/a.png")

	w := NewImageCleanupWorker(store)
	job := &river.Job[ImageCleanupArgs]{
		JobRow: &rivertype.JobRow{ID: 42},
		Args:   ImageCleanupArgs{URLs: []string{url, "https://cdn.example/other.png"}},
	}
	require.NoError(t, w.Work(context.Background(), job))

	_, err = os.Stat(filepath.Join(dir, "activities", "a.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestDeleteImages(t *testing.T) {
	store, err := storage.NewLocal(t.TempDir(), "/media")
	require.NoError(t, err)
	a := putImage(t, store, "activities/a.png")
	b := putImage(t, store, "activities/b.png")

	deleted, err := DeleteImages(context.Background(), store, []string{a, b, "https://elsewhere/x.png"})
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
}

func TestDetachedImageCleanup_RunsAfterCommit(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewLocal(dir, "/media")
	require.NoError(t, err)
	kept := putImage(t, store, "activities/kept.png")
	gone := putImage(t, store, "activities/gone.png")

	pools, err := worker.NewPools(context.Background(), worker.PoolConfig{GeneralPoolSize: 2, StoragePoolSize: 2})
	require.NoError(t, err)
	t.Cleanup(pools.Shutdown)

	repo := memory.New()
	cleanup := NewDetachedImageCleanup(pools, store)
	ctx := context.Background()

	// Rolled back: nothing is deleted.
	err = repo.InTx(ctx, func(tx repository.Repository) error {
		require.NoError(t, cleanup.Schedule(ctx, tx, []string{kept}))
		return repository.ErrNotFound
	})
	require.ErrorIs(t, err, repository.ErrNotFound)

	err = repo.InTx(ctx, func(tx repository.Repository) error {
		if err := tx.CreateUser(ctx, &domain.User{ID: "u1", Role: domain.RoleFarmer}); err != nil {
			return err
		}
		return cleanup.Schedule(ctx, tx, []string{gone})
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, "activities", "gone.png"))
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)

	_, err = os.Stat(filepath.Join(dir, "activities", "kept.png"))
	assert.NoError(t, err)
}
