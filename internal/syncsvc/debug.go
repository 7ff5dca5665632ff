// Operational escape hatches: force a resync, force-push all local records.

package syncsvc

import (
	"context"
	"log/slog"

	"github.com/lifedb/lifedb/internal/models"
)

// ForceResync clears the last-sync marker and runs a full sync immediately,
// as if the process had never synced.
func (e *Engine) ForceResync(ctx context.Context) error {
	e.updateMeta(func(m *models.SyncMetadata) { m.LastSyncTime = "" })
	slog.InfoContext(ctx, "Forcing full resync")
	return e.performSync(ctx)
}

// SafeUploadAll pushes every local record to the remote, bypassing the
// merge. Nothing is deleted remotely and the local snapshot is untouched, so
// the worst case is redundant upserts. A no-op when a sync is running.
func (e *Engine) SafeUploadAll(ctx context.Context) error {
	if !e.tryAcquire() {
		slog.DebugContext(ctx, "Sync in progress, skipping upload")
		return nil
	}
	defer e.release()

	items, err := e.snap.Items()
	if err != nil {
		return err
	}
	cats, err := e.snap.Categories()
	if err != nil {
		return err
	}
	e.pushCategories(ctx, cats)
	skipped := e.pushItems(ctx, items)
	slog.InfoContext(ctx, "Uploaded local records", "items", len(items), "categories", len(cats), "skipped", skipped)
	return nil
}
