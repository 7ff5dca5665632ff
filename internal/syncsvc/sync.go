// Package syncsvc implements the hybrid sync engine reconciling the local
// snapshot store against the remote repository.
//
// Reconciliation is eventual and best-effort: each cycle merges the two
// snapshots with last-write-wins per record id, persists the merge locally,
// and pushes it to the remote. Cycles run on a fixed interval and on demand;
// a cycle that fails leaves the last-sync marker stale so the next tick
// retries the entire merge from scratch.
package syncsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lifedb/lifedb/internal/kvstore"
	"github.com/lifedb/lifedb/internal/models"
	"github.com/lifedb/lifedb/internal/remote"
	"github.com/lifedb/lifedb/internal/snapshot"
)

// DefaultInterval is the periodic sync cadence.
const DefaultInterval = time.Hour

// metadataKey is the substrate key holding the persisted SyncMetadata.
const metadataKey = "lifedb_sync_metadata"

// Engine is the sync state machine. It has two states, idle and syncing;
// a sync requested while one is running is dropped, not queued.
//
// Lifecycle: New, Start, periodic ticks, Shutdown. Construct once at process
// start and share the instance.
type Engine struct {
	snap     *snapshot.Store
	repo     remote.Repository
	kv       kvstore.Store
	interval time.Duration

	// mu guards syncing, the in-process mutual-exclusion flag. It is
	// checked and set synchronously before any I/O so two callers can never
	// both observe idle.
	mu      sync.Mutex
	syncing bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a sync engine. An interval of 0 uses [DefaultInterval].
func New(snap *snapshot.Store, repo remote.Repository, kv kvstore.Store, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Engine{snap: snap, repo: repo, kv: kv, interval: interval}
}

// Start launches the periodic sync loop. If no sync has ever completed, an
// initial sync is forced immediately.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)

	meta := e.readMeta()
	if meta.SyncInProgress {
		// Leftover from a previous process that died mid-sync.
		e.updateMeta(func(m *models.SyncMetadata) { m.SyncInProgress = false })
	}
	initial := meta.LastSyncTime == ""

	e.wg.Add(1)
	go e.run(ctx, initial)
}

// Shutdown stops the periodic loop and waits for an in-flight cycle to
// finish. A running cycle is never cancelled mid-flight.
func (e *Engine) Shutdown() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

// ManualSync runs a sync cycle now. If one is already running the call is a
// no-op returning nil; poll [Engine.Status] to observe the outcome.
func (e *Engine) ManualSync(ctx context.Context) error {
	return e.performSync(ctx)
}

// Status returns the current sync metadata.
func (e *Engine) Status() models.SyncMetadata {
	meta := e.readMeta()
	e.mu.Lock()
	meta.SyncInProgress = e.syncing
	e.mu.Unlock()
	return meta
}

func (e *Engine) run(ctx context.Context, initial bool) {
	defer e.wg.Done()
	if initial {
		slog.InfoContext(ctx, "No previous sync, running initial sync")
		if err := e.performSync(ctx); err != nil {
			slog.ErrorContext(ctx, "Initial sync failed", "err", err)
		}
	}
	t := time.NewTicker(e.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := e.performSync(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic sync failed", "err", err)
			}
		}
	}
}

// performSync runs one full merge-and-push cycle.
//
// Any failure aborts the cycle: the in-progress flag is cleared, the error
// is recorded in the metadata, and the last-sync marker stays stale so the
// next tick retries from scratch. There is no partial-progress checkpoint.
func (e *Engine) performSync(ctx context.Context) (err error) {
	if !e.tryAcquire() {
		slog.DebugContext(ctx, "Sync already in progress, skipping")
		return nil
	}
	start := time.Now()
	e.updateMeta(func(m *models.SyncMetadata) { m.SyncInProgress = true })
	defer func() {
		e.release()
		if err != nil {
			e.updateMeta(func(m *models.SyncMetadata) {
				m.SyncInProgress = false
				m.LastError = err.Error()
			})
		}
	}()

	localItems, err := e.snap.Items()
	if err != nil {
		return fmt.Errorf("failed to read local items: %w", err)
	}
	localCats, err := e.snap.Categories()
	if err != nil {
		return fmt.Errorf("failed to read local categories: %w", err)
	}

	remoteItems, err := e.repo.ListItems(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch remote items: %w", err)
	}
	remoteCats, err := e.repo.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch remote categories: %w", err)
	}

	mergedItems, itemConflicts := mergeItems(localItems, remoteItems)
	mergedCats, catConflicts := mergeCategories(localCats, remoteCats)
	conflicts := append(itemConflicts, catConflicts...)
	if len(conflicts) > 0 {
		slog.InfoContext(ctx, "Resolved record conflicts by last write", "ids", conflicts)
	}

	if err = e.snap.SaveItems(mergedItems); err != nil {
		return fmt.Errorf("failed to persist merged items: %w", err)
	}
	if err = e.snap.SaveCategories(mergedCats); err != nil {
		return fmt.Errorf("failed to persist merged categories: %w", err)
	}

	e.pushCategories(ctx, mergedCats)
	skipped := e.pushItems(ctx, mergedItems)

	e.updateMeta(func(m *models.SyncMetadata) {
		m.SyncInProgress = false
		m.LastSyncTime = time.Now().UTC().Format(time.RFC3339)
		m.Conflicts = conflicts
		m.LastError = ""
	})
	slog.InfoContext(ctx, "Sync completed",
		"items", len(mergedItems), "categories", len(mergedCats),
		"conflicts", len(conflicts), "skipped", skipped, "took", time.Since(start))
	return nil
}

// pushCategories creates every merged category remotely. A create failure
// means the category already exists (or the backend is unhappy with this one
// record); either way it is expected and swallowed.
func (e *Engine) pushCategories(ctx context.Context, cats []models.Category) {
	for _, cat := range cats {
		if _, err := e.repo.CreateCategory(ctx, cat); err != nil {
			slog.DebugContext(ctx, "Category create skipped", "id", cat.ID, "err", err)
		}
	}
}

// pushItems updates each merged item remotely, falling back to create for
// records the remote does not know yet. A record failing both ways is logged
// and skipped; it never aborts the batch. Returns the number skipped.
func (e *Engine) pushItems(ctx context.Context, items []models.Item) int {
	skipped := 0
	for _, item := range items {
		if _, err := e.repo.UpdateItem(ctx, item.ID, item); err == nil {
			continue
		} else if _, err2 := e.repo.CreateItem(ctx, item); err2 != nil {
			slog.WarnContext(ctx, "Failed to push item", "id", item.ID, "updateErr", err, "createErr", err2)
			skipped++
		}
	}
	return skipped
}

func (e *Engine) tryAcquire() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.syncing {
		return false
	}
	e.syncing = true
	return true
}

func (e *Engine) release() {
	e.mu.Lock()
	e.syncing = false
	e.mu.Unlock()
}

func (e *Engine) readMeta() models.SyncMetadata {
	var meta models.SyncMetadata
	raw, ok, err := e.kv.Get(metadataKey)
	if err != nil || !ok {
		return meta
	}
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		slog.Warn("Corrupt sync metadata, starting fresh", "err", err)
		return models.SyncMetadata{}
	}
	return meta
}

func (e *Engine) updateMeta(mutate func(*models.SyncMetadata)) {
	meta := e.readMeta()
	mutate(&meta)
	data, err := json.Marshal(&meta)
	if err != nil {
		slog.Error("Failed to encode sync metadata", "err", err)
		return
	}
	if err := e.kv.Set(metadataKey, string(data)); err != nil {
		slog.Error("Failed to persist sync metadata", "err", err)
	}
}
