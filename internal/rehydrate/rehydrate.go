// Package rehydrate reattaches durable blob references to items freshly
// loaded after a process restart.
//
// Attachment URLs held in memory before the restart may have been transient
// (session-scoped blob: URLs); this pass replaces them with data read back
// from the blob store. It is purely additive and corrective: an item with
// unresolvable media is flagged, never dropped.
package rehydrate

import (
	"log/slog"
	"strings"

	"github.com/lifedb/lifedb/internal/blob"
	"github.com/lifedb/lifedb/internal/models"
)

// Rehydrator restores binary attachments from the blob store.
type Rehydrator struct {
	blobs *blob.Store
}

// New creates a rehydrator over the given blob store.
func New(blobs *blob.Store) *Rehydrator {
	return &Rehydrator{blobs: blobs}
}

// Run returns a copy of items with attachment references restored.
func (r *Rehydrator) Run(items []models.Item) []models.Item {
	out := make([]models.Item, len(items))
	for i, item := range items {
		if item.Type == models.ItemTypeVoiceNote {
			r.rehydrateAudio(&item)
		}
		if item.HasImage {
			r.rehydrateImages(&item)
		}
		out[i] = item
	}
	return out
}

func (r *Rehydrator) rehydrateAudio(item *models.Item) {
	ownerID := item.AudioStorageID
	if ownerID == "" {
		ownerID = item.ID
	}
	if group := r.blobs.GetGroup(ownerID, blob.KindAudio); len(group) > 0 {
		item.AudioURL = group[0].DataURL
		item.AudioStorageID = ownerID
		item.AudioMissing = false
		return
	}
	if item.AudioURL != "" && !isTransientURL(item.AudioURL) {
		// Already durable (a data URL or an externally hosted recording).
		return
	}
	slog.Debug("Voice note audio unavailable", "id", item.ID, "storageId", ownerID)
	item.AudioURL = ""
	item.AudioMissing = true
}

func (r *Rehydrator) rehydrateImages(item *models.Item) {
	ownerID := item.ImageStorageID
	if ownerID == "" {
		ownerID = item.ID
	}
	if group := r.blobs.GetGroup(ownerID, blob.KindImage); len(group) > 0 {
		urls := make([]string, len(group))
		for i, ref := range group {
			urls[i] = ref.DataURL
		}
		item.ImageURLs = urls
		item.ImageStorageID = ownerID
		item.ImageCount = len(urls)
		return
	}
	// Fall back to legacy externally hosted URLs, dropping anything
	// session-scoped that died with the previous process.
	var kept []string
	for _, u := range item.ImageURLs {
		if !isTransientURL(u) {
			kept = append(kept, u)
		}
	}
	if len(kept) < len(item.ImageURLs) {
		slog.Debug("Dropped transient image references", "id", item.ID, "dropped", len(item.ImageURLs)-len(kept))
	}
	item.ImageURLs = kept
	item.ImageCount = len(kept)
}

// isTransientURL reports whether a URL was scoped to a previous process or
// session and cannot be resolved anymore.
func isTransientURL(u string) bool {
	return strings.HasPrefix(u, "blob:")
}
