// Package models defines the domain types shared by the storage and sync
// layers: items, categories, and the sync metadata record.
//
// For synchronization purposes only ID and UpdatedAt matter; everything else
// is opaque payload carried through the merge untouched.
package models

import (
	"time"

	"github.com/maruel/ksid"
)

// ItemType identifies the kind of a life-management item.
type ItemType string

const (
	// ItemTypeTodo is a task with optional due date and completion state.
	ItemTypeTodo ItemType = "todo"
	// ItemTypeEvent is a calendar entry.
	ItemTypeEvent ItemType = "event"
	// ItemTypeNote is a free-form note, possibly with image attachments.
	ItemTypeNote ItemType = "note"
	// ItemTypeVoiceNote is a note with a recorded audio attachment.
	ItemTypeVoiceNote ItemType = "voiceNote"
	// ItemTypeRoutine is a recurring habit.
	ItemTypeRoutine ItemType = "routine"
	// ItemTypeGoal is a long-running objective.
	ItemTypeGoal ItemType = "goal"
)

// Item is a single life-management record.
//
// Media fields reference blob groups by owner ID; the item never owns the
// bytes, the reference is a weak lookup key into the blob store.
type Item struct {
	ID         string   `json:"id"`
	Type       ItemType `json:"type"`
	CategoryID string   `json:"categoryId,omitempty"`
	Title      string   `json:"title"`
	Completed  bool     `json:"completed,omitempty"`
	DueDate    string   `json:"dueDate,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Image attachments.
	HasImage       bool     `json:"hasImage,omitempty"`
	ImageStorageID string   `json:"imageStorageId,omitempty"`
	ImageCount     int      `json:"imageCount,omitempty"`
	ImageURLs      []string `json:"imageUrls,omitempty"`

	// Audio attachment (voice notes).
	AudioStorageID string `json:"audioStorageId,omitempty"`
	AudioURL       string `json:"audioUrl,omitempty"`
	AudioMissing   bool   `json:"audioMissing,omitempty"`

	// Type-specific payload (routine schedules, goal progress, ...).
	// Opaque to the storage and sync layers.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Category groups items for display and filtering.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	Icon      string    `json:"icon,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SyncMetadata is the process-wide sync state. It is created with empty
// defaults on first run and mutated only by the sync engine.
type SyncMetadata struct {
	// LastSyncTime is the RFC 3339 timestamp of the last completed sync.
	// Empty means a sync never completed.
	LastSyncTime string `json:"lastSyncTime"`
	// SyncInProgress mirrors the engine's mutual-exclusion flag.
	SyncInProgress bool `json:"syncInProgress"`
	// Conflicts lists record IDs that required last-write-wins resolution
	// during the most recent merge. Informational only.
	Conflicts []string `json:"conflicts,omitempty"`
	// LastError holds the failure of the most recent sync attempt, empty on
	// success.
	LastError string `json:"lastError,omitempty"`
}

// NewID mints a time-sortable unique identifier for items and categories.
func NewID() string {
	return ksid.NewID().String()
}
