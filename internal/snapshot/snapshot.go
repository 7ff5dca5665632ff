// Package snapshot persists the two domain collections (items, categories)
// as whole-collection JSON snapshots in the key/value substrate.
//
// There are no partial updates: every mutation reads the full collection,
// applies the change, and writes the full collection back. The package is a
// dumb serialization boundary; what the data means is decided by the sync
// engine and the application layer.
package snapshot

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lifedb/lifedb/internal/kvstore"
	"github.com/lifedb/lifedb/internal/models"
)

// Substrate keys for the two collections.
const (
	itemsKey      = "lifedb_items"
	categoriesKey = "lifedb_categories"
)

// Store reads and writes collection snapshots.
type Store struct {
	kv kvstore.Store

	// mu serializes the read-modify-write cycle of the create helpers.
	mu sync.Mutex
}

// New creates a snapshot store over kv.
func New(kv kvstore.Store) *Store {
	return &Store{kv: kv}
}

// Items returns the full item collection. A missing key is an empty
// collection, not an error.
func (s *Store) Items() ([]models.Item, error) {
	var items []models.Item
	if err := s.read(itemsKey, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// SaveItems overwrites the full item collection.
func (s *Store) SaveItems(items []models.Item) error {
	return s.write(itemsKey, items)
}

// Categories returns the full category collection.
func (s *Store) Categories() ([]models.Category, error) {
	var cats []models.Category
	if err := s.read(categoriesKey, &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

// SaveCategories overwrites the full category collection.
func (s *Store) SaveCategories(cats []models.Category) error {
	return s.write(categoriesKey, cats)
}

// CreateItem appends item to the collection with a freshly minted id and
// creation timestamps, returning the stored record.
func (s *Store) CreateItem(item models.Item) (models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.Items()
	if err != nil {
		return models.Item{}, err
	}
	now := time.Now().UTC()
	item.ID = models.NewID()
	item.CreatedAt = now
	item.UpdatedAt = now
	if err := s.SaveItems(append(items, item)); err != nil {
		return models.Item{}, err
	}
	return item, nil
}

// CreateCategory appends cat to the collection with a freshly minted id and
// creation timestamps, returning the stored record.
func (s *Store) CreateCategory(cat models.Category) (models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cats, err := s.Categories()
	if err != nil {
		return models.Category{}, err
	}
	now := time.Now().UTC()
	cat.ID = models.NewID()
	cat.CreatedAt = now
	cat.UpdatedAt = now
	if err := s.SaveCategories(append(cats, cat)); err != nil {
		return models.Category{}, err
	}
	return cat, nil
}

func (s *Store) read(key string, out any) error {
	raw, ok, err := s.kv.Get(key)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func (s *Store) write(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.kv.Set(key, string(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}
