package snapshot

import (
	"strings"
	"testing"
	"time"

	"github.com/lifedb/lifedb/internal/kvstore"
	"github.com/lifedb/lifedb/internal/models"
	"github.com/maruel/ksid"
)

func TestEmptyCollections(t *testing.T) {
	s := New(kvstore.NewMemStore(0))
	items, err := s.Items()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Errorf("Items() = %d entries, want 0", len(items))
	}
	cats, err := s.Categories()
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 0 {
		t.Errorf("Categories() = %d entries, want 0", len(cats))
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := New(kvstore.NewMemStore(0))
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	items := []models.Item{
		{ID: "a", Type: models.ItemTypeTodo, Title: "buy milk", Completed: true, CreatedAt: now, UpdatedAt: now},
		{ID: "b", Type: models.ItemTypeVoiceNote, Title: "memo", AudioStorageID: "b", CreatedAt: now, UpdatedAt: now.Add(time.Hour),
			Metadata: map[string]any{"durationSec": 12.5}},
	}
	if err := s.SaveItems(items); err != nil {
		t.Fatal(err)
	}
	got, err := s.Items()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("Items() = %d entries, want 2", len(got))
	}
	if got[0].ID != "a" || !got[0].Completed || got[1].AudioStorageID != "b" {
		t.Errorf("Items() = %+v", got)
	}
	if !got[1].UpdatedAt.Equal(now.Add(time.Hour)) {
		t.Errorf("UpdatedAt = %v", got[1].UpdatedAt)
	}
	if got[1].Metadata["durationSec"] != 12.5 {
		t.Errorf("Metadata = %v", got[1].Metadata)
	}

	cats := []models.Category{{ID: "c1", Name: "Home", Color: "#fff", CreatedAt: now, UpdatedAt: now}}
	if err := s.SaveCategories(cats); err != nil {
		t.Fatal(err)
	}
	gotCats, err := s.Categories()
	if err != nil {
		t.Fatal(err)
	}
	if len(gotCats) != 1 || gotCats[0].Name != "Home" {
		t.Errorf("Categories() = %+v", gotCats)
	}
}

func TestCreateItemMintsID(t *testing.T) {
	s := New(kvstore.NewMemStore(0))
	if err := s.SaveItems([]models.Item{{ID: "existing", Title: "old"}}); err != nil {
		t.Fatal(err)
	}

	created, err := s.CreateItem(models.Item{
		ID:    "client-supplied", // must be discarded
		Type:  models.ItemTypeTodo,
		Title: "buy milk",
	})
	if err != nil {
		t.Fatal(err)
	}
	if created.ID == "" || created.ID == "client-supplied" {
		t.Errorf("ID = %q, want a minted one", created.ID)
	}
	if _, err := ksid.Parse(created.ID); err != nil {
		t.Errorf("ID %q does not parse: %v", created.ID, err)
	}
	if created.CreatedAt.IsZero() || !created.UpdatedAt.Equal(created.CreatedAt) {
		t.Errorf("timestamps = %v / %v", created.CreatedAt, created.UpdatedAt)
	}

	second, err := s.CreateItem(models.Item{Type: models.ItemTypeNote, Title: "memo"})
	if err != nil {
		t.Fatal(err)
	}
	if second.ID == created.ID {
		t.Errorf("minted duplicate id %q", second.ID)
	}

	got, err := s.Items()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].ID != "existing" || got[1].ID != created.ID {
		t.Errorf("Items() = %+v, want existing plus both creates appended", got)
	}
}

func TestCreateCategoryMintsID(t *testing.T) {
	s := New(kvstore.NewMemStore(0))
	created, err := s.CreateCategory(models.Category{Name: "Home", Color: "#fff"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ksid.Parse(created.ID); err != nil {
		t.Errorf("ID %q does not parse: %v", created.ID, err)
	}
	cats, err := s.Categories()
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 1 || cats[0].Name != "Home" || cats[0].ID != created.ID {
		t.Errorf("Categories() = %+v", cats)
	}
}

func TestOverwriteNotAppend(t *testing.T) {
	s := New(kvstore.NewMemStore(0))
	if err := s.SaveItems([]models.Item{{ID: "a"}, {ID: "b"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveItems([]models.Item{{ID: "c"}}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Items()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "c" {
		t.Errorf("Items() = %+v, want just c", got)
	}
}

func TestCorruptSnapshot(t *testing.T) {
	kv := kvstore.NewMemStore(0)
	if err := kv.Set(itemsKey, "{broken"); err != nil {
		t.Fatal(err)
	}
	s := New(kv)
	_, err := s.Items()
	if err == nil || !strings.Contains(err.Error(), itemsKey) {
		t.Errorf("Items() error = %v, want decode failure naming the key", err)
	}
}
