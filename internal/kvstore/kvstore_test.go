package kvstore

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

// storeFactory builds a fresh empty store with the given capacity.
type storeFactory func(t *testing.T, capacity int64) Store

func factories() map[string]storeFactory {
	return map[string]storeFactory{
		"MemStore": func(t *testing.T, capacity int64) Store {
			t.Helper()
			return NewMemStore(capacity)
		},
		"DirStore": func(t *testing.T, capacity int64) Store {
			t.Helper()
			s, err := NewDirStore(t.TempDir(), capacity)
			if err != nil {
				t.Fatal(err)
			}
			return s
		},
	}
}

func TestStore(t *testing.T) {
	for name, factory := range factories() {
		t.Run(name, func(t *testing.T) {
			t.Run("get missing", func(t *testing.T) {
				s := factory(t, 0)
				_, ok, err := s.Get("nope")
				if err != nil {
					t.Fatal(err)
				}
				if ok {
					t.Error("expected missing key")
				}
			})

			t.Run("set get remove", func(t *testing.T) {
				s := factory(t, 0)
				if err := s.Set("a", "hello"); err != nil {
					t.Fatal(err)
				}
				v, ok, err := s.Get("a")
				if err != nil || !ok {
					t.Fatalf("Get() = %v, %v", ok, err)
				}
				if v != "hello" {
					t.Errorf("Get() = %q, want %q", v, "hello")
				}
				if err := s.Set("a", "world"); err != nil {
					t.Fatal(err)
				}
				v, _, _ = s.Get("a")
				if v != "world" {
					t.Errorf("overwrite: Get() = %q, want %q", v, "world")
				}
				if err := s.Remove("a"); err != nil {
					t.Fatal(err)
				}
				if _, ok, _ := s.Get("a"); ok {
					t.Error("expected key removed")
				}
				// Removing again is not an error.
				if err := s.Remove("a"); err != nil {
					t.Errorf("Remove() on absent key = %v", err)
				}
			})

			t.Run("keys prefix", func(t *testing.T) {
				s := factory(t, 0)
				for _, k := range []string{"blob_x_0", "blob_x_1", "items", "blob_y_0"} {
					if err := s.Set(k, "v"); err != nil {
						t.Fatal(err)
					}
				}
				keys, err := s.Keys("blob_x")
				if err != nil {
					t.Fatal(err)
				}
				want := []string{"blob_x_0", "blob_x_1"}
				if !reflect.DeepEqual(keys, want) {
					t.Errorf("Keys(blob_x) = %v, want %v", keys, want)
				}
				all, err := s.Keys("")
				if err != nil {
					t.Fatal(err)
				}
				if len(all) != 4 {
					t.Errorf("Keys(\"\") = %d entries, want 4", len(all))
				}
			})

			t.Run("capacity", func(t *testing.T) {
				s := factory(t, 64)
				if err := s.Set("k", strings.Repeat("x", 40)); err != nil {
					t.Fatal(err)
				}
				err := s.Set("k2", strings.Repeat("y", 40))
				if !errors.Is(err, ErrCapacity) {
					t.Errorf("Set() beyond capacity = %v, want ErrCapacity", err)
				}
				// Overwriting an existing key within capacity still works.
				if err := s.Set("k", strings.Repeat("z", 30)); err != nil {
					t.Errorf("overwrite within capacity = %v", err)
				}
			})

			t.Run("used bytes", func(t *testing.T) {
				s := factory(t, 0)
				if err := s.Set("abc", "12345"); err != nil {
					t.Fatal(err)
				}
				used, err := s.UsedBytes()
				if err != nil {
					t.Fatal(err)
				}
				if used != 8 {
					t.Errorf("UsedBytes() = %d, want 8", used)
				}
			})
		})
	}
}

func TestDirStoreTempLookalikeKeys(t *testing.T) {
	s, err := NewDirStore(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	// Keys whose escaped names resemble in-flight writes are still real
	// keys and must show up in enumeration and accounting.
	for _, key := range []string{"report.tmp", ".tmp-archive", "%tmp-ish"} {
		if err := s.Set(key, "v"); err != nil {
			t.Fatal(err)
		}
	}
	keys, err := s.Keys("")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 3 {
		t.Errorf("Keys() = %v, want all 3", keys)
	}
	used, err := s.UsedBytes()
	if err != nil {
		t.Fatal(err)
	}
	var want int64
	for _, k := range []string{"report.tmp", ".tmp-archive", "%tmp-ish"} {
		want += int64(len(k) + 1)
	}
	if used != want {
		t.Errorf("UsedBytes() = %d, want %d", used, want)
	}
}

func TestDirStorePersistence(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDirStore(dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	// Keys with separators and spaces must survive the filename encoding.
	key := "lifedb_blob_note 1_image_0"
	if err := s.Set(key, "payload"); err != nil {
		t.Fatal(err)
	}

	// A fresh store over the same directory sees the data.
	s2, err := NewDirStore(dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	v, ok, err := s2.Get(key)
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if v != "payload" {
		t.Errorf("Get() = %q, want %q", v, "payload")
	}
	keys, err := s2.Keys("lifedb_blob_")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0] != key {
		t.Errorf("Keys() = %v, want [%q]", keys, key)
	}
}
