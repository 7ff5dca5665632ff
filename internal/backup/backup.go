// Package backup writes timestamped, compressed snapshots of the domain
// collections and restores them, the escape hatch for operators recovering
// from a bad merge.
package backup

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/lifedb/lifedb/internal/models"
	"github.com/lifedb/lifedb/internal/snapshot"
)

const (
	filePrefix = "lifedb-backup-"
	fileSuffix = ".json.zst"
	nameFormat = "20060102-150405"
)

// Snapshot is the on-disk backup payload.
type Snapshot struct {
	CreatedAt  time.Time         `json:"createdAt"`
	Items      []models.Item     `json:"items"`
	Categories []models.Category `json:"categories"`
}

// Info describes one backup file.
type Info struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	SizeBytes int64     `json:"sizeBytes"`
}

// Manager saves and restores snapshot backups under a directory.
type Manager struct {
	snap *snapshot.Store
	dir  string
	now  func() time.Time
}

// NewManager creates a backup manager writing to dir.
func NewManager(snap *snapshot.Store, dir string) *Manager {
	return &Manager{snap: snap, dir: dir, now: time.Now}
}

// Save writes a new timestamped backup of the current collections and
// returns its name.
func (m *Manager) Save() (string, error) {
	items, err := m.snap.Items()
	if err != nil {
		return "", err
	}
	cats, err := m.snap.Categories()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	now := m.now().UTC()
	name := filePrefix + now.Format(nameFormat) + fileSuffix
	f, err := os.CreateTemp(m.dir, "*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create backup file: %w", err)
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}
	werr := json.NewEncoder(enc).Encode(&Snapshot{CreatedAt: now, Items: items, Categories: cats})
	if err := enc.Close(); werr == nil {
		werr = err
	}
	if err := f.Close(); werr == nil {
		werr = err
	}
	if werr != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to write backup: %w", werr)
	}
	if err := os.Rename(f.Name(), filepath.Join(m.dir, name)); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to finalize backup: %w", err)
	}
	slog.Info("Backup saved", "name", name, "items", len(items), "categories", len(cats))
	return name, nil
}

// List returns available backups, newest first.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}
	var infos []Info
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		created, err := time.Parse(nameFormat, stamp)
		if err != nil {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, Info{Name: name, CreatedAt: created.UTC(), SizeBytes: fi.Size()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].CreatedAt.After(infos[j].CreatedAt) })
	return infos, nil
}

// Restore replaces the current collections with the named backup's
// contents. The pre-restore state is saved as a fresh backup first, so a
// restore is always reversible.
func (m *Manager) Restore(name string) error {
	if name != filepath.Base(name) {
		return fmt.Errorf("invalid backup name %q", name)
	}
	f, err := os.Open(filepath.Join(m.dir, name))
	if err != nil {
		return fmt.Errorf("failed to open backup %q: %w", name, err)
	}
	defer func() { _ = f.Close() }()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()
	var snap Snapshot
	if err := json.NewDecoder(dec).Decode(&snap); err != nil {
		return fmt.Errorf("failed to decode backup %q: %w", name, err)
	}

	if _, err := m.Save(); err != nil {
		return fmt.Errorf("failed to back up current state before restore: %w", err)
	}

	if err := m.snap.SaveItems(snap.Items); err != nil {
		return err
	}
	if err := m.snap.SaveCategories(snap.Categories); err != nil {
		return err
	}
	slog.Info("Backup restored", "name", name, "items", len(snap.Items), "categories", len(snap.Categories))
	return nil
}
