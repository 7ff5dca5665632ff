package blob

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/lifedb/lifedb/internal/kvstore"
)

// Blob group kinds.
const (
	KindImage = "image"
	KindAudio = "audio"
)

// keyPrefix namespaces blob records inside the shared substrate.
const keyPrefix = "lifedb_blob_"

// errQuotaExceeded signals that ensureSpace could not free enough room even
// after evicting every stored blob. It never escapes the Store's public API.
var errQuotaExceeded = errors.New("blob: quota exceeded")

// Config holds the blob store's size limits.
type Config struct {
	// MaxItemBytes is the per-blob ceiling before compression is attempted.
	MaxItemBytes int64
	// MaxTotalBytes is the global quota across all stored blobs.
	MaxTotalBytes int64
	// MaxDimension bounds the longer side of stored images, in pixels.
	MaxDimension int
	// Quality is the JPEG re-encoding quality.
	Quality int
}

// DefaultConfig returns the production limits: 500 KiB per blob, 8 MiB
// total, images bounded to 1280px at quality 70.
func DefaultConfig() Config {
	return Config{
		MaxItemBytes:  500 << 10,
		MaxTotalBytes: 8 << 20,
		MaxDimension:  1280,
		Quality:       70,
	}
}

// StoredBlob is one physical record in the substrate.
//
// DataURL is the only source of truth for content; every other field is
// bookkeeping. A record whose DataURL no longer decodes is treated as absent
// by readers and reaped by eviction sweeps.
type StoredBlob struct {
	DataURL      string `json:"dataUrl"`
	MimeType     string `json:"mimeType"`
	Filename     string `json:"filename,omitempty"`
	Size         int64  `json:"size"`
	OriginalSize int64  `json:"originalSize"`
	// Timestamp is the creation time in milliseconds since the Unix epoch.
	// It is the sole eviction key.
	Timestamp  int64 `json:"timestamp"`
	Compressed bool  `json:"compressed"`
}

// Ref is a durable (or, after quota exhaustion, transient) reference to a
// stored blob.
type Ref struct {
	Key      string `json:"key"`
	DataURL  string `json:"dataUrl"`
	MimeType string `json:"mimeType"`
	Filename string `json:"filename,omitempty"`
	Size     int64  `json:"size"`
	// Transient marks a reference that lives only for the current process:
	// the blob could not be persisted within the quota.
	Transient bool `json:"transient,omitempty"`
}

// File is a decoded attachment, the inverse of a Put.
type File struct {
	Data     []byte
	MimeType string
	Filename string
}

// Stats summarizes the store's footprint.
type Stats struct {
	Count      int   `json:"count"`
	TotalBytes int64 `json:"totalBytes"`
	Available  int64 `json:"available"`
}

// Store is the namespaced blob cache over the key/value substrate.
//
// Writes to the same (owner, kind, index) triple must be serialized by the
// caller; writes to different triples are independent since substrate
// operations are atomic per key.
type Store struct {
	kv   kvstore.Store
	comp Compressor
	cfg  Config
	now  func() time.Time

	mu sync.Mutex
	// transient holds blobs that could not be persisted within the quota.
	// Process lifetime only.
	transient map[string]StoredBlob
}

// NewStore creates a blob store over kv using comp for oversized images.
func NewStore(kv kvstore.Store, comp Compressor, cfg Config) *Store {
	return &Store{
		kv:        kv,
		comp:      comp,
		cfg:       cfg,
		now:       time.Now,
		transient: make(map[string]StoredBlob),
	}
}

// Key returns the substrate key for a blob record.
func Key(ownerID, kind string, index int) string {
	return fmt.Sprintf("%s%s_%s_%d", keyPrefix, ownerID, kind, index)
}

// Put stores an attachment for an owner, compressing images that exceed the
// per-item ceiling and evicting the oldest blobs when the global quota is
// tight.
//
// Put never fails: when the record cannot be persisted (quota exhausted or
// the substrate rejects the write) the blob is kept in memory for the life
// of the process and the returned Ref is marked Transient.
func (s *Store) Put(ownerID, kind string, index int, data []byte, mimeType, filename string) *Ref {
	originalSize := int64(len(data))
	compressed := false
	if originalSize > s.cfg.MaxItemBytes {
		if out, outMime, err := s.comp.Compress(data, mimeType); err == nil {
			compressed = len(out) != len(data) || outMime != mimeType
			data, mimeType = out, outMime
		}
	}

	key := Key(ownerID, kind, index)
	rec := StoredBlob{
		DataURL:      EncodeDataURL(data, mimeType),
		MimeType:     mimeType,
		Filename:     filename,
		OriginalSize: originalSize,
		Timestamp:    s.now().UnixMilli(),
		Compressed:   compressed,
	}
	// Size counts the record's own serialized form, so iterate the marshal
	// until the length settles (the digit width of Size can shift it).
	var value []byte
	for {
		v, err := json.Marshal(&rec)
		if err != nil {
			// Cannot happen for this shape; degrade anyway.
			slog.Warn("Failed to encode blob record", "key", key, "err", err)
			return s.putTransient(key, rec)
		}
		value = v
		if total := int64(len(key) + len(value)); total != rec.Size {
			rec.Size = total
			continue
		}
		break
	}

	if err := s.ensureSpace(key, int64(len(key)+len(value))); err != nil {
		slog.Warn("Blob quota exhausted, keeping transient reference", "key", key, "size", rec.Size, "err", err)
		return s.putTransient(key, rec)
	}
	if err := s.kv.Set(key, string(value)); err != nil {
		slog.Warn("Blob write failed, keeping transient reference", "key", key, "err", err)
		return s.putTransient(key, rec)
	}

	s.mu.Lock()
	delete(s.transient, key)
	s.mu.Unlock()
	return refFor(key, &rec, false)
}

// Get returns the stored record for a blob, or false when absent.
//
// Corrupt records (unparsable JSON or an undecodable data URL) are reported
// as absent, never as errors.
func (s *Store) Get(ownerID, kind string, index int) (*StoredBlob, bool) {
	key := Key(ownerID, kind, index)
	if rec, ok := s.load(key); ok {
		return rec, true
	}
	s.mu.Lock()
	rec, ok := s.transient[key]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	return &rec, true
}

// GetGroup returns references for an owner's contiguous blob run, probing
// index 0, 1, 2, ... and stopping at the first miss.
func (s *Store) GetGroup(ownerID, kind string) []Ref {
	var refs []Ref
	s.enumerateGroup(ownerID, kind, func(key string, rec *StoredBlob, transient bool) {
		refs = append(refs, *refFor(key, rec, transient))
	})
	return refs
}

// Has reports whether the owner has at least one blob of the given kind.
func (s *Store) Has(ownerID, kind string) bool {
	_, ok := s.Get(ownerID, kind, 0)
	return ok
}

// Remove deletes the owner's full contiguous run starting at index 0.
func (s *Store) Remove(ownerID, kind string) error {
	var errs []error
	for i := 0; ; i++ {
		key := Key(ownerID, kind, i)
		_, persisted, err := s.kv.Get(key)
		if err != nil {
			errs = append(errs, err)
			break
		}
		s.mu.Lock()
		_, inMemory := s.transient[key]
		delete(s.transient, key)
		s.mu.Unlock()
		if !persisted && !inMemory {
			break
		}
		if persisted {
			if err := s.kv.Remove(key); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// ToFiles decodes an owner's whole group back into raw attachments, used
// when content must be re-edited.
func (s *Store) ToFiles(ownerID, kind string) []File {
	var files []File
	s.enumerateGroup(ownerID, kind, func(_ string, rec *StoredBlob, _ bool) {
		data, mimeType, err := DecodeDataURL(rec.DataURL)
		if err != nil {
			return
		}
		files = append(files, File{Data: data, MimeType: mimeType, Filename: rec.Filename})
	})
	return files
}

// Stats returns the persisted record count, total footprint, and remaining
// quota estimate. Transient blobs are excluded.
func (s *Store) Stats() (Stats, error) {
	records, total, err := s.records()
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Count: len(records), TotalBytes: total}
	if avail := s.cfg.MaxTotalBytes - total; avail > 0 {
		st.Available = avail
	}
	return st, nil
}

// Sweep removes corrupt records from the substrate. Readers already treat
// them as absent; this reclaims their space.
func (s *Store) Sweep() (int, error) {
	records, _, err := s.records()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, r := range records {
		if !r.corrupt {
			continue
		}
		if err := s.kv.Remove(r.key); err != nil {
			slog.Warn("Failed to remove corrupt blob record", "key", r.key, "err", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// enumerateGroup is the single primitive implementing the index-probing
// convention: indices are contiguous from 0 and the first missing index
// terminates the run.
func (s *Store) enumerateGroup(ownerID, kind string, visit func(key string, rec *StoredBlob, transient bool)) {
	for i := 0; ; i++ {
		key := Key(ownerID, kind, i)
		if rec, ok := s.load(key); ok {
			visit(key, rec, false)
			continue
		}
		s.mu.Lock()
		rec, ok := s.transient[key]
		s.mu.Unlock()
		if !ok {
			return
		}
		visit(key, &rec, true)
	}
}

// load reads and validates a persisted record. Corrupt records read as
// absent.
func (s *Store) load(key string) (*StoredBlob, bool) {
	raw, ok, err := s.kv.Get(key)
	if err != nil || !ok {
		return nil, false
	}
	var rec StoredBlob
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, false
	}
	if _, _, err := DecodeDataURL(rec.DataURL); err != nil {
		return nil, false
	}
	return &rec, true
}

func (s *Store) putTransient(key string, rec StoredBlob) *Ref {
	s.mu.Lock()
	s.transient[key] = rec
	s.mu.Unlock()
	return refFor(key, &rec, true)
}

// storedRecord is ensureSpace's bookkeeping for one persisted key.
type storedRecord struct {
	key       string
	size      int64
	timestamp int64
	corrupt   bool
}

// records enumerates every persisted blob record with its actual stored
// footprint. Corrupt records are included (timestamp 0) so eviction sweeps
// can reclaim them first.
func (s *Store) records() ([]storedRecord, int64, error) {
	keys, err := s.kv.Keys(keyPrefix)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to enumerate blob records: %w", err)
	}
	var records []storedRecord
	var total int64
	for _, key := range keys {
		raw, ok, err := s.kv.Get(key)
		if err != nil || !ok {
			continue
		}
		r := storedRecord{key: key, size: int64(len(key) + len(raw))}
		var rec StoredBlob
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			r.corrupt = true
		} else if _, _, err := DecodeDataURL(rec.DataURL); err != nil {
			r.corrupt = true
		} else {
			r.timestamp = rec.Timestamp
		}
		records = append(records, r)
		total += r.size
	}
	return records, total, nil
}

// ensureSpace evicts the oldest records until n more bytes fit under the
// global quota. Returns errQuotaExceeded when even a full eviction would not
// make room.
//
// key is the record about to be written: an existing version under the same
// key is replaced by the write, so its footprint is excluded from the quota
// math and from the eviction candidates.
func (s *Store) ensureSpace(key string, n int64) error {
	records, total, err := s.records()
	if err != nil {
		return err
	}
	for i, r := range records {
		if r.key == key {
			total -= r.size
			records = append(records[:i], records[i+1:]...)
			break
		}
	}
	if total+n <= s.cfg.MaxTotalBytes {
		return nil
	}
	if n > s.cfg.MaxTotalBytes {
		return errQuotaExceeded
	}

	// Oldest first; corrupt records carry timestamp 0 so they go first.
	sort.Slice(records, func(i, j int) bool { return records[i].timestamp < records[j].timestamp })
	var freed int64
	for _, r := range records {
		if total-freed+n <= s.cfg.MaxTotalBytes {
			return nil
		}
		if err := s.kv.Remove(r.key); err != nil {
			slog.Warn("Failed to evict blob record", "key", r.key, "err", err)
			continue
		}
		slog.Debug("Evicted blob record", "key", r.key, "size", r.size, "timestamp", r.timestamp)
		freed += r.size
	}
	if total-freed+n <= s.cfg.MaxTotalBytes {
		return nil
	}
	return errQuotaExceeded
}

func refFor(key string, rec *StoredBlob, transient bool) *Ref {
	return &Ref{
		Key:       key,
		DataURL:   rec.DataURL,
		MimeType:  rec.MimeType,
		Filename:  rec.Filename,
		Size:      rec.Size,
		Transient: transient,
	}
}
