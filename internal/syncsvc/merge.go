package syncsvc

import (
	"time"

	"github.com/lifedb/lifedb/internal/models"
)

// merge reconciles a local and a remote snapshot of one collection using
// last-write-wins per record id.
//
// The remote snapshot is the base: the result preserves remote order, with
// local-only records appended in local order, so the output is deterministic
// and merging the result with the same remote snapshot again is a no-op.
// For an id present on both sides the record with the greater-or-equal
// UpdatedAt wins; on an exact tie the local record wins, favoring the device
// that just wrote.
//
// The returned ids are the records that needed resolution (present on both
// sides with differing timestamps).
func merge[T any](local, remote []T, id func(T) string, updatedAt func(T) time.Time) ([]T, []string) {
	merged := make([]T, 0, len(remote)+len(local))
	index := make(map[string]int, len(remote))
	for _, r := range remote {
		index[id(r)] = len(merged)
		merged = append(merged, r)
	}

	var resolved []string
	for _, l := range local {
		pos, ok := index[id(l)]
		if !ok {
			// New local-only record always survives.
			index[id(l)] = len(merged)
			merged = append(merged, l)
			continue
		}
		if !updatedAt(l).Equal(updatedAt(merged[pos])) {
			resolved = append(resolved, id(l))
		}
		if !updatedAt(l).Before(updatedAt(merged[pos])) {
			merged[pos] = l
		}
	}
	return merged, resolved
}

func mergeItems(local, remote []models.Item) ([]models.Item, []string) {
	return merge(local, remote,
		func(it models.Item) string { return it.ID },
		func(it models.Item) time.Time { return it.UpdatedAt })
}

func mergeCategories(local, remote []models.Category) ([]models.Category, []string) {
	return merge(local, remote,
		func(c models.Category) string { return c.ID },
		func(c models.Category) time.Time { return c.UpdatedAt })
}
