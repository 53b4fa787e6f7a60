// Package enrich combines the per-provider resolvers into one fully
// populated item record, including watched-state propagation through the
// show hierarchy.
package enrich

import "mediameld/models"

// Precedence decides which record's value survives a field collision.
type Precedence int

const (
	// PreferFirst keeps the first record's value on collision.
	PreferFirst Precedence = iota
	// PreferSecond keeps the second record's value on collision.
	PreferSecond
)

// Merge deep-merges two records field by field. Mapping fields take the
// union of keys with collisions resolved by prefer; sequence fields are never
// merged element-wise — the first non-empty one wins, checked in precedence
// order. A field absent (nil) on both sides stays absent in the result. The
// result shares no storage with either input.
func Merge(a, b models.Record, prefer Precedence) models.Record {
	return models.Record{
		Labels:     mergeMaps(a.Labels, b.Labels, prefer),
		IDs:        mergeMaps(a.IDs, b.IDs, prefer),
		Art:        mergeMaps(a.Art, b.Art, prefer),
		Properties: mergeMaps(a.Properties, b.Properties, prefer),
		Cast:       pickCast(a.Cast, b.Cast, prefer),
		StreamInfo: mergeStreamInfo(a.StreamInfo, b.StreamInfo, prefer),
	}
}

func mergeMaps[M ~map[string]V, V any](a, b M, prefer Precedence) M {
	if a == nil && b == nil {
		return nil
	}
	lose, win := b, a
	if prefer == PreferSecond {
		lose, win = a, b
	}
	out := make(M, len(a)+len(b))
	for k, v := range lose {
		out[k] = v
	}
	for k, v := range win {
		out[k] = v
	}
	return out
}

func pickCast(a, b []models.CastMember, prefer Precedence) []models.CastMember {
	first, second := a, b
	if prefer == PreferSecond {
		first, second = b, a
	}
	pick := first
	if len(pick) == 0 {
		pick = second
	}
	if pick == nil {
		return nil
	}
	out := make([]models.CastMember, len(pick))
	copy(out, pick)
	return out
}

func mergeStreamInfo(a, b map[string][]map[string]string, prefer Precedence) map[string][]map[string]string {
	merged := mergeMaps(a, b, prefer)
	if merged == nil {
		return nil
	}
	out := make(map[string][]map[string]string, len(merged))
	for category, blocks := range merged {
		copied := make([]map[string]string, len(blocks))
		for i, block := range blocks {
			blockCopy := make(map[string]string, len(block))
			for k, v := range block {
				blockCopy[k] = v
			}
			copied[i] = blockCopy
		}
		out[category] = copied
	}
	return out
}
