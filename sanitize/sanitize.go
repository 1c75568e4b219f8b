// Package sanitize provides local pre-flight validation and
// normalization of write items before they are sent to the remote
// boundary.
package sanitize

import (
	"math"
	"sort"
	"unicode/utf8"

	"github.com/abhissng/cortex/core"
	"github.com/abhissng/cortex/fault"
)

// Mode selects how sanitation treats items that violate limits.
type Mode int

const (
	// None performs no local validation.
	None Mode = iota
	// Clean mutates items in place to fit limits.
	Clean
	// Remove drops items that fail validation.
	Remove
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case Clean:
		return "clean"
	case Remove:
		return "remove"
	default:
		return "none"
	}
}

// Func is a caller-supplied sanitizer for one resource type. It returns
// the cleaned items and any locally detected errors, grouped by which
// validation rule failed.
type Func[T any] func(items []T, mode Mode) ([]T, []*fault.Error[T])

// TruncateString caps s at max bytes without splitting a rune.
func TruncateString(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// SanitizeMetadata caps metadata key and value lengths, the number of
// pairs, and the total byte size. Oversized keys and values are
// truncated; beyond the pair or byte budget, pairs are dropped in sorted
// key order so the result is deterministic.
func SanitizeMetadata(meta map[string]string, maxKeyLen, maxValueLen, maxPairs, maxBytes int) map[string]string {
	if len(meta) == 0 {
		return meta
	}

	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]string, len(meta))
	total := 0
	for _, k := range keys {
		if maxPairs > 0 && len(out) >= maxPairs {
			break
		}
		key := TruncateString(k, maxKeyLen)
		value := TruncateString(meta[k], maxValueLen)
		if key == "" {
			continue
		}
		if maxBytes > 0 && total+len(key)+len(value) > maxBytes {
			break
		}
		out[key] = value
		total += len(key) + len(value)
	}
	return out
}

// ClampFloat fixes values the remote boundary rejects: NaN becomes 0,
// infinities and out-of-range values are clamped to the given bounds.
func ClampFloat(v, min, max float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < min:
		return min
	case v > max:
		return max
	default:
		return v
	}
}

// DedupeByExternalID drops items whose external id was already seen,
// keeping the first occurrence. When duplicates exist it returns an
// ItemDuplicated error naming them, with the dropped items recorded as
// skipped. Items with an empty external id are always kept.
func DedupeByExternalID[T any](items []T, externalID func(T) string) ([]T, *fault.Error[T]) {
	seen := make(map[string]struct{}, len(items))
	kept := make([]T, 0, len(items))

	var dup *fault.Error[T]
	for _, item := range items {
		id := externalID(item)
		if id == "" {
			kept = append(kept, item)
			continue
		}
		if _, ok := seen[id]; ok {
			if dup == nil {
				dup = fault.New[T](fault.ItemDuplicated, "duplicate externalIds in request").
					WithResource(core.ResourceExternalID)
			}
			dup.Values = append(dup.Values, core.StringValue(id))
			dup.Skipped = append(dup.Skipped, item)
			continue
		}
		seen[id] = struct{}{}
		kept = append(kept, item)
	}
	return kept, dup
}
