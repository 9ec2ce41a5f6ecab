// Package journey holds the board rules shared by the store and the HTTP service:
// grid ordering, block validation, media links, tags and the emotion series.
package journey

import "errors"

var ErrNotPermutation = errors.New("order must list every item exactly once")

// ClampPosition bounds position to [0, n].
func ClampPosition(position, n int) int {
	if position < 0 {
		return 0
	}
	if position > n {
		return n
	}
	return position
}

// Insert returns ids with id placed at position (clamped). Positions in the
// result are the slice indexes, so the container stays dense.
func Insert(ids []string, id string, position int) []string {
	position = ClampPosition(position, len(ids))
	out := make([]string, 0, len(ids)+1)
	out = append(out, ids[:position]...)
	out = append(out, id)
	out = append(out, ids[position:]...)
	return out
}

// Remove returns ids without id. Unknown ids leave the order untouched.
func Remove(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

// Move relocates id inside one container. The position is interpreted
// against the list without id, which is what a drop target reports.
func Move(ids []string, id string, position int) []string {
	return Insert(Remove(ids, id), id, position)
}

// Transfer moves id from source to target, closing the gap in source.
func Transfer(source, target []string, id string, position int) ([]string, []string) {
	return Remove(source, id), Insert(Remove(target, id), id, position)
}

// IndexOf returns the position of id, or -1.
func IndexOf(ids []string, id string) int {
	for i, existing := range ids {
		if existing == id {
			return i
		}
	}
	return -1
}

// CheckPermutation verifies ordered contains exactly the ids of current.
func CheckPermutation(current, ordered []string) error {
	if len(current) != len(ordered) {
		return ErrNotPermutation
	}
	seen := make(map[string]bool, len(current))
	for _, id := range current {
		seen[id] = false
	}
	for _, id := range ordered {
		used, ok := seen[id]
		if !ok || used {
			return ErrNotPermutation
		}
		seen[id] = true
	}
	return nil
}
