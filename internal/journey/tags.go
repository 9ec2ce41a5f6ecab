package journey

import (
	"hash/fnv"
	"strings"
)

var tagPalette = []string{
	"#EF4444", "#F97316", "#F59E0B", "#84CC16", "#10B981",
	"#06B6D4", "#3B82F6", "#6366F1", "#A855F7", "#EC4899",
}

// NormalizeTagName trims and collapses inner whitespace.
func NormalizeTagName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// TagColor picks a stable palette color for a tag name, ignoring case.
func TagColor(name string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(NormalizeTagName(name))))
	return tagPalette[h.Sum32()%uint32(len(tagPalette))]
}

// PresenceColor picks a palette color for a user in a board room.
func PresenceColor(userID string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return tagPalette[h.Sum32()%uint32(len(tagPalette))]
}
