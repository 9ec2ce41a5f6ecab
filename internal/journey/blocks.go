package journey

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

const (
	MaxContentLength = 10000
	MaxNoteLength    = 10000
	MaxTitleLength   = 200
	MaxCommentLength = 5000
	MaxTagLength     = 40
	MaxNameLength    = 120
)

var blockTypes = []string{
	"touchpoint", "role", "process", "friction", "metric", "insight", "opportunity",
	"pain_point", "channel", "text", "image", "link", "video", "emotion",
}

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

var (
	ErrInvalidEmoji = errors.New("emoji must be a single emoji")
	ErrInvalidColor = errors.New("color must be #RRGGBB")
)

// BlockTypes lists the accepted block types in display order.
func BlockTypes() []string {
	out := make([]string, len(blockTypes))
	copy(out, blockTypes)
	return out
}

func ValidBlockType(kind string) bool {
	for _, candidate := range blockTypes {
		if candidate == kind {
			return true
		}
	}
	return false
}

// CheckLength counts characters, not bytes.
func CheckLength(field, value string, min, max int) error {
	n := utf8.RuneCountInString(value)
	if n < min {
		if min == 1 {
			return fmt.Errorf("%s is required", field)
		}
		return fmt.Errorf("%s must be at least %d characters", field, min)
	}
	if n > max {
		return fmt.Errorf("%s must be at most %d characters", field, max)
	}
	return nil
}

// NormalizeColor accepts "" or #RRGGBB and returns it upper-cased.
func NormalizeColor(color string) (string, error) {
	color = strings.TrimSpace(color)
	if color == "" {
		return "", nil
	}
	if !hexColor.MatchString(color) {
		return "", ErrInvalidColor
	}
	return strings.ToUpper(color), nil
}

// NormalizeEmoji accepts "" or exactly one emoji grapheme cluster.
func NormalizeEmoji(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	if uniseg.GraphemeClusterCount(value) != 1 {
		return "", ErrInvalidEmoji
	}
	for _, r := range value {
		if isEmojiRune(r) {
			return value, nil
		}
	}
	return "", ErrInvalidEmoji
}

func isEmojiRune(r rune) bool {
	switch {
	case r >= 0x1F000 && r <= 0x1FAFF:
		return true
	case r >= 0x2600 && r <= 0x27BF:
		return true
	case r == 0x20E3: // keycap
		return true
	case r >= 0x2B00 && r <= 0x2BFF:
		return true
	}
	return unicode.Is(unicode.So, r)
}
