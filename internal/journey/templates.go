package journey

import "fmt"

const (
	TemplateBlank   = "blank"
	TemplateDefault = "default"
)

var defaultPhases = []string{"Awareness", "Consideration", "Purchase", "Retention", "Advocacy"}

// TemplatePhases returns the phase names a new board starts with.
func TemplatePhases(template string) ([]string, error) {
	switch template {
	case "", TemplateBlank:
		return []string{"Phase 1"}, nil
	case TemplateDefault:
		out := make([]string, len(defaultPhases))
		copy(out, defaultPhases)
		return out, nil
	default:
		return nil, fmt.Errorf("unknown board template %q", template)
	}
}
