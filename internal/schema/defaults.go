package schema

import (
	"fmt"
	"strings"

	"github.com/schemaflow/schemaflow/internal/registry"
)

// RegisterDefaults installs the base component set under the bare
// namespace. Plugins can shadow any of these by registering the same
// type under their own namespace.
//
//   - "text": renders its "value" prop.
//   - "stack": joins rendered children with newlines; a "gap" prop adds
//     blank lines between them.
//   - "button": renders "[label]".
func RegisterDefaults(reg *registry.Registry) error {
	defaults := map[string]registry.Handler{
		"text":   renderText,
		"stack":  renderStack,
		"button": renderButton,
	}

	for typ, handler := range defaults {
		if err := reg.Register("", typ, handler, map[string]any{"builtin": true}); err != nil {
			return fmt.Errorf("failed to register builtin %q: %w", typ, err)
		}
	}
	return nil
}

func renderText(props map[string]any, _ []string) (string, error) {
	v, ok := props["value"]
	if !ok {
		return "", nil
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return fmt.Sprint(v), nil
}

func renderStack(props map[string]any, children []string) (string, error) {
	sep := "\n"
	if gap, ok := props["gap"].(float64); ok && gap > 0 {
		sep = strings.Repeat("\n", int(gap)+1)
	}
	return strings.Join(children, sep), nil
}

func renderButton(props map[string]any, _ []string) (string, error) {
	label, _ := props["label"].(string)
	return "[" + label + "]", nil
}
