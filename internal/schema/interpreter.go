package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/schemaflow/schemaflow/internal/registry"
)

// Interpreter errors.
var (
	// ErrInvalidDocument is returned for malformed JSON or a non-object
	// root.
	ErrInvalidDocument = errors.New("invalid schema document")

	// ErrMissingType is returned when a node has no "type" field.
	ErrMissingType = errors.New("node has no type")

	// ErrUnknownComponent is returned when a node's type does not resolve
	// in the registry.
	ErrUnknownComponent = errors.New("unknown component type")

	// ErrMaxDepth is returned when the node tree nests deeper than the
	// configured limit.
	ErrMaxDepth = errors.New("document exceeds maximum nesting depth")
)

// DefaultMaxDepth bounds node nesting. Deep documents are almost always
// generator bugs, not real UIs.
const DefaultMaxDepth = 64

// Interpreter renders schema documents through a component registry.
type Interpreter struct {
	reg *registry.Registry

	namespace string
	maxDepth  int
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithNamespace sets the default namespace used to resolve node types
// that do not carry an explicit "namespace:" prefix.
func WithNamespace(namespace string) Option {
	return func(it *Interpreter) {
		it.namespace = namespace
	}
}

// WithMaxDepth overrides the nesting limit.
func WithMaxDepth(depth int) Option {
	return func(it *Interpreter) {
		it.maxDepth = depth
	}
}

// NewInterpreter creates an interpreter over the given registry.
func NewInterpreter(reg *registry.Registry, opts ...Option) *Interpreter {
	it := &Interpreter{
		reg:      reg,
		maxDepth: DefaultMaxDepth,
	}

	for _, opt := range opts {
		opt(it)
	}

	return it
}

// Render interprets a JSON document and returns the rendered output.
func (it *Interpreter) Render(doc []byte) (string, error) {
	if !gjson.ValidBytes(doc) {
		return "", ErrInvalidDocument
	}

	root := gjson.ParseBytes(doc)
	if !root.IsObject() {
		return "", fmt.Errorf("%w: root is not an object", ErrInvalidDocument)
	}
	return it.renderNode(root, 0)
}

// RenderString is Render for a string document.
func (it *Interpreter) RenderString(doc string) (string, error) {
	return it.Render([]byte(doc))
}

func (it *Interpreter) renderNode(node gjson.Result, depth int) (string, error) {
	if depth > it.maxDepth {
		return "", ErrMaxDepth
	}

	typ := node.Get("type").String()
	if typ == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingType, node.Raw)
	}

	namespace := it.namespace
	if ns, bare, ok := strings.Cut(typ, ":"); ok {
		namespace, typ = ns, bare
	}

	handler, ok := it.reg.Get(typ, namespace)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownComponent, typ)
	}

	var children []string
	for _, child := range node.Get("children").Array() {
		// Bare string children are literal text.
		if child.Type == gjson.String {
			children = append(children, child.String())
			continue
		}
		out, err := it.renderNode(child, depth+1)
		if err != nil {
			return "", err
		}
		children = append(children, out)
	}

	props, _ := node.Get("props").Value().(map[string]any)

	out, err := handler(props, children)
	if err != nil {
		return "", fmt.Errorf("component %q failed: %w", typ, err)
	}
	return out, nil
}
