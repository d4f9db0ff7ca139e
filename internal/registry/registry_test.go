package registry

import (
	"errors"
	"strings"
	"testing"
)

func handlerReturning(out string) Handler {
	return func(map[string]any, []string) (string, error) {
		return out, nil
	}
}

func TestRegisterAndGet(t *testing.T) {
	r := New()

	if err := r.Register("charts", "grid", handlerReturning("grid"), nil); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	h, ok := r.Get("grid", "charts")
	if !ok {
		t.Fatal("Get() did not find namespaced entry")
	}
	out, err := h(nil, nil)
	if err != nil || out != "grid" {
		t.Errorf("handler = %q, %v; want %q, nil", out, err, "grid")
	}
}

func TestRegisterValidation(t *testing.T) {
	r := New()

	tests := []struct {
		name    string
		typ     string
		handler Handler
		wantErr error
	}{
		{name: "empty type", typ: "", handler: handlerReturning("x"), wantErr: ErrMissingType},
		{name: "nil handler", typ: "grid", handler: nil, wantErr: ErrNilHandler},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Register("ns", tt.typ, tt.handler, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Register() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetFallsBackToBareEntry(t *testing.T) {
	r := New()

	if err := r.Register("", "button", handlerReturning("base"), nil); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	// Lookup under a namespace with no shadow falls back to the bare key.
	h, ok := r.Get("button", "charts")
	if !ok {
		t.Fatal("Get() did not fall back to bare entry")
	}
	out, _ := h(nil, nil)
	if out != "base" {
		t.Errorf("fallback handler = %q, want %q", out, "base")
	}

	// A namespaced shadow wins over the bare entry.
	if err := r.Register("charts", "button", handlerReturning("shadow"), nil); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	h, _ = r.Get("button", "charts")
	out, _ = h(nil, nil)
	if out != "shadow" {
		t.Errorf("shadowed handler = %q, want %q", out, "shadow")
	}

	// Other namespaces still see the bare entry.
	h, _ = r.Get("button", "tables")
	out, _ = h(nil, nil)
	if out != "base" {
		t.Errorf("other-namespace handler = %q, want %q", out, "base")
	}
}

func TestSameTypeInTwoNamespaces(t *testing.T) {
	r := New()

	if err := r.Register("plugin-a", "grid", handlerReturning("a"), nil); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("plugin-b", "grid", handlerReturning("b"), nil); err != nil {
		t.Fatal(err)
	}

	ha, _ := r.Get("grid", "plugin-a")
	hb, _ := r.Get("grid", "plugin-b")
	outA, _ := ha(nil, nil)
	outB, _ := hb(nil, nil)
	if outA != "a" || outB != "b" {
		t.Errorf("handlers = %q, %q; want independently retrievable a, b", outA, outB)
	}
}

func TestHas(t *testing.T) {
	r := New()
	_ = r.Register("charts", "grid", handlerReturning("x"), nil)

	if !r.Has("grid", "charts") {
		t.Error("Has() = false for registered type")
	}
	if r.Has("grid", "") {
		t.Error("Has() = true for bare lookup of a namespaced entry")
	}
	if r.Has("missing", "charts") {
		t.Error("Has() = true for unregistered type")
	}
}

func TestConfig(t *testing.T) {
	r := New()
	meta := map[string]any{"editable": true}
	_ = r.Register("charts", "grid", handlerReturning("x"), meta)

	got, ok := r.Config("grid", "charts")
	if !ok {
		t.Fatal("Config() did not find entry")
	}
	if got["editable"] != true {
		t.Errorf("Config() = %v, want editable=true", got)
	}

	if _, ok := r.Config("missing", "charts"); ok {
		t.Error("Config() = true for unregistered type")
	}
}

func TestUnregister(t *testing.T) {
	r := New()
	_ = r.Register("charts", "grid", handlerReturning("x"), nil)

	r.Unregister("charts", "grid")

	if r.Has("grid", "charts") {
		t.Error("entry survived Unregister")
	}

	// Removing an absent key is a no-op.
	r.Unregister("charts", "grid")
}

func TestBareRegistrationWarns(t *testing.T) {
	var warnings []string
	r := New(WithWarnFunc(func(msg string) { warnings = append(warnings, msg) }))

	if err := r.Register("", "button", handlerReturning("x"), nil); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "button") {
		t.Errorf("warnings = %v, want one naming the component", warnings)
	}

	// Namespaced registration does not warn.
	if err := r.Register("charts", "grid", handlerReturning("x"), nil); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if len(warnings) != 1 {
		t.Errorf("namespaced registration warned: %v", warnings)
	}
}

func TestList(t *testing.T) {
	r := New()
	_ = r.Register("b", "grid", handlerReturning("x"), nil)
	_ = r.Register("a", "grid", handlerReturning("x"), nil)
	_ = r.Register("", "text", handlerReturning("x"), nil)

	got := r.List()
	want := []string{"a:grid", "b:grid", "text"}
	if len(got) != len(want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if r.Len() != 3 {
		t.Errorf("Len() = %d, want 3", r.Len())
	}
}
