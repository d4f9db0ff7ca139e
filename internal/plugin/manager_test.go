package plugin

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/schemaflow/schemaflow/internal/registry"
)

func testDefinition(name string, deps ...string) *Definition {
	return &Definition{
		Name:         name,
		Version:      "1.0.0",
		Dependencies: deps,
		Register:     func(*Scope) error { return nil },
	}
}

func TestManagerLoad(t *testing.T) {
	m := NewManager(registry.New())
	ctx := context.Background()

	def := testDefinition("charts")
	if m.IsLoaded("charts") {
		t.Error("IsLoaded() = true before Load")
	}

	if err := m.Load(ctx, def); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !m.IsLoaded("charts") {
		t.Error("IsLoaded() = false after Load")
	}
	if m.Count() != 1 {
		t.Errorf("Count() = %d, want 1", m.Count())
	}
	if _, ok := m.Scope("charts"); !ok {
		t.Error("Scope() not found after Load")
	}
	got, ok := m.Get("charts")
	if !ok || got != def {
		t.Error("Get() did not return the loaded definition")
	}
}

func TestManagerLoadIdempotent(t *testing.T) {
	m := NewManager(registry.New())
	ctx := context.Background()

	registered, loaded := 0, 0
	def := &Definition{
		Name:     "charts",
		Register: func(*Scope) error { registered++; return nil },
		OnLoad:   func(context.Context) error { loaded++; return nil },
	}

	if err := m.Load(ctx, def); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := m.Load(ctx, def); err != nil {
		t.Fatalf("second Load() error = %v", err)
	}

	if registered != 1 {
		t.Errorf("Register ran %d times, want 1", registered)
	}
	if loaded != 1 {
		t.Errorf("OnLoad ran %d times, want 1", loaded)
	}
	if m.Count() != 1 {
		t.Errorf("Count() = %d, want 1", m.Count())
	}
}

func TestManagerLoadInvalidDefinition(t *testing.T) {
	m := NewManager(registry.New())
	ctx := context.Background()

	tests := []struct {
		name    string
		def     *Definition
		wantErr error
	}{
		{name: "nil definition", def: nil, wantErr: ErrNilDefinition},
		{name: "missing name", def: &Definition{Register: func(*Scope) error { return nil }}, wantErr: ErrMissingName},
		{name: "missing register", def: &Definition{Name: "x"}, wantErr: ErrMissingRegister},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.Load(ctx, tt.def)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Load() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestManagerLoadMissingDependency(t *testing.T) {
	m := NewManager(registry.New())
	ctx := context.Background()

	err := m.Load(ctx, testDefinition("b", "a"))
	if !errors.Is(err, ErrDependencyNotFound) {
		t.Fatalf("Load() error = %v, want ErrDependencyNotFound", err)
	}
	// The error names both plugins.
	for _, want := range []string{`"a"`, `"b"`} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err.Error(), want)
		}
	}
	if m.IsLoaded("b") {
		t.Error("failed load left plugin marked loaded")
	}
	if m.Count() != 0 {
		t.Errorf("Count() = %d, want 0", m.Count())
	}
}

func TestManagerLoadWithDependency(t *testing.T) {
	m := NewManager(registry.New())
	ctx := context.Background()

	if err := m.Load(ctx, testDefinition("a")); err != nil {
		t.Fatalf("Load(a) error = %v", err)
	}
	if err := m.Load(ctx, testDefinition("b", "a")); err != nil {
		t.Fatalf("Load(b) error = %v", err)
	}

	if !m.IsLoaded("a") || !m.IsLoaded("b") {
		t.Error("both plugins should report loaded")
	}
}

func TestManagerLoadRegisterFailure(t *testing.T) {
	reg := registry.New()
	m := NewManager(reg)
	ctx := context.Background()

	boom := errors.New("boom")
	def := &Definition{
		Name: "bad",
		Register: func(s *Scope) error {
			// A partial registration must be reversed on failure.
			_ = s.RegisterComponent("grid", staticHandler("x"), nil)
			return boom
		},
	}

	err := m.Load(ctx, def)
	if !errors.Is(err, boom) {
		t.Fatalf("Load() error = %v, want wrapped boom", err)
	}
	if m.IsLoaded("bad") {
		t.Error("failed load left plugin marked loaded")
	}
	if reg.Has("grid", "bad") {
		t.Error("failed load left a component registered")
	}

	// The name is reusable after a failed load.
	if err := m.Load(ctx, testDefinition("bad")); err != nil {
		t.Errorf("Load() after failure error = %v", err)
	}
}

func TestManagerLoadOnLoadFailure(t *testing.T) {
	m := NewManager(registry.New())
	ctx := context.Background()

	boom := errors.New("boom")
	def := &Definition{
		Name:     "bad",
		Register: func(*Scope) error { return nil },
		OnLoad:   func(context.Context) error { return boom },
	}

	if err := m.Load(ctx, def); !errors.Is(err, boom) {
		t.Fatalf("Load() error = %v, want wrapped boom", err)
	}
	if m.IsLoaded("bad") {
		t.Error("plugin loaded despite OnLoad failure")
	}
	if _, ok := m.Scope("bad"); ok {
		t.Error("scope survived OnLoad failure")
	}
}

func TestManagerLoadHookOrder(t *testing.T) {
	m := NewManager(registry.New())
	ctx := context.Background()

	var order []string
	def := &Definition{
		Name: "p",
		Register: func(*Scope) error {
			order = append(order, "register")
			return nil
		},
		OnLoad: func(context.Context) error {
			order = append(order, "onload")
			return nil
		},
	}

	if err := m.Load(ctx, def); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(order) != 2 || order[0] != "register" || order[1] != "onload" {
		t.Errorf("hook order = %v, want [register onload]", order)
	}
}

func TestManagerUnload(t *testing.T) {
	m := NewManager(registry.New())
	ctx := context.Background()

	unloaded := false
	def := &Definition{
		Name:     "charts",
		Register: func(*Scope) error { return nil },
		OnUnload: func(context.Context) error { unloaded = true; return nil },
	}

	if err := m.Load(ctx, def); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := m.Unload(ctx, "charts"); err != nil {
		t.Fatalf("Unload() error = %v", err)
	}

	if !unloaded {
		t.Error("OnUnload was not invoked")
	}
	if m.IsLoaded("charts") {
		t.Error("IsLoaded() = true after Unload")
	}
	if _, ok := m.Scope("charts"); ok {
		t.Error("Scope() still present after Unload")
	}
}

func TestManagerUnloadNotLoaded(t *testing.T) {
	m := NewManager(registry.New())

	err := m.Unload(context.Background(), "ghost")
	if !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Unload() error = %v, want ErrNotLoaded", err)
	}
}

func TestManagerUnloadBlockedByDependent(t *testing.T) {
	m := NewManager(registry.New())
	ctx := context.Background()

	if err := m.Load(ctx, testDefinition("a")); err != nil {
		t.Fatalf("Load(a) error = %v", err)
	}
	if err := m.Load(ctx, testDefinition("b", "a")); err != nil {
		t.Fatalf("Load(b) error = %v", err)
	}

	err := m.Unload(ctx, "a")
	if !errors.Is(err, ErrDependentsExist) {
		t.Fatalf("Unload(a) error = %v, want ErrDependentsExist", err)
	}
	if !strings.Contains(err.Error(), `"b"`) {
		t.Errorf("error %q does not name the blocking dependent", err.Error())
	}
	if !m.IsLoaded("a") {
		t.Error("blocked unload removed the plugin")
	}

	// Unloading the dependent first unblocks the dependency.
	if err := m.Unload(ctx, "b"); err != nil {
		t.Fatalf("Unload(b) error = %v", err)
	}
	if err := m.Unload(ctx, "a"); err != nil {
		t.Fatalf("Unload(a) after b error = %v", err)
	}
}

func TestManagerUnloadClearsScope(t *testing.T) {
	reg := registry.New()
	m := NewManager(reg)
	ctx := context.Background()

	globalHits := 0
	def := &Definition{
		Name: "charts",
		Register: func(s *Scope) error {
			if err := s.RegisterComponent("grid", staticHandler("x"), nil); err != nil {
				return err
			}
			if err := s.SetState("k", "v"); err != nil {
				return err
			}
			s.OnGlobal("ping", func(any) { globalHits++ })
			return nil
		},
	}

	if err := m.Load(ctx, def); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	scope, _ := m.Scope("charts")

	if err := m.Unload(ctx, "charts"); err != nil {
		t.Fatalf("Unload() error = %v", err)
	}

	if reg.Has("grid", "charts") {
		t.Error("component registration survived unload")
	}
	if _, ok := scope.State("k"); ok {
		t.Error("state survived unload")
	}
	m.GlobalBus().Emit("ping", nil)
	if globalHits != 0 {
		t.Errorf("global handler ran %d times after unload, want 0", globalHits)
	}
}

func TestManagerUnloadAllReverseOrder(t *testing.T) {
	m := NewManager(registry.New())
	ctx := context.Background()

	var order []string
	mk := func(name string, deps ...string) *Definition {
		return &Definition{
			Name:         name,
			Dependencies: deps,
			Register:     func(*Scope) error { return nil },
			OnUnload: func(context.Context) error {
				order = append(order, name)
				return nil
			},
		}
	}

	if err := m.Load(ctx, mk("a")); err != nil {
		t.Fatal(err)
	}
	if err := m.Load(ctx, mk("b", "a")); err != nil {
		t.Fatal(err)
	}
	if err := m.Load(ctx, mk("c", "b")); err != nil {
		t.Fatal(err)
	}

	if err := m.UnloadAll(ctx); err != nil {
		t.Fatalf("UnloadAll() error = %v", err)
	}

	if len(order) != 3 || order[0] != "c" || order[1] != "b" || order[2] != "a" {
		t.Errorf("unload order = %v, want [c b a]", order)
	}
	if m.Count() != 0 {
		t.Errorf("Count() = %d, want 0", m.Count())
	}
}

func TestManagerDirectRegistration(t *testing.T) {
	reg := registry.New()
	m := NewManager(reg)
	ctx := context.Background()

	def := &Definition{
		Name: "legacy",
		RegisterDirect: func(r *registry.Registry) error {
			return r.Register("", "button", staticHandler("legacy button"), nil)
		},
	}

	if err := m.Load(ctx, def, WithDirectRegistration()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !m.IsLoaded("legacy") {
		t.Error("IsLoaded() = false after direct load")
	}
	if _, ok := m.Scope("legacy"); ok {
		t.Error("direct load constructed a scope")
	}
	if !reg.Has("button", "") {
		t.Error("direct registration did not reach the registry")
	}

	if err := m.Unload(ctx, "legacy"); err != nil {
		t.Fatalf("Unload() error = %v", err)
	}
}

func TestManagerDirectRegistrationRequiresFunc(t *testing.T) {
	m := NewManager(registry.New())

	def := &Definition{
		Name:     "legacy",
		Register: func(*Scope) error { return nil },
	}

	err := m.Load(context.Background(), def, WithDirectRegistration())
	if !errors.Is(err, ErrMissingRegister) {
		t.Errorf("Load() error = %v, want ErrMissingRegister", err)
	}
}

func TestManagerLoadedOrder(t *testing.T) {
	m := NewManager(registry.New())
	ctx := context.Background()

	for _, name := range []string{"c", "a", "b"} {
		if err := m.Load(ctx, testDefinition(name)); err != nil {
			t.Fatal(err)
		}
	}

	loaded := m.Loaded()
	if len(loaded) != 3 || loaded[0] != "c" || loaded[1] != "a" || loaded[2] != "b" {
		t.Errorf("Loaded() = %v, want [c a b]", loaded)
	}

	all := m.All()
	if len(all) != 3 || all[0].Name != "c" || all[2].Name != "b" {
		t.Errorf("All() order wrong: %v", names(all))
	}
}

func TestManagerNotifications(t *testing.T) {
	m := NewManager(registry.New())
	ctx := context.Background()

	var got []Notification
	unsub := m.Subscribe(func(n Notification) { got = append(got, n) })

	if err := m.Load(ctx, testDefinition("p")); err != nil {
		t.Fatal(err)
	}
	if err := m.Unload(ctx, "p"); err != nil {
		t.Fatal(err)
	}

	if len(got) != 2 {
		t.Fatalf("got %d notifications, want 2", len(got))
	}
	if got[0].Type != NotifyLoaded || got[0].Plugin != "p" {
		t.Errorf("first notification = %+v, want loaded p", got[0])
	}
	if got[1].Type != NotifyUnloaded {
		t.Errorf("second notification = %+v, want unloaded", got[1])
	}

	unsub()
	if err := m.Load(ctx, testDefinition("q")); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Error("handler still ran after unsubscribe")
	}
}

func TestManagerNotifyError(t *testing.T) {
	m := NewManager(registry.New())
	ctx := context.Background()

	var got []Notification
	m.Subscribe(func(n Notification) { got = append(got, n) })

	def := &Definition{
		Name:     "bad",
		Register: func(*Scope) error { return errors.New("boom") },
	}
	if err := m.Load(ctx, def); err == nil {
		t.Fatal("Load() succeeded, want error")
	}

	if len(got) != 1 || got[0].Type != NotifyError || got[0].Err == nil {
		t.Errorf("notifications = %+v, want one error notification", got)
	}
}

func TestManagerIndependentInstances(t *testing.T) {
	ctx := context.Background()
	m1 := NewManager(registry.New())
	m2 := NewManager(registry.New())

	if err := m1.Load(ctx, testDefinition("p")); err != nil {
		t.Fatal(err)
	}

	if m2.IsLoaded("p") {
		t.Error("plugin loaded in one manager is visible in another")
	}
}

func names(defs []*Definition) []string {
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.Name
	}
	return out
}
