// Package main is the entry point for the Schemaflow interpreter.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/schemaflow/schemaflow/internal/plugin"
	"github.com/schemaflow/schemaflow/internal/plugin/luahost"
	"github.com/schemaflow/schemaflow/internal/registry"
	"github.com/schemaflow/schemaflow/internal/schema"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type options struct {
	pluginPaths stringList
	namespace   string
	listOnly    bool
	verbose     bool
	files       []string
}

// stringList collects repeated -plugins flags.
type stringList []string

func (s *stringList) String() string { return fmt.Sprint([]string(*s)) }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()
	ctx := context.Background()

	reg := registry.New(registry.WithWarnFunc(func(msg string) {
		if opts.verbose {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", msg)
		}
	}))
	if err := schema.RegisterDefaults(reg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to register builtins: %v\n", err)
		return 1
	}

	mgr := plugin.NewManager(reg)
	if opts.verbose {
		mgr.Subscribe(func(n plugin.Notification) {
			if n.Err != nil {
				fmt.Fprintf(os.Stderr, "plugin %s: %s: %v\n", n.Plugin, n.Type, n.Err)
				return
			}
			fmt.Fprintf(os.Stderr, "plugin %s: %s\n", n.Plugin, n.Type)
		})
	}

	// Ensure plugin runtimes close on all exit paths.
	defer func() {
		if err := mgr.UnloadAll(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: unload: %v\n", err)
		}
	}()

	if err := loadPlugins(ctx, mgr, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if opts.listOnly {
		for _, key := range reg.List() {
			fmt.Println(key)
		}
		return 0
	}

	it := schema.NewInterpreter(reg, schema.WithNamespace(opts.namespace))
	for _, file := range opts.files {
		doc, err := os.ReadFile(file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		out, err := it.Render(doc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", file, err)
			return 1
		}
		fmt.Println(out)
	}

	return 0
}

// loadPlugins discovers plugins on the search paths and loads them in
// dependency order. Plugins whose dependencies have not loaded yet are
// retried after the rest, so discovery order does not matter.
func loadPlugins(ctx context.Context, mgr *plugin.Manager, opts options) error {
	if len(opts.pluginPaths) == 0 {
		return nil
	}

	loader := luahost.NewLoader(luahost.WithPaths(opts.pluginPaths...))
	infos, err := loader.Discover()
	if err != nil {
		return err
	}

	pending := make([]*luahost.Info, 0, len(infos))
	for _, info := range infos {
		if info.Err != nil {
			fmt.Fprintf(os.Stderr, "Warning: skipping %s: %v\n", info.Path, info.Err)
			continue
		}
		pending = append(pending, info)
	}

	for len(pending) > 0 {
		var deferred []*luahost.Info
		progress := false

		for _, info := range pending {
			host, err := luahost.NewHost(info.Manifest)
			if err != nil {
				return fmt.Errorf("plugin %q: %w", info.Name, err)
			}
			err = mgr.Load(ctx, host.Definition())
			if errors.Is(err, plugin.ErrDependencyNotFound) {
				deferred = append(deferred, info)
				continue
			}
			if err != nil {
				return fmt.Errorf("plugin %q: %w", info.Name, err)
			}
			progress = true
		}

		if !progress {
			names := make([]string, 0, len(deferred))
			for _, info := range deferred {
				names = append(names, info.Name)
			}
			return fmt.Errorf("unresolvable plugin dependencies: %v", names)
		}
		pending = deferred
	}

	return nil
}

func parseFlags() options {
	var opts options
	var showVersion bool
	var showHelp bool

	flag.Var(&opts.pluginPaths, "plugins", "Plugin search path (repeatable)")
	flag.Var(&opts.pluginPaths, "p", "Plugin search path (shorthand)")
	flag.StringVar(&opts.namespace, "namespace", "", "Default namespace for component lookup")
	flag.StringVar(&opts.namespace, "n", "", "Default namespace for component lookup (shorthand)")
	flag.BoolVar(&opts.listOnly, "list", false, "List registered components and exit")
	flag.BoolVar(&opts.verbose, "verbose", false, "Log plugin lifecycle to stderr")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Schemaflow - schema-driven UI interpreter\n\n")
		fmt.Fprintf(os.Stderr, "Usage: schemaflow [options] [schema.json...]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  schemaflow ui.json                  Render a schema document\n")
		fmt.Fprintf(os.Stderr, "  schemaflow -p ./plugins ui.json     Render with plugins loaded\n")
		fmt.Fprintf(os.Stderr, "  schemaflow -p ./plugins -list       Show registered components\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("Schemaflow %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	opts.files = flag.Args()

	if !opts.listOnly && len(opts.files) == 0 {
		fmt.Fprintf(os.Stderr, "Error: no schema document given\n")
		flag.Usage()
		os.Exit(1)
	}

	// Absolute search paths make diagnostics clearer.
	for i, p := range opts.pluginPaths {
		if abs, err := filepath.Abs(p); err == nil {
			opts.pluginPaths[i] = abs
		}
	}

	return opts
}
