// Package luahost loads Schemaflow plugins written as Lua scripts.
//
// An on-disk plugin is either a directory with a plugin.json manifest and a
// main script, or a bare .lua file:
//
//	plugins/
//	├── charts/
//	│   ├── plugin.json    # manifest (name, version, dependencies, ...)
//	│   └── init.lua       # entry point
//	└── hello.lua          # single-file plugin, manifest synthesized
//
// The host turns each discovered plugin into a plugin.Definition. When the
// lifecycle manager loads it, the script runs in a restricted Lua state
// (safe standard libraries only, file and process access removed) with a
// "host" module bound to the plugin's scope:
//
//	host.register_component("grid", function(props, children)
//	    return "grid[" .. table.concat(children, ",") .. "]"
//	end)
//
//	host.set_state("count", 0)
//	local n = host.get_state("count")
//
//	host.on("refresh", function(payload) ... end)
//	host.emit("refresh", { source = "charts" })
//	host.on_global("announce", function(payload) ... end)
//
//	host.render("button", { label = "Go" }, {})
//
// A script's optional setup() and teardown() globals map onto the
// definition's OnLoad and OnUnload hooks.
package luahost
