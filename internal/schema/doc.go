// Package schema interprets JSON UI documents against a component
// registry.
//
// A document is a tree of nodes. Each node names a component type,
// carries optional properties, and lists its children:
//
//	{
//	  "type": "stack",
//	  "props": {"gap": 2},
//	  "children": [
//	    {"type": "text", "props": {"value": "Hello"}},
//	    {"type": "charts:grid", "props": {"title": "Sales"}}
//	  ]
//	}
//
// The interpreter walks the tree depth first, rendering children before
// their parent, and resolves each type through the registry. A type of
// the form "namespace:type" is looked up under that namespace with
// fallback to the bare type, so documents can address plugin components
// directly while base components keep working.
//
// Patch and SetDefault modify documents in place by JSON path, which is
// how hosts apply overrides before interpretation.
package schema
