package schema

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Patch sets a value at a JSON path in the document, creating
// intermediate objects as needed. Paths use gjson syntax, e.g.
// "children.0.props.title".
func Patch(doc []byte, path string, value any) ([]byte, error) {
	return sjson.SetBytes(doc, path, value)
}

// SetDefault sets a value at a JSON path only when the path is absent.
// Existing values, including explicit nulls, are left alone.
func SetDefault(doc []byte, path string, value any) ([]byte, error) {
	if gjson.GetBytes(doc, path).Exists() {
		return doc, nil
	}
	return sjson.SetBytes(doc, path, value)
}

// Delete removes the value at a JSON path. Deleting an absent path is a
// no-op.
func Delete(doc []byte, path string) ([]byte, error) {
	return sjson.DeleteBytes(doc, path)
}

// Query reads the value at a JSON path.
func Query(doc []byte, path string) gjson.Result {
	return gjson.GetBytes(doc, path)
}
