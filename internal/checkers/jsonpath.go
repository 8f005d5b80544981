// Package checkers provides quicktest checkers shared by the test suites.
package checkers

import (
	"encoding/json"
	"fmt"
	"reflect"

	qt "github.com/frankban/quicktest"
	"github.com/yalp/jsonpath"
)

// JSONPathEquals returns a checker asserting that the JSON document under
// test ([]byte, string or json.RawMessage) has want at the given JSONPath:
//
//	c.Assert(data, checkers.JSONPathEquals("$.status"), "reserve")
//
// Numbers are compared through their JSON encoding, so int wants match the
// float64 values produced by decoding.
func JSONPathEquals(path string) qt.Checker {
	return &jsonPathChecker{
		argNames: []string{"got", "want"},
		path:     path,
	}
}

type jsonPathChecker struct {
	argNames []string
	path     string
}

// ArgNames implements qt.Checker.
func (c *jsonPathChecker) ArgNames() []string { return c.argNames }

// Check implements qt.Checker.
func (c *jsonPathChecker) Check(got any, args []any, note func(key string, value any)) error {
	var raw []byte
	switch v := got.(type) {
	case []byte:
		raw = v
	case json.RawMessage:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return qt.BadCheckf("got must be []byte or string, not %T", got)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("cannot decode JSON: %w", err)
	}
	value, err := jsonpath.Read(doc, c.path)
	if err != nil {
		note("path", c.path)
		return fmt.Errorf("cannot read JSONPath: %w", err)
	}

	want := args[0]
	if reflect.DeepEqual(value, want) {
		return nil
	}
	gotJSON, err1 := json.Marshal(value)
	wantJSON, err2 := json.Marshal(want)
	if err1 == nil && err2 == nil && string(gotJSON) == string(wantJSON) {
		return nil
	}
	note("path", c.path)
	note("value", value)
	return fmt.Errorf("value at path does not match")
}
