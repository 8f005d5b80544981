package mcp

// White-box testing required: optString, optStrings, toolError and roundTwo
// are unexported helpers that decode tool arguments and shape tool results.

import (
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/go-ports/lazyvault/internal/models"
)

func request(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// ---------------------------------------------------------------------------
// optString / optStrings
// ---------------------------------------------------------------------------

func TestOptString_HappyPath(t *testing.T) {
	c := qt.New(t)

	req := request(map[string]any{"title": "Landfall", "empty": "", "num": 3.0})
	c.Assert(*optString(req, "title"), qt.Equals, "Landfall")
	c.Assert(*optString(req, "empty"), qt.Equals, "")
	c.Assert(optString(req, "num"), qt.IsNil)
	c.Assert(optString(req, "missing"), qt.IsNil)
}

func TestOptStrings_HappyPath(t *testing.T) {
	c := qt.New(t)

	cases := []struct {
		name string
		args map[string]any
		want *[]string
	}{
		{"absent key", map[string]any{}, nil},
		{"not an array", map[string]any{"ids": "a"}, nil},
		{"empty array clears", map[string]any{"ids": []any{}}, &[]string{}},
		{"non-string elements dropped", map[string]any{"ids": []any{"a", 1.0, "b"}}, &[]string{"a", "b"}},
	}

	for _, tc := range cases {
		c.Run(tc.name, func(c *qt.C) {
			c.Assert(optStrings(request(tc.args), "ids"), qt.DeepEquals, tc.want)
		})
	}
}

// ---------------------------------------------------------------------------
// toolError
// ---------------------------------------------------------------------------

func TestToolError_HappyPath(t *testing.T) {
	c := qt.New(t)

	cases := []struct {
		name   string
		err    error
		prefix string
	}{
		{"not found", models.NotFound("campaign", "x"), "not found: "},
		{"validation", models.Invalid("type", "is required"), "invalid request: "},
		{"other", errors.New("disk full"), "disk full"},
	}

	for _, tc := range cases {
		c.Run(tc.name, func(c *qt.C) {
			res := toolError(tc.err)
			c.Assert(res.IsError, qt.IsTrue)
			text, ok := mcp.AsTextContent(res.Content[0])
			c.Assert(ok, qt.IsTrue)
			c.Assert(text.Text, qt.Matches, tc.prefix+".*")
		})
	}
}

// ---------------------------------------------------------------------------
// roundTwo
// ---------------------------------------------------------------------------

func TestRoundTwo_HappyPath(t *testing.T) {
	c := qt.New(t)

	cases := []struct {
		name string
		in   float64
		want float64
	}{
		{"exact value unchanged", 1.25, 1.25},
		{"rounds down", 1.234, 1.23},
		{"rounds up", 1.235, 1.24},
		{"zero", 0.0, 0.0},
		{"whole number", 3.0, 3.0},
	}

	for _, tc := range cases {
		c.Run(tc.name, func(c *qt.C) {
			c.Assert(roundTwo(tc.in), qt.Equals, tc.want)
		})
	}
}
