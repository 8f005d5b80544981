// Package shared holds the context and helpers passed to all CLI commands.
package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-ports/lazyvault/internal/config"
	"github.com/go-ports/lazyvault/internal/models"
	"github.com/go-ports/lazyvault/internal/service"
)

// Context carries global CLI state (flags set on the root command).
type Context struct {
	// Home overrides the vault home directory.
	// When empty, resolution falls through to LAZYVAULT_HOME env var → persisted config → ~/.lazyvault.
	Home string
}

// ResolveHome returns the effective vault home and where it came from.
func (c *Context) ResolveHome() (path, source string) {
	return config.ResolveHome(c.Home)
}

// Service opens the service on the effective vault home. Callers must Close it.
func (c *Context) Service() (*service.Service, error) {
	home, _ := c.ResolveHome()
	return service.New(home)
}

// CampaignFlag registers the --campaign flag shared by the campaign-scoped
// command groups.
func CampaignFlag(cmd *cobra.Command, target *string) {
	cmd.PersistentFlags().StringVarP(target, "campaign", "c", "", "Campaign ID (required)")
	_ = cmd.MarkPersistentFlagRequired("campaign")
}

// SplitCSV splits a comma-separated flag value, dropping blanks.
func SplitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ReadObject decodes a JSON object given inline or, when file is set, read
// from that file ("-" reads stdin).
func ReadObject(inline, file string, stdin io.Reader) (map[string]any, error) {
	if inline != "" && file != "" {
		return nil, fmt.Errorf("use either an inline JSON value or a file, not both")
	}
	data := []byte(inline)
	if file != "" {
		var err error
		if file == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(file)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %q: %w", file, err)
		}
	}
	if len(data) == 0 {
		return nil, nil
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("invalid JSON object: %w", err)
	}
	return obj, nil
}

// PrintJSON writes v as indented JSON.
func PrintJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// Describe renders err for the terminal: not-found and validation errors get
// a short prefix, everything else is shown as is.
func Describe(err error) string {
	var nf *models.NotFoundError
	var ve *models.ValidationError
	switch {
	case errors.As(err, &nf):
		return "Not found: " + nf.Error()
	case errors.As(err, &ve):
		return "Invalid input: " + ve.Error()
	default:
		return "Error: " + err.Error()
	}
}

// ExitCode maps err to the process exit status. Validation failures exit 2
// like other usage errors.
func ExitCode(err error) int {
	if errors.Is(err, models.ErrValidation) {
		return 2
	}
	return 1
}
