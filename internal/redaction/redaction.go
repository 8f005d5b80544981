// Package redaction strips GM-private notes and stray credentials from vault
// text before it is placed in an assistant prompt.
package redaction

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
)

// credentialPatterns catch keys pasted into notes by accident. Generic
// "secret: ..." lines are not matched because secrets are campaign content.
var credentialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`),                // Google API keys
	regexp.MustCompile(`(?i)sk-[a-z0-9_-]{20,}`),               // OpenAI-style keys
	regexp.MustCompile(`ghp_[a-zA-Z0-9]+`),                     // GitHub PATs
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),                     // AWS access key IDs
	regexp.MustCompile(`xox[bp]-[a-zA-Z0-9-]+`),                // Slack tokens
	regexp.MustCompile(`-----BEGIN (?:RSA )?PRIVATE KEY-----`), // Private keys
	regexp.MustCompile(`(?i)api[_-]?key\s*[:=]\s*["']?\S+`),    // api_key = ...
	regexp.MustCompile(`(?i)password\s*[:=]\s*["']?\S+`),       // password = ...
}

// gmOnlyRe matches <gm-only>…</gm-only> pairs, across lines.
var gmOnlyRe = regexp.MustCompile(`(?s)<gm-only>.*?</gm-only>`)

// Placeholder replaces every redacted span.
const Placeholder = "[GM ONLY]"

// Redact runs text through three passes:
//
//  1. <gm-only>…</gm-only> blocks are replaced with Placeholder until none
//     remain, then orphaned tags are dropped.
//  2. Built-in credential patterns.
//  3. extra, usually loaded from the home's .vaultignore.
func Redact(text string, extra []*regexp.Regexp) string {
	for {
		next := gmOnlyRe.ReplaceAllString(text, Placeholder)
		if next == text {
			break
		}
		text = next
	}
	text = strings.ReplaceAll(text, "<gm-only>", "")
	text = strings.ReplaceAll(text, "</gm-only>", "")

	for _, re := range credentialPatterns {
		text = re.ReplaceAllString(text, Placeholder)
	}
	for _, re := range extra {
		text = re.ReplaceAllString(text, Placeholder)
	}
	return text
}

// RedactValue returns a copy of a decoded JSON value with Redact applied to
// every string inside it. Map keys are left alone.
func RedactValue(v any, extra []*regexp.Regexp) any {
	switch t := v.(type) {
	case string:
		return Redact(t, extra)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = RedactValue(val, extra)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = RedactValue(val, extra)
		}
		return out
	case []string:
		out := make([]string, len(t))
		for i, s := range t {
			out[i] = Redact(s, extra)
		}
		return out
	default:
		return v
	}
}

// LoadIgnore compiles each non-blank, non-comment line of a .vaultignore file
// as a regular expression. A missing file yields no patterns and no error.
func LoadIgnore(path string) ([]*regexp.Regexp, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []*regexp.Regexp
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		re, err := regexp.Compile(text)
		if err != nil {
			return nil, fmt.Errorf("LoadIgnore: %s:%d: %w", path, line, err)
		}
		patterns = append(patterns, re)
	}
	return patterns, scanner.Err()
}
