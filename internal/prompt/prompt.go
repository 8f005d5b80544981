// Package prompt turns an aggregated campaign context into the conversation
// primed for the assistant: a system turn carrying the context, the
// assistant's acknowledgement, then the GM's query.
package prompt

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-ports/lazyvault/internal/aggregate"
	"github.com/go-ports/lazyvault/internal/redaction"
)

// Role identifies the speaker of a Message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Acknowledgement is the assistant turn that follows the system prompt.
const Acknowledgement = "Understood. I'm ready to help as your lazy GM assistant. What do you need?"

// Message is one turn of the primed conversation.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Build returns the primed conversation for query. All vault text is passed
// through redaction with the extra patterns before it is embedded.
func Build(ctx *aggregate.Context, query string, extra []*regexp.Regexp) []Message {
	return []Message{
		{Role: RoleUser, Text: System(ctx, extra)},
		{Role: RoleModel, Text: Acknowledgement},
		{Role: RoleUser, Text: query},
	}
}

// System renders the system prompt for ctx.
func System(ctx *aggregate.Context, extra []*regexp.Regexp) string {
	var b strings.Builder

	b.WriteString("You are a game master's assistant following the 'Return of the Lazy Dungeon Master' method.\n")
	b.WriteString("Help the GM improvise narrative, connect plot threads and deepen the world without game mechanics, numbers or statistics.\n\n")

	b.WriteString("CAMPAIGN CONTEXT:\n")
	fmt.Fprintf(&b, "- Framework (world): %s\n", redaction.Redact(ctx.FrameworkText, extra))
	fmt.Fprintf(&b, "- Truths: %s\n", strings.Join(redaction.RedactValue(ctx.Truths, extra).([]string), "; "))
	fmt.Fprintf(&b, "- Fronts (threats): %s\n", encode(ctx.Fronts, extra))
	fmt.Fprintf(&b, "- Player characters: %s\n", encode(ctx.Characters, extra))

	if len(ctx.RollingMemory) > 0 {
		b.WriteString("\nRECENT SESSIONS:\n")
		for _, m := range ctx.RollingMemory {
			fmt.Fprintf(&b, "- Session %d (%s): %s\n", m.Number, m.Title, redaction.Redact(m.Summary, extra))
		}
	}

	if ctx.Mode == aggregate.ModeSession {
		b.WriteString("\nWE ARE IN AN ACTIVE SESSION.\n")
		fmt.Fprintf(&b, "Items in the current scene: %s\n", encode(ctx.ActiveItems, extra))
		fmt.Fprintf(&b, "Unrevealed secrets available: %s\n", encode(ctx.AvailableSecrets, extra))
		b.WriteString("\nSESSION INSTRUCTIONS:\n")
		b.WriteString("1. When asked what a character finds, look for an unrevealed secret you can connect.\n")
		b.WriteString("2. Tie discoveries to the desires and bonds of the player characters above.\n")
		b.WriteString("3. Prefer an existing secret or front over inventing something at random.\n")
		b.WriteString("4. Be concise and evocative.\n")
		return b.String()
	}

	b.WriteString("\nWE ARE IN PREP MODE (VAULT).\n")
	fmt.Fprintf(&b, "Items already in the vault: %s\n", encode(ctx.ExistingItemNames, extra))
	b.WriteString("\nPREP INSTRUCTIONS:\n")
	b.WriteString("1. Help create new elements (NPCs, locations, secrets) that fit the framework and the fronts.\n")
	b.WriteString("2. Keep new material consistent with what already exists.\n")
	return b.String()
}

// Render flattens messages into plain text, one labelled block per turn.
func Render(messages []Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "### %s\n%s\n", m.Role, strings.TrimRight(m.Text, "\n"))
	}
	return b.String()
}

// encode renders v as compact JSON with every string redacted.
func encode(v any, extra []*regexp.Regexp) string {
	// Round-trip through JSON so typed slices become []any/map[string]any.
	raw, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "[]"
	}
	if generic == nil {
		return "[]"
	}
	out, err := json.Marshal(redaction.RedactValue(generic, extra))
	if err != nil {
		return "[]"
	}
	return string(out)
}
