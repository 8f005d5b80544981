// Package models defines the core data types for the campaign vault.
package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// ItemStatus is the lifecycle state of a vault item.
type ItemStatus string

const (
	// StatusReserve marks an item that is unused and available for linking.
	StatusReserve ItemStatus = "reserve"
	// StatusActive marks an item linked into the session being edited.
	StatusActive ItemStatus = "active"
	// StatusArchived marks an item retired from automatic reconciliation.
	// Only an explicit status update or a session finalize moves an item here.
	StatusArchived ItemStatus = "archived"
)

// ValidItemStatuses lists the accepted vault item status values.
var ValidItemStatuses = []ItemStatus{StatusReserve, StatusActive, StatusArchived}

// Valid reports whether s is one of ValidItemStatuses.
func (s ItemStatus) Valid() bool { return slices.Contains(ValidItemStatuses, s) }

// SessionStatus is the play state of a session.
type SessionStatus string

const (
	SessionPlanned   SessionStatus = "planned"
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

// ValidSessionStatuses lists the accepted session status values.
var ValidSessionStatuses = []SessionStatus{SessionPlanned, SessionActive, SessionCompleted}

// Valid reports whether s is one of ValidSessionStatuses.
func (s SessionStatus) Valid() bool { return slices.Contains(ValidSessionStatuses, s) }

// Well-known vault item types. Type is an open string: any non-empty value is
// accepted and these are only the ones the context builder looks for.
const (
	TypeCharacter = "character"
	TypeSecret    = "secret"
	TypeScene     = "scene"
	TypeNPC       = "npc"
	TypeLocation  = "location"
)

// Front is a freeform ongoing-threat record (name, goal, grim portents, ...).
// It is stored and returned verbatim.
type Front map[string]any

// Campaign is the per-campaign metadata document.
type Campaign struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	ElevatorPitch    string   `json:"elevator_pitch"`
	Moods            string   `json:"moods"`
	SafetyTools      string   `json:"safety_tools"`
	Truths           []string `json:"truths"`
	Fronts           []Front  `json:"fronts"`
	Framework        string   `json:"framework"`
	FrameworkSummary string   `json:"framework_summary"`
	UseFullFramework bool     `json:"use_full_framework"`
	ActiveSession    *string  `json:"active_session"`
}

// CampaignInput is the caller-supplied data for a new campaign.
type CampaignInput struct {
	Title            string
	ElevatorPitch    string
	Moods            string
	SafetyTools      string
	Truths           []string
	Fronts           []Front
	Framework        string
	FrameworkSummary string
}

// CampaignPatch carries the fields of a campaign update. Nil fields are left
// untouched. ActiveSession set to a pointer to "" clears the pointer.
type CampaignPatch struct {
	Title            *string
	ElevatorPitch    *string
	Moods            *string
	SafetyTools      *string
	Truths           *[]string
	Fronts           *[]Front
	Framework        *string
	FrameworkSummary *string
	UseFullFramework *bool
	ActiveSession    *string
}

// VaultItem is a reusable narrative element.
type VaultItem struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Status     ItemStatus     `json:"status"`
	UsageCount int            `json:"usage_count"`
	Tags       []string       `json:"tags"`
	Content    map[string]any `json:"content"`
}

// Name returns content.name, falling back to content.title. ok is false when
// neither is a non-empty string.
func (it *VaultItem) Name() (name string, ok bool) {
	for _, key := range []string{"name", "title"} {
		if s, isStr := it.Content[key].(string); isStr && s != "" {
			return s, true
		}
	}
	return "", false
}

// ItemPatch carries the fields of a vault item update. Nil fields are left
// untouched.
type ItemPatch struct {
	Status     *ItemStatus
	Tags       *[]string
	Content    *map[string]any
	UsageCount *int
}

// Session is a single play session.
type Session struct {
	ID             string        `json:"id"`
	Number         int           `json:"number"`
	Title          string        `json:"title"`
	Date           string        `json:"date"`
	StrongStart    string        `json:"strong_start"`
	Recap          string        `json:"recap"`
	Summary        string        `json:"summary"`
	Notes          string        `json:"notes"`
	Status         SessionStatus `json:"status"`
	LinkedItems    []string      `json:"linked_items"`
	UsedItems      []string      `json:"used_items"`
	FrontsSnapshot []Front       `json:"fronts_snapshot"`
}

// SessionSeed holds the optional fields a caller may seed a new session with.
type SessionSeed struct {
	Title       string
	StrongStart string
	Recap       string
	Notes       string
}

// SessionPatch carries the fields of a session update. Nil fields are left
// untouched.
type SessionPatch struct {
	Title       *string
	StrongStart *string
	Recap       *string
	Summary     *string
	Notes       *string
	LinkedItems *[]string
	Status      *SessionStatus
	UsedItems   *[]string
}

// FinalizeInput is the caller-supplied data for closing a session.
type FinalizeInput struct {
	// Used lists additional items consumed or revealed during play; they are
	// merged into the session's used_items before archival.
	Used []string
	// Summary, when non-nil, replaces the session summary.
	Summary *string
}

// FinalizeResult is returned from a session finalize.
type FinalizeResult struct {
	Session  *Session
	Archived []string
	Released []string
}

// NewID returns a fresh opaque record identifier.
func NewID() string {
	return uuid.NewString()
}

// Now returns the creation timestamp format used for session dates.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Ptr returns a pointer to v. Handy for building patches.
func Ptr[T any](v T) *T { return &v }

// Unique returns ss with duplicates and empty strings removed, keeping the
// first occurrence order. A nil input yields an empty, non-nil slice.
func Unique(ss []string) []string {
	out := make([]string, 0, len(ss))
	seen := make(map[string]struct{}, len(ss))
	for _, s := range ss {
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
