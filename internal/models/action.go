package models

import (
	"errors"
	"fmt"
)

// ===========================================
// VIEW MODE
// ===========================================

// ViewMode selects which timestamp, user and location fields of an Action are
// authoritative.
type ViewMode string

const (
	// ViewCompose reads published / actorUser / context.location.
	ViewCompose ViewMode = "compose"
	// ViewPerform reads createdAt / user / geolocation.
	ViewPerform ViewMode = "perform"
)

// ErrInvalidViewMode is returned when a view mode string is neither compose nor perform.
var ErrInvalidViewMode = errors.New("invalid view mode")

// ParseViewMode converts a raw string to a ViewMode. An empty string defaults to perform.
func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(s) {
	case ViewCompose:
		return ViewCompose, nil
	case ViewPerform, "":
		return ViewPerform, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidViewMode, s)
	}
}

// ===========================================
// ACTION
// ===========================================

// Action is a single activity record as delivered by the analytics API.
// Timestamps are kept as raw ISO8601 strings: bucketing works on their literal
// prefix, never on a timezone-normalized value.
type Action struct {
	ID        string `json:"_id" bson:"_id"`
	Verb      string `json:"verb" bson:"verb"`
	CreatedAt string `json:"createdAt" bson:"createdAt"`
	Published string `json:"published,omitempty" bson:"published,omitempty"`
	User      string `json:"user" bson:"user"`
	ActorUser string `json:"actorUser,omitempty" bson:"actorUser,omitempty"`
	IP        string `json:"ip,omitempty" bson:"ip,omitempty"`

	Geolocation *Geolocation   `json:"geolocation,omitempty" bson:"geolocation,omitempty"`
	Context     *ActionContext `json:"context,omitempty" bson:"context,omitempty"`
	Target      *Target        `json:"target,omitempty" bson:"target,omitempty"`
}

// Geolocation is the perform-mode location shape: LL holds [lat, lon].
type Geolocation struct {
	LL [2]float64 `json:"ll" bson:"ll"`
}

// ActionContext carries compose-mode metadata.
type ActionContext struct {
	Location *Location `json:"location,omitempty" bson:"location,omitempty"`
}

// Location is the compose-mode location shape.
type Location struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lon float64 `json:"lon" bson:"lon"`
}

// Target is the item an action was performed on.
type Target struct {
	DisplayName string `json:"displayName" bson:"displayName"`
	ObjectType  string `json:"objectType" bson:"objectType"`
}

// Timestamp returns the timestamp field that is authoritative for the view mode.
func (a *Action) Timestamp(mode ViewMode) string {
	if mode == ViewCompose {
		return a.Published
	}
	return a.CreatedAt
}

// TimestampField names the field Timestamp reads, for diagnostics.
func TimestampField(mode ViewMode) string {
	if mode == ViewCompose {
		return "published"
	}
	return "createdAt"
}

// UserID returns the user id that is authoritative for the view mode.
func (a *Action) UserID(mode ViewMode) string {
	if mode == ViewCompose {
		return a.ActorUser
	}
	return a.User
}
