// Package dataset reads analytics batches from JSON files, the format the
// activity API returns them in.
package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/radiusdt/space-analytics/internal/models"
	"github.com/radiusdt/space-analytics/internal/storage"
)

// Seed is a complete multi-space dataset. Users and actions are keyed by
// space id.
type Seed struct {
	Spaces  []models.Space             `json:"spaces"`
	Users   map[string][]models.User   `json:"users"`
	Actions map[string][]models.Action `json:"actions"`
}

// Apply saves the seed into store.
func (s *Seed) Apply(store *storage.InMemoryStore) {
	store.SaveSpaces(s.Spaces...)
	for spaceID, users := range s.Users {
		store.SaveUsers(spaceID, users...)
	}
	for spaceID, actions := range s.Actions {
		store.SaveActions(spaceID, actions...)
	}
}

// ActionWriter persists the actions of a space.
type ActionWriter interface {
	SaveActions(ctx context.Context, spaceID string, actions []models.Action) error
}

// Writer persists a whole seed into a durable backend.
type Writer interface {
	ActionWriter
	SaveUsers(ctx context.Context, spaceID string, users []models.User) error
	SaveSpaces(ctx context.Context, spaces []models.Space) error
}

// Write saves spaces, users and actions into w, in that order.
func (s *Seed) Write(ctx context.Context, w Writer) error {
	if err := w.SaveSpaces(ctx, s.Spaces); err != nil {
		return err
	}
	for _, spaceID := range sortedKeys(s.Users) {
		if err := w.SaveUsers(ctx, spaceID, s.Users[spaceID]); err != nil {
			return err
		}
	}
	return s.WriteActions(ctx, w)
}

// WriteActions saves only the actions into w.
func (s *Seed) WriteActions(ctx context.Context, w ActionWriter) error {
	for _, spaceID := range sortedKeys(s.Actions) {
		if err := w.SaveActions(ctx, spaceID, s.Actions[spaceID]); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LoadSeed reads a Seed document.
func LoadSeed(path string) (*Seed, error) {
	var s Seed
	if err := readJSON(path, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadActions reads a JSON array of actions.
func LoadActions(path string) ([]models.Action, error) {
	var actions []models.Action
	if err := readJSON(path, &actions); err != nil {
		return nil, err
	}
	return actions, nil
}

// LoadUsers reads a JSON array of users.
func LoadUsers(path string) ([]models.User, error) {
	var users []models.User
	if err := readJSON(path, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// LoadSpaces reads a JSON array of spaces.
func LoadSpaces(path string) ([]models.Space, error) {
	var spaces []models.Space
	if err := readJSON(path, &spaces); err != nil {
		return nil, err
	}
	return spaces, nil
}

func readJSON(path string, dst any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}
