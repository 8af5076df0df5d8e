package storage

import (
	"context"
	"sync"

	"github.com/radiusdt/space-analytics/internal/models"
)

// InMemoryStore implements ActionStore, UserStore and SpaceStore in memory.
// Lists return copies; callers may modify them freely.
type InMemoryStore struct {
	mu      sync.RWMutex
	actions map[string][]models.Action
	users   map[string][]models.User
	spaces  map[string]models.Space
	order   []string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		actions: make(map[string][]models.Action),
		users:   make(map[string][]models.User),
		spaces:  make(map[string]models.Space),
	}
}

// SaveActions appends actions to a space.
func (s *InMemoryStore) SaveActions(spaceID string, actions ...models.Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions[spaceID] = append(s.actions[spaceID], actions...)
}

// SaveUsers appends users to a space.
func (s *InMemoryStore) SaveUsers(spaceID string, users ...models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[spaceID] = append(s.users[spaceID], users...)
}

// SaveSpaces upserts spaces. Insertion order is kept for listing.
func (s *InMemoryStore) SaveSpaces(spaces ...models.Space) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sp := range spaces {
		if _, ok := s.spaces[sp.ID]; !ok {
			s.order = append(s.order, sp.ID)
		}
		s.spaces[sp.ID] = sp
	}
}

func (s *InMemoryStore) ListActions(ctx context.Context, spaceID string) ([]models.Action, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]models.Action, len(s.actions[spaceID]))
	copy(res, s.actions[spaceID])
	return res, nil
}

func (s *InMemoryStore) ListUsers(ctx context.Context, spaceID string) ([]models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]models.User, len(s.users[spaceID]))
	copy(res, s.users[spaceID])
	return res, nil
}

func (s *InMemoryStore) ListSpaces(ctx context.Context, spaceID string) ([]models.Space, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	root, ok := s.spaces[spaceID]
	if !ok {
		return nil, ErrSpaceNotFound
	}
	// Walk up; a dangling parent makes the highest known ancestor the root.
	for seen := map[string]bool{root.ID: true}; root.ParentID != nil; {
		parent, ok := s.spaces[*root.ParentID]
		if !ok || seen[parent.ID] {
			break
		}
		seen[parent.ID] = true
		root = parent
	}

	inTree := map[string]bool{root.ID: true}
	for grew := true; grew; {
		grew = false
		for _, id := range s.order {
			sp := s.spaces[id]
			if !inTree[id] && sp.ParentID != nil && inTree[*sp.ParentID] {
				inTree[id] = true
				grew = true
			}
		}
	}

	res := make([]models.Space, 0, len(inTree))
	for _, id := range s.order {
		if inTree[id] {
			res = append(res, s.spaces[id])
		}
	}
	return res, nil
}
