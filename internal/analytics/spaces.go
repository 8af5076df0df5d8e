package analytics

import (
	"errors"

	"github.com/radiusdt/space-analytics/internal/models"
)

// ErrNoRootSpace is returned when no space in a tree lacks a parent.
var ErrNoRootSpace = errors.New("no root space")

// MainSpace returns the first space without a parent.
func MainSpace(spaces []models.Space) (models.Space, error) {
	for _, s := range spaces {
		if s.IsRoot() {
			return s, nil
		}
	}
	return models.Space{}, ErrNoRootSpace
}

// MainSpaceChildren returns the immediate children of the main space, input order.
func MainSpaceChildren(spaces []models.Space) ([]models.Space, error) {
	root, err := MainSpace(spaces)
	if err != nil {
		return nil, err
	}
	out := []models.Space{}
	for _, s := range spaces {
		if s.ParentID != nil && *s.ParentID == root.ID {
			out = append(out, s)
		}
	}
	return out, nil
}
