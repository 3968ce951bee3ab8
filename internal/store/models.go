// Package store provides annotation persistence for readmark.
// SQLiteStore backs the reader in production; MemStore backs tests and
// embedders without a database.
package store

import (
	"errors"

	"github.com/kittclouds/readmark/pkg/annotation"
	"github.com/kittclouds/readmark/pkg/locator"
)

// ErrExists is returned when creating an annotation whose id is taken.
var ErrExists = errors.New("store: annotation already exists")

// ErrNotFound is returned by updates on a missing id. Getters return nil, nil
// instead.
var ErrNotFound = errors.New("store: annotation not found")

// Storer defines the interface for annotation persistence.
// This allows swapping between MemStore (testing) and SQLiteStore (production).
type Storer interface {
	// Annotations - Basic CRUD
	CreateAnnotation(a *annotation.Annotation) error
	GetAnnotation(id string) (*annotation.Annotation, error)
	UpdateAnnotation(id string, p annotation.Patch) (*annotation.Annotation, error)
	DeleteAnnotation(id string) error

	// Annotations - Queries
	ListBySource(sourceID string) ([]*annotation.Annotation, error)
	ListAll() ([]*annotation.Annotation, error)
	ListByCard(cardID string) ([]*annotation.Annotation, error)
	ListForPage(sourceID string, page int) ([]*annotation.Annotation, error)
	DeleteBySource(sourceID string) (int, error)
	CountAnnotations() (int, error)

	// Lifecycle
	Close() error
}

// clone deep-copies an annotation so callers never share locator state with
// the store.
func clone(a *annotation.Annotation) *annotation.Annotation {
	c := *a
	c.Locator = cloneLocator(a.Locator)
	return &c
}

func cloneLocator(l locator.Locator) locator.Locator {
	if l.Cfi != nil {
		v := *l.Cfi
		l.Cfi = &v
	}
	if l.PageRect != nil {
		v := *l.PageRect
		v.Rects = append(v.Rects[:0:0], v.Rects...)
		l.PageRect = &v
	}
	if l.Structural != nil {
		v := *l.Structural
		l.Structural = &v
	}
	return l
}
