// Package annotation holds the persisted annotation record and the helpers
// every resolver shares: kinds, creation, patching, paint ordering and apply
// reports.
package annotation

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kittclouds/readmark/pkg/locator"
)

var (
	// ErrLocatorRequired is returned when an annotation is created without a
	// usable locator.
	ErrLocatorRequired = errors.New("annotation requires a locator")
	// ErrUnknownKind is returned for a kind outside highlight, underline and
	// strikethrough.
	ErrUnknownKind = errors.New("unknown annotation kind")
)

// Kind selects the visual treatment of an annotation.
type Kind string

const (
	KindHighlight     Kind = "highlight"
	KindUnderline     Kind = "underline"
	KindStrikethrough Kind = "strikethrough"
)

// ParseKind maps a stored kind to a Kind. Empty defaults to highlight.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "", KindHighlight:
		return KindHighlight, nil
	case KindUnderline, KindStrikethrough:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Annotation is the persisted unit. ID, SourceID, Content, Locator and
// CreatedAt never change after creation.
type Annotation struct {
	ID        string          `json:"id"`
	SourceID  string          `json:"sourceId"`
	CardID    string          `json:"cardId,omitempty"`
	Content   string          `json:"content"`
	Kind      Kind            `json:"type"`
	Color     string          `json:"color,omitempty"`
	Note      string          `json:"note,omitempty"`
	Locator   locator.Locator `json:"locator"`
	CreatedAt int64           `json:"createdAt"` // unix millis
}

// Draft carries the caller-supplied fields of a new annotation.
type Draft struct {
	SourceID string
	CardID   string
	Content  string
	Kind     Kind
	Color    string
	Note     string
	Locator  locator.Locator
}

// New creates an annotation from a draft, assigning a time-ordered id and the
// creation time. The locator is attached in the same step, so there is never
// an annotation without one.
func New(d Draft) (*Annotation, error) {
	return NewAt(d, time.Now())
}

// NewAt is New with an explicit creation time.
func NewAt(d Draft, now time.Time) (*Annotation, error) {
	if d.SourceID == "" {
		return nil, errors.New("annotation: source id is required")
	}
	if d.Locator.Type == "" {
		return nil, ErrLocatorRequired
	}
	if err := d.Locator.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLocatorRequired, err)
	}
	kind, err := ParseKind(string(d.Kind))
	if err != nil {
		return nil, err
	}

	return &Annotation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		SourceID:  d.SourceID,
		CardID:    d.CardID,
		Content:   d.Content,
		Kind:      kind,
		Color:     d.Color,
		Note:      d.Note,
		Locator:   d.Locator,
		CreatedAt: now.UnixMilli(),
	}, nil
}

// Patch lists the mutable fields. Nil fields are left untouched.
type Patch struct {
	Color  *string `json:"color,omitempty"`
	Note   *string `json:"note,omitempty"`
	Kind   *Kind   `json:"type,omitempty"`
	CardID *string `json:"cardId,omitempty"`
}

// Apply returns a copy of a with the patch applied.
func (p Patch) Apply(a Annotation) (Annotation, error) {
	if p.Kind != nil {
		k, err := ParseKind(string(*p.Kind))
		if err != nil {
			return a, err
		}
		a.Kind = k
	}
	if p.Color != nil {
		a.Color = *p.Color
	}
	if p.Note != nil {
		a.Note = *p.Note
	}
	if p.CardID != nil {
		a.CardID = *p.CardID
	}
	return a, nil
}

// ============================================================================
// Ordering
// ============================================================================

// PaintOrder returns the annotations oldest first, the order in which
// overlay primitives are painted so later ones end up on top. Ties break on
// id so the result is stable across calls.
func PaintOrder(list []Annotation) []Annotation {
	out := append([]Annotation(nil), list...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// NewestFirst returns the annotations most recently created first.
func NewestFirst(list []Annotation) []Annotation {
	out := PaintOrder(list)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// OfType keeps the annotations whose locator has type t.
func OfType(list []Annotation, t locator.Type) []Annotation {
	var out []Annotation
	for _, a := range list {
		if a.Locator.Type == t {
			out = append(out, a)
		}
	}
	return out
}
