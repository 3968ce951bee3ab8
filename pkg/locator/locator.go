// Package locator defines the persisted, renderer-independent description of
// where an annotation lives inside a document.
//
// A Locator is a closed tagged union over three variants. On the wire the
// variant is named by an explicit "locatorType" field; shape sniffing is only
// used by DecodeLegacy for records written before the discriminant existed.
package locator

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kittclouds/readmark/pkg/geometry"
)

// Type is the locator discriminant.
type Type string

const (
	TypeCfi        Type = "cfi"
	TypePageRect   Type = "pageRect"
	TypeStructural Type = "structural"
)

var (
	// ErrMalformed marks a locator whose fields are missing or out of range.
	ErrMalformed = errors.New("malformed locator")
	// ErrUnresolvable marks a well-formed locator that no longer matches the
	// rendered content.
	ErrUnresolvable = errors.New("unresolvable locator")
	// ErrUnknownType marks a discriminant outside the closed set.
	ErrUnknownType = errors.New("unknown locator type")
)

// CfiLocator addresses a range in reflowable content with a token owned by
// the reflow renderer. The token is opaque here.
type CfiLocator struct {
	Range string `json:"range"`
}

// PageRectLocator addresses a region of a fixed-layout page. Rects are
// fractions of the unscaled, unrotated page.
type PageRectLocator struct {
	Page  int                       `json:"page"`
	Rects []geometry.FractionalRect `json:"rects"`
}

// StructuralLocator addresses text in arbitrary HTML. It has either a single
// anchor (AnchorPath, Offset, Length) or two anchors (StartPath/StartOffset,
// EndPath/EndOffset). Offsets count UTF-16 code units of the anchor
// element's text content.
type StructuralLocator struct {
	AnchorPath string
	Offset     int
	Length     int

	StartPath   string
	StartOffset int
	EndPath     string
	EndOffset   int

	Snippet string
}

// Dual reports whether the locator uses start/end anchors.
func (s *StructuralLocator) Dual() bool { return s.AnchorPath == "" && s.StartPath != "" }

// Locator is the tagged union. Exactly the field matching Type is set.
type Locator struct {
	Type       Type
	Cfi        *CfiLocator
	PageRect   *PageRectLocator
	Structural *StructuralLocator
}

// NewCfi builds a CFI locator.
func NewCfi(rangeToken string) Locator {
	return Locator{Type: TypeCfi, Cfi: &CfiLocator{Range: rangeToken}}
}

// NewPageRect builds a page+rect locator.
func NewPageRect(page int, rects []geometry.FractionalRect) Locator {
	return Locator{Type: TypePageRect, PageRect: &PageRectLocator{Page: page, Rects: rects}}
}

// NewStructural builds a structural locator.
func NewStructural(s StructuralLocator) Locator {
	return Locator{Type: TypeStructural, Structural: &s}
}

// PageNumber returns the page of a page+rect locator, or 0.
func (l Locator) PageNumber() int {
	if l.Type == TypePageRect && l.PageRect != nil {
		return l.PageRect.Page
	}
	return 0
}

// Validate checks the fields of the active variant. It does not check
// individual fractional rects; resolvers validate those one at a time so a
// single bad rect only drops itself.
func (l Locator) Validate() error {
	switch l.Type {
	case TypeCfi:
		if l.Cfi == nil || l.Cfi.Range == "" {
			return fmt.Errorf("%w: cfi: empty range", ErrMalformed)
		}
	case TypePageRect:
		if l.PageRect == nil {
			return fmt.Errorf("%w: pageRect: missing body", ErrMalformed)
		}
		if l.PageRect.Page < 1 {
			return fmt.Errorf("%w: pageRect: page %d", ErrMalformed, l.PageRect.Page)
		}
		if len(l.PageRect.Rects) == 0 {
			return fmt.Errorf("%w: pageRect: no rects", ErrMalformed)
		}
	case TypeStructural:
		return l.Structural.validate()
	case "":
		return fmt.Errorf("%w: missing locatorType", ErrMalformed)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, l.Type)
	}
	return nil
}

func (s *StructuralLocator) validate() error {
	if s == nil {
		return fmt.Errorf("%w: structural: missing body", ErrMalformed)
	}
	if s.Snippet == "" {
		return fmt.Errorf("%w: structural: empty snippet", ErrMalformed)
	}
	if s.Dual() {
		if s.EndPath == "" || s.StartOffset < 0 || s.EndOffset < 0 {
			return fmt.Errorf("%w: structural: bad range anchors", ErrMalformed)
		}
		return nil
	}
	if s.AnchorPath == "" {
		return fmt.Errorf("%w: structural: no anchor path", ErrMalformed)
	}
	if s.Offset < 0 || s.Length <= 0 {
		return fmt.Errorf("%w: structural: offset %d length %d", ErrMalformed, s.Offset, s.Length)
	}
	return nil
}

// ============================================================================
// JSON
// ============================================================================

type header struct {
	Type Type `json:"locatorType"`
}

type cfiWire struct {
	Type  Type   `json:"locatorType"`
	Range string `json:"range"`
}

type pageRectWire struct {
	Type  Type                      `json:"locatorType"`
	Page  int                       `json:"page"`
	Rects []geometry.FractionalRect `json:"rects"`
}

type singleWire struct {
	Type       Type   `json:"locatorType"`
	AnchorPath string `json:"anchorPath"`
	Offset     int    `json:"offset"`
	Length     int    `json:"length"`
	Snippet    string `json:"snippet"`
}

type dualWire struct {
	Type        Type   `json:"locatorType"`
	StartPath   string `json:"startPath"`
	StartOffset int    `json:"startOffset"`
	EndPath     string `json:"endPath"`
	EndOffset   int    `json:"endOffset"`
	Snippet     string `json:"snippet"`
}

// structuralWire accepts either structural shape on decode.
type structuralWire struct {
	AnchorPath  string `json:"anchorPath"`
	Offset      int    `json:"offset"`
	Length      int    `json:"length"`
	StartPath   string `json:"startPath"`
	StartOffset int    `json:"startOffset"`
	EndPath     string `json:"endPath"`
	EndOffset   int    `json:"endOffset"`
	Snippet     string `json:"snippet"`
}

// MarshalJSON writes the active variant flattened next to its discriminant.
func (l Locator) MarshalJSON() ([]byte, error) {
	switch l.Type {
	case TypeCfi:
		if l.Cfi == nil {
			return nil, fmt.Errorf("%w: cfi: missing body", ErrMalformed)
		}
		return json.Marshal(cfiWire{Type: l.Type, Range: l.Cfi.Range})
	case TypePageRect:
		if l.PageRect == nil {
			return nil, fmt.Errorf("%w: pageRect: missing body", ErrMalformed)
		}
		rects := l.PageRect.Rects
		if rects == nil {
			rects = []geometry.FractionalRect{}
		}
		return json.Marshal(pageRectWire{Type: l.Type, Page: l.PageRect.Page, Rects: rects})
	case TypeStructural:
		s := l.Structural
		if s == nil {
			return nil, fmt.Errorf("%w: structural: missing body", ErrMalformed)
		}
		if s.Dual() {
			return json.Marshal(dualWire{
				Type: l.Type, StartPath: s.StartPath, StartOffset: s.StartOffset,
				EndPath: s.EndPath, EndOffset: s.EndOffset, Snippet: s.Snippet,
			})
		}
		return json.Marshal(singleWire{
			Type: l.Type, AnchorPath: s.AnchorPath, Offset: s.Offset, Length: s.Length, Snippet: s.Snippet,
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, l.Type)
	}
}

// UnmarshalJSON decodes by exhaustive match on locatorType. A record without
// the discriminant is rejected; use DecodeLegacy for those.
func (l *Locator) UnmarshalJSON(data []byte) error {
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	switch h.Type {
	case TypeCfi:
		var w cfiWire
		if err := json.Unmarshal(data, &w); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		*l = NewCfi(w.Range)
	case TypePageRect:
		var w pageRectWire
		if err := json.Unmarshal(data, &w); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		*l = NewPageRect(w.Page, w.Rects)
	case TypeStructural:
		var w structuralWire
		if err := json.Unmarshal(data, &w); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		*l = NewStructural(StructuralLocator(w))
	case "":
		return fmt.Errorf("%w: missing locatorType", ErrMalformed)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, h.Type)
	}
	return nil
}
