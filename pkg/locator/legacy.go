package locator

import (
	"encoding/json"
	"fmt"
	"unicode/utf16"

	"github.com/kittclouds/readmark/pkg/geometry"
)

// LegacyPosition is the position record written before locators carried a
// discriminant. Any subset of fields may be present.
type LegacyPosition struct {
	Page        *int                       `json:"page,omitempty"`
	Chapter     *string                    `json:"chapter,omitempty"`
	StartOffset *string                    `json:"startOffset,omitempty"`
	EndOffset   *string                    `json:"endOffset,omitempty"`
	Cfi         *string                    `json:"cfi,omitempty"`
	Rects       *[]geometry.FractionalRect `json:"rects,omitempty"`
	Selector    *string                    `json:"selector,omitempty"`
	TextOffset  *int                       `json:"textOffset,omitempty"`
}

// Decode reads a persisted locator. Records carrying locatorType go through
// the strict decoder; anything else is treated as a legacy position. content
// is the annotation's captured text, which legacy web positions relied on as
// their snippet.
func Decode(data []byte, content string) (Locator, error) {
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return Locator{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if h.Type != "" {
		var l Locator
		err := json.Unmarshal(data, &l)
		return l, err
	}

	var p LegacyPosition
	if err := json.Unmarshal(data, &p); err != nil {
		return Locator{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return DecodeLegacy(p, content)
}

// DecodeLegacy picks a variant by precedence: cfi, then rects with a page,
// then selector with a text offset. Superset records therefore resolve
// deterministically.
func DecodeLegacy(p LegacyPosition, content string) (Locator, error) {
	switch {
	case p.Cfi != nil && *p.Cfi != "":
		return NewCfi(*p.Cfi), nil

	case p.Rects != nil && p.Page != nil:
		return NewPageRect(*p.Page, *p.Rects), nil

	case p.Selector != nil && *p.Selector != "":
		off := 0
		if p.TextOffset != nil {
			off = *p.TextOffset
		}
		return NewStructural(StructuralLocator{
			AnchorPath: *p.Selector,
			Offset:     off,
			Length:     utf16Len(content),
			Snippet:    content,
		}), nil
	}
	return Locator{}, fmt.Errorf("%w: legacy position has no usable fields", ErrMalformed)
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
