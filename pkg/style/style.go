// Package style holds the visual parameters shared by every overlay: mark
// class, palette, opacity and line thickness.
package style

import (
	"fmt"
	"strings"

	"github.com/kittclouds/readmark/pkg/annotation"
)

// Style configures how annotations are painted.
type Style struct {
	// MarkClass is the class put on every HTML mark; kind-specific marks get
	// MarkClass + "-" + kind as well.
	MarkClass string
	// DefaultColor is used when an annotation has no color.
	DefaultColor string
	// Palette maps color names stored on annotations to hex values.
	Palette map[string]string
	// HighlightOpacity is the fill alpha of highlight rectangles.
	HighlightOpacity float64
	// LineThickness is the stroke width of underline and strikethrough, in
	// pixels at scale 1. Page overlays multiply it by the viewport scale.
	LineThickness float64
}

// Default returns the stock style.
func Default() Style {
	return Style{
		MarkClass:    "kb-highlight",
		DefaultColor: "#ffd54f",
		Palette: map[string]string{
			"yellow": "#ffd54f",
			"green":  "#aed581",
			"blue":   "#81d4fa",
			"pink":   "#f48fb1",
			"purple": "#ce93d8",
			"red":    "#e57373",
		},
		HighlightOpacity: 0.35,
		LineThickness:    2,
	}
}

// Color resolves an annotation's color to a CSS color value.
func (s Style) Color(a annotation.Annotation) string {
	c := strings.TrimSpace(a.Color)
	if c == "" {
		c = s.DefaultColor
	}
	if hex, ok := s.Palette[strings.ToLower(c)]; ok {
		return hex
	}
	return c
}

// Classes returns the class attribute of an HTML mark.
func (s Style) Classes(k annotation.Kind) string {
	if k == "" {
		k = annotation.KindHighlight
	}
	return s.MarkClass + " " + s.MarkClass + "-" + string(k)
}

// CSS returns the inline style of an HTML mark.
func (s Style) CSS(a annotation.Annotation) string {
	c := s.Color(a)
	switch a.Kind {
	case annotation.KindUnderline:
		return fmt.Sprintf("background-color: transparent; text-decoration: underline; text-decoration-color: %s; text-decoration-thickness: %gpx", c, s.LineThickness)
	case annotation.KindStrikethrough:
		return fmt.Sprintf("background-color: transparent; text-decoration: line-through; text-decoration-color: %s; text-decoration-thickness: %gpx", c, s.LineThickness)
	default:
		return fmt.Sprintf("background-color: %s", c)
	}
}
