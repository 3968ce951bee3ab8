package cfi

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/readmark/pkg/annotation"
	"github.com/kittclouds/readmark/pkg/capture"
	"github.com/kittclouds/readmark/pkg/locator"
	"github.com/kittclouds/readmark/pkg/style"
)

// fakeRenderer paints into a map and rejects tokens containing "bad".
type fakeRenderer struct {
	next    int
	marks   map[Handle]MarkSpec
	unmarks int
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{marks: make(map[Handle]MarkSpec)}
}

func (f *fakeRenderer) Mark(token string, spec MarkSpec) (Handle, error) {
	if strings.Contains(token, "bad") {
		return "", errors.New("cannot resolve cfi")
	}
	f.next++
	h := Handle(fmt.Sprintf("h%d", f.next))
	f.marks[h] = spec
	return h, nil
}

func (f *fakeRenderer) Unmark(h Handle) error {
	if _, ok := f.marks[h]; !ok {
		return errors.New("no such mark")
	}
	delete(f.marks, h)
	f.unmarks++
	return nil
}

func (f *fakeRenderer) Resolve(token string) (Target, error) {
	if strings.Contains(token, "bad") {
		return Target{}, errors.New("cannot resolve cfi")
	}
	sec, _ := f.SectionOf(token)
	return Target{Section: sec}, nil
}

// SectionOf treats the first path step as the section.
func (f *fakeRenderer) SectionOf(token string) (string, error) {
	inner := strings.TrimSuffix(strings.TrimPrefix(token, "epubcfi("), ")")
	sec, _, _ := strings.Cut(strings.TrimPrefix(inner, "/6/"), "!")
	return sec, nil
}

func cfiAnnotation(id string, at int64, token string) annotation.Annotation {
	return annotation.Annotation{ID: id, SourceID: "book", CreatedAt: at, Locator: locator.NewCfi(token)}
}

func TestEncode(t *testing.T) {
	sel, ok := capture.FromReflow("epubcfi(/6/4!/4/2,/1:0,/1:5)", "hello")
	require.True(t, ok)
	loc := Encode(sel)
	assert.Equal(t, locator.TypeCfi, loc.Type)
	assert.Equal(t, "epubcfi(/6/4!/4/2,/1:0,/1:5)", loc.Cfi.Range)
}

func TestApplyIsIdempotent(t *testing.T) {
	r := newFakeRenderer()
	ap := NewApplier(r, style.Default())
	list := []annotation.Annotation{
		cfiAnnotation("a", 1, "epubcfi(/6/4!/4/2,/1:0,/1:5)"),
		cfiAnnotation("b", 2, "epubcfi(/6/4!/4/6,/1:0,/1:9)"),
	}

	for range 3 {
		rep := ap.Apply("4", list)
		assert.ElementsMatch(t, []string{"a", "b"}, rep.Applied)
	}
	assert.Len(t, r.marks, 2)
	assert.Equal(t, 2, ap.Painted())
	assert.Zero(t, r.unmarks)
}

func TestApplyDiffs(t *testing.T) {
	r := newFakeRenderer()
	ap := NewApplier(r, style.Default())
	a := cfiAnnotation("a", 1, "epubcfi(/6/4!/4/2,/1:0,/1:5)")
	b := cfiAnnotation("b", 2, "epubcfi(/6/4!/4/6,/1:0,/1:9)")
	ap.Apply("", []annotation.Annotation{a, b})

	// Recolor a, drop b.
	a.Color = "green"
	ap.Apply("", []annotation.Annotation{a})
	require.Len(t, r.marks, 1)
	for _, spec := range r.marks {
		assert.Equal(t, "a", spec.AnnotationID)
		assert.Equal(t, "#aed581", spec.Color)
	}
	assert.Equal(t, 2, r.unmarks)
}

func TestApplySwallowsBadTokens(t *testing.T) {
	r := newFakeRenderer()
	ap := NewApplier(r, style.Default())
	rep := ap.Apply("", []annotation.Annotation{
		cfiAnnotation("ok1", 1, "epubcfi(/6/4!/4/2)"),
		cfiAnnotation("bad", 2, "epubcfi(/6/4!/bad)"),
		cfiAnnotation("empty", 3, ""),
		cfiAnnotation("ok2", 4, "epubcfi(/6/4!/4/8)"),
	})
	assert.Equal(t, []string{"ok1", "ok2"}, rep.Applied)
	require.Len(t, rep.Failed, 2)
	assert.ErrorIs(t, rep.Failed[0].Err, locator.ErrMalformed)
	assert.ErrorIs(t, rep.Failed[1].Err, locator.ErrUnresolvable)
	assert.Len(t, r.marks, 2)
}

func TestApplyFiltersBySection(t *testing.T) {
	r := newFakeRenderer()
	ap := NewApplier(r, style.Default())
	list := []annotation.Annotation{
		cfiAnnotation("ch2", 1, "epubcfi(/6/4!/4/2)"),
		cfiAnnotation("ch3", 2, "epubcfi(/6/6!/4/2)"),
	}
	rep := ap.Apply("6", list)
	assert.Equal(t, []string{"ch3"}, rep.Applied)

	// Turning the page to the next section removes the old marks.
	rep = ap.Apply("4", list)
	assert.Equal(t, []string{"ch2"}, rep.Applied)
	require.Len(t, r.marks, 1)
}

func TestClickReportsID(t *testing.T) {
	r := newFakeRenderer()
	ap := NewApplier(r, style.Default())
	var clicked []string
	ap.OnClick(func(id string) { clicked = append(clicked, id) })
	ap.Apply("", []annotation.Annotation{cfiAnnotation("a", 1, "epubcfi(/6/4!/4/2)")})

	for _, spec := range r.marks {
		spec.OnClick()
	}
	assert.Equal(t, []string{"a"}, clicked)
}

func TestRemoveAndForget(t *testing.T) {
	r := newFakeRenderer()
	ap := NewApplier(r, style.Default())
	list := []annotation.Annotation{cfiAnnotation("a", 1, "epubcfi(/6/4!/4/2)")}
	ap.Apply("", list)

	assert.True(t, ap.Remove("a"))
	assert.False(t, ap.Remove("a"))
	assert.Empty(t, r.marks)

	ap.Apply("", list)
	ap.Forget()
	assert.Zero(t, ap.Painted())
	ap.Apply("", list)
	assert.Len(t, r.marks, 2, "forgotten marks belong to the renderer")
}

func TestNavigate(t *testing.T) {
	r := newFakeRenderer()
	target, err := Navigate(r, locator.NewCfi("epubcfi(/6/8!/4/2)"))
	require.NoError(t, err)
	assert.Equal(t, "8", target.Section)

	_, err = Navigate(r, locator.NewCfi("epubcfi(/6/8!/bad)"))
	assert.ErrorIs(t, err, locator.ErrUnresolvable)

	_, err = Navigate(r, locator.NewPageRect(1, nil))
	assert.ErrorIs(t, err, locator.ErrMalformed)
}
