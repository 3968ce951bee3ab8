package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kittclouds/readmark/pkg/annotation"
	"github.com/kittclouds/readmark/pkg/capture"
	"github.com/kittclouds/readmark/pkg/export"
	"github.com/kittclouds/readmark/pkg/geometry"
	"github.com/kittclouds/readmark/pkg/overlay"
	"github.com/kittclouds/readmark/pkg/pagerect"
	"github.com/kittclouds/readmark/pkg/structural"
)

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func requireSource(source string) error {
	if source == "" {
		return fmt.Errorf("%w: -source is required", errUsage)
	}
	return nil
}

func list(e *env, source string) ([]annotation.Annotation, error) {
	ptrs, err := e.store.ListBySource(source)
	if err != nil {
		return nil, err
	}
	out := make([]annotation.Annotation, len(ptrs))
	for i, a := range ptrs {
		out[i] = *a
	}
	return out, nil
}

func printReport(w io.Writer, rep annotation.Report) {
	for _, f := range rep.Failed {
		fmt.Fprintf(w, "skipped %s: %v\n", f.ID, f.Err)
	}
}

// =============================================================================
// Web snapshots
// =============================================================================

func runImport(e *env, args []string, stdout io.Writer) error {
	fs := newFlags("import")
	source := fs.String("source", "", "source id")
	file := fs.String("file", "", "HTML file to import (- for stdin)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if err := requireSource(*source); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if *file == "" || *file == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(*file)
	}
	if err != nil {
		return err
	}
	clean, err := e.snapshots.Save(*source, string(data))
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "imported %s (%d bytes)\n", *source, len(clean))
	return nil
}

func runAnnotate(e *env, args []string, stdout io.Writer) error {
	fs := newFlags("annotate")
	source := fs.String("source", "", "source id")
	start := fs.Int("start", 0, "selection start (UTF-16 offset into the page text)")
	end := fs.Int("end", 0, "selection end (exclusive)")
	kind := fs.String("kind", "", "highlight, underline or strikethrough")
	color := fs.String("color", "", "palette name or hex color")
	note := fs.String("note", "", "note text")
	card := fs.String("card", "", "linked card id")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if err := requireSource(*source); err != nil {
		return err
	}

	page, err := e.snapshot(*source)
	if err != nil {
		return err
	}
	_, root, err := structural.ParseDocument(strings.NewReader(page))
	if err != nil {
		return err
	}
	sel, ok := capture.FromTextOffsets(root, *start, *end)
	if !ok {
		return fmt.Errorf("selection %d..%d is empty", *start, *end)
	}
	loc, err := structural.Encode(sel, e.cfg.Structural.SnippetMaxLen)
	if err != nil {
		return err
	}
	k, err := annotation.ParseKind(*kind)
	if err != nil {
		return err
	}
	a, err := annotation.New(annotation.Draft{
		SourceID: *source,
		CardID:   *card,
		Content:  sel.Text,
		Kind:     k,
		Color:    *color,
		Note:     *note,
		Locator:  loc,
	})
	if err != nil {
		return err
	}
	if err := e.store.CreateAnnotation(a); err != nil {
		return err
	}
	fmt.Fprintln(stdout, a.ID)
	return nil
}

func runApply(e *env, args []string, stdout io.Writer) error {
	fs := newFlags("apply")
	source := fs.String("source", "", "source id")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if err := requireSource(*source); err != nil {
		return err
	}

	page, err := e.snapshot(*source)
	if err != nil {
		return err
	}
	anns, err := list(e, *source)
	if err != nil {
		return err
	}
	_, root, err := structural.ParseDocument(strings.NewReader(page))
	if err != nil {
		return err
	}
	rep := structural.NewApplier(e.cfg.Style()).Apply(root, anns)
	out, err := structural.InnerHTML(root)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, out)
	printReport(os.Stderr, rep)
	return nil
}

func runExport(e *env, args []string, stdout io.Writer) error {
	fs := newFlags("export")
	source := fs.String("source", "", "source id")
	domain := fs.String("domain", "", "base URL for relative links")
	plain := fs.Bool("plain", false, "omit the highlights section")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if err := requireSource(*source); err != nil {
		return err
	}

	page, err := e.snapshot(*source)
	if err != nil {
		return err
	}
	anns, err := list(e, *source)
	if err != nil {
		return err
	}
	md, rep, err := export.New(e.cfg.Style()).Markdown(page, anns, export.Options{
		Domain:     *domain,
		Highlights: !*plain,
	})
	if err != nil {
		return err
	}
	fmt.Fprint(stdout, md)
	printReport(os.Stderr, rep)
	return nil
}

// =============================================================================
// Fixed-layout pages
// =============================================================================

func runMarkPage(e *env, args []string, stdout io.Writer) error {
	fs := newFlags("mark-page")
	source := fs.String("source", "", "source id")
	page := fs.Int("page", 1, "page number (1-based)")
	width := fs.Float64("width", 0, "displayed page width in pixels")
	height := fs.Float64("height", 0, "displayed page height in pixels")
	rotation := fs.Int("rotation", 0, "display rotation: 0, 90, 180 or 270")
	rectsJSON := fs.String("rects", "", "client rects as JSON, relative to the displayed page")
	text := fs.String("text", "", "selected text")
	kind := fs.String("kind", "", "highlight, underline or strikethrough")
	color := fs.String("color", "", "palette name or hex color")
	note := fs.String("note", "", "note text")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if err := requireSource(*source); err != nil {
		return err
	}

	var rects []geometry.Rect
	if err := json.Unmarshal([]byte(*rectsJSON), &rects); err != nil {
		return fmt.Errorf("invalid -rects: %w", err)
	}
	rot, err := geometry.ParseRotation(*rotation)
	if err != nil {
		return err
	}
	sel, ok := capture.FromPage(*page, *text, rects, geometry.Rect{Width: *width, Height: *height}, rot)
	if !ok {
		return errors.New("selection has no usable rects")
	}
	loc, err := pagerect.Encode(sel, e.cfg.PageEncoding())
	if err != nil {
		return err
	}
	k, err := annotation.ParseKind(*kind)
	if err != nil {
		return err
	}
	a, err := annotation.New(annotation.Draft{
		SourceID: *source,
		Content:  sel.Text,
		Kind:     k,
		Color:    *color,
		Note:     *note,
		Locator:  loc,
	})
	if err != nil {
		return err
	}
	if err := e.store.CreateAnnotation(a); err != nil {
		return err
	}
	fmt.Fprintln(stdout, a.ID)
	return nil
}

func runRender(e *env, args []string, stdout io.Writer) error {
	fs := newFlags("render")
	source := fs.String("source", "", "source id")
	page := fs.Int("page", 1, "page number (1-based)")
	width := fs.Float64("width", 0, "unscaled page width")
	height := fs.Float64("height", 0, "unscaled page height")
	scale := fs.Float64("scale", 1, "render scale")
	rotation := fs.Int("rotation", 0, "display rotation: 0, 90, 180 or 270")
	format := fs.String("format", "svg", "svg or png")
	out := fs.String("out", "", "output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if err := requireSource(*source); err != nil {
		return err
	}
	if *width <= 0 || *height <= 0 || *scale <= 0 {
		return fmt.Errorf("%w: -width, -height and -scale must be positive", errUsage)
	}
	rot, err := geometry.ParseRotation(*rotation)
	if err != nil {
		return err
	}

	ptrs, err := e.store.ListForPage(*source, *page)
	if err != nil {
		return err
	}
	anns := make([]annotation.Annotation, len(ptrs))
	for i, a := range ptrs {
		anns[i] = *a
	}

	pages := overlay.NewPages(e.cfg.Style())
	pages.SetEpsilon(e.cfg.Geometry.Epsilon)
	vp := pagerect.NewViewport(*page, geometry.Size{Width: *width, Height: *height}, *scale, rot)
	res := pages.Render(vp, anns)
	printReport(os.Stderr, res.Report)
	layer := pages.Layer(*page)

	w := stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	switch *format {
	case "svg":
		_, err = io.WriteString(w, layer.SVG()+"\n")
	case "png":
		err = layer.EncodePNG(w)
	default:
		err = fmt.Errorf("%w: unknown format %q", errUsage, *format)
	}
	return err
}

// =============================================================================
// Maintenance
// =============================================================================

func runList(e *env, args []string, stdout io.Writer) error {
	fs := newFlags("list")
	source := fs.String("source", "", "source id (empty lists everything)")
	page := fs.Int("page", 0, "only annotations on this page")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	var (
		anns []*annotation.Annotation
		err  error
	)
	switch {
	case *page > 0:
		if err := requireSource(*source); err != nil {
			return err
		}
		anns, err = e.store.ListForPage(*source, *page)
	case *source != "":
		anns, err = e.store.ListBySource(*source)
	default:
		anns, err = e.store.ListAll()
	}
	if err != nil {
		return err
	}
	if anns == nil {
		anns = []*annotation.Annotation{}
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(anns)
}

func runDelete(e *env, args []string, stdout io.Writer) error {
	fs := newFlags("delete")
	id := fs.String("id", "", "annotation id")
	source := fs.String("source", "", "delete every annotation and the snapshot of this source")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	switch {
	case *id != "":
		if err := e.store.DeleteAnnotation(*id); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "deleted %s\n", *id)
	case *source != "":
		n, err := e.store.DeleteBySource(*source)
		if err != nil {
			return err
		}
		if err := e.snapshots.Delete(*source); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "deleted %d annotations of %s\n", n, *source)
	default:
		return fmt.Errorf("%w: -id or -source is required", errUsage)
	}
	return nil
}

func runMigrate(e *env, args []string, stdout io.Writer) error {
	n, err := e.store.MigrateLegacy()
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "migrated %d legacy positions\n", n)
	return nil
}
