// Package export renders an annotated web snapshot as Markdown: the page
// body in reading form, followed by the list of highlights and notes.
package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"golang.org/x/net/html"

	"github.com/kittclouds/readmark/pkg/annotation"
	"github.com/kittclouds/readmark/pkg/structural"
	"github.com/kittclouds/readmark/pkg/style"
)

// Options tunes Markdown.
type Options struct {
	// Domain resolves relative links in the snapshot.
	Domain string
	// Highlights appends a section listing every painted annotation.
	Highlights bool
	// Heading titles the highlights section. Default: "Highlights".
	Heading string
}

// Exporter converts snapshots. It is safe to reuse.
type Exporter struct {
	conv    *converter.Converter
	applier *structural.Applier
}

// New returns an exporter painting marks with st.
func New(st style.Style) *Exporter {
	return &Exporter{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		applier: structural.NewApplier(st),
	}
}

// Markdown parses page, paints the structural annotations of list into it
// and converts the result.
func (e *Exporter) Markdown(page string, list []annotation.Annotation, opts Options) (string, annotation.Report, error) {
	_, root, err := structural.ParseDocument(strings.NewReader(page))
	if err != nil {
		return "", annotation.Report{}, fmt.Errorf("parse snapshot: %w", err)
	}
	rep := e.applier.Apply(root, list)

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return "", rep, fmt.Errorf("render snapshot: %w", err)
	}
	var md string
	if opts.Domain != "" {
		md, err = e.conv.ConvertString(buf.String(), converter.WithDomain(opts.Domain))
	} else {
		md, err = e.conv.ConvertString(buf.String())
	}
	if err != nil {
		return "", rep, fmt.Errorf("convert snapshot: %w", err)
	}

	if opts.Highlights {
		md = strings.TrimRight(md, "\n") + "\n\n" + highlights(root, list, opts.Heading)
	}
	return md, rep, nil
}

// highlights lists painted annotations in document order, quoting the
// marked text as it appears on the page now.
func highlights(root *html.Node, list []annotation.Annotation, heading string) string {
	if heading == "" {
		heading = "Highlights"
	}
	byID := make(map[string]annotation.Annotation, len(list))
	for _, a := range list {
		byID[a.ID] = a
	}

	var (
		order []string
		text  = make(map[string]*strings.Builder)
	)
	for _, m := range structural.Marks(root, "") {
		id, _ := structural.AnnotationAt(m)
		b, ok := text[id]
		if !ok {
			b = &strings.Builder{}
			text[id] = b
			order = append(order, id)
		}
		b.WriteString(textContent(m))
	}

	var out strings.Builder
	fmt.Fprintf(&out, "## %s\n", heading)
	for _, id := range order {
		a := byID[id]
		out.WriteString("\n")
		for _, line := range strings.Split(strings.TrimSpace(text[id].String()), "\n") {
			fmt.Fprintf(&out, "> %s\n", strings.TrimSpace(line))
		}
		if a.Note != "" {
			fmt.Fprintf(&out, "\n%s\n", a.Note)
		}
	}
	return out.String()
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
