package structural

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ParseDocument parses a saved page and returns its content root, the
// <body> element.
func ParseDocument(r io.Reader) (doc, root *html.Node, err error) {
	doc, err = html.Parse(r)
	if err != nil {
		return nil, nil, err
	}
	return doc, ContentRoot(doc), nil
}

// ContentRoot returns the <body> of doc, or doc itself when there is none.
func ContentRoot(doc *html.Node) *html.Node {
	var body *html.Node
	var find func(*html.Node)
	find = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Body {
			body = n
			return
		}
		for c := n.FirstChild; c != nil && body == nil; c = c.NextSibling {
			find(c)
		}
	}
	find(doc)
	if body == nil {
		return doc
	}
	return body
}

// InnerHTML serializes the children of root, which is how a painted snapshot
// is handed back to the reader.
func InnerHTML(root *html.Node) (string, error) {
	var b strings.Builder
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}
