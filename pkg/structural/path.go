package structural

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/kittclouds/readmark/pkg/locator"
)

// Path builds the address of el relative to root. Each level is written as
// tag[n], n being the 1-based position among same-tag element siblings.
// Walking upwards stops at the nearest ancestor carrying an id, which
// becomes the start of the path: //*[@id='main']/p[2]. root itself is "/".
func Path(root, el *html.Node) (string, error) {
	var steps []string
	for n := el; n != root; n = n.Parent {
		if n == nil {
			return "", fmt.Errorf("structural: element is not under the content root")
		}
		if id := attr(n, "id"); id != "" {
			steps = append(steps, idStep(id))
			return join(steps), nil
		}
		steps = append(steps, "/"+n.Data+"["+strconv.Itoa(ordinal(n))+"]")
	}
	if len(steps) == 0 {
		return "/", nil
	}
	return join(steps), nil
}

func join(rev []string) string {
	var b strings.Builder
	for i := len(rev) - 1; i >= 0; i-- {
		b.WriteString(rev[i])
	}
	return b.String()
}

func idStep(id string) string {
	if strings.Contains(id, "'") {
		return `//*[@id="` + id + `"]`
	}
	return "//*[@id='" + id + "']"
}

// ordinal returns n's 1-based index among element siblings with its tag.
// Annotation marks are not content and are not counted.
func ordinal(n *html.Node) int {
	i := 1
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode && s.Data == n.Data && !isMark(s) {
			i++
		}
	}
	return i
}

// ResolvePath finds the element addressed by path under root.
func ResolvePath(root *html.Node, path string) (*html.Node, error) {
	cur := root
	rest := path

	if strings.HasPrefix(rest, "//*[@id=") {
		body := rest[len("//*[@id="):]
		if len(body) < 3 || (body[0] != '\'' && body[0] != '"') {
			return nil, fmt.Errorf("%w: bad id step in %q", locator.ErrMalformed, path)
		}
		closing := strings.Index(body[1:], string(body[0])+"]")
		if closing < 0 {
			return nil, fmt.Errorf("%w: unterminated id step in %q", locator.ErrMalformed, path)
		}
		id := body[1 : 1+closing]
		rest = body[closing+3:]
		if cur = findID(root, id); cur == nil {
			return nil, fmt.Errorf("%w: no element with id %q", locator.ErrUnresolvable, id)
		}
	} else if !strings.HasPrefix(rest, "/") {
		return nil, fmt.Errorf("%w: path %q is not absolute", locator.ErrMalformed, path)
	}

	for _, step := range strings.Split(rest, "/") {
		if step == "" {
			continue
		}
		tag, pos, err := parseStep(step)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", locator.ErrMalformed, path, err)
		}
		next := nthChild(cur, tag, pos)
		if next == nil {
			return nil, fmt.Errorf("%w: no %s[%d] in %q", locator.ErrUnresolvable, tag, pos, path)
		}
		cur = next
	}
	return cur, nil
}

// parseStep parses "p[2]" or "p".
func parseStep(step string) (string, int, error) {
	open := strings.IndexByte(step, '[')
	if open < 0 {
		return strings.ToLower(step), 1, nil
	}
	if !strings.HasSuffix(step, "]") || open == 0 {
		return "", 0, fmt.Errorf("bad step %q", step)
	}
	pos, err := strconv.Atoi(step[open+1 : len(step)-1])
	if err != nil || pos < 1 {
		return "", 0, fmt.Errorf("bad position in step %q", step)
	}
	return strings.ToLower(step[:open]), pos, nil
}

func nthChild(parent *html.Node, tag string, pos int) *html.Node {
	i := 0
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag && !isMark(c) {
			i++
			if i == pos {
				return c
			}
		}
	}
	return nil
}

func findID(root *html.Node, id string) *html.Node {
	if root.Type == html.ElementNode && attr(root, "id") == id {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if n := findID(c, id); n != nil {
			return n
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
