package textmap

import (
	"strings"
	"unicode"
	"unicode/utf16"
)

// Index returns the flattened range of the first occurrence of needle, or
// ok=false. Matching may cross text node boundaries.
func (m *Map) Index(needle string) (start, end int, ok bool) {
	if needle == "" {
		return 0, 0, false
	}
	text := m.Text()
	i := strings.Index(text, needle)
	if i < 0 {
		return 0, 0, false
	}
	start = Len16(text[:i])
	return start, start + Len16(needle), true
}

// IndexCollapsed is Index with every run of whitespace, in both the text and
// the needle, treated as a single space. Leading and trailing whitespace of
// the needle is ignored. The returned range is in uncollapsed offsets.
func (m *Map) IndexCollapsed(needle string) (start, end int, ok bool) {
	want := []rune(collapse(needle))
	if len(want) == 0 {
		return 0, 0, false
	}

	// Collapsed runes and the original UTF-16 span of each.
	var (
		hay    []rune
		starts []int
		ends   []int
	)
	pos := 0
	runes := utf16.Decode(m.text)
	for _, r := range runes {
		w := utf16.RuneLen(r)
		if unicode.IsSpace(r) {
			if n := len(hay); n > 0 && hay[n-1] == ' ' {
				ends[n-1] = pos + w
				pos += w
				continue
			}
			r = ' '
		}
		hay = append(hay, r)
		starts = append(starts, pos)
		ends = append(ends, pos+w)
		pos += w
	}

	i := indexRunes(hay, want)
	if i < 0 {
		return 0, 0, false
	}
	return starts[i], ends[i+len(want)-1], true
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func indexRunes(hay, needle []rune) int {
	for i := 0; i+len(needle) <= len(hay); i++ {
		match := true
		for j, r := range needle {
			if hay[i+j] != r {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
