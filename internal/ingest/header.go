package ingest

import "strings"

// NormalizeHeader canonicalizes a raw column header so that spellings which
// differ only in case, punctuation or spacing compare equal:
//
//	"(GTI) Actual Amount"  -> "gti actual amount"
//	"gti   actual-amount"  -> "gti actual amount"
//
// The result contains only [0-9a-z ] with single inner spaces, so
// NormalizeHeader(NormalizeHeader(x)) == NormalizeHeader(x).
func NormalizeHeader(raw string) string {
	s := strings.TrimSpace(raw)

	// Spreadsheet exports sometimes keep a text marker in front of the header
	if strings.HasPrefix(s, "'") || strings.HasPrefix(s, `"`) {
		s = s[1:]
	}

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			r += 'a' - 'A'
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r == '(' || r == ')' || r == '-' || r == '_' || r == '/' || isSpace(r):
			space = b.Len() > 0
			continue
		default:
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\v', '\f', '\r', 0x85, 0xA0:
		return true
	}
	return false
}

// MakeHeaderIndex creates a HeaderIndex from a CSV header row.
// Call it once per file and reuse it for every data row of that file.
// When two headers normalize to the same key, the rightmost column wins.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := NormalizeHeader(h)
		if key == "" {
			continue
		}
		idx[key] = i
	}
	return idx
}

// Resolve returns the column of the first alias present in the index.
// Aliases are consulted in order, so earlier spellings win when a header row
// carries several historical variants. ok is false when none match, which
// callers treat as the field being absent from this file's schema.
func (h HeaderIndex) Resolve(aliases []string) (col int, ok bool) {
	for _, a := range aliases {
		if pos, found := h[NormalizeHeader(a)]; found {
			return pos, true
		}
	}
	return -1, false
}
