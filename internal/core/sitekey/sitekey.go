// Package sitekey folds site names into comparable catalog keys
// Pipeline order
// 1 UTF-8 repair
// 2 NFD so accents become separate marks, then strip the marks
// 3 NFC recomposition and Unicode case folding
// 4 Width fold fullwidth to ASCII
// 5 Runs of space, underscore, hyphen and dot collapse to one space; trimmed
package sitekey

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var chainPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFD,
			runes.Remove(runes.In(unicode.Mn)),
			norm.NFC,
			cases.Fold(),
			width.Fold,
		)
	},
}

// Fold returns the comparison key for a site name. "Sweden_Store-Mosse" and
// "sweden store mosse" fold to the same key
func Fold(s string) string {
	s = strings.ToValidUTF8(strings.TrimSpace(s), "")
	if s == "" {
		return ""
	}

	tr := chainPool.Get().(transform.Transformer)
	ns, _, err := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)
	if err != nil {
		ns = strings.ToLower(s)
	}
	return collapseSeparators(ns)
}

// Equal reports whether two names fold to the same key
func Equal(a, b string) bool { return Fold(a) == Fold(b) }

func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || r == '_' || r == '-' || r == '.'
}

func collapseSeparators(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pending := false
	for _, r := range s {
		if isSeparator(r) {
			pending = b.Len() > 0
			continue
		}
		if pending {
			b.WriteByte(' ')
			pending = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
