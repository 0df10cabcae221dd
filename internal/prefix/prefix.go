// Package prefix decides the naming prefix and the last used sequence number
// for the next image inserted into a note.
package prefix

import (
	"path/filepath"
	"strings"
	"unicode"

	"github.com/starford/vaultsnap/internal/directive"
	"github.com/starford/vaultsnap/internal/refcode"
	"github.com/starford/vaultsnap/internal/settings"
)

// Tier records which rule produced the effective prefix.
type Tier string

// Tiers in priority order.
const (
	TierAutomatic Tier = "automatic"
	TierOverride  Tier = "override"
	TierDirective Tier = "directive"
	TierDetected  Tier = "detected"
	TierDefault   Tier = "default"
)

// untitled replaces a subprefix that would otherwise be empty.
const untitled = "Untitled"

// Resolution is the outcome of Resolve. Last is the highest sequence number
// already used for Prefix; the next image gets Last+1. Last is 0 when
// numbering is disabled or automatic mode is active.
type Resolution struct {
	Prefix string `json:"prefix"`
	Last   int    `json:"last"`
	Tier   Tier   `json:"tier"`
}

// Next returns the sequence number for the next image.
func (r Resolution) Next() int {
	return r.Last + 1
}

// Resolve picks the effective prefix for content. noteName is the target
// note's file name (or path); it may be empty when no note is known, which
// disables automatic mode for this call.
func Resolve(content string, d directive.Set, s settings.Settings, noteName string) Resolution {
	numbering := NumberingEnabled(d, s)

	var codes []refcode.Code
	scanned := false
	scan := func() []refcode.Code {
		if !scanned {
			codes = refcode.FindAll(content)
			scanned = true
		}
		return codes
	}

	res := Resolution{Prefix: s.DefaultPrefix, Tier: TierDefault}
	automatic := s.AutomaticPrefixEnabled && noteName != ""

	switch {
	case automatic:
		res.Prefix, res.Tier = Automatic(s.AutomaticPrefixUser, noteName, s.DefaultPrefix), TierAutomatic
	case strings.TrimSpace(s.OverridePrefix) != "":
		res.Prefix, res.Tier = strings.TrimSpace(s.OverridePrefix), TierOverride
	case d.Prefix != nil:
		res.Prefix, res.Tier = *d.Prefix, TierDirective
	case numbering:
		if p, ok := refcode.MostFrequentPrefix(scan()); ok {
			res.Prefix, res.Tier = p, TierDetected
		}
	}

	if !numbering || automatic {
		return res
	}
	res.Last = refcode.MaxNumber(scan(), res.Prefix)
	return res
}

// NumberingEnabled reports whether either the settings or a directive turn
// numbering on.
func NumberingEnabled(d directive.Set, s settings.Settings) bool {
	return s.AutoNumbering || (d.Numbering != nil && *d.Numbering)
}

// Automatic joins the user prefix and the note's subprefix with one hyphen.
func Automatic(user, noteName, fallback string) string {
	user = strings.TrimRight(strings.TrimSpace(user), "-")
	sub := Subprefix(noteName)

	switch {
	case user != "" && sub != "":
		return user + "-" + sub
	case user != "":
		return user
	case sub != "":
		return sub
	}
	return fallback
}

// Subprefix turns a note name into CamelCase words: every rune that is not a
// letter or digit separates words, each word is capitalised, and the words
// are concatenated. The extension is ignored.
func Subprefix(noteName string) string {
	base := filepath.Base(noteName)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	words := strings.FieldsFunc(base, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var b strings.Builder
	for _, w := range words {
		b.WriteString(capitalize(w))
	}
	if b.Len() == 0 {
		return untitled
	}
	return b.String()
}

func capitalize(w string) string {
	runes := []rune(strings.ToLower(w))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
