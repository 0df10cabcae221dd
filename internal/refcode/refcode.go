// Package refcode finds and formats the [[File:Prefix_N.ext]] reference codes
// that record previously inserted images in a note.
package refcode

import (
	"regexp"
	"strconv"
	"strings"
)

// Placeholder is substituted with the final image file name by Format.
const Placeholder = "{filename}"

// DefaultTemplate is used when no custom format is configured.
const DefaultTemplate = "[[File:" + Placeholder + "]]"

var codeRe = regexp.MustCompile(`\[\[File:([^_\]|]+)_(\d+)\.([^|\]]+)(?:\|([^\]]+))?\]\]`)

// Code is one reference code occurrence.
type Code struct {
	Prefix    string `json:"prefix"`
	Number    int    `json:"number"`
	Extension string `json:"extension"`
	Caption   string `json:"caption,omitempty"`
}

// Filename returns the referenced file name, e.g. Shot_3.jpg.
func (c Code) Filename() string {
	return c.Prefix + "_" + strconv.Itoa(c.Number) + "." + c.Extension
}

// FindAll returns every reference code in content in document order.
// Codes whose number does not fit an int are skipped.
func FindAll(content string) []Code {
	matches := codeRe.FindAllStringSubmatch(content, -1)
	out := make([]Code, 0, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		out = append(out, Code{
			Prefix:    m[1],
			Number:    n,
			Extension: m[3],
			Caption:   m[4],
		})
	}
	return out
}

// Parse returns the first reference code in text.
func Parse(text string) (Code, bool) {
	codes := FindAll(text)
	if len(codes) == 0 {
		return Code{}, false
	}
	return codes[0], true
}

// Format substitutes filename into template. An empty template falls back to
// DefaultTemplate.
func Format(template, filename string) string {
	if template == "" {
		template = DefaultTemplate
	}
	return strings.ReplaceAll(template, Placeholder, filename)
}

// MaxNumber returns the highest sequence number among codes with exactly the
// given prefix, or 0 when there are none.
func MaxNumber(codes []Code, prefix string) int {
	highest := 0
	for _, c := range codes {
		if c.Prefix == prefix && c.Number > highest {
			highest = c.Number
		}
	}
	return highest
}

// MostFrequentPrefix returns the prefix with the most occurrences. On a tie the
// prefix that reached the winning count first while scanning is kept.
func MostFrequentPrefix(codes []Code) (string, bool) {
	counts := make(map[string]int, len(codes))
	best, bestCount := "", 0
	for _, c := range codes {
		counts[c.Prefix]++
		if counts[c.Prefix] > bestCount {
			best, bestCount = c.Prefix, counts[c.Prefix]
		}
	}
	return best, bestCount > 0
}
