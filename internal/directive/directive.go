// Package directive extracts $key=value directives embedded in note text.
//
// A note may carry directives such as $prefix=Shot or $quality=80 anywhere in
// its body. Each directive overrides one processing setting for the next image.
// When a key appears several times the last occurrence in the document wins.
package directive

import (
	"regexp"
	"strconv"
	"strings"
)

// Key names one directive.
type Key string

// Recognised directive keys.
const (
	KeyPrefix    Key = "prefix"
	KeyQuality   Key = "quality"
	KeyFormat    Key = "format"
	KeySeparator Key = "separator"
	KeyConvert   Key = "convert"
	KeyRename    Key = "rename"
	KeyNumbering Key = "numbering"
	KeyBgColor   Key = "bg_color"
)

// Keys lists every recognised key in canonical order.
var Keys = []Key{
	KeyPrefix, KeyQuality, KeyFormat, KeySeparator,
	KeyConvert, KeyRename, KeyNumbering, KeyBgColor,
}

// Boolean values match as a prefix: "$convert=yesplease" reads as yes.
const boolWords = `(true|false|on|off|yes|no)`

var patterns = []struct {
	key Key
	re  *regexp.Regexp
}{
	{KeyPrefix, regexp.MustCompile(`(?i)\$pre(?:fix)?=(\S+)`)},
	{KeyQuality, regexp.MustCompile(`(?i)\$quality=(\d+)`)},
	{KeyFormat, regexp.MustCompile(`(?i)\$format=([^\n]+)`)},
	{KeySeparator, regexp.MustCompile(`(?i)\$sep(?:arator)?=([^\n]*)`)},
	{KeyConvert, regexp.MustCompile(`(?i)\$convert=` + boolWords)},
	{KeyRename, regexp.MustCompile(`(?i)\$rename=` + boolWords)},
	{KeyNumbering, regexp.MustCompile(`(?i)\$num(?:bering)?=` + boolWords)},
	{KeyBgColor, regexp.MustCompile(`(?i)\$bg(?:_?color)?=([#\w]+)`)},
}

// Set holds the directives found in one note. A nil field means the key was
// not present and the configured setting applies.
type Set struct {
	Prefix    *string `json:"prefix,omitempty"`
	Quality   *int    `json:"quality,omitempty"`
	Format    *string `json:"format,omitempty"`
	Separator *string `json:"separator,omitempty"`
	Convert   *bool   `json:"convert,omitempty"`
	Rename    *bool   `json:"rename,omitempty"`
	Numbering *bool   `json:"numbering,omitempty"`
	BgColor   *string `json:"bg_color,omitempty"`
}

// Parse scans content for every directive key and returns the last value of
// each. An unparsable quality is dropped. Parse never fails.
func Parse(content string) Set {
	var s Set
	for _, p := range patterns {
		matches := p.re.FindAllStringSubmatch(content, -1)
		if len(matches) == 0 {
			continue
		}
		raw := strings.TrimSpace(matches[len(matches)-1][1])

		switch p.key {
		case KeyPrefix:
			s.Prefix = &raw
		case KeyQuality:
			q, err := strconv.Atoi(raw)
			if err != nil {
				continue
			}
			q = ClampQuality(q)
			s.Quality = &q
		case KeyFormat:
			s.Format = &raw
		case KeySeparator:
			s.Separator = &raw
		case KeyConvert:
			b := parseBool(raw)
			s.Convert = &b
		case KeyRename:
			b := parseBool(raw)
			s.Rename = &b
		case KeyNumbering:
			b := parseBool(raw)
			s.Numbering = &b
		case KeyBgColor:
			s.BgColor = &raw
		}
	}
	return s
}

// Strip removes every directive occurrence from content and collapses the
// blank lines left behind so that at most one blank line separates blocks.
// Reference codes are never touched.
func Strip(content string) string {
	out := content
	for {
		before := out
		for _, p := range patterns {
			out = p.re.ReplaceAllString(out, "")
		}
		if out == before {
			break
		}
	}
	return collapseBlankLines(out)
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, line)
			continue
		}
		if len(kept) > 0 && strings.TrimSpace(kept[len(kept)-1]) != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// ClampQuality limits q to the JPEG quality range [1,100].
func ClampQuality(q int) int {
	return max(1, min(100, q))
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "on", "yes":
		return true
	}
	return false
}

// Keys returns the keys present in s in canonical order.
func (s Set) Keys() []Key {
	var out []Key
	for _, k := range Keys {
		if s.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

// Has reports whether key k was found.
func (s Set) Has(k Key) bool {
	switch k {
	case KeyPrefix:
		return s.Prefix != nil
	case KeyQuality:
		return s.Quality != nil
	case KeyFormat:
		return s.Format != nil
	case KeySeparator:
		return s.Separator != nil
	case KeyConvert:
		return s.Convert != nil
	case KeyRename:
		return s.Rename != nil
	case KeyNumbering:
		return s.Numbering != nil
	case KeyBgColor:
		return s.BgColor != nil
	}
	return false
}

// Empty reports whether no directive was found.
func (s Set) Empty() bool {
	return len(s.Keys()) == 0
}

// Filter returns a copy of s without the keys for which allowed returns false.
func (s Set) Filter(allowed func(Key) bool) Set {
	out := s
	for _, k := range Keys {
		if allowed(k) {
			continue
		}
		switch k {
		case KeyPrefix:
			out.Prefix = nil
		case KeyQuality:
			out.Quality = nil
		case KeyFormat:
			out.Format = nil
		case KeySeparator:
			out.Separator = nil
		case KeyConvert:
			out.Convert = nil
		case KeyRename:
			out.Rename = nil
		case KeyNumbering:
			out.Numbering = nil
		case KeyBgColor:
			out.BgColor = nil
		}
	}
	return out
}

// String renders the value for key k, or "" when absent.
func (s Set) String(k Key) string {
	switch k {
	case KeyPrefix:
		return deref(s.Prefix)
	case KeyQuality:
		if s.Quality != nil {
			return strconv.Itoa(*s.Quality)
		}
	case KeyFormat:
		return deref(s.Format)
	case KeySeparator:
		return deref(s.Separator)
	case KeyConvert:
		return boolString(s.Convert)
	case KeyRename:
		return boolString(s.Rename)
	case KeyNumbering:
		return boolString(s.Numbering)
	case KeyBgColor:
		return deref(s.BgColor)
	}
	return ""
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func boolString(p *bool) string {
	if p == nil {
		return ""
	}
	return strconv.FormatBool(*p)
}
