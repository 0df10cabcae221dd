// Package output renders previews for the terminal.
package output

import (
	"fmt"
	"strconv"

	"github.com/disiqueira/gotree/v3"

	"github.com/starford/vaultsnap/internal/directive"
	"github.com/starford/vaultsnap/internal/noteservice"
)

// PreviewTree renders p as a tree rooted at the vault.
func PreviewTree(vault string, p *noteservice.Preview) string {
	root := gotree.New(vault)
	note := root.Add(p.Note.Path)

	dirs := note.Add(fmt.Sprintf("directives (%d)", len(p.Directives.Keys())))
	for _, k := range p.Directives.Keys() {
		dirs.Add(directiveLine(p.Directives, k))
	}

	codes := note.Add(fmt.Sprintf("reference codes (%d)", len(p.Codes)))
	for _, c := range p.Codes {
		codes.Add(c.Filename())
	}

	eff := note.Add("effective")
	eff.Add("convert: " + strconv.FormatBool(p.Effective.Convert))
	eff.Add("rename: " + strconv.FormatBool(p.Effective.Rename))
	eff.Add("numbering: " + strconv.FormatBool(p.Effective.Numbering))
	eff.Add("quality: " + strconv.Itoa(p.Effective.Quality))
	eff.Add("bg_color: " + p.Effective.BgColor)
	eff.Add(fmt.Sprintf("separator: %q", p.Effective.Separator))

	res := note.Add("prefix: " + p.Resolution.Prefix)
	res.Add("tier: " + string(p.Resolution.Tier))
	res.Add("last: " + strconv.Itoa(p.Resolution.Last))

	next := note.Add("next: " + p.NextName)
	next.Add("code: " + p.Code)

	if len(p.History) > 0 {
		h := note.Add(fmt.Sprintf("history (%d)", len(p.History)))
		for _, e := range p.History {
			h.Add(e.At.Format("2006-01-02 15:04:05") + " " + e.Code)
		}
	}
	return root.Print()
}

func directiveLine(s directive.Set, k directive.Key) string {
	return fmt.Sprintf("$%s=%s", k, s.String(k))
}
