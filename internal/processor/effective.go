package processor

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/starford/vaultsnap/internal/directive"
	"github.com/starford/vaultsnap/internal/prefix"
	"github.com/starford/vaultsnap/internal/refcode"
	"github.com/starford/vaultsnap/internal/settings"
	"github.com/starford/vaultsnap/internal/transcode"
)

// Effective is the merge of one note's directives over the settings.
type Effective struct {
	Convert   bool   `json:"convert"`
	Rename    bool   `json:"rename"`
	Numbering bool   `json:"numbering"`
	Quality   int    `json:"quality"`
	BgColor   string `json:"bg_color"`
	Format    string `json:"format"`
	Separator string `json:"separator"`
}

// Merge applies d over s. Directive values win whenever present.
func Merge(d directive.Set, s settings.Settings) Effective {
	e := Effective{
		Convert:   s.ConvertJPG,
		Rename:    s.AutoRename,
		Numbering: s.AutoNumbering,
		Quality:   s.JPGQuality,
		BgColor:   s.BgColor,
		Format:    s.ImageFormat,
		Separator: s.Separator,
	}
	if d.Convert != nil {
		e.Convert = *d.Convert
	}
	if d.Rename != nil {
		e.Rename = *d.Rename
	}
	if d.Numbering != nil {
		e.Numbering = *d.Numbering
	}
	if d.Quality != nil {
		e.Quality = *d.Quality
	}
	if d.BgColor != nil {
		e.BgColor = *d.BgColor
	}
	if d.Format != nil {
		e.Format = *d.Format
	}
	if d.Separator != nil {
		e.Separator = *d.Separator
	}
	e.Quality = directive.ClampQuality(e.Quality)
	e.BgColor = transcode.NormalizeColor(e.BgColor)
	return e
}

// TargetName builds the new file name for file. With numbering it is
// Prefix_N.ext where N is res.Next(); otherwise the unix time replaces N.
// The returned number is 0 when numbering is off.
func TargetName(res prefix.Resolution, e Effective, file string, now time.Time) (string, int) {
	ext := filepath.Ext(file)
	if e.Convert && transcode.IsJPEG(file) {
		ext = transcode.TargetExt
	}
	if e.Numbering {
		n := res.Next()
		return fmt.Sprintf("%s_%d%s", res.Prefix, n, ext), n
	}
	return fmt.Sprintf("%s_%d%s", res.Prefix, now.Unix(), ext), 0
}

// Code renders the reference code for filename.
func (e Effective) Code(filename string) string {
	return refcode.Format(e.Format, filename)
}

// Append returns content with code appended after a newline and the
// separator. When clean is set, directives are stripped first.
func (e Effective) Append(content, code string, clean bool) string {
	if clean {
		content = directive.Strip(content)
	}
	return content + "\n" + e.Separator + code
}
