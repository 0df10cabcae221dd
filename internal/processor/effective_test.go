package processor

import (
	"testing"
	"time"

	"github.com/starford/vaultsnap/internal/directive"
	"github.com/starford/vaultsnap/internal/prefix"
	"github.com/starford/vaultsnap/internal/settings"
)

func TestMerge_DirectivesWin(t *testing.T) {
	s := settings.Defaults()
	d := directive.Parse("$convert=no\n$rename=off\n$num=off\n$quality=10\n$bg=123456\n$format=<{filename}>\n$sep=~")
	e := Merge(d, s)
	want := Effective{
		Convert: false, Rename: false, Numbering: false,
		Quality: 10, BgColor: "#123456", Format: "<{filename}>", Separator: "~",
	}
	if e != want {
		t.Errorf("Merge = %+v, want %+v", e, want)
	}
}

func TestMerge_SettingsFallback(t *testing.T) {
	s := settings.Defaults()
	s.BgColor = "ABCDEF"
	e := Merge(directive.Set{}, s)
	if !e.Convert || !e.Rename || !e.Numbering || e.Quality != 95 || e.BgColor != "#ABCDEF" {
		t.Errorf("Merge = %+v", e)
	}
}

func TestTargetName(t *testing.T) {
	res := prefix.Resolution{Prefix: "Game", Last: 2}
	now := time.Unix(1234, 0)

	name, n := TargetName(res, Effective{Numbering: true}, "/x/shot.png", now)
	if name != "Game_3.png" || n != 3 {
		t.Errorf("numbered = %q, %d", name, n)
	}
	name, n = TargetName(res, Effective{}, "/x/shot.png", now)
	if name != "Game_1234.png" || n != 0 {
		t.Errorf("timestamped = %q, %d", name, n)
	}
	name, _ = TargetName(res, Effective{Numbering: true, Convert: true}, "/x/shot.jpeg", now)
	if name != "Game_3.jpg" {
		t.Errorf("converted = %q", name)
	}
	name, _ = TargetName(res, Effective{Numbering: true, Convert: true}, "/x/shot.png", now)
	if name != "Game_3.png" {
		t.Errorf("failed conversion keeps extension, got %q", name)
	}
}

func TestAppend(t *testing.T) {
	e := Effective{Format: "", Separator: ""}
	if got := e.Append("body", e.Code("A_1.png"), false); got != "body\n[[File:A_1.png]]" {
		t.Errorf("Append = %q", got)
	}
	e.Separator = "---"
	if got := e.Append("$pre=A\n\nbody", "X", true); got != "body\n---X" {
		t.Errorf("Append clean = %q", got)
	}
}
