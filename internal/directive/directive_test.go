package directive

import (
	"strings"
	"testing"
)

func TestParse_AllKeys(t *testing.T) {
	content := strings.Join([]string{
		"# Session",
		"$prefix=Shot",
		"$quality=80",
		"$format=![[{filename}]]",
		"$sep=---",
		"$convert=off",
		"$rename=YES",
		"$num=true",
		"$bg=#000000",
	}, "\n")

	s := Parse(content)
	if got := s.String(KeyPrefix); got != "Shot" {
		t.Errorf("prefix = %q, want %q", got, "Shot")
	}
	if s.Quality == nil || *s.Quality != 80 {
		t.Errorf("quality = %v, want 80", s.Quality)
	}
	if got := s.String(KeyFormat); got != "![[{filename}]]" {
		t.Errorf("format = %q", got)
	}
	if got := s.String(KeySeparator); got != "---" {
		t.Errorf("separator = %q", got)
	}
	if s.Convert == nil || *s.Convert {
		t.Errorf("convert = %v, want false", s.Convert)
	}
	if s.Rename == nil || !*s.Rename {
		t.Errorf("rename = %v, want true", s.Rename)
	}
	if s.Numbering == nil || !*s.Numbering {
		t.Errorf("numbering = %v, want true", s.Numbering)
	}
	if got := s.String(KeyBgColor); got != "#000000" {
		t.Errorf("bg_color = %q", got)
	}
	if len(s.Keys()) != len(Keys) {
		t.Errorf("keys = %v, want all %d", s.Keys(), len(Keys))
	}
}

func TestParse_LastMatchWins(t *testing.T) {
	s := Parse("$prefix=First\nsome text\n$PREFIX=Second\n$pre=Third")
	if got := s.String(KeyPrefix); got != "Third" {
		t.Errorf("prefix = %q, want %q", got, "Third")
	}
}

func TestParse_LongAndShortForms(t *testing.T) {
	s := Parse("$separator=== \n$numbering=no\n$bgcolor=ffffff\n$bg_color=#123abc")
	if got := s.String(KeySeparator); got != "==" {
		t.Errorf("separator = %q, want %q", got, "==")
	}
	if s.Numbering == nil || *s.Numbering {
		t.Errorf("numbering = %v, want false", s.Numbering)
	}
	if got := s.String(KeyBgColor); got != "#123abc" {
		t.Errorf("bg_color = %q, want #123abc", got)
	}
}

func TestParse_QualityClamped(t *testing.T) {
	cases := map[string]int{
		"$quality=0":   1,
		"$quality=150": 100,
		"$quality=55":  55,
	}
	for in, want := range cases {
		s := Parse(in)
		if s.Quality == nil || *s.Quality != want {
			t.Errorf("Parse(%q) quality = %v, want %d", in, s.Quality, want)
		}
	}
}

func TestParse_QualityOverflowDropped(t *testing.T) {
	s := Parse("$quality=99999999999999999999999999")
	if s.Quality != nil {
		t.Errorf("expected unparsable quality to be dropped, got %d", *s.Quality)
	}
	if s.Has(KeyQuality) {
		t.Error("quality key should be absent")
	}
}

func TestParse_EmptySeparator(t *testing.T) {
	s := Parse("text\n$sep=\nmore")
	if !s.Has(KeySeparator) {
		t.Fatal("empty separator directive should still be recorded")
	}
	if got := s.String(KeySeparator); got != "" {
		t.Errorf("separator = %q, want empty", got)
	}
}

func TestParse_NoDirectives(t *testing.T) {
	s := Parse("plain note with [[File:Shot_1.jpg]] and $ signs = money")
	if !s.Empty() {
		t.Errorf("expected empty set, got %v", s.Keys())
	}
}

func TestParse_InvalidBooleanIgnored(t *testing.T) {
	s := Parse("$convert=maybe\n$rename=1")
	if s.Convert != nil || s.Rename != nil {
		t.Errorf("unexpected booleans: convert=%v rename=%v", s.Convert, s.Rename)
	}
}

func TestParse_BooleanWordPrefix(t *testing.T) {
	s := Parse("$convert=yesplease\n$rename=offline\n$num=Trueish")
	if s.Convert == nil || !*s.Convert {
		t.Errorf("convert = %v, want true", s.Convert)
	}
	if s.Rename == nil || *s.Rename {
		t.Errorf("rename = %v, want false", s.Rename)
	}
	if s.Numbering == nil || !*s.Numbering {
		t.Errorf("numbering = %v, want true", s.Numbering)
	}
}

func TestStrip_RemovesDirectivesKeepsCodes(t *testing.T) {
	in := "# Title\n$prefix=Shot\n$quality=70\n\nBody text.\n[[File:Shot_1.jpg]]\n"
	got := Strip(in)
	want := "# Title\n\nBody text.\n[[File:Shot_1.jpg]]\n"
	if got != want {
		t.Errorf("Strip = %q, want %q", got, want)
	}
}

func TestStrip_CollapsesBlankRuns(t *testing.T) {
	in := "\n\nA\n\n\n\nB\n$sep=x\n\n\nC"
	got := Strip(in)
	want := "A\n\nB\n\nC"
	if got != want {
		t.Errorf("Strip = %q, want %q", got, want)
	}
}

func TestStrip_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"no directives here",
		"a\n$prefix=X\n\n\nb\n$format=[[{filename}]]\n",
		"$q$quality=5uality=7 tail",
		"\n\n$num=on\n\n[[File:A_1.png|cap]]\n\n",
	}
	for _, in := range inputs {
		once := Strip(in)
		twice := Strip(once)
		if once != twice {
			t.Errorf("Strip not idempotent for %q: %q vs %q", in, once, twice)
		}
	}
}

func TestFilter(t *testing.T) {
	s := Parse("$prefix=Shot\n$quality=40\n$rename=no")
	f := s.Filter(func(k Key) bool { return k != KeyQuality })
	if f.Has(KeyQuality) {
		t.Error("quality should be filtered out")
	}
	if !f.Has(KeyPrefix) || !f.Has(KeyRename) {
		t.Errorf("keys = %v, want prefix and rename", f.Keys())
	}
	if !s.Has(KeyQuality) {
		t.Error("Filter must not modify the receiver")
	}
}
