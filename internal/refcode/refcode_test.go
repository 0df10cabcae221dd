package refcode

import "testing"

func TestFindAll_Basic(t *testing.T) {
	content := "intro\n[[File:Shot_3.jpg]]\ntext [[File:Shot_7.jpg|a caption]] and [[File:Game_2.png]]"
	codes := FindAll(content)
	if len(codes) != 3 {
		t.Fatalf("len(codes) = %d, want 3", len(codes))
	}
	if codes[0].Prefix != "Shot" || codes[0].Number != 3 || codes[0].Extension != "jpg" {
		t.Errorf("codes[0] = %+v", codes[0])
	}
	if codes[1].Caption != "a caption" {
		t.Errorf("caption = %q, want %q", codes[1].Caption, "a caption")
	}
	if codes[2].Prefix != "Game" || codes[2].Extension != "png" {
		t.Errorf("codes[2] = %+v", codes[2])
	}
}

func TestFindAll_IgnoresNonMatching(t *testing.T) {
	content := "[[Note]] [[File:noseq.jpg]] [[File:Shot_x.jpg]] [[Image:Shot_1.jpg]]"
	if codes := FindAll(content); len(codes) != 0 {
		t.Errorf("expected no codes, got %+v", codes)
	}
}

func TestFormatAndParseRoundTrip(t *testing.T) {
	text := Format("[[File:{filename}]]", "Shot_8.jpg")
	if text != "[[File:Shot_8.jpg]]" {
		t.Fatalf("Format = %q", text)
	}
	c, ok := Parse(text)
	if !ok {
		t.Fatal("Parse: no code found")
	}
	if c.Prefix != "Shot" || c.Number != 8 || c.Extension != "jpg" {
		t.Errorf("parsed = %+v", c)
	}
	if c.Filename() != "Shot_8.jpg" {
		t.Errorf("Filename = %q", c.Filename())
	}
}

func TestFormat_EmptyTemplateUsesDefault(t *testing.T) {
	if got := Format("", "A_1.png"); got != "[[File:A_1.png]]" {
		t.Errorf("Format = %q", got)
	}
}

func TestFormat_CustomTemplate(t *testing.T) {
	got := Format("![[{filename}]] <!-- {filename} -->", "A_1.png")
	if got != "![[A_1.png]] <!-- A_1.png -->" {
		t.Errorf("Format = %q", got)
	}
}

func TestMaxNumber(t *testing.T) {
	codes := FindAll("[[File:Shot_3.jpg]] [[File:Shot_7.jpg]] [[File:Other_99.jpg]]")
	if got := MaxNumber(codes, "Shot"); got != 7 {
		t.Errorf("MaxNumber(Shot) = %d, want 7", got)
	}
	if got := MaxNumber(codes, "Missing"); got != 0 {
		t.Errorf("MaxNumber(Missing) = %d, want 0", got)
	}
}

func TestMostFrequentPrefix(t *testing.T) {
	codes := FindAll("[[File:A_1.png]] [[File:B_1.png]] [[File:B_2.png]] [[File:A_2.png]]")
	got, ok := MostFrequentPrefix(codes)
	if !ok || got != "B" {
		t.Errorf("MostFrequentPrefix = %q, %v; want B (reached count 2 first)", got, ok)
	}

	if _, ok := MostFrequentPrefix(nil); ok {
		t.Error("expected no prefix for empty input")
	}
}
