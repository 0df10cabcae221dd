package processor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/vaultsnap/internal/apperr"
	"github.com/starford/vaultsnap/internal/models"
	"github.com/starford/vaultsnap/internal/settings"
	"github.com/starford/vaultsnap/internal/testutil"
	"github.com/starford/vaultsnap/internal/transcode"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type failingTranscoder struct{}

func (failingTranscoder) ToJPEG(context.Context, string, transcode.Options) (string, error) {
	return "", errors.New("boom")
}

type memRecorder struct {
	got []models.Processed
}

func (r *memRecorder) Record(_ context.Context, p models.Processed) error {
	r.got = append(r.got, p)
	return nil
}

type env struct {
	vault  string
	images string
	st     *settings.Store
	clock  *fakeClock
	p      *Processor
}

func baseSettings() settings.Settings {
	s := settings.Defaults()
	s.DefaultPrefix = "Game"
	s.AutoNumbering = true
	s.AutoRename = true
	s.ConvertJPG = false
	s.AddToNote = true
	s.Separator = ""
	s.Cooldown = 0
	return s
}

func newEnv(t *testing.T, s settings.Settings, opts ...Option) *env {
	t.Helper()
	vault, store := testutil.TestVault(t)
	e := &env{
		vault:  vault,
		images: t.TempDir(),
		st:     settings.NewStore(s),
		clock:  &fakeClock{t: time.Unix(1_700_000_000, 0)},
	}
	opts = append([]Option{WithLogger(testutil.Logger()), WithClock(e.clock.Now)}, opts...)
	e.p = New(store, e.st, opts...)
	return e
}

func (e *env) note(t *testing.T, rel, content string, age time.Duration) string {
	t.Helper()
	return testutil.WriteNote(t, e.vault, rel, content, time.Now().Add(-age))
}

func TestHandle_EndToEnd(t *testing.T) {
	e := newEnv(t, baseSettings())
	notePath := e.note(t, "session.md", "notes\n[[File:Game_2.png]]", time.Minute)
	img := testutil.WritePNG(t, e.images, "Screenshot 2024.png")

	res, err := e.p.Handle(context.Background(), img)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if filepath.Base(res.Final) != "Game_3.png" {
		t.Errorf("final = %q, want Game_3.png", res.Final)
	}
	if _, err := os.Stat(filepath.Join(e.images, "Game_3.png")); err != nil {
		t.Errorf("renamed file missing: %v", err)
	}
	want := "notes\n[[File:Game_2.png]]\n[[File:Game_3.png]]"
	if got := testutil.ReadFile(t, notePath); got != want {
		t.Errorf("note = %q, want %q", got, want)
	}
	if res.Code != "[[File:Game_3.png]]" || res.Number != 3 || !res.Renamed || res.Transcoded {
		t.Errorf("result = %+v", res)
	}
	if res.Checksum == "" {
		t.Error("checksum should be filled")
	}
}

func TestHandle_PicksLatestNote(t *testing.T) {
	e := newEnv(t, baseSettings())
	older := e.note(t, "old.md", "old", time.Hour)
	newer := e.note(t, "sub/new.md", "new", time.Minute)
	e.note(t, "sketch.excalidraw.md", "drawing", 0)

	if _, err := e.p.Handle(context.Background(), testutil.WritePNG(t, e.images, "a.png")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := testutil.ReadFile(t, older); got != "old" {
		t.Errorf("older note modified: %q", got)
	}
	if got := testutil.ReadFile(t, newer); got != "new\n[[File:Game_1.png]]" {
		t.Errorf("newer note = %q", got)
	}
}

func TestHandle_Cooldown(t *testing.T) {
	s := baseSettings()
	s.Cooldown = 2
	e := newEnv(t, s)
	e.note(t, "n.md", "", time.Minute)

	if _, err := e.p.Handle(context.Background(), testutil.WritePNG(t, e.images, "a.png")); err != nil {
		t.Fatalf("first Handle: %v", err)
	}

	e.clock.Advance(time.Second)
	second := testutil.WritePNG(t, e.images, "b.png")
	if _, err := e.p.Handle(context.Background(), second); !errors.Is(err, apperr.ErrCooldown) {
		t.Fatalf("err = %v, want ErrCooldown", err)
	}
	if _, err := os.Stat(second); err != nil {
		t.Error("dropped event must not touch the image")
	}

	e.clock.Advance(1500 * time.Millisecond)
	if _, err := e.p.Handle(context.Background(), second); err != nil {
		t.Fatalf("Handle after cooldown: %v", err)
	}
}

func TestHandle_FailureDoesNotAdvanceCooldown(t *testing.T) {
	s := baseSettings()
	s.Cooldown = 10
	e := newEnv(t, s)
	img := testutil.WritePNG(t, e.images, "a.png")

	if _, err := e.p.Handle(context.Background(), img); !errors.Is(err, apperr.ErrNoCandidate) {
		t.Fatalf("err = %v, want ErrNoCandidate", err)
	}

	e.note(t, "n.md", "", time.Minute)
	e.clock.Advance(time.Second)
	if _, err := e.p.Handle(context.Background(), img); err != nil {
		t.Fatalf("Handle after failed pass: %v", err)
	}
}

func TestHandle_TranscodesAndDeletesOriginal(t *testing.T) {
	s := baseSettings()
	s.ConvertJPG = true
	s.DeleteOriginal = true
	e := newEnv(t, s, WithTranscoder(transcode.JPEG{}))
	notePath := e.note(t, "n.md", "x", time.Minute)
	img := testutil.WritePNG(t, e.images, "shot.png")

	res, err := e.p.Handle(context.Background(), img)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !res.Transcoded || filepath.Base(res.Final) != "Game_1.jpg" {
		t.Errorf("result = %+v", res)
	}
	if _, err := os.Stat(img); !os.IsNotExist(err) {
		t.Error("original should be deleted")
	}
	if got := testutil.ReadFile(t, notePath); got != "x\n[[File:Game_1.jpg]]" {
		t.Errorf("note = %q", got)
	}

	// The rename target comes back as a watcher event.
	if _, err := e.p.Handle(context.Background(), res.Final); !errors.Is(err, ErrOwnFile) {
		t.Errorf("Handle(%s) err = %v, want ErrOwnFile", filepath.Base(res.Final), err)
	}
}

func TestHandle_SameStemJPEGAfterTranscode(t *testing.T) {
	s := baseSettings()
	s.ConvertJPG = true
	e := newEnv(t, s, WithTranscoder(transcode.JPEG{}))
	notePath := e.note(t, "n.md", "x", time.Minute)

	if _, err := e.p.Handle(context.Background(), testutil.WritePNG(t, e.images, "photo.png")); err != nil {
		t.Fatalf("first Handle: %v", err)
	}

	// A new file with the transcode output's old name is a user image.
	img := filepath.Join(e.images, "photo.jpg")
	if err := os.WriteFile(img, []byte("\xff\xd8\xff\xe0jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}
	e.clock.Advance(5 * time.Second)

	res, err := e.p.Handle(context.Background(), img)
	if err != nil {
		t.Fatalf("second Handle: %v", err)
	}
	if filepath.Base(res.Final) != "Game_2.jpg" {
		t.Errorf("final = %q, want Game_2.jpg", res.Final)
	}
	if got := testutil.ReadFile(t, notePath); got != "x\n[[File:Game_1.jpg]]\n[[File:Game_2.jpg]]" {
		t.Errorf("note = %q", got)
	}
}

func TestHandle_ConvertDirectiveOverridesSettings(t *testing.T) {
	e := newEnv(t, baseSettings(), WithTranscoder(transcode.JPEG{}))
	e.note(t, "n.md", "$convert=yes\n$quality=40\n$bg=000000", time.Minute)

	res, err := e.p.Handle(context.Background(), testutil.WritePNG(t, e.images, "a.png"))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !res.Transcoded || filepath.Ext(res.Final) != ".jpg" {
		t.Errorf("result = %+v", res)
	}
}

func TestHandle_TranscoderUnavailable(t *testing.T) {
	s := baseSettings()
	s.ConvertJPG = true
	e := newEnv(t, s)
	e.note(t, "n.md", "", time.Minute)

	res, err := e.p.Handle(context.Background(), testutil.WritePNG(t, e.images, "a.png"))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.Transcoded || filepath.Base(res.Final) != "Game_1.png" {
		t.Errorf("result = %+v", res)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], apperr.ErrTranscodeUnavailable.Error()) {
		t.Errorf("warnings = %v", res.Warnings)
	}
}

func TestHandle_TranscoderFailureContinues(t *testing.T) {
	s := baseSettings()
	s.ConvertJPG = true
	e := newEnv(t, s, WithTranscoder(failingTranscoder{}))
	notePath := e.note(t, "n.md", "", time.Minute)

	res, err := e.p.Handle(context.Background(), testutil.WritePNG(t, e.images, "a.png"))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if filepath.Base(res.Final) != "Game_1.png" {
		t.Errorf("final = %q, want original extension kept", res.Final)
	}
	if len(res.Warnings) == 0 || !strings.Contains(res.Warnings[0], "boom") {
		t.Errorf("warnings = %v", res.Warnings)
	}
	if got := testutil.ReadFile(t, notePath); got != "\n[[File:Game_1.png]]" {
		t.Errorf("note = %q", got)
	}
}

func TestHandle_DirectivesAndCleanCommands(t *testing.T) {
	s := baseSettings()
	s.CleanCommands = true
	e := newEnv(t, s)
	content := "# Run\n$prefix=Shot\n$sep=---\n$format=![[{filename}]]\n\nBody\n[[File:Shot_4.png]]"
	notePath := e.note(t, "n.md", content, time.Minute)

	res, err := e.p.Handle(context.Background(), testutil.WritePNG(t, e.images, "a.png"))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.Code != "![[Shot_5.png]]" {
		t.Errorf("code = %q", res.Code)
	}
	want := "# Run\n\nBody\n[[File:Shot_4.png]]\n---![[Shot_5.png]]"
	if got := testutil.ReadFile(t, notePath); got != want {
		t.Errorf("note = %q, want %q", got, want)
	}
}

func TestHandle_DisabledDirectiveIgnored(t *testing.T) {
	s := baseSettings()
	s.EnabledCommands = map[string]bool{"prefix": false}
	e := newEnv(t, s)
	e.note(t, "n.md", "$prefix=Shot", time.Minute)

	res, err := e.p.Handle(context.Background(), testutil.WritePNG(t, e.images, "a.png"))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.Prefix != "Game" {
		t.Errorf("prefix = %q, want Game", res.Prefix)
	}
}

func TestHandle_RenameDisabled(t *testing.T) {
	e := newEnv(t, baseSettings())
	notePath := e.note(t, "n.md", "$rename=off", time.Minute)
	img := testutil.WritePNG(t, e.images, "Screen Shot.png")

	res, err := e.p.Handle(context.Background(), img)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.Final != img || res.Renamed || res.Number != 0 {
		t.Errorf("result = %+v", res)
	}
	if got := testutil.ReadFile(t, notePath); got != "$rename=off\n[[File:Screen Shot.png]]" {
		t.Errorf("note = %q", got)
	}
}

func TestHandle_NumberingDisabledUsesTimestamp(t *testing.T) {
	s := baseSettings()
	s.AutoNumbering = false
	e := newEnv(t, s)
	e.note(t, "n.md", "[[File:Game_9.png]]", time.Minute)

	res, err := e.p.Handle(context.Background(), testutil.WritePNG(t, e.images, "a.png"))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if filepath.Base(res.Final) != "Game_1700000000.png" {
		t.Errorf("final = %q", res.Final)
	}
}

func TestHandle_RenameConflictKeepsName(t *testing.T) {
	e := newEnv(t, baseSettings())
	e.note(t, "n.md", "", time.Minute)
	if err := os.WriteFile(filepath.Join(e.images, "Game_1.png"), []byte("taken"), 0o644); err != nil {
		t.Fatal(err)
	}
	img := testutil.WritePNG(t, e.images, "a.png")

	res, err := e.p.Handle(context.Background(), img)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.Final != img || res.Renamed {
		t.Errorf("result = %+v", res)
	}
	if len(res.Warnings) == 0 || !strings.Contains(res.Warnings[0], apperr.ErrRenameFailed.Error()) {
		t.Errorf("warnings = %v", res.Warnings)
	}
	if res.Code != "[[File:a.png]]" {
		t.Errorf("code = %q", res.Code)
	}
}

func TestHandle_AddToNoteDisabled(t *testing.T) {
	s := baseSettings()
	s.AddToNote = false
	s.ConvertJPG = true
	e := newEnv(t, s, WithTranscoder(transcode.JPEG{}))
	notePath := e.note(t, "n.md", "untouched", time.Minute)

	res, err := e.p.Handle(context.Background(), testutil.WritePNG(t, e.images, "a.png"))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !res.Transcoded || res.Note != "" || res.Code != "" {
		t.Errorf("result = %+v", res)
	}
	if got := testutil.ReadFile(t, notePath); got != "untouched" {
		t.Errorf("note modified: %q", got)
	}
}

func TestHandle_AutomaticPrefix(t *testing.T) {
	s := baseSettings()
	s.AutomaticPrefixEnabled = true
	s.AutomaticPrefixUser = "Foo-"
	e := newEnv(t, s)
	e.note(t, "Good Vibrations.md", "[[File:Foo-GoodVibrations_5.png]]", time.Minute)

	res, err := e.p.Handle(context.Background(), testutil.WritePNG(t, e.images, "a.png"))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if filepath.Base(res.Final) != "Foo-GoodVibrations_1.png" {
		t.Errorf("final = %q", res.Final)
	}
}

func TestHandle_SettingsChangeBetweenEvents(t *testing.T) {
	e := newEnv(t, baseSettings())
	e.note(t, "n.md", "", time.Minute)

	if _, err := e.p.Handle(context.Background(), testutil.WritePNG(t, e.images, "a.png")); err != nil {
		t.Fatal(err)
	}
	if _, err := e.st.Update(func(s *settings.Settings) error {
		s.OverridePrefix = "Live"
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	res, err := e.p.Handle(context.Background(), testutil.WritePNG(t, e.images, "b.png"))
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(res.Final) != "Live_1.png" {
		t.Errorf("final = %q, want Live_1.png", res.Final)
	}
}

func TestHandle_RecorderAndLast(t *testing.T) {
	rec := &memRecorder{}
	e := newEnv(t, baseSettings(), WithRecorder(rec))
	e.note(t, "n.md", "", time.Minute)

	if e.p.Last() != nil {
		t.Fatal("Last should be nil before any pass")
	}
	res, err := e.p.Handle(context.Background(), testutil.WritePNG(t, e.images, "a.png"))
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.got) != 1 || rec.got[0].ID != res.ID {
		t.Errorf("recorded = %+v", rec.got)
	}
	if last := e.p.Last(); last == nil || last.ID != res.ID {
		t.Errorf("Last = %+v", last)
	}
}

func TestSelectNote_Cache(t *testing.T) {
	e := newEnv(t, baseSettings())
	a := e.note(t, "a.md", "a", time.Hour)
	s := e.st.Snapshot()
	ctx := context.Background()

	m, err := e.p.selectNote(ctx, s)
	if err != nil || m.Path != "a.md" {
		t.Fatalf("selectNote = %+v, %v", m, err)
	}
	if !e.p.cache.valid {
		t.Fatal("cache should be valid after a scan")
	}

	// An unchanged cached note is reused without rescanning.
	e.note(t, "b.md", "b", time.Minute)
	if m, _ := e.p.selectNote(ctx, s); m.Path != "a.md" {
		t.Errorf("expected cached a.md, got %q", m.Path)
	}

	// A vanished note forces a rescan.
	if err := os.Remove(a); err != nil {
		t.Fatal(err)
	}
	if m, _ := e.p.selectNote(ctx, s); m.Path != "b.md" {
		t.Errorf("expected rescan to find b.md, got %q", m.Path)
	}

	// Changing the listing scope also forces a rescan.
	e.note(t, "deep/c.md", "c", 0)
	s.Recursive = !s.Recursive
	if _, err := e.p.selectNote(ctx, s); err != nil {
		t.Fatal(err)
	}
	if e.p.cache.scope != scopeKey(ListOptions(s)) {
		t.Error("cache scope not refreshed")
	}
}

func TestHandle_WriteInvalidatesCache(t *testing.T) {
	e := newEnv(t, baseSettings())
	e.note(t, "n.md", "", time.Minute)
	if _, err := e.p.Handle(context.Background(), testutil.WritePNG(t, e.images, "a.png")); err != nil {
		t.Fatal(err)
	}
	if e.p.cache.valid {
		t.Error("cache must be invalid after writing the note")
	}
}
