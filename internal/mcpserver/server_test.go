package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/vaultsnap/internal/history"
	"github.com/starford/vaultsnap/internal/models"
	"github.com/starford/vaultsnap/internal/noteservice"
	"github.com/starford/vaultsnap/internal/processor"
	"github.com/starford/vaultsnap/internal/settings"
	"github.com/starford/vaultsnap/internal/testutil"
)

type testEnv struct {
	srv    *Server
	vault  string
	images string
	db     *history.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	vault, store := testutil.TestVault(t)
	db := testutil.TestHistory(t)
	images := t.TempDir()

	s := settings.Defaults()
	s.DefaultPrefix = "Game"
	s.ConvertJPG = false
	s.Cooldown = 0
	st := settings.NewStore(s)

	proc := processor.New(store, st, processor.WithLogger(testutil.Logger()), processor.WithRecorder(db))
	svc := noteservice.NewService(store, st, db)
	return &testEnv{srv: New(svc, images, proc), vault: vault, images: images, db: db}
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so handlers are called directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "parse_directives":
		result, err = srv.parseDirectives(ctx, req)
	case "preview_note":
		result, err = srv.previewNote(ctx, req)
	case "list_history":
		result, err = srv.listHistory(ctx, req)
	case "get_directive_reference":
		result, err = srv.getDirectiveReference(ctx, req)
	case "import_image":
		result, err = srv.importImage(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestParseDirectives(t *testing.T) {
	env := newTestEnv(t)
	r := callTool(t, env.srv, "parse_directives", map[string]any{
		"content": "$pre=Boss\n$quality=250\n\n\n[[File:Boss_4.png|arena]]",
		"strip":   true,
	})
	if r.IsError {
		t.Fatalf("error: %s", resultText(r))
	}
	var got parseResult
	if err := json.Unmarshal([]byte(resultText(r)), &got); err != nil {
		t.Fatal(err)
	}
	if got.Directives.Prefix == nil || *got.Directives.Prefix != "Boss" {
		t.Errorf("prefix = %v", got.Directives.Prefix)
	}
	if got.Directives.Quality == nil || *got.Directives.Quality != 100 {
		t.Errorf("quality = %v", got.Directives.Quality)
	}
	if len(got.Codes) != 1 || got.Codes[0].Caption != "arena" {
		t.Errorf("codes = %+v", got.Codes)
	}
	if got.Stripped == nil || strings.Contains(*got.Stripped, "$pre") || !strings.Contains(*got.Stripped, "[[File:Boss_4.png|arena]]") {
		t.Errorf("stripped = %v", got.Stripped)
	}
}

func TestParseDirectives_MissingContent(t *testing.T) {
	env := newTestEnv(t)
	if r := callTool(t, env.srv, "parse_directives", map[string]any{}); !r.IsError {
		t.Error("expected error without content")
	}
}

func TestPreviewNote(t *testing.T) {
	env := newTestEnv(t)
	if r := callTool(t, env.srv, "preview_note", map[string]any{}); !r.IsError || resultText(r) != "no note in vault" {
		t.Errorf("empty vault result = %q", resultText(r))
	}

	testutil.WriteNote(t, env.vault, "run.md", "[[File:Game_7.png]]", time.Now())
	r := callTool(t, env.srv, "preview_note", map[string]any{"ext": ".png"})
	if r.IsError {
		t.Fatalf("error: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), `"next_name": "Game_8.png"`) {
		t.Errorf("preview = %s", resultText(r))
	}
}

func TestListHistory(t *testing.T) {
	env := newTestEnv(t)
	if got := resultText(callTool(t, env.srv, "list_history", map[string]any{})); got != "no images processed yet" {
		t.Errorf("empty history = %q", got)
	}
	_ = env.db.Record(context.Background(), models.Processed{ID: "x", Code: "[[File:Game_1.png]]", At: time.Now()})
	r := callTool(t, env.srv, "list_history", map[string]any{"limit": 5})
	if !strings.Contains(resultText(r), "Game_1.png") {
		t.Errorf("history = %s", resultText(r))
	}
}

func TestGetDirectiveReference(t *testing.T) {
	env := newTestEnv(t)
	r := callTool(t, env.srv, "get_directive_reference", nil)
	if resultText(r) != DirectiveReference {
		t.Error("reference text mismatch")
	}
}

func TestImportImage_DataURI(t *testing.T) {
	env := newTestEnv(t)
	note := testutil.WriteNote(t, env.vault, "run.md", "notes", time.Now())

	raw, err := os.ReadFile(testutil.WritePNG(t, t.TempDir(), "src.png"))
	if err != nil {
		t.Fatal(err)
	}
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)

	r := callTool(t, env.srv, "import_image", map[string]any{"url": uri, "filename": "pasted.png"})
	if r.IsError {
		t.Fatalf("error: %s", resultText(r))
	}
	if _, err := os.Stat(filepath.Join(env.images, "Game_1.png")); err != nil {
		t.Errorf("processed image missing: %v", err)
	}
	if got := testutil.ReadFile(t, note); got != "notes\n[[File:Game_1.png]]" {
		t.Errorf("note = %q", got)
	}

	// Same name again must not overwrite.
	_ = os.WriteFile(filepath.Join(env.images, "pasted.png"), raw, 0o644)
	if r := callTool(t, env.srv, "import_image", map[string]any{"url": uri, "filename": "pasted.png"}); !r.IsError {
		t.Error("expected error for existing file")
	}
}

func TestImportImage_Rejects(t *testing.T) {
	env := newTestEnv(t)
	for name, args := range map[string]map[string]any{
		"scheme":    {"url": "ftp://example.com/a.png"},
		"loopback":  {"url": "http://127.0.0.1/a.png"},
		"private":   {"url": "http://10.0.0.1/a.png"},
		"linklocal": {"url": "http://169.254.169.254/latest/meta-data"},
		"zero":      {"url": "http://0.0.0.0/a.png"},
		"mime":      {"url": "data:text/plain;base64,aGVsbG8="},
		"mismatch":  {"url": "data:image/png;base64,aGVsbG8=", "filename": "a.png"},
		"ext":       {"url": "data:image/png;base64,aGVsbG8=", "filename": "a.svg"},
	} {
		if r := callTool(t, env.srv, "import_image", args); !r.IsError {
			t.Errorf("%s: expected error, got %s", name, resultText(r))
		}
	}
}

func TestCheckBlockedHost(t *testing.T) {
	for _, host := range []string{
		"127.0.0.1", "::1", "10.0.0.1", "192.168.1.1", "172.16.0.5",
		"169.254.1.1", "169.254.169.254", "fe80::1", "fd00::1", "0.0.0.0", "::",
		"metadata.google.internal",
	} {
		if err := checkBlockedHost(host); err == nil {
			t.Errorf("checkBlockedHost(%q) = nil, want error", host)
		}
	}
	for _, host := range []string{"93.184.216.34", "2606:2800:220:1:248:1893:25c8:1946"} {
		if err := checkBlockedHost(host); err != nil {
			t.Errorf("checkBlockedHost(%q) = %v, want nil", host, err)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	for in, want := range map[string]string{
		"../../etc/passwd.png": "passwd.png",
		"my shot (1).png":      "my_shot__1_.png",
	} {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
