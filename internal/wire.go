package internal

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/vaultsnap/internal/history"
	"github.com/starford/vaultsnap/internal/logging"
	"github.com/starford/vaultsnap/internal/noteservice"
	"github.com/starford/vaultsnap/internal/processor"
	"github.com/starford/vaultsnap/internal/settings"
	"github.com/starford/vaultsnap/internal/storage"
	"github.com/starford/vaultsnap/internal/transcode"
)

// components are the services shared by every command.
type components struct {
	store     *storage.FS
	settings  *settings.Store
	history   *history.DB // nil when disabled
	notes     *noteservice.Service
	processor *processor.Processor
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logWriter: os.Stderr}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) handler() slog.Handler {
	return logging.NewHandler(a.logWriter, a.config.App.LogLevel, a.config.App.LogFormat)
}

// build opens storage and history and wires the processor. Extra recorders
// receive every processed image after history.
func (a *application) build(logger *slog.Logger, extra ...processor.Recorder) (*components, error) {
	cfg := a.config

	// Ensure the vault and images directories exist.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	if err := os.MkdirAll(cfg.Images.Folder, 0o755); err != nil {
		return nil, fmt.Errorf("create images dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	c := &components{store: store, settings: settings.NewStore(cfg.Settings)}

	popts := []processor.Option{
		processor.WithLogger(logger),
		processor.WithTranscoder(transcode.JPEG{}),
	}
	var hist noteservice.History
	if cfg.SQLite.Enabled() {
		db, err := history.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("init history: %w", err)
		}
		c.history = db
		hist = db
		popts = append(popts, processor.WithRecorder(db))
	}
	for _, r := range extra {
		popts = append(popts, processor.WithRecorder(r))
	}

	c.notes = noteservice.NewService(store, c.settings, hist)
	c.processor = processor.New(store, c.settings, popts...)
	return c, nil
}

func (c *components) Close() error {
	if c.history == nil {
		return nil
	}
	return c.history.Close()
}
