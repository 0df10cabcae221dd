package processor

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/vaultsnap/internal/models"
	"github.com/starford/vaultsnap/internal/settings"
	"github.com/starford/vaultsnap/internal/storage"
)

// selection caches the last chosen note. It is trusted only while the note
// still exists, its modification time has not advanced past the cached one,
// and the listing options are unchanged.
type selection struct {
	path    string
	modTime time.Time
	scope   string
	valid   bool
}

// ListOptions returns the note listing options for s.
func ListOptions(s settings.Settings) storage.ListOptions {
	return storage.ListOptions{
		Recursive:    s.Recursive,
		SkipSuffixes: s.SkipSuffixes(),
	}
}

func scopeKey(o storage.ListOptions) string {
	r := "flat"
	if o.Recursive {
		r = "recursive"
	}
	return r + "|" + strings.Join(o.SkipSuffixes, ",")
}

func (p *Processor) selectNote(ctx context.Context, s settings.Settings) (models.NoteMetadata, error) {
	opts := ListOptions(s)
	scope := scopeKey(opts)

	if c := p.cache; c.valid && c.scope == scope {
		m, err := p.store.Stat(c.path)
		if err == nil && !m.ModTime.After(c.modTime) {
			p.logger.Log(ctx, slog.LevelDebug, "processor: using cached note", slog.String("note", c.path))
			return m, nil
		}
		p.cache.valid = false
	}

	p.logger.Log(ctx, slog.LevelDebug, "processor: scanning vault for latest note")
	m, err := p.store.Latest(opts)
	if err != nil {
		return models.NoteMetadata{}, err
	}
	p.cache = selection{path: m.Path, modTime: m.ModTime, scope: scope, valid: true}
	p.logger.Log(ctx, slog.LevelInfo, "processor: selected note", slog.String("note", m.Path))
	return m, nil
}

func (p *Processor) invalidate() {
	p.cache.valid = false
}
