// Package processor runs one pass per newly created image: it picks the
// target note, reads its directives, converts and renames the image and
// appends a reference code to the note in a single write.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/vaultsnap/internal/apperr"
	"github.com/starford/vaultsnap/internal/checksum"
	"github.com/starford/vaultsnap/internal/directive"
	"github.com/starford/vaultsnap/internal/models"
	"github.com/starford/vaultsnap/internal/prefix"
	"github.com/starford/vaultsnap/internal/settings"
	"github.com/starford/vaultsnap/internal/storage"
	"github.com/starford/vaultsnap/internal/transcode"
)

// ErrOwnFile is returned for watcher events caused by the processor's own
// transcode output or rename target.
var ErrOwnFile = errors.New("file produced by processor")

// producedTTL bounds how long an own file is remembered if its event never
// arrives.
const producedTTL = time.Minute

// Logger is the only reporting dependency of the processor. *slog.Logger
// satisfies it.
type Logger interface {
	Log(ctx context.Context, level slog.Level, msg string, args ...any)
}

// Recorder receives every successful pass.
type Recorder interface {
	Record(ctx context.Context, p models.Processed) error
}

// Option configures a Processor.
type Option func(*Processor)

// WithTranscoder sets the image transcoder. Without one, conversion is
// reported as unavailable and skipped.
func WithTranscoder(t transcode.Transcoder) Option {
	return func(p *Processor) { p.transcoder = t }
}

// WithRecorder adds a recorder notified after each successful pass.
func WithRecorder(r Recorder) Option {
	return func(p *Processor) { p.recorders = append(p.recorders, r) }
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// Processor handles image events one at a time.
type Processor struct {
	store      storage.Provider
	settings   *settings.Store
	transcoder transcode.Transcoder
	recorders  []Recorder
	logger     Logger
	now        func() time.Time

	mu            sync.Mutex
	lastProcessed time.Time
	last          *models.Processed
	cache         selection
	produced      map[string]time.Time
}

// New creates a Processor. Settings are read from st at the start of every
// pass, so changes apply to the next event.
func New(store storage.Provider, st *settings.Store, opts ...Option) *Processor {
	p := &Processor{
		store:    store,
		settings: st,
		logger:   slog.Default(),
		now:      time.Now,
		produced: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Last returns the most recent successful result, or nil.
func (p *Processor) Last() *models.Processed {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return nil
	}
	cp := *p.last
	return &cp
}

// Handle processes the image at src. Passes are serialised; a pass that
// starts within the cooldown of the last successful one returns
// apperr.ErrCooldown without side effects.
func (p *Processor) Handle(ctx context.Context, src string) (*models.Processed, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := p.now()
	if p.consumeProduced(src, start) {
		p.logger.Log(ctx, slog.LevelDebug, "processor: ignoring own file", slog.String("path", src))
		return nil, ErrOwnFile
	}

	s := p.settings.Snapshot()
	if !p.lastProcessed.IsZero() && start.Sub(p.lastProcessed) < s.CooldownDuration() {
		p.logger.Log(ctx, slog.LevelInfo, "processor: cooldown active, ignoring",
			slog.String("path", src))
		return nil, apperr.ErrCooldown
	}

	p.logger.Log(ctx, slog.LevelInfo, "processor: processing image", slog.String("path", src))
	out, err := p.run(ctx, s, src, start)
	if err != nil {
		p.logger.Log(ctx, slog.LevelError, "processor: pass aborted",
			slog.String("path", src), slog.String("error", err.Error()))
		return nil, err
	}

	p.lastProcessed = start
	p.last = out
	for _, r := range p.recorders {
		if err := r.Record(ctx, *out); err != nil {
			p.logger.Log(ctx, slog.LevelWarn, "processor: record failed", slog.String("error", err.Error()))
		}
	}
	p.logger.Log(ctx, slog.LevelInfo, "processor: done",
		slog.String("final", out.Final),
		slog.String("note", out.Note),
		slog.String("code", out.Code),
		slog.Duration("took", p.now().Sub(start)))
	return out, nil
}

func (p *Processor) run(ctx context.Context, s settings.Settings, src string, start time.Time) (*models.Processed, error) {
	out := &models.Processed{ID: uuid.NewString(), Source: src, At: start}

	if !s.AddToNote {
		out.Final = p.transcode(ctx, Merge(directive.Set{}, s), s, src, out)
		p.logger.Log(ctx, slog.LevelInfo, "processor: note insertion disabled")
		p.fillChecksum(ctx, out)
		return out, nil
	}

	note, err := p.selectNote(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("select note: %w", err)
	}
	data, err := p.store.Read(note.Path)
	if err != nil {
		p.invalidate()
		return nil, fmt.Errorf("read note: %w", err)
	}
	content := string(data)

	d := directive.Parse(content).Filter(s.CommandEnabled)
	for _, k := range d.Keys() {
		p.logger.Log(ctx, slog.LevelInfo, "processor: note directive",
			slog.String("key", string(k)), slog.String("value", d.String(k)))
	}
	eff := Merge(d, s)

	processed := p.transcode(ctx, eff, s, src, out)
	res := prefix.Resolve(content, d, s, note.Path)
	p.logger.Log(ctx, slog.LevelInfo, "processor: resolved prefix",
		slog.String("prefix", res.Prefix), slog.String("tier", string(res.Tier)), slog.Int("last", res.Last))

	final := p.rename(ctx, eff, res, processed, out)
	out.Final = final
	out.Prefix = res.Prefix
	out.Note = note.Path
	out.Code = eff.Code(filepath.Base(final))

	body := eff.Append(content, out.Code, s.CleanCommands && !d.Empty())
	if err := p.store.Write(note.Path, []byte(body)); err != nil {
		p.invalidate()
		return nil, fmt.Errorf("write note: %w", err)
	}
	p.invalidate()

	p.fillChecksum(ctx, out)
	return out, nil
}

// transcode converts src when conversion is effective. It never fails the
// pass: on any problem the original file is returned.
func (p *Processor) transcode(ctx context.Context, e Effective, s settings.Settings, src string, out *models.Processed) string {
	if !e.Convert {
		p.logger.Log(ctx, slog.LevelDebug, "processor: conversion disabled", slog.String("path", src))
		return src
	}
	if transcode.IsJPEG(src) {
		p.logger.Log(ctx, slog.LevelInfo, "processor: already jpeg", slog.String("path", src))
		return src
	}
	if p.transcoder == nil {
		p.warn(ctx, out, apperr.ErrTranscodeUnavailable)
		return src
	}

	bg, err := transcode.ParseColor(e.BgColor)
	if err != nil {
		p.warn(ctx, out, fmt.Errorf("background %s, using white: %w", e.BgColor, err))
	}

	dst, err := p.transcoder.ToJPEG(ctx, src, transcode.Options{Quality: e.Quality, Background: bg})
	if err != nil {
		p.warn(ctx, out, fmt.Errorf("%w: %w", apperr.ErrTranscodeFailed, err))
		return src
	}
	p.markProduced(dst)
	out.Transcoded = true
	p.logger.Log(ctx, slog.LevelInfo, "processor: converted",
		slog.String("path", dst), slog.Int("quality", e.Quality))

	if s.DeleteOriginal && dst != src {
		if err := os.Remove(src); err != nil {
			p.warn(ctx, out, fmt.Errorf("delete original: %w", err))
		}
	}
	return dst
}

// rename moves file to its target name when renaming is effective. On
// failure the current name is kept.
func (p *Processor) rename(ctx context.Context, e Effective, res prefix.Resolution, file string, out *models.Processed) string {
	if !e.Rename {
		return file
	}
	name, number := TargetName(res, e, file, p.now())
	dst := filepath.Join(filepath.Dir(file), name)
	if dst == file {
		out.Number = number
		return file
	}

	if _, err := os.Stat(dst); err == nil {
		p.warn(ctx, out, fmt.Errorf("%w: %s already exists", apperr.ErrRenameFailed, name))
		return file
	}
	p.markProduced(dst)
	if err := os.Rename(file, dst); err != nil {
		delete(p.produced, dst)
		p.warn(ctx, out, fmt.Errorf("%w: %w", apperr.ErrRenameFailed, err))
		return file
	}
	// The pre-rename path is gone, so its event must not shadow a later file.
	delete(p.produced, filepath.Clean(file))
	out.Renamed = true
	out.Number = number
	p.logger.Log(ctx, slog.LevelInfo, "processor: renamed",
		slog.String("from", filepath.Base(file)), slog.String("to", name))
	return dst
}

func (p *Processor) fillChecksum(ctx context.Context, out *models.Processed) {
	sum, err := checksum.File(out.Final)
	if err != nil {
		p.logger.Log(ctx, slog.LevelDebug, "processor: checksum failed", slog.String("error", err.Error()))
		return
	}
	out.Checksum = sum
}

func (p *Processor) warn(ctx context.Context, out *models.Processed, err error) {
	out.Warnings = append(out.Warnings, err.Error())
	p.logger.Log(ctx, slog.LevelWarn, "processor: "+err.Error())
}

func (p *Processor) markProduced(path string) {
	p.produced[filepath.Clean(path)] = p.now()
}

// consumeProduced reports whether path was produced by an earlier pass and
// forgets it. Stale entries are pruned.
func (p *Processor) consumeProduced(path string, now time.Time) bool {
	for k, at := range p.produced {
		if now.Sub(at) > producedTTL {
			delete(p.produced, k)
		}
	}
	key := filepath.Clean(path)
	if _, ok := p.produced[key]; ok {
		delete(p.produced, key)
		return true
	}
	return false
}
