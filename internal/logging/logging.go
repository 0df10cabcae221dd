// Package logging builds the application's slog handlers.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/starford/vaultsnap/internal/sse"
)

// Output formats.
const (
	FormatAuto = "auto"
	FormatJSON = "json"
	FormatText = "text"
)

// NewHandler returns a JSON handler, or a text handler when format is text
// or format is auto and w is a terminal.
func NewHandler(w io.Writer, level slog.Leveler, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == FormatText || (format == FormatAuto && isTerminal(w)) {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// LogPublisher receives log lines at or above the tee level.
type LogPublisher interface {
	PublishLog(sse.LogLine)
}

// Tee forwards records to next and, at or above level, to pub.
type Tee struct {
	next  slog.Handler
	pub   LogPublisher
	level slog.Leveler
	attrs []slog.Attr
	group string
}

// NewTee wraps next.
func NewTee(next slog.Handler, pub LogPublisher, level slog.Leveler) *Tee {
	return &Tee{next: next, pub: pub, level: level}
}

// Enabled implements slog.Handler.
func (t *Tee) Enabled(ctx context.Context, l slog.Level) bool {
	return t.next.Enabled(ctx, l) || l >= t.level.Level()
}

// Handle implements slog.Handler.
func (t *Tee) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= t.level.Level() {
		line := logLine{LogLine: sse.LogLine{
			Time:    r.Time,
			Level:   r.Level.String(),
			Message: r.Message,
		}}
		for _, a := range t.attrs {
			line.set(a.Key, a.Value)
		}
		r.Attrs(func(a slog.Attr) bool {
			line.set(t.key(a.Key), a.Value)
			return true
		})
		t.pub.PublishLog(line.LogLine)
	}
	if t.next.Enabled(ctx, r.Level) {
		return t.next.Handle(ctx, r)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (t *Tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *t
	cp.next = t.next.WithAttrs(attrs)
	cp.attrs = append([]slog.Attr(nil), t.attrs...)
	for _, a := range attrs {
		cp.attrs = append(cp.attrs, slog.Attr{Key: t.key(a.Key), Value: a.Value})
	}
	return &cp
}

// WithGroup implements slog.Handler.
func (t *Tee) WithGroup(name string) slog.Handler {
	cp := *t
	cp.next = t.next.WithGroup(name)
	cp.group = strings.TrimPrefix(t.group+"."+name, ".")
	return &cp
}

func (t *Tee) key(k string) string {
	if t.group == "" {
		return k
	}
	return t.group + "." + k
}

type logLine struct {
	sse.LogLine
}

func (l *logLine) set(key string, v slog.Value) {
	if l.Attrs == nil {
		l.Attrs = make(map[string]string)
	}
	l.Attrs[key] = v.Resolve().String()
}
