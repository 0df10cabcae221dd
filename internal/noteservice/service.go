// Package noteservice answers read-only questions about the vault: which
// note the next image would land in and what it would be called.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/starford/vaultsnap/internal/apperr"
	"github.com/starford/vaultsnap/internal/checksum"
	"github.com/starford/vaultsnap/internal/directive"
	"github.com/starford/vaultsnap/internal/models"
	"github.com/starford/vaultsnap/internal/prefix"
	"github.com/starford/vaultsnap/internal/processor"
	"github.com/starford/vaultsnap/internal/refcode"
	"github.com/starford/vaultsnap/internal/settings"
	"github.com/starford/vaultsnap/internal/storage"
	"github.com/starford/vaultsnap/internal/transcode"
)

// DefaultExt is used for previews when the caller names no image extension.
const DefaultExt = ".png"

// History is the subset of the history store used for previews.
type History interface {
	ForNote(ctx context.Context, note string) ([]models.Processed, error)
	Recent(ctx context.Context, limit int) ([]models.Processed, error)
	Get(ctx context.Context, id string) (models.Processed, error)
}

// Preview describes what the next pass would do to a note.
type Preview struct {
	Note       models.NoteMetadata `json:"note"`
	Checksum   string              `json:"checksum"`
	Directives directive.Set       `json:"directives"`
	Effective  processor.Effective `json:"effective"`
	Resolution prefix.Resolution   `json:"resolution"`
	NextName   string              `json:"next_name"`
	Code       string              `json:"code"`
	Codes      []refcode.Code      `json:"codes"`
	History    []models.Processed  `json:"history,omitempty"`
}

// Service builds previews from the live settings.
type Service struct {
	store    storage.Provider
	settings *settings.Store
	history  History
	now      func() time.Time
}

// NewService creates a new note service. history may be nil.
func NewService(store storage.Provider, st *settings.Store, history History) *Service {
	return &Service{store: store, settings: st, history: history, now: time.Now}
}

// Settings returns the live settings snapshot.
func (s *Service) Settings() settings.Settings {
	return s.settings.Snapshot()
}

// Preview inspects the note at path, or the latest note when path is
// empty. ext is the extension of the hypothetical image.
func (s *Service) Preview(ctx context.Context, path, ext string) (*Preview, error) {
	st := s.settings.Snapshot()

	var (
		meta models.NoteMetadata
		err  error
	)
	if path == "" {
		meta, err = s.store.Latest(processor.ListOptions(st))
	} else {
		meta, err = s.store.Stat(path)
	}
	if err != nil {
		return nil, err
	}

	data, err := s.store.Read(meta.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("noteservice: %s: %w", meta.Path, apperr.ErrNotFound)
		}
		return nil, err
	}
	content := string(data)

	if ext == "" {
		ext = DefaultExt
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	d := directive.Parse(content).Filter(st.CommandEnabled)
	eff := processor.Merge(d, st)
	res := prefix.Resolve(content, d, st, meta.Path)

	// Conversion is assumed to succeed.
	name := "image" + ext
	if eff.Convert {
		name = "image" + transcode.TargetExt
	}
	if eff.Rename {
		name, _ = processor.TargetName(res, eff, name, s.now())
	}

	p := &Preview{
		Note:       meta,
		Checksum:   checksum.Sum(data),
		Directives: d,
		Effective:  eff,
		Resolution: res,
		NextName:   name,
		Code:       eff.Code(name),
		Codes:      nonNilSlice(refcode.FindAll(content)),
	}

	if s.history != nil {
		h, err := s.history.ForNote(ctx, meta.Path)
		if err != nil {
			return nil, err
		}
		p.History = h
	}
	return p, nil
}

// Recent returns the latest processed images, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]models.Processed, error) {
	if s.history == nil {
		return []models.Processed{}, nil
	}
	out, err := s.history.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(out), nil
}

// Entry returns one processed image by ID.
func (s *Service) Entry(ctx context.Context, id string) (models.Processed, error) {
	if s.history == nil {
		return models.Processed{}, fmt.Errorf("noteservice: history disabled: %w", apperr.ErrNotFound)
	}
	return s.history.Get(ctx, id)
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// UpdateSettings applies fn to the current settings and, if the result
// validates, makes it live for the next pass.
func (s *Service) UpdateSettings(fn func(*settings.Settings) error) (settings.Settings, error) {
	return s.settings.Update(fn)
}
