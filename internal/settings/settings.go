// Package settings holds the flat processing settings consulted on every
// image event and a store that lets them change while the watcher runs.
package settings

import (
	"fmt"
	"maps"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/vaultsnap/internal/directive"
	"github.com/starford/vaultsnap/internal/refcode"
)

// ExcalidrawSuffix marks drawing notes that are never chosen as targets.
const ExcalidrawSuffix = ".excalidraw.md"

var hexColorRe = regexp.MustCompile(`^#?[0-9A-Fa-f]{6}$`)

// Settings are the processing options. Keys mirror the directive vocabulary
// where a directive can override them.
type Settings struct {
	DefaultPrefix          string `yaml:"default_prefix" json:"default_prefix"`
	OverridePrefix         string `yaml:"override_prefix" json:"override_prefix"`
	AutomaticPrefixEnabled bool   `yaml:"automatic_prefix_enabled" json:"automatic_prefix_enabled"`
	AutomaticPrefixUser    string `yaml:"automatic_prefix_user" json:"automatic_prefix_user"`

	AutoNumbering bool `yaml:"auto_numbering" json:"auto_numbering"`
	AutoRename    bool `yaml:"auto_rename" json:"auto_rename"`

	ConvertJPG     bool   `yaml:"convert_jpg" json:"convert_jpg"`
	JPGQuality     int    `yaml:"jpg_quality" json:"jpg_quality"`
	BgColor        string `yaml:"bg_color" json:"bg_color"`
	DeleteOriginal bool   `yaml:"delete_original" json:"delete_original"`

	AddToNote     bool   `yaml:"add_to_note" json:"add_to_note"`
	ImageFormat   string `yaml:"image_format" json:"image_format"`
	Separator     string `yaml:"separator" json:"separator"`
	CleanCommands bool   `yaml:"clean_commands" json:"clean_commands"`

	// Cooldown is the minimum number of seconds between two processed events.
	Cooldown       float64 `yaml:"cooldown" json:"cooldown"`
	Recursive      bool    `yaml:"recursive" json:"recursive"`
	SkipExcalidraw bool    `yaml:"skip_excalidraw" json:"skip_excalidraw"`

	// NoteCommands toggles directive parsing as a whole. EnabledCommands can
	// switch off single directive keys; a missing key counts as enabled.
	NoteCommands    bool            `yaml:"note_commands" json:"note_commands"`
	EnabledCommands map[string]bool `yaml:"enabled_commands,omitempty" json:"enabled_commands,omitempty"`
}

// Defaults returns the settings used when no configuration overrides them.
func Defaults() Settings {
	return Settings{
		DefaultPrefix:  "Game",
		AutoNumbering:  true,
		AutoRename:     true,
		ConvertJPG:     true,
		JPGQuality:     95,
		BgColor:        "#FFFFFF",
		DeleteOriginal: true,
		AddToNote:      true,
		ImageFormat:    refcode.DefaultTemplate,
		Cooldown:       2.0,
		Recursive:      true,
		SkipExcalidraw: true,
		NoteCommands:   true,
	}
}

// Validate validates the settings.
func (s *Settings) Validate() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.DefaultPrefix, validation.Required),
		validation.Field(&s.JPGQuality, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&s.BgColor, validation.Required, validation.Match(hexColorRe)),
		validation.Field(&s.Cooldown, validation.Min(0.0)),
		validation.Field(&s.ImageFormat, validation.By(hasPlaceholder)),
		validation.Field(&s.EnabledCommands, validation.By(knownCommands)),
	)
}

func hasPlaceholder(value any) error {
	f, _ := value.(string)
	if f != "" && !strings.Contains(f, refcode.Placeholder) {
		return fmt.Errorf("must contain %s", refcode.Placeholder)
	}
	return nil
}

func knownCommands(value any) error {
	m, _ := value.(map[string]bool)
	for k := range m {
		known := false
		for _, key := range directive.Keys {
			if string(key) == k {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("unknown directive %q", k)
		}
	}
	return nil
}

// CooldownDuration converts Cooldown to a time.Duration.
func (s Settings) CooldownDuration() time.Duration {
	return time.Duration(s.Cooldown * float64(time.Second))
}

// CommandEnabled reports whether directive key k may override settings.
func (s Settings) CommandEnabled(k directive.Key) bool {
	if !s.NoteCommands {
		return false
	}
	enabled, ok := s.EnabledCommands[string(k)]
	return !ok || enabled
}

// SkipSuffixes returns the note name suffixes excluded from target selection.
func (s Settings) SkipSuffixes() []string {
	if s.SkipExcalidraw {
		return []string{ExcalidrawSuffix}
	}
	return nil
}

// Clone returns a deep copy of s.
func (s Settings) Clone() Settings {
	s.EnabledCommands = maps.Clone(s.EnabledCommands)
	return s
}
