package internal

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/starford/vaultsnap/internal/settings"
)

// ImportLegacy converts an old config.txt into a YAML config file written
// to w. Paths missing from the legacy file keep their defaults.
func ImportLegacy(w io.Writer, path string) error {
	legacy, err := settings.LoadLegacy(path)
	if err != nil {
		return err
	}

	cfg := NewDefaultConfig()
	if legacy.VaultPath != "" {
		cfg.Vault.Path = legacy.VaultPath
	}
	if legacy.ImagesFolder != "" {
		cfg.Images.Folder = legacy.ImagesFolder
	}
	cfg.Settings = legacy.Settings
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("imported config invalid: %w", err)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
