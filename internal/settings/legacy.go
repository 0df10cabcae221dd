package settings

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Legacy is the content of an old key=value config.txt file.
type Legacy struct {
	VaultPath    string
	ImagesFolder string
	Settings     Settings
}

// LoadLegacy reads a config.txt file with one key=value pair per line and
// "#" comments. Known setting keys are applied on top of Defaults; unknown
// keys are ignored.
func LoadLegacy(path string) (*Legacy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("settings: open legacy config: %w", err)
	}
	defer f.Close()

	values := make(map[string]any)
	out := &Legacy{Settings: Defaults()}

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)

		switch key {
		case "vault_path":
			out.VaultPath = value
			continue
		case "images_folder":
			out.ImagesFolder = value
			continue
		}

		// Let YAML pick the scalar type so "true", "95" and "2.5" land in
		// bool, int and float fields.
		var v any
		if err := yaml.Unmarshal([]byte(value), &v); err != nil || v == nil {
			v = value
		}
		values[key] = v
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("settings: read legacy config: %w", err)
	}

	raw, err := yaml.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("settings: encode legacy values: %w", err)
	}
	if err := yaml.Unmarshal(raw, &out.Settings); err != nil {
		return nil, fmt.Errorf("settings: apply legacy values: %w", err)
	}
	if err := out.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("settings: legacy config invalid: %w", err)
	}
	return out, nil
}
