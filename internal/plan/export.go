package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"fftoolbox/internal/services"
	"fftoolbox/internal/textutil"
)

// savedPresetFormatVersion guards the on-disk JSON layout.
const savedPresetFormatVersion = 1

// SavedPreset is a custom spec persisted for reuse across runs.
type SavedPreset struct {
	Name          string     `json:"name"`
	FormatVersion int        `json:"format_version"`
	SavedAt       time.Time  `json:"saved_at"`
	Spec          CustomSpec `json:"spec"`
}

// SavePreset writes the spec into dir under a sanitized file name and
// returns the path it was written to.
func SavePreset(dir, name string, spec CustomSpec) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", services.Wrap(services.ErrValidation, "plan", "save preset", "preset name is required", nil)
	}
	if err := spec.Validate(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "plan", "save preset", "cannot create preset directory", err)
	}
	saved := SavedPreset{
		Name:          name,
		FormatVersion: savedPresetFormatVersion,
		SavedAt:       time.Now().UTC(),
		Spec:          spec,
	}
	payload, err := json.MarshalIndent(saved, "", "  ")
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "plan", "save preset", "cannot encode preset", err)
	}
	path := filepath.Join(dir, textutil.SanitizeToken(name)+".json")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "plan", "save preset", "cannot write preset file", err)
	}
	return path, nil
}

// LoadPresetFile parses a saved preset from an arbitrary path and
// validates its spec before returning it.
func LoadPresetFile(path string) (SavedPreset, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		marker := services.ErrConfiguration
		if errors.Is(err, os.ErrNotExist) {
			marker = services.ErrNotFound
		}
		return SavedPreset{}, services.Wrap(marker, "plan", "load preset", "cannot read preset file", err)
	}
	var saved SavedPreset
	if err := json.Unmarshal(payload, &saved); err != nil {
		return SavedPreset{}, services.Wrap(services.ErrValidation, "plan", "load preset", "preset file is not valid JSON", err)
	}
	if saved.FormatVersion > savedPresetFormatVersion {
		return SavedPreset{}, services.Wrap(services.ErrValidation, "plan", "load preset",
			fmt.Sprintf("preset format %d is newer than supported %d", saved.FormatVersion, savedPresetFormatVersion), nil)
	}
	if saved.Name == "" {
		saved.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := saved.Spec.Validate(); err != nil {
		return SavedPreset{}, err
	}
	return saved, nil
}

// LoadSaved finds a saved preset in dir by its name.
func LoadSaved(dir, name string) (SavedPreset, error) {
	path := filepath.Join(dir, textutil.SanitizeToken(name)+".json")
	saved, err := LoadPresetFile(path)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return SavedPreset{}, services.Wrap(services.ErrNotFound, "plan", "load preset",
				fmt.Sprintf("no saved preset named %q", name), nil)
		}
		return SavedPreset{}, err
	}
	return saved, nil
}

// ListSaved returns every parseable saved preset in dir sorted by name.
// Unparseable files are skipped so one corrupt export does not hide the
// rest.
func ListSaved(dir string) ([]SavedPreset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrConfiguration, "plan", "list presets", "cannot read preset directory", err)
	}
	var saved []SavedPreset
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		preset, err := LoadPresetFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		saved = append(saved, preset)
	}
	sort.Slice(saved, func(i, j int) bool { return saved[i].Name < saved[j].Name })
	return saved, nil
}
