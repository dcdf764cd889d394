package batch

import (
	"os"
	"path/filepath"
	"sort"

	"fftoolbox/internal/media"
	"fftoolbox/internal/services"
)

// Entry is one resolved batch input. A non-nil Err marks an argument
// that could not be expanded; it still gets a report so batch accounting
// stays one-to-one with what the user asked for.
type Entry struct {
	Path string
	Err  error
}

// ExpandInputs resolves file and directory arguments into the ordered
// encode list. Directories expand non-recursively to files with accepted
// extensions, sorted by name; explicitly named files are taken as given
// and left for the probe to judge.
func ExpandInputs(inputs []string) ([]Entry, error) {
	if len(inputs) == 0 {
		return nil, services.Wrap(services.ErrValidation, "batch", "expand inputs", "no inputs provided", nil)
	}

	var entries []Entry
	for _, raw := range inputs {
		path := filepath.Clean(raw)
		info, err := os.Stat(path)
		if err != nil {
			entries = append(entries, Entry{
				Path: path,
				Err:  services.Wrap(services.ErrProbe, "probe", "stat", path, err),
			})
			continue
		}
		if !info.IsDir() {
			entries = append(entries, Entry{Path: path})
			continue
		}

		children, err := os.ReadDir(path)
		if err != nil {
			entries = append(entries, Entry{
				Path: path,
				Err:  services.Wrap(services.ErrProbe, "probe", "read directory", path, err),
			})
			continue
		}
		var found []string
		for _, child := range children {
			if child.IsDir() {
				continue
			}
			if media.AcceptedExtension(child.Name()) {
				found = append(found, filepath.Join(path, child.Name()))
			}
		}
		sort.Strings(found)
		for _, f := range found {
			entries = append(entries, Entry{Path: f})
		}
	}
	return entries, nil
}
