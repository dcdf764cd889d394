// Package naming hands out collision-free output paths. Claims live for
// the life of a batch, so two inputs that resolve to the same desired
// name get distinct outputs even though neither file exists on disk yet.
package naming

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// maxNumericSuffix bounds the _N probe before falling back to a
// timestamp suffix.
const maxNumericSuffix = 10000

// OutputFileName derives the desired output file name for an input:
// the input's stem, the preset ID, and the fixed .mp4 container.
func OutputFileName(inputPath, presetID string) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("%s_%s.mp4", stem, presetID)
}

// Namer tracks claimed output paths for one batch run. Methods are
// goroutine-safe.
type Namer struct {
	mu      sync.Mutex
	claimed map[string]struct{}
}

// New returns an empty namer.
func New() *Namer {
	return &Namer{claimed: make(map[string]struct{})}
}

// Claim resolves the collision-free output path for an input and
// remembers it for the rest of the batch.
func (n *Namer) Claim(dir, inputPath, presetID string) string {
	return n.NextAvailable(filepath.Join(dir, OutputFileName(inputPath, presetID)))
}

// NextAvailable returns desired when it is unclaimed and absent from
// disk, otherwise the first _1, _2, ... variant that is. When ten
// thousand numbered variants are taken a timestamp suffix settles it.
func (n *Namer) NextAvailable(desired string) string {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.available(desired) {
		n.claimed[desired] = struct{}{}
		return desired
	}

	ext := filepath.Ext(desired)
	stem := strings.TrimSuffix(desired, ext)
	for i := 1; i < maxNumericSuffix; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if n.available(candidate) {
			n.claimed[candidate] = struct{}{}
			return candidate
		}
	}
	candidate := fmt.Sprintf("%s_%d%s", stem, time.Now().Unix(), ext)
	n.claimed[candidate] = struct{}{}
	return candidate
}

// available reports whether the path is unclaimed in this batch and
// absent on disk. Stat failures other than not-exist count as taken so
// an unreadable path is never handed out.
func (n *Namer) available(path string) bool {
	if _, ok := n.claimed[path]; ok {
		return false
	}
	_, err := os.Stat(path)
	return errors.Is(err, fs.ErrNotExist)
}
