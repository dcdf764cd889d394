package preflight

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"fftoolbox/internal/config"
	"fftoolbox/internal/deps"
)

// CheckTools verifies the external binaries and captures tool versions
// where the binary supports -version.
func CheckTools(ctx context.Context, cfg *config.Config) []Result {
	var results []Result
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		r := Result{Name: status.Name, Passed: status.Available, Detail: status.Detail}
		switch {
		case status.Available && (status.Name == "ffmpeg" || status.Name == "ffprobe"):
			if version, err := deps.Version(ctx, status.Command); err == nil {
				r.Detail = fmt.Sprintf("%s (%s)", version, status.Detail)
			}
		case status.Optional && !status.Available:
			r.Passed = true
			r.Detail = status.Detail + " (optional)"
		}
		results = append(results, r)
	}
	return results
}

// CheckDirectoryAccess verifies that the directory exists and is
// readable and writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}
