package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const versionTimeout = 5 * time.Second

// Version runs `<binary> -version` and returns the reported version
// string. Works for both ffmpeg and ffprobe.
func Version(ctx context.Context, binary string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, binary, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("run %s -version: %w", binary, err)
	}
	version := ParseVersionOutput(string(out))
	if version == "" {
		return "", fmt.Errorf("no version in %s output", binary)
	}
	return version, nil
}

// ParseVersionOutput extracts the version token from -version output,
// e.g. "ffmpeg version 6.1.1-static https://..." yields "6.1.1-static".
func ParseVersionOutput(output string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	fields := strings.Fields(line)
	for i, field := range fields {
		if field == "version" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	if len(fields) > 0 {
		return line
	}
	return ""
}
