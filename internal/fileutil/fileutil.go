// Package fileutil holds the small filesystem helpers the CLI commands
// share.
package fileutil

import (
	"io"
	"os"
)

// CopyFile copies src to dst byte for byte, truncating dst if it
// already exists. Used to move preset files in and out of the preset
// directory without re-serializing them.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
