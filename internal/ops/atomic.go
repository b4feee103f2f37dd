package ops

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/hpungsan/daylog/internal/errors"
)

// writeAtomic writes dest by streaming into a temp file next to it and
// renaming it into place. On any failure dest is left untouched and the
// temp file is removed.
func writeAtomic(dest string, write func(w io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0700); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := dest + "." + hex.EncodeToString(randBytes) + ".tmp"

	file, err := openNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create temp file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if err := write(file); err != nil {
		return err
	}
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}
	// Close before rename (required on Windows).
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close temp file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlink at dest.
	if info, err := os.Lstat(dest); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("destination must not be a symlink")
	}

	if err := os.Rename(tempPath, dest); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(dest); statErr == nil {
				return errors.NewInvalidRequest("destination already exists; overwriting is not supported on Windows")
			}
		}
		return errors.NewInternal(fmt.Errorf("failed to finalize %s: %w", filepath.Base(dest), err))
	}

	success = true
	return nil
}
