package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

func backupName(path string, n int) string {
	return fmt.Sprintf("%s.%d", path, n)
}

// rotateBackups shifts <path>.i to <path>.i+1, dropping the oldest, and copies
// the current file to <path>.1. A missing current file is not an error.
func rotateBackups(path string, keep int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	if err := os.Remove(backupName(path, keep)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	for i := keep - 1; i >= 1; i-- {
		if err := os.Rename(backupName(path, i), backupName(path, i+1)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return writeAtomic(backupName(path, 1), data)
}
