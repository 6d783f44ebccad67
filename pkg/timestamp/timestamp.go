// Package timestamp persists the synchronisation watermark: the point in
// time up to which directory changes have been successfully provisioned.
package timestamp

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hpcugent/muk-sync/pkg/directory"
)

// Read returns the persisted watermark. The second return value is false
// when no watermark has been written yet (first run).
func Read(path string) (time.Time, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("failed to read timestamp file: %w", err)
	}
	value := strings.TrimSpace(string(data))
	t, err := time.Parse(directory.GeneralizedTimeLayout, value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt timestamp file %s (%q): %w", path, value, err)
	}
	return t, true, nil
}

// Write persists the watermark atomically. The watermark is monotonically
// non-decreasing: writing a value older than the persisted one is refused.
func Write(path string, t time.Time) error {
	current, found, err := Read(path)
	if err != nil {
		return err
	}
	if found && t.Before(current) {
		return fmt.Errorf("refusing to move watermark backwards: %s is before persisted %s",
			t.UTC().Format(directory.GeneralizedTimeLayout),
			current.UTC().Format(directory.GeneralizedTimeLayout))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create timestamp directory: %w", err)
	}

	data := []byte(t.UTC().Format(directory.GeneralizedTimeLayout) + "\n")
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary timestamp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename timestamp file: %w", err)
	}
	return nil
}
