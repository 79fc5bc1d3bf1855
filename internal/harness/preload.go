package harness

import (
	"errors"
	"fmt"
	"os"
)

// ErrPreloadMissing is returned when the preload script cannot be used. It
// is a startup precondition: callers exit before creating any component.
var ErrPreloadMissing = errors.New("preload script missing")

// CheckPreload verifies that path names a readable, non-empty regular file.
func CheckPreload(path string) error {
	if path == "" {
		return fmt.Errorf("%w: no path configured", ErrPreloadMissing)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPreloadMissing, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrPreloadMissing, path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s is empty", ErrPreloadMissing, path)
	}
	return nil
}

// ReadPreload checks and reads the preload script.
func ReadPreload(path string) (string, error) {
	if err := CheckPreload(path); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPreloadMissing, err)
	}
	return string(data), nil
}
