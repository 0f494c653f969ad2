package persist

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// DefaultDirEnv overrides the default directory of FileSlots.
const DefaultDirEnv = "FIG_CACHE_DIR"

// DefaultDir returns $FIG_CACHE_DIR if set, otherwise `<user cache dir>/fig`.
func DefaultDir() (string, error) {
	if dir := os.Getenv(DefaultDirEnv); dir != "" {
		return dir, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user cache dir: %w", err)
	}
	return filepath.Join(base, "fig"), nil
}

// FileSlots keeps every slot in its own file under a directory.
// Slot names are hashed into file names, so any name (colons, slashes, ...) is safe to use.
type FileSlots struct {
	dir string
}

var _ SlotStore = (*FileSlots)(nil)

// NewFileSlots creates `dir` if missing.
func NewFileSlots(dir string) (*FileSlots, error) {
	if dir == "" {
		return nil, errors.New("file slots need a directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create slot dir %q: %w", dir, err)
	}
	return &FileSlots{dir: dir}, nil
}

func (f *FileSlots) path(name string) string {
	return filepath.Join(f.dir, fmt.Sprintf("%016x.slot", xxhash.Sum64String(name)))
}

func (f *FileSlots) GetSlot(ctx context.Context, name string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(f.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read slot %q: %w", name, err)
	}
	return data, true, nil
}

// SetSlot writes into a temp file first and renames it over the slot file, so readers never see a partial slot.
func (f *FileSlots) SetSlot(ctx context.Context, name string, data []byte) error {
	if name == "" {
		return ErrEmptySlotName
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, "*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp slot file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write slot %q: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to close slot %q: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), f.path(name)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace slot %q: %w", name, err)
	}
	return nil
}

func (f *FileSlots) RemoveSlot(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(f.path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove slot %q: %w", name, err)
	}
	return nil
}
