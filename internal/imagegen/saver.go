package imagegen

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FileSaver persists generated image data and reports the name it was
// stored under.
type FileSaver interface {
	SaveBase64(b64, name string) (savedName string, err error)
}

// DiskSaver writes decoded image data into a directory, keyed by a
// fresh random name so repeated generations never collide.
type DiskSaver struct {
	dir string
}

// NewDiskSaver creates a saver rooted at dir, creating it if needed.
func NewDiskSaver(dir string) (*DiskSaver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image directory: %w", err)
	}
	return &DiskSaver{dir: dir}, nil
}

// SaveBase64 decodes b64 and writes it under a generated name that
// keeps name's extension. The returned name is relative to the saver's
// directory.
func (s *DiskSaver) SaveBase64(b64, name string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("decode image data: %w", err)
	}
	saved := uuid.NewString() + filepath.Ext(name)
	if err := os.WriteFile(filepath.Join(s.dir, saved), data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return saved, nil
}

var _ FileSaver = (*DiskSaver)(nil)
