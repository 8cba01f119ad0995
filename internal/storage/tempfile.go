// Package storage owns the request-scoped temporary image location and the
// optional blob-hosted guideline configuration. Patient imagery is never
// written anywhere else and never outlives the request that brought it in.
package storage

import (
	"fmt"
	"os"
	"sync"
)

// TempStore writes uploaded images to a scoped temporary location.
type TempStore struct {
	dir string
}

// NewTempStore creates a store rooted at dir; an empty dir means the system
// temp directory.
func NewTempStore(dir string) *TempStore {
	return &TempStore{dir: dir}
}

// TempImage is one request's exclusively owned temporary image artifact.
type TempImage struct {
	path      string
	mediaType string
	size      int64
	once      sync.Once
	removeErr error
}

// Write stores the payload in a fresh temporary file. The caller owns the
// returned TempImage and must call Remove on every exit path.
func (s *TempStore) Write(payload []byte, mediaType string) (*TempImage, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty image payload")
	}

	f, err := os.CreateTemp(s.dir, "ct-upload-*"+extensionFor(mediaType))
	if err != nil {
		return nil, fmt.Errorf("create temp image: %w", err)
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("write temp image: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("close temp image: %w", err)
	}

	return &TempImage{
		path:      f.Name(),
		mediaType: mediaType,
		size:      int64(len(payload)),
	}, nil
}

// Path returns the on-disk location of the artifact.
func (t *TempImage) Path() string { return t.path }

// MediaType returns the declared media type of the stored payload.
func (t *TempImage) MediaType() string { return t.mediaType }

// Size returns the payload size in bytes.
func (t *TempImage) Size() int64 { return t.size }

// Remove deletes the temporary file. It is idempotent and safe to defer
// alongside explicit calls on failure paths.
func (t *TempImage) Remove() error {
	t.once.Do(func() {
		if err := os.Remove(t.path); err != nil && !os.IsNotExist(err) {
			t.removeErr = err
		}
	})
	return t.removeErr
}

func extensionFor(mediaType string) string {
	switch mediaType {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "application/dicom":
		return ".dcm"
	}
	return ".bin"
}

// SniffMediaType inspects magic bytes to identify the payload format,
// falling back to the declared type when the bytes are unfamiliar. DICOM
// files carry "DICM" at offset 128.
func SniffMediaType(b []byte, declared string) string {
	if len(b) >= 2 && b[0] == 0xFF && b[1] == 0xD8 {
		return "image/jpeg"
	}
	if len(b) >= 8 &&
		b[0] == 0x89 && b[1] == 0x50 && b[2] == 0x4E && b[3] == 0x47 &&
		b[4] == 0x0D && b[5] == 0x0A && b[6] == 0x1A && b[7] == 0x0A {
		return "image/png"
	}
	if len(b) >= 132 && b[128] == 'D' && b[129] == 'I' && b[130] == 'C' && b[131] == 'M' {
		return "application/dicom"
	}
	return declared
}
