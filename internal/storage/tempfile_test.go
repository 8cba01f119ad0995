package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTempStore_WriteAndRemove(t *testing.T) {
	store := NewTempStore(t.TempDir())
	payload := []byte("not really a CT but close enough")

	img, err := store.Write(payload, "image/png")
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if img.Size() != int64(len(payload)) {
		t.Errorf("Size() = %d, want %d", img.Size(), len(payload))
	}
	if img.MediaType() != "image/png" {
		t.Errorf("MediaType() = %q, want image/png", img.MediaType())
	}
	if ext := filepath.Ext(img.Path()); ext != ".png" {
		t.Errorf("file extension = %q, want .png", ext)
	}

	data, err := os.ReadFile(img.Path())
	if err != nil {
		t.Fatalf("reading temp file failed: %v", err)
	}
	if string(data) != string(payload) {
		t.Error("temp file contents differ from payload")
	}

	if err := img.Remove(); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := os.Stat(img.Path()); !os.IsNotExist(err) {
		t.Errorf("temp file still exists after Remove: %v", err)
	}
}

func TestTempImage_RemoveIdempotent(t *testing.T) {
	store := NewTempStore(t.TempDir())
	img, err := store.Write([]byte("x"), "application/dicom")
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := img.Remove(); err != nil {
			t.Fatalf("Remove call %d failed: %v", i+1, err)
		}
	}
}

func TestTempStore_RejectsEmptyPayload(t *testing.T) {
	store := NewTempStore(t.TempDir())
	if _, err := store.Write(nil, "image/png"); err == nil {
		t.Fatal("Write accepted an empty payload")
	}
}

func TestExtensionFor(t *testing.T) {
	tests := []struct {
		mediaType string
		want      string
	}{
		{"image/png", ".png"},
		{"image/jpeg", ".jpg"},
		{"image/jpg", ".jpg"},
		{"application/dicom", ".dcm"},
		{"application/octet-stream", ".bin"},
		{"", ".bin"},
	}

	for _, tt := range tests {
		if got := extensionFor(tt.mediaType); got != tt.want {
			t.Errorf("extensionFor(%q) = %q, want %q", tt.mediaType, got, tt.want)
		}
	}
}

func TestSniffMediaType(t *testing.T) {
	dicom := make([]byte, 140)
	copy(dicom[128:], "DICM")

	tests := []struct {
		name     string
		payload  []byte
		declared string
		want     string
	}{
		{"JPEG magic", []byte{0xFF, 0xD8, 0xFF, 0xE0}, "application/octet-stream", "image/jpeg"},
		{"PNG magic", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00}, "application/octet-stream", "image/png"},
		{"DICM at offset 128", dicom, "application/octet-stream", "application/dicom"},
		{"Unknown bytes fall back to declared", []byte("plain text"), "image/png", "image/png"},
		{"Short payload falls back to declared", []byte{0x01}, "application/dicom", "application/dicom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SniffMediaType(tt.payload, tt.declared); got != tt.want {
				t.Errorf("SniffMediaType = %q, want %q", got, tt.want)
			}
		})
	}
}
