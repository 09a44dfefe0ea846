package imagegen

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveBase64(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDiskSaver(dir)
	if err != nil {
		t.Fatalf("NewDiskSaver: %v", err)
	}

	payload := []byte("pretend png bytes")
	saved, err := s.SaveBase64(base64.StdEncoding.EncodeToString(payload), "original.png")
	if err != nil {
		t.Fatalf("SaveBase64: %v", err)
	}

	if !strings.HasSuffix(saved, ".png") {
		t.Errorf("saved name %q should keep the .png extension", saved)
	}
	if saved == "original.png" {
		t.Error("saved name should be regenerated, not the input name")
	}

	data, err := os.ReadFile(filepath.Join(dir, saved))
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if string(data) != string(payload) {
		t.Errorf("saved content = %q, want decoded payload", data)
	}
}

func TestSaveBase64_UniqueNames(t *testing.T) {
	s, err := NewDiskSaver(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskSaver: %v", err)
	}

	b64 := base64.StdEncoding.EncodeToString([]byte("x"))
	first, err := s.SaveBase64(b64, "a.png")
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	second, err := s.SaveBase64(b64, "a.png")
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if first == second {
		t.Errorf("repeated saves collided on %q", first)
	}
}

func TestSaveBase64_BadData(t *testing.T) {
	s, err := NewDiskSaver(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskSaver: %v", err)
	}

	if _, err := s.SaveBase64("not!!valid##base64", "a.png"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestNewDiskSaver_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "images")
	if _, err := NewDiskSaver(dir); err != nil {
		t.Fatalf("NewDiskSaver: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("directory not created: %v", err)
	}
}
