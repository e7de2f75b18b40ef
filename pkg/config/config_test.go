package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidatePath(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "subdir")
	if err := os.MkdirAll(subDir, 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	tests := []struct {
		name        string
		basePath    string
		targetPath  string
		shouldError bool
	}{
		{"valid path within base", tmpDir, subDir, false},
		{"same as base path", tmpDir, tmpDir, false},
		{"path traversal attempt", subDir, tmpDir, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidatePath(tt.basePath, tt.targetPath)
			if tt.shouldError && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.shouldError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestSanitizeDataDir(t *testing.T) {
	tmpDir := t.TempDir()
	tests := []struct {
		name        string
		dataDir     string
		shouldError bool
	}{
		{"valid directory", filepath.Join(tmpDir, "data"), false},
		{"dangerous path root", "/", true},
		{"dangerous path etc", "/etc", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SanitizeDataDir(tt.dataDir)
			if tt.shouldError && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.shouldError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestDefaultIndexConfigValidates(t *testing.T) {
	cfg := DefaultIndexConfig()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.Dimension = 128
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config (with dimension set) to validate, got %v", err)
	}
}

func TestValidateRejectsZeroDimension(t *testing.T) {
	cfg := DefaultIndexConfig()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero dimension")
	}
}

func TestValidateRejectsDangerousDataDir(t *testing.T) {
	cfg := DefaultIndexConfig()
	cfg.Dimension = 64
	cfg.DataDir = "/etc"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for dangerous data dir")
	}
}
