// ABOUTME: Tests for decoder selection
// ABOUTME: Tests extension routing and rejection of malformed streams
package decode

import (
	"bytes"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
)

func TestForPath(t *testing.T) {
	tests := []struct {
		path    string
		wantErr bool
	}{
		{"a.mp3", false},
		{"A.FLAC", false},
		{"dir/b.wav", false},
		{"c.wave", false},
		{"d.opus", true},
		{"noext", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			dec, err := ForPath(tt.path)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %s", tt.path)
				}
				return
			}
			if err != nil || dec == nil {
				t.Errorf("expected decoder for %s, got err %v", tt.path, err)
			}
		})
	}
}

func TestMalformedStreams(t *testing.T) {
	garbage := bytes.Repeat([]byte{0x42}, 64)

	if _, err := WAV(bytes.NewReader(garbage)); err == nil {
		t.Error("expected wav error for garbage input")
	}
	if _, err := FLAC(bytes.NewReader(garbage)); err == nil {
		t.Error("expected flac error for garbage input")
	}
}

func TestFileMissing(t *testing.T) {
	_, err := File(filepath.Join(t.TempDir(), "missing.wav"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}
