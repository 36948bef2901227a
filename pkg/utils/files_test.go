package utils

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPathInfo(t *testing.T) {
	full, dir, err := GetPathInfo(filepath.Join("progs", "..", "progs", "fat.mvd"))
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(full), "expected an absolute path, got %q", full)
	assert.Equal(t, "fat.mvd", filepath.Base(full))
	assert.Equal(t, "progs", filepath.Base(dir))
}

func TestReplaceExt(t *testing.T) {
	tests := []struct {
		path string
		ext  string
		want string
	}{
		{"fat.mvd", ".obj", "fat.obj"},
		{"dir/fat.mvd", ".mvdi", "dir/fat.mvdi"},
		{"fat", ".obj", "fat.obj"},
		{"fat.obj", ".obj", "fat.obj"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ReplaceExt(tc.path, tc.ext), "ReplaceExt(%q, %q)", tc.path, tc.ext)
	}
}

func TestFileKinds(t *testing.T) {
	tests := []struct {
		path   string
		source bool
		image  bool
	}{
		{"a.mvd", true, false},
		{"a.txt", true, false},
		{"a.obj", false, false},
		{"a.OBJ", false, false},
		{"a.mvdi", false, true},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.source, IsSource(tc.path), "IsSource(%q)", tc.path)
		assert.Equal(t, tc.image, IsImage(tc.path), "IsImage(%q)", tc.path)
	}
}
