package utils

import (
	"path/filepath"
	"strings"
)

func GetPathInfo(relPath string) (fullPath string, parentDir string, err error) {
	// Convert to absolute path (resolves ../../ and cleans the path)
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", err
	}

	parentDir = filepath.Dir(fullPath)

	return fullPath, parentDir, nil
}

// ReplaceExt swaps the extension of path for ext, or appends ext when path
// has none. ext includes the leading dot.
func ReplaceExt(path, ext string) string {
	old := filepath.Ext(path)
	if old == "" {
		return path + ext
	}
	return strings.TrimSuffix(path, old) + ext
}

// IsSource reports whether path names MVD source rather than bytecode or an
// image, judging by its extension.
func IsSource(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".obj", ".mvdi":
		return false
	}
	return true
}

// IsImage reports whether path names a binary program image.
func IsImage(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".mvdi")
}
