package utils

import (
	"mime"
	"path/filepath"
	"strings"
)

// DetectContentType returns the MIME type for a file path based on its
// extension, or "" if none can be inferred.
func DetectContentType(path string) string {
	if isTextLike(path) {
		return "text/plain; charset=utf-8"
	}
	return mime.TypeByExtension(filepath.Ext(path))
}

func isTextLike(path string) bool {
	return strings.HasSuffix(path, ".yaml") ||
		strings.HasSuffix(path, ".yml") ||
		strings.HasSuffix(path, ".toml") ||
		strings.HasSuffix(path, ".md")
}
