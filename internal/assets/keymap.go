package assets

import (
	"fmt"
	"path"
	"strings"
)

// RemoteKey derives the object key for an asset from the global key prefix,
// the root's URL prefix and the root-relative file path. Redundant slashes
// collapse and the transmitted key never starts with a slash. The same
// derivation backs the URL rewriter, so rewritten URLs always resolve to
// uploaded keys.
func RemoteKey(parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(NormalizePath(p), "/")
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) == 0 {
		return ""
	}
	return path.Clean(strings.Join(cleaned, "/"))
}

// RelativeKeyPath returns the POSIX-style path of asset relative to
// rootDir. It fails when asset is not a true sub-path of rootDir, which
// guards key derivation against malformed inputs.
func RelativeKeyPath(rootDir, asset string) (string, error) {
	root := strings.TrimSuffix(NormalizePath(rootDir), "/")
	file := NormalizePath(asset)

	if root == "" || !strings.HasPrefix(file, root+"/") {
		return "", fmt.Errorf("asset %q is not under root %q", asset, rootDir)
	}
	return strings.TrimPrefix(file, root+"/"), nil
}

// NormalizePath converts a host filesystem path to forward-slash form,
// dropping any Windows drive letter.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if len(p) >= 2 && p[1] == ':' {
		p = p[2:]
	}
	return p
}
