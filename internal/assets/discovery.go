package assets

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/e-dard/statics3/internal/utils"
)

// GatherOptions control which files qualify during discovery.
type GatherOptions struct {
	// IncludeHidden also gathers files with a leading-dot path component.
	IncludeHidden bool

	// Filter, when set, restricts discovery to files whose root-relative
	// POSIX path matches.
	Filter *regexp.Regexp
}

// Gather walks every asset root of the site and returns the qualifying
// files per root. A missing root directory contributes zero files and logs
// a warning; other roots are still scanned. Files within a root come back
// in lexical walk order, which keeps manifest diffs stable across runs.
func Gather(site *Site, opts GatherOptions) ([]RootFiles, error) {
	var out []RootFiles
	for _, root := range site.Roots() {
		files, err := gatherRoot(root, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, RootFiles{Root: root, Files: files})
	}
	return out, nil
}

func gatherRoot(root Root, opts GatherOptions) ([]File, error) {
	if !utils.DirExists(root.Dir) {
		slog.Warn("asset root does not exist", "dir", root.Dir)
		return nil, nil
	}
	slog.Debug("scanning asset root", "dir", root.Dir, "url", root.URLPrefix)

	var files []File
	err := filepath.WalkDir(root.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root.Dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if !opts.IncludeHidden && isHidden(rel) {
			return nil
		}
		if opts.Filter != nil && !opts.Filter.MatchString(rel) {
			return nil
		}

		files = append(files, File{Path: path, Rel: rel})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// isHidden reports whether any component of the relative path starts with
// a dot.
func isHidden(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
