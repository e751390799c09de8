package assets

// Root is one asset root: a local directory scanned for static files, and
// the public URL prefix its files are served under. The prefix may be empty.
type Root struct {
	// Name of the sub-module owning this root. Empty for the primary root.
	Name string

	// Dir is the local static directory. A module with no static directory
	// leaves this empty and contributes no files.
	Dir string

	// URLPrefix is the public URL path prefix, e.g. "/static".
	URLPrefix string
}

// Site describes the hosting application's static layout: its own static
// folder plus any registered sub-modules that declare one.
type Site struct {
	Primary Root
	Modules []Root
}

// Roots returns the primary root followed by every module root that
// declares a static directory.
func (s *Site) Roots() []Root {
	roots := make([]Root, 0, 1+len(s.Modules))
	roots = append(roots, s.Primary)
	for _, m := range s.Modules {
		if m.Dir == "" {
			continue
		}
		roots = append(roots, m)
	}
	return roots
}

// StaticEndpoint reports whether endpoint names a static resource endpoint
// of this site, and returns the owning root if so. The primary root answers
// to "static", a module root to "<name>.static".
func (s *Site) StaticEndpoint(endpoint string) (Root, bool) {
	if endpoint == "static" {
		return s.Primary, true
	}
	for _, m := range s.Modules {
		if endpoint == m.Name+".static" {
			return m, true
		}
	}
	return Root{}, false
}

// File is one discovered asset file.
type File struct {
	// Path is the absolute local path.
	Path string

	// Rel is the root-relative path, POSIX-separated regardless of host
	// path convention.
	Rel string
}

// RootFiles pairs a root with the files discovered under it.
type RootFiles struct {
	Root  Root
	Files []File
}
