// Package urlrewrite substitutes object-store URLs for a hosting
// application's static asset URLs. Non-static endpoints always fall
// through to the application's native URL builder.
package urlrewrite

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/e-dard/statics3/internal/assets"
	"github.com/e-dard/statics3/internal/config"
)

var ErrInvalidURLStyle = errors.New("invalid URL style")

// NativeBuilder is the hosting application's own URL builder, used for
// every endpoint this package does not rewrite.
type NativeBuilder func(endpoint string, values map[string]any) (string, error)

// Host carries the hosting application's runtime flags that gate
// rewriting.
type Host struct {
	Debug   bool
	Testing bool
}

// Rewriter builds external URLs for static asset endpoints. All state is
// explicit: the resolved settings, the site layout and the native builder
// are passed in at construction.
type Rewriter struct {
	cfg    *config.Settings
	site   *assets.Site
	native NativeBuilder
	host   Host
	active bool
}

func New(cfg *config.Settings, site *assets.Site, native NativeBuilder, host Host) *Rewriter {
	active := cfg.Active
	// Debug hosts keep local URLs unless explicitly told otherwise.
	if host.Debug && !cfg.Debug {
		active = false
	}
	return &Rewriter{
		cfg:    cfg,
		site:   site,
		native: native,
		host:   host,
		active: active,
	}
}

// URLFor produces a URL for the endpoint. Static resource endpoints map to
// the configured bucket authority; everything else delegates unchanged to
// the native builder. Values mirror the builder's conventions: "filename"
// selects the asset, "_scheme" overrides the scheme, and "_external",
// "_anchor" and "_method" are accepted but meaningless for external static
// URLs.
func (r *Rewriter) URLFor(endpoint string, values map[string]any) (string, error) {
	root, ok := r.site.StaticEndpoint(endpoint)
	if !ok {
		return r.native(endpoint, values)
	}
	if !r.active {
		return r.native(endpoint, values)
	}
	if r.host.Testing && !r.cfg.OverrideTesting {
		return r.native(endpoint, values)
	}

	if r.cfg.BucketName == "" {
		return "", config.ErrNoBucket
	}

	vals := make(map[string]any, len(values))
	for k, v := range values {
		vals[k] = v
	}

	scheme := "https"
	if !r.cfg.UseHTTPS {
		scheme = "http"
	}
	if s, ok := vals["_scheme"].(string); ok && s != "" {
		scheme = s
	}
	// These call parameters have no meaning for an external static URL.
	delete(vals, "_scheme")
	delete(vals, "_external")
	delete(vals, "_anchor")
	delete(vals, "_method")

	host, basePath, err := r.authority()
	if err != nil {
		return "", err
	}

	filename, _ := vals["filename"].(string)
	delete(vals, "filename")

	key := assets.RemoteKey(basePath, r.cfg.Prefix, root.URLPrefix, filename)

	u := url.URL{
		Scheme:   scheme,
		Host:     host,
		Path:     "/" + key,
		RawQuery: encodeQuery(vals),
	}
	return u.String(), nil
}

// authority derives the URL authority and any leading path segment from
// configuration: a CDN domain replaces everything, otherwise the bucket is
// folded into the hostname ("host" style) or the path ("path" style).
func (r *Rewriter) authority() (host, basePath string, err error) {
	if r.cfg.CDNDomain != "" {
		return r.cfg.CDNDomain, "", nil
	}

	switch r.cfg.URLStyle {
	case config.URLStyleHost:
		return fmt.Sprintf("%s.%s", r.cfg.BucketName, r.cfg.BucketDomain), "", nil
	case config.URLStylePath:
		return r.cfg.BucketDomain, r.cfg.BucketName, nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrInvalidURLStyle, r.cfg.URLStyle)
	}
}

func encodeQuery(values map[string]any) string {
	if len(values) == 0 {
		return ""
	}
	q := url.Values{}
	for k, v := range values {
		q.Set(k, fmt.Sprint(v))
	}
	// Encode emits keys in sorted order, keeping URLs stable.
	return q.Encode()
}
