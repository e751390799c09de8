package config

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// Recognized option keys. Every key has a documented default; values may be
// set in the config file, via STATICS3_* environment variables, or bound to
// CLI flags.
const (
	KeyBucketName      = "bucket_name"
	KeyRegion          = "region"
	KeyEndpointURL     = "endpoint_url"
	KeyAccessKeyID     = "access_key_id"
	KeySecretAccessKey = "secret_access_key"
	KeyBucketDomain    = "bucket_domain"
	KeyCDNDomain       = "cdn_domain"
	KeyURLStyle        = "url_style"
	KeyUseHTTPS        = "use_https"
	KeyPrefix          = "prefix"
	KeyHeaders         = "headers"
	KeyFilepathHeaders = "filepath_headers"
	KeyOnlyModified    = "only_modified"
	KeyGzip            = "gzip"
	KeyGzipOnlyExts    = "gzip_only_exts"
	KeyForceMimetype   = "force_mimetype"
	KeyActive          = "active"
	KeyDebug           = "debug"
	KeyOverrideTesting = "override_testing"
	KeyCacheControl    = "cache_control"
	KeyUseCacheControl = "use_cache_control"
)

// URL styles for composing the bucket authority.
const (
	URLStyleHost = "host" // bucket.domain
	URLStylePath = "path" // domain/bucket
)

var ErrNoBucket = errors.New("no bucket name configured")

// PatternHeaders is a set of headers applied to files whose local path
// matches Pattern.
type PatternHeaders struct {
	Pattern *regexp.Regexp
	Headers map[string]string
}

// Settings holds every resolved configuration value. It is plain data:
// operations take it as an explicit parameter, there is no process-wide
// mutable configuration state.
type Settings struct {
	BucketName      string
	Region          string
	EndpointURL     string
	AccessKeyID     string
	SecretAccessKey string

	BucketDomain string
	CDNDomain    string
	URLStyle     string
	UseHTTPS     bool
	Prefix       string

	Headers         map[string]string
	FilepathHeaders []PatternHeaders

	OnlyModified  bool
	Gzip          bool
	GzipOnlyExts  []string
	ForceMimetype bool

	Active          bool
	Debug           bool
	OverrideTesting bool
}

// SetDefaults registers the documented default for every recognized key on
// the given viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyBucketName, "")
	v.SetDefault(KeyRegion, "")
	v.SetDefault(KeyEndpointURL, "")
	v.SetDefault(KeyAccessKeyID, "")
	v.SetDefault(KeySecretAccessKey, "")
	v.SetDefault(KeyBucketDomain, "s3.amazonaws.com")
	v.SetDefault(KeyCDNDomain, "")
	v.SetDefault(KeyURLStyle, URLStyleHost)
	v.SetDefault(KeyUseHTTPS, true)
	v.SetDefault(KeyPrefix, "")
	v.SetDefault(KeyHeaders, map[string]string{})
	v.SetDefault(KeyFilepathHeaders, map[string]map[string]string{})
	v.SetDefault(KeyOnlyModified, false)
	v.SetDefault(KeyGzip, false)
	v.SetDefault(KeyGzipOnlyExts, []string{})
	v.SetDefault(KeyForceMimetype, false)
	v.SetDefault(KeyActive, true)
	v.SetDefault(KeyDebug, false)
	v.SetDefault(KeyOverrideTesting, true)
	v.SetDefault(KeyCacheControl, "")
	v.SetDefault(KeyUseCacheControl, false)
}

// Resolve reads every recognized key from the viper source and returns the
// resolved settings. Filepath header patterns are compiled here so a bad
// pattern surfaces as a configuration error instead of failing mid-upload.
func Resolve(v *viper.Viper) (*Settings, error) {
	s := &Settings{
		BucketName:      v.GetString(KeyBucketName),
		Region:          v.GetString(KeyRegion),
		EndpointURL:     v.GetString(KeyEndpointURL),
		AccessKeyID:     v.GetString(KeyAccessKeyID),
		SecretAccessKey: v.GetString(KeySecretAccessKey),
		BucketDomain:    v.GetString(KeyBucketDomain),
		CDNDomain:       v.GetString(KeyCDNDomain),
		URLStyle:        v.GetString(KeyURLStyle),
		UseHTTPS:        v.GetBool(KeyUseHTTPS),
		Prefix:          v.GetString(KeyPrefix),
		Headers:         map[string]string{},
		OnlyModified:    v.GetBool(KeyOnlyModified),
		Gzip:            v.GetBool(KeyGzip),
		GzipOnlyExts:    normalizeExts(v.GetStringSlice(KeyGzipOnlyExts)),
		ForceMimetype:   v.GetBool(KeyForceMimetype),
		Active:          v.GetBool(KeyActive),
		Debug:           v.GetBool(KeyDebug),
		OverrideTesting: v.GetBool(KeyOverrideTesting),
	}

	for name, value := range v.GetStringMapString(KeyHeaders) {
		s.Headers[name] = value
	}

	// Cache-Control is its own key pair for parity with global headers.
	if v.GetBool(KeyUseCacheControl) {
		if cc := v.GetString(KeyCacheControl); cc != "" {
			s.Headers["Cache-Control"] = cc
		}
	}

	filepathHeaders := v.GetStringMap(KeyFilepathHeaders)
	patterns := make([]string, 0, len(filepathHeaders))
	for pattern := range filepathHeaders {
		patterns = append(patterns, pattern)
	}
	// Sorted so that overlapping patterns apply in a stable order.
	sort.Strings(patterns)

	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%s: bad pattern %q: %w", KeyFilepathHeaders, pattern, err)
		}
		headers, err := toStringMap(filepathHeaders[pattern])
		if err != nil {
			return nil, fmt.Errorf("%s: pattern %q: %w", KeyFilepathHeaders, pattern, err)
		}
		s.FilepathHeaders = append(s.FilepathHeaders, PatternHeaders{
			Pattern: re,
			Headers: headers,
		})
	}

	return s, nil
}

func toStringMap(value any) (map[string]string, error) {
	out := map[string]string{}
	switch m := value.(type) {
	case map[string]string:
		for k, v := range m {
			out[k] = v
		}
	case map[string]any:
		for k, v := range m {
			sv, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("header %q is not a string", k)
			}
			out[k] = sv
		}
	default:
		return nil, fmt.Errorf("expected a header map, got %T", value)
	}
	return out, nil
}

func normalizeExts(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, strings.ToLower(ext))
	}
	return out
}
