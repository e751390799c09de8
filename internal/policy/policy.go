// Package policy computes per-file upload metadata: merged headers,
// compression and content-type decisions, and the split between transport
// parameters and opaque user metadata. Computation is a pure function of
// (file path, settings) and never depends on upload order.
package policy

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/e-dard/statics3/internal/blob"
	"github.com/e-dard/statics3/internal/config"
	"github.com/e-dard/statics3/internal/utils"
)

// Policy is the computed upload treatment for one file.
type Policy struct {
	// Headers is the merged header set: global headers overlaid with every
	// matching filepath pattern rule, later rules overwriting earlier keys.
	Headers map[string]string

	// Gzip marks the payload for compression before transmission.
	Gzip bool
}

// Compute derives the upload policy for the file at localPath.
func Compute(localPath string, cfg *config.Settings) *Policy {
	headers := make(map[string]string, len(cfg.Headers))
	for name, value := range cfg.Headers {
		headers[name] = value
	}

	for _, rule := range cfg.FilepathHeaders {
		if !rule.Pattern.MatchString(localPath) {
			continue
		}
		for name, value := range rule.Headers {
			headers[name] = value
		}
	}

	shouldGzip := cfg.Gzip
	if shouldGzip && len(cfg.GzipOnlyExts) > 0 {
		ext := strings.ToLower(filepath.Ext(localPath))
		shouldGzip = slices.Contains(cfg.GzipOnlyExts, ext)
	}

	if shouldGzip {
		headers["content-encoding"] = "gzip"
	}

	// Compressed payloads need an explicit content type, since the store
	// cannot sniff one through the encoding.
	if (cfg.ForceMimetype || shouldGzip) && !hasHeader(headers, "content-type") {
		if contentType := utils.DetectContentType(localPath); contentType != "" {
			headers["content-type"] = contentType
		} else {
			slog.Warn("unable to detect content type", "path", localPath)
		}
	}

	return &Policy{Headers: headers, Gzip: shouldGzip}
}

// Split separates the merged headers into the store's fixed transport
// parameter set and opaque user metadata. Unrecognized header names pass
// through as metadata rather than being rejected.
func Split(headers map[string]string) (blob.TransportParams, map[string]string, error) {
	var params blob.TransportParams
	metadata := map[string]string{}

	for name, value := range headers {
		switch strings.ToLower(name) {
		case "cache-control":
			params.CacheControl = value
		case "content-disposition":
			params.ContentDisposition = value
		case "content-encoding":
			params.ContentEncoding = value
		case "content-language":
			params.ContentLanguage = value
		case "content-length":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return params, nil, fmt.Errorf("bad content-length header %q: %w", value, err)
			}
			params.ContentLength = n
		case "content-md5":
			params.ContentMD5 = value
		case "content-type":
			params.ContentType = value
		case "expires":
			t, err := http.ParseTime(value)
			if err != nil {
				return params, nil, fmt.Errorf("bad expires header %q: %w", value, err)
			}
			params.Expires = &t
		default:
			metadata[name] = value
		}
	}

	return params, metadata, nil
}

// Compress gzip-encodes data at best compression, naming the stream after
// the file.
func Compress(name string, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	zw.Name = filepath.Base(name)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func hasHeader(headers map[string]string, name string) bool {
	for k := range headers {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}
