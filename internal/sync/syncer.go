// Package sync pushes a site's static assets to an object store bucket. A
// run is a linear batch: provision the bucket, discover asset files, decide
// per file whether to transmit, then persist the rebuilt upload manifest
// when change detection is on.
package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"

	"github.com/dustin/go-humanize"
	"github.com/e-dard/statics3/internal/assets"
	"github.com/e-dard/statics3/internal/blob"
	"github.com/e-dard/statics3/internal/config"
	"github.com/e-dard/statics3/internal/policy"
	"github.com/e-dard/statics3/internal/utils"
	"golang.org/x/sync/errgroup"
)

// Options control a single synchronization run.
type Options struct {
	// IncludeHidden also uploads files with a leading-dot path component.
	IncludeHidden bool

	// Filter restricts discovery to matching root-relative paths.
	Filter *regexp.Regexp

	// ExcludedKeys are never transmitted, regardless of hash state.
	ExcludedKeys []string

	// SkipBucketACL leaves an operator-managed bucket policy untouched.
	SkipBucketACL bool

	// Concurrency bounds the upload pool. Values below 1 mean sequential.
	Concurrency int
}

// Result summarizes what a run did.
type Result struct {
	Uploaded  int
	Unchanged int
	Excluded  int
}

type Syncer struct {
	client blob.Client
	cfg    *config.Settings
	site   *assets.Site
}

func New(client blob.Client, cfg *config.Settings, site *assets.Site) *Syncer {
	return &Syncer{
		client: client,
		cfg:    cfg,
		site:   site,
	}
}

type workItem struct {
	key  string
	file assets.File
}

type outcome int8

const (
	outcomeUploaded outcome = iota
	outcomeUnchanged
	outcomeExcluded
)

type fileEntry struct {
	key     string
	hash    string
	outcome outcome
}

// Run executes one synchronization pass.
func (s *Syncer) Run(ctx context.Context, opts Options) (*Result, error) {
	if s.cfg.BucketName == "" {
		return nil, config.ErrNoBucket
	}

	if err := s.ensureBucket(ctx, opts); err != nil {
		return nil, err
	}

	gathered, err := assets.Gather(s.site, assets.GatherOptions{
		IncludeHidden: opts.IncludeHidden,
		Filter:        opts.Filter,
	})
	if err != nil {
		return nil, err
	}

	items, err := s.buildWorkList(gathered)
	if err != nil {
		return nil, err
	}

	prior := Manifest{}
	if s.cfg.OnlyModified {
		prior = LoadManifest(ctx, s.client)
	}

	excluded := make(map[string]struct{}, len(opts.ExcludedKeys))
	for _, key := range opts.ExcludedKeys {
		excluded[key] = struct{}{}
	}

	// Each slot is written by exactly one goroutine, so the entries merge
	// without locking once the group is done.
	entries := make([]fileEntry, len(items))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(max(1, opts.Concurrency))
	for i, item := range items {
		i, item := i, item
		eg.Go(func() error {
			entry, err := s.processFile(egCtx, item, prior, excluded)
			if err != nil {
				return err
			}
			entries[i] = entry
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	result := &Result{}
	next := make(Manifest, len(entries))
	for _, e := range entries {
		switch e.outcome {
		case outcomeUploaded:
			result.Uploaded++
		case outcomeUnchanged:
			result.Unchanged++
		case outcomeExcluded:
			result.Excluded++
		}
		if s.cfg.OnlyModified {
			next[e.key] = e.hash
		}
	}

	if s.cfg.OnlyModified {
		// Assets are already uploaded; a stale manifest only costs a full
		// resync next run.
		if err := StoreManifest(ctx, s.client, next); err != nil {
			slog.Warn("unable to store upload manifest", "key", ManifestKey, "error", err)
		}
	}

	return result, nil
}

// ensureBucket probes for the bucket, creates it when absent, and applies
// the public-read policy unless skipped. Probe failures other than
// not-found abort the run.
func (s *Syncer) ensureBucket(ctx context.Context, opts Options) error {
	if err := s.client.HeadBucket(ctx); err != nil {
		if !errors.Is(err, blob.ErrNotFound) {
			return fmt.Errorf("bucket probe: %w", err)
		}
		slog.Info("creating bucket", "bucket", s.cfg.BucketName)
		if err := s.client.CreateBucket(ctx); err != nil {
			return err
		}
	}

	if !opts.SkipBucketACL {
		if err := s.client.PutBucketACL(ctx, blob.ACLPublicRead); err != nil {
			return err
		}
	}
	return nil
}

// buildWorkList maps every discovered file to its remote object key. The
// relative path is recomputed against the root directory so a malformed
// input surfaces as a configuration error before any upload starts.
func (s *Syncer) buildWorkList(gathered []assets.RootFiles) ([]workItem, error) {
	var items []workItem
	for _, rf := range gathered {
		slog.Debug("asset root gathered", "dir", rf.Root.Dir, "url", rf.Root.URLPrefix, "files", len(rf.Files))
		for _, f := range rf.Files {
			rel, err := assets.RelativeKeyPath(rf.Root.Dir, f.Path)
			if err != nil {
				return nil, err
			}
			items = append(items, workItem{
				key:  assets.RemoteKey(s.cfg.Prefix, rf.Root.URLPrefix, rel),
				file: f,
			})
		}
	}
	return items, nil
}

func (s *Syncer) processFile(ctx context.Context, item workItem, prior Manifest, excluded map[string]struct{}) (fileEntry, error) {
	entry := fileEntry{key: item.key}

	if s.cfg.OnlyModified {
		hash, err := utils.FileHash(item.file.Path)
		if err != nil {
			return entry, fmt.Errorf("hash %s: %w", item.file.Path, err)
		}
		entry.hash = hash
	}

	// Exclusion wins over everything, including a changed hash.
	if _, ok := excluded[item.key]; ok {
		slog.Debug("excluded from upload", "key", item.key)
		entry.outcome = outcomeExcluded
		return entry, nil
	}

	if s.cfg.OnlyModified && prior[item.key] == entry.hash {
		slog.Debug("contents unchanged", "key", item.key)
		entry.outcome = outcomeUnchanged
		return entry, nil
	}

	if err := s.upload(ctx, item); err != nil {
		return entry, err
	}
	entry.outcome = outcomeUploaded
	return entry, nil
}

func (s *Syncer) upload(ctx context.Context, item workItem) error {
	pol := policy.Compute(item.file.Path, s.cfg)

	data, err := os.ReadFile(item.file.Path)
	if err != nil {
		return err
	}
	if pol.Gzip {
		if data, err = policy.Compress(item.file.Path, data); err != nil {
			return fmt.Errorf("compress %s: %w", item.file.Path, err)
		}
	}

	params, metadata, err := policy.Split(pol.Headers)
	if err != nil {
		return err
	}

	slog.Info("uploading", "path", item.file.Path, "key", item.key, "size", humanize.Bytes(uint64(len(data))))
	_, err = s.client.PutObject(ctx, &blob.PutObjectParams{
		Key:      item.key,
		Body:     bytes.NewReader(data),
		Size:     int64(len(data)),
		ACL:      blob.ACLPublicRead,
		Metadata: metadata,
		Params:   params,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", item.key, err)
	}
	return nil
}
