package sync

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/e-dard/statics3/internal/blob"
	"github.com/goccy/go-json"
)

// ManifestKey is the reserved object key holding the upload manifest. It
// lives at the bucket root, outside the global key prefix.
const ManifestKey = ".file-hashes"

// Manifest maps remote object keys to the SHA-1 hex digest of the file
// bytes uploaded under them. It is rebuilt in full on every run.
type Manifest map[string]string

// LoadManifest fetches the previously persisted manifest. Absence or an
// unreadable body is not an error: change detection degrades to "no prior
// state" and every file counts as changed.
func LoadManifest(ctx context.Context, client blob.Client) Manifest {
	data, err := client.GetObject(ctx, ManifestKey)
	if err != nil {
		slog.Warn("no prior upload manifest", "key", ManifestKey, "error", err)
		return Manifest{}
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		slog.Warn("unreadable upload manifest", "key", ManifestKey, "error", err)
		return Manifest{}
	}
	return m
}

// StoreManifest persists the rebuilt manifest as a non-public object.
func StoreManifest(ctx context.Context, client blob.Client, m Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	_, err = client.PutObject(ctx, &blob.PutObjectParams{
		Key:  ManifestKey,
		Body: bytes.NewReader(data),
		Size: int64(len(data)),
		ACL:  blob.ACLPrivate,
	})
	return err
}
