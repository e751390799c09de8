package sync

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/e-dard/statics3/internal/assets"
	"github.com/e-dard/statics3/internal/blob"
	"github.com/e-dard/statics3/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type putRecord struct {
	Key      string
	ACL      blob.ACL
	Body     []byte
	Metadata map[string]string
	Params   blob.TransportParams
}

// fakeClient is an in-memory object store. Tests run sequentially
// (Concurrency unset), so no locking is needed.
type fakeClient struct {
	headErr   error
	createErr error
	putErr    error
	getErr    error

	created  bool
	aclCalls []blob.ACL
	objects  map[string][]byte
	puts     []putRecord
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: map[string][]byte{}}
}

func (f *fakeClient) HeadBucket(ctx context.Context) error {
	return f.headErr
}

func (f *fakeClient) CreateBucket(ctx context.Context) error {
	f.created = true
	return f.createErr
}

func (f *fakeClient) PutBucketACL(ctx context.Context, acl blob.ACL) error {
	f.aclCalls = append(f.aclCalls, acl)
	return nil
}

func (f *fakeClient) PutObject(ctx context.Context, params *blob.PutObjectParams) (*blob.PutObjectResponse, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[params.Key] = body
	f.puts = append(f.puts, putRecord{
		Key:      params.Key,
		ACL:      params.ACL,
		Body:     body,
		Metadata: params.Metadata,
		Params:   params.Params,
	})
	return &blob.PutObjectResponse{Key: params.Key, Size: int64(len(body))}, nil
}

func (f *fakeClient) GetObject(ctx context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	body, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %q: %w", key, blob.ErrNotFound)
	}
	return body, nil
}

var _ blob.Client = (*fakeClient)(nil)

func (f *fakeClient) uploadedKeys() []string {
	keys := make([]string, 0, len(f.puts))
	for _, p := range f.puts {
		if p.Key == ManifestKey {
			continue
		}
		keys = append(keys, p.Key)
	}
	return keys
}

func testSite(t *testing.T, files ...string) (*assets.Site, string) {
	t.Helper()
	dir := t.TempDir()
	for _, rel := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("content of "+rel), 0o644))
	}
	return &assets.Site{Primary: assets.Root{Dir: dir, URLPrefix: "/static"}}, dir
}

func testSettings() *config.Settings {
	return &config.Settings{
		BucketName: "foo",
		Headers:    map[string]string{},
	}
}

func TestRunFullResync(t *testing.T) {
	site, _ := testSite(t, "a.css", "css/b.css")
	client := newFakeClient()

	result, err := New(client, testSettings(), site).Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Uploaded)
	assert.ElementsMatch(t, []string{"static/a.css", "static/css/b.css"}, client.uploadedKeys())
	assert.Equal(t, []blob.ACL{blob.ACLPublicRead}, client.aclCalls)
	for _, p := range client.puts {
		assert.Equal(t, blob.ACLPublicRead, p.ACL)
	}
	// No change detection, no manifest.
	assert.NotContains(t, client.objects, ManifestKey)

	// A second run retransmits everything.
	result, err = New(client, testSettings(), site).Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Uploaded)
}

func TestRunGlobalPrefix(t *testing.T) {
	site, _ := testSite(t, "a.css")
	client := newFakeClient()
	cfg := testSettings()
	cfg.Prefix = "assets"

	_, err := New(client, cfg, site).Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"assets/static/a.css"}, client.uploadedKeys())
}

func TestRunChangeDetectionIdempotent(t *testing.T) {
	site, dir := testSite(t, "a.css", "b.css")
	client := newFakeClient()
	cfg := testSettings()
	cfg.OnlyModified = true
	syncer := New(client, cfg, site)

	result, err := syncer.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Uploaded)
	require.Contains(t, client.objects, ManifestKey)

	// Nothing changed: the reloaded manifest short-circuits every file.
	result, err = syncer.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Uploaded)
	assert.Equal(t, 2, result.Unchanged)

	// Exactly the modified file is retransmitted.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.css"), []byte("changed"), 0o644))
	client.puts = nil

	result, err = syncer.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Uploaded)
	assert.Equal(t, 1, result.Unchanged)
	assert.Equal(t, []string{"static/a.css"}, client.uploadedKeys())
}

func TestRunExclusionAlwaysWins(t *testing.T) {
	site, dir := testSite(t, "a.css", "b.css")
	client := newFakeClient()
	cfg := testSettings()
	cfg.OnlyModified = true
	syncer := New(client, cfg, site)
	opts := Options{ExcludedKeys: []string{"static/a.css"}}

	result, err := syncer.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Uploaded)
	assert.Equal(t, 1, result.Excluded)
	assert.Equal(t, []string{"static/b.css"}, client.uploadedKeys())

	// Even a changed hash never overrides exclusion.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.css"), []byte("changed"), 0o644))
	client.puts = nil

	result, err = syncer.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Excluded)
	assert.Empty(t, client.uploadedKeys())
}

func TestRunManifestCoversSkippedFiles(t *testing.T) {
	site, _ := testSite(t, "a.css", "b.css")
	client := newFakeClient()
	cfg := testSettings()
	cfg.OnlyModified = true
	syncer := New(client, cfg, site)

	_, err := syncer.Run(context.Background(), Options{ExcludedKeys: []string{"static/a.css"}})
	require.NoError(t, err)

	manifest := LoadManifest(context.Background(), client)
	// Every considered file is recorded, including ones never transmitted.
	assert.Contains(t, manifest, "static/a.css")
	assert.Contains(t, manifest, "static/b.css")
}

func TestRunManifestIsPrivate(t *testing.T) {
	site, _ := testSite(t, "a.css")
	client := newFakeClient()
	cfg := testSettings()
	cfg.OnlyModified = true

	_, err := New(client, cfg, site).Run(context.Background(), Options{})
	require.NoError(t, err)

	var found bool
	for _, p := range client.puts {
		if p.Key == ManifestKey {
			found = true
			assert.Equal(t, blob.ACLPrivate, p.ACL)
		}
	}
	assert.True(t, found)
}

func TestRunManifestLoadFailureDegrades(t *testing.T) {
	site, _ := testSite(t, "a.css")
	client := newFakeClient()
	client.getErr = errors.New("remote store unavailable")
	cfg := testSettings()
	cfg.OnlyModified = true

	// Unreadable manifest means no prior state, not a hard failure.
	result, err := New(client, cfg, site).Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Uploaded)
}

func TestRunCreatesMissingBucket(t *testing.T) {
	site, _ := testSite(t, "a.css")
	client := newFakeClient()
	client.headErr = fmt.Errorf("bucket %q: %w", "foo", blob.ErrNotFound)

	_, err := New(client, testSettings(), site).Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.True(t, client.created)
}

func TestRunBucketProbeFailureIsFatal(t *testing.T) {
	site, _ := testSite(t, "a.css")
	client := newFakeClient()
	client.headErr = errors.New("access denied")

	_, err := New(client, testSettings(), site).Run(context.Background(), Options{})
	require.Error(t, err)
	assert.False(t, client.created)
	assert.Empty(t, client.puts)
}

func TestRunSkipBucketACL(t *testing.T) {
	site, _ := testSite(t, "a.css")
	client := newFakeClient()

	_, err := New(client, testSettings(), site).Run(context.Background(), Options{SkipBucketACL: true})
	require.NoError(t, err)
	assert.Empty(t, client.aclCalls)
}

func TestRunNoBucketName(t *testing.T) {
	site, _ := testSite(t, "a.css")
	cfg := testSettings()
	cfg.BucketName = ""

	_, err := New(newFakeClient(), cfg, site).Run(context.Background(), Options{})
	require.ErrorIs(t, err, config.ErrNoBucket)
}

func TestRunUploadFailureIsFatal(t *testing.T) {
	site, _ := testSite(t, "a.css")
	client := newFakeClient()
	client.putErr = errors.New("slow down")

	_, err := New(client, testSettings(), site).Run(context.Background(), Options{})
	require.Error(t, err)
}

func TestRunGzipUpload(t *testing.T) {
	site, _ := testSite(t, "a.css")
	client := newFakeClient()
	cfg := testSettings()
	cfg.Gzip = true

	_, err := New(client, cfg, site).Run(context.Background(), Options{})
	require.NoError(t, err)

	require.Len(t, client.puts, 1)
	put := client.puts[0]
	assert.Equal(t, "gzip", put.Params.ContentEncoding)
	assert.Equal(t, "text/css; charset=utf-8", put.Params.ContentType)

	zr, err := gzip.NewReader(bytes.NewReader(put.Body))
	require.NoError(t, err)
	defer zr.Close()
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, []byte("content of a.css"), body)
}

func TestRunSubModuleRoots(t *testing.T) {
	site, _ := testSite(t, "a.css")
	adminDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(adminDir, "admin.css"), []byte("x"), 0o644))
	site.Modules = []assets.Root{
		{Name: "admin", Dir: adminDir, URLPrefix: "/admin/static"},
	}

	client := newFakeClient()
	result, err := New(client, testSettings(), site).Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Uploaded)
	assert.ElementsMatch(t, []string{"static/a.css", "admin/static/admin.css"}, client.uploadedKeys())
}
