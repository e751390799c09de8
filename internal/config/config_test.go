package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSource() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestResolveDefaults(t *testing.T) {
	s, err := Resolve(newSource())
	require.NoError(t, err)

	assert.Equal(t, "", s.BucketName)
	assert.Equal(t, "s3.amazonaws.com", s.BucketDomain)
	assert.Equal(t, URLStyleHost, s.URLStyle)
	assert.True(t, s.UseHTTPS)
	assert.True(t, s.Active)
	assert.True(t, s.OverrideTesting)
	assert.False(t, s.Debug)
	assert.False(t, s.OnlyModified)
	assert.False(t, s.Gzip)
	assert.False(t, s.ForceMimetype)
	assert.Empty(t, s.Headers)
	assert.Empty(t, s.FilepathHeaders)
}

func TestResolveCacheControlFolding(t *testing.T) {
	v := newSource()
	v.Set(KeyUseCacheControl, true)
	v.Set(KeyCacheControl, "max-age=86400")

	s, err := Resolve(v)
	require.NoError(t, err)
	assert.Equal(t, "max-age=86400", s.Headers["Cache-Control"])

	// Without the enable flag the value is ignored.
	v = newSource()
	v.Set(KeyCacheControl, "max-age=86400")
	s, err = Resolve(v)
	require.NoError(t, err)
	assert.NotContains(t, s.Headers, "Cache-Control")
}

func TestResolveFilepathHeaders(t *testing.T) {
	v := newSource()
	v.Set(KeyFilepathHeaders, map[string]any{
		`\.css$`:  map[string]any{"Cache-Control": "max-age=31536000"},
		`^vendor`: map[string]any{"X-Vendor": "yes"},
	})

	s, err := Resolve(v)
	require.NoError(t, err)
	require.Len(t, s.FilepathHeaders, 2)

	// Rules come back sorted by pattern for a stable overlay order.
	assert.Equal(t, `\.css$`, s.FilepathHeaders[0].Pattern.String())
	assert.Equal(t, `^vendor`, s.FilepathHeaders[1].Pattern.String())
	assert.True(t, s.FilepathHeaders[0].Pattern.MatchString("app.css"))
	assert.Equal(t, map[string]string{"Cache-Control": "max-age=31536000"}, s.FilepathHeaders[0].Headers)
}

func TestResolveBadFilepathPattern(t *testing.T) {
	v := newSource()
	v.Set(KeyFilepathHeaders, map[string]any{
		`([`: map[string]any{"X-A": "1"},
	})

	_, err := Resolve(v)
	require.Error(t, err)
}

func TestResolveGzipExts(t *testing.T) {
	v := newSource()
	v.Set(KeyGzipOnlyExts, []string{"css", ".JS", " ", ""})

	s, err := Resolve(v)
	require.NoError(t, err)
	assert.Equal(t, []string{".css", ".js"}, s.GzipOnlyExts)
}
