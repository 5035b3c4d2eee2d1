package downloader

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stillmotion/internal/core/domain"
)

func TestDownloadAttachesAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/v.mp4", r.URL.Path)
		assert.Equal(t, "k-1", r.URL.Query().Get("key"))
		assert.Equal(t, "download", r.URL.Query().Get("alt"))
		_, _ = io.WriteString(w, "video-bytes")
	}))
	defer srv.Close()

	d := NewHTTPDownloader(srv.Client())
	body, err := d.Download(context.Background(), srv.URL+"/files/v.mp4?alt=download", domain.Credential{Kind: domain.KindAPIKey, APIKey: "k-1"})
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "video-bytes", string(data))
}

func TestDownloadDelegatedUsesBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Empty(t, r.URL.Query().Get("key"))
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	d := NewHTTPDownloader(nil)
	body, err := d.Download(context.Background(), srv.URL+"/v.mp4", domain.Credential{
		Kind: domain.KindDelegated, ProjectID: "p", Location: "us-central1", AccessToken: "tok",
	})
	require.NoError(t, err)
	body.Close()
}

func TestDownloadNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	d := NewHTTPDownloader(nil)
	_, err := d.Download(context.Background(), srv.URL+"/v.mp4", domain.Credential{Kind: domain.KindAPIKey, APIKey: "k"})
	assert.ErrorIs(t, err, domain.ErrDownloadFailed)
	assert.Contains(t, err.Error(), "403 Forbidden")
}

func TestDownloadTransportErrorRedactsKey(t *testing.T) {
	d := NewHTTPDownloader(nil)
	_, err := d.Download(context.Background(), "http://127.0.0.1:1/v.mp4", domain.Credential{Kind: domain.KindAPIKey, APIKey: "secret-key"})
	require.ErrorIs(t, err, domain.ErrDownloadFailed)
	assert.NotContains(t, err.Error(), "secret-key")
}

func TestDownloadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewHTTPDownloader(nil)
	_, err := d.Download(ctx, "http://127.0.0.1:1/v.mp4", domain.Credential{Kind: domain.KindAPIKey, APIKey: "k"})
	assert.ErrorIs(t, err, domain.ErrCancelled)
}

func TestResolveLocator(t *testing.T) {
	assert.Equal(t, "https://storage.googleapis.com/bucket/out/v.mp4", ResolveLocator("gs://bucket/out/v.mp4"))
	assert.Equal(t, "https://example.test/v.mp4", ResolveLocator(" https://example.test/v.mp4 "))
	assert.Empty(t, ResolveLocator(""))
}

func TestWithAPIKey(t *testing.T) {
	assert.Equal(t, "https://example.test/v.mp4?key=k", withAPIKey("https://example.test/v.mp4", "k"))
	assert.Equal(t, "files/v?alt=media&key=k", withAPIKey("files/v?alt=media", "k"))
	assert.Equal(t, "files/v?key=a%2Bb", withAPIKey("files/v", "a+b"))
}
