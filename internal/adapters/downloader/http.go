package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stillmotion/internal/core/domain"
)

const gcsPublicHost = "https://storage.googleapis.com/"

// HTTPDownloader implements ports.Downloader using standard HTTP.
type HTTPDownloader struct {
	client *http.Client
}

// NewHTTPDownloader creates a new HTTPDownloader. A nil client gets a default
// with a long timeout since clips can be large.
func NewHTTPDownloader(client *http.Client) *HTTPDownloader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Minute}
	}
	return &HTTPDownloader{client: client}
}

// Download fetches the generated video with the credential attached.
func (d *HTTPDownloader) Download(ctx context.Context, locator string, cred domain.Credential) (io.ReadCloser, error) {
	target := ResolveLocator(locator)
	if target == "" {
		return nil, fmt.Errorf("%w: empty locator", domain.ErrDownloadFailed)
	}

	if !cred.IsDelegated() && cred.APIKey != "" {
		target = withAPIKey(target, cred.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", domain.ErrDownloadFailed, redact(err, cred.APIKey))
	}
	if cred.IsDelegated() {
		req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrCancelled, ctxErr)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrDownloadFailed, redact(err, cred.APIKey))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", domain.ErrDownloadFailed, resp.Status)
	}

	return resp.Body, nil
}

// ResolveLocator maps gs://bucket/object locators to their public HTTPS form.
func ResolveLocator(locator string) string {
	locator = strings.TrimSpace(locator)
	if rest, ok := strings.CutPrefix(locator, "gs://"); ok {
		return gcsPublicHost + rest
	}
	return locator
}

// withAPIKey appends key as a query parameter. Locators that do not parse as
// URLs get the parameter concatenated.
func withAPIKey(locator, key string) string {
	u, err := url.Parse(locator)
	if err != nil || u.Scheme == "" {
		sep := "?"
		if strings.Contains(locator, "?") {
			sep = "&"
		}
		return locator + sep + "key=" + url.QueryEscape(key)
	}
	q := u.Query()
	q.Set("key", key)
	u.RawQuery = q.Encode()
	return u.String()
}

// redact keeps the API key out of error messages, which end up on jobs.
func redact(err error, key string) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		if u, perr := url.Parse(uerr.URL); perr == nil {
			q := u.Query()
			if q.Has("key") {
				q.Set("key", "REDACTED")
				u.RawQuery = q.Encode()
				uerr.URL = u.String()
			}
		}
	}
	if key == "" {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), url.QueryEscape(key), "REDACTED"))
}
