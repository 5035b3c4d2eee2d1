package veo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"stillmotion/internal/core/domain"
)

const (
	defaultBaseURL        = "https://generativelanguage.googleapis.com/v1beta"
	defaultVertexEndpoint = "https://%s-aiplatform.googleapis.com"
)

// Options configures the Veo client.
type Options struct {
	// BaseURL of the Gemini API, used with API keys.
	BaseURL string

	// VertexEndpoint is used with delegated credentials. A "%s" verb is
	// replaced with the credential's location.
	VertexEndpoint string

	// StorageURI is a gs:// prefix Vertex AI writes results to. Without it
	// Vertex returns the clip inline, which is not supported here.
	StorageURI string

	HTTPClient *http.Client
	Logger     *zerolog.Logger
}

// Client implements ports.VideoAPI against the Gemini API (API key) and
// Vertex AI (delegated access token).
type Client struct {
	baseURL        string
	vertexEndpoint string
	storageURI     string
	client         *http.Client
	logger         zerolog.Logger
}

// NewClient creates a new Client.
func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		vertexEndpoint: strings.TrimRight(opts.VertexEndpoint, "/"),
		storageURI:     strings.TrimSpace(opts.StorageURI),
		client:         opts.HTTPClient,
		logger:         zerolog.Nop(),
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.vertexEndpoint == "" {
		c.vertexEndpoint = defaultVertexEndpoint
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: 2 * time.Minute}
	}
	if opts.Logger != nil {
		c.logger = *opts.Logger
	}
	return c
}

// Submit starts a long-running generation.
func (c *Client) Submit(ctx context.Context, cred domain.Credential, req domain.GenerateRequest) (*domain.Operation, error) {
	if req.Model == "" {
		return nil, fmt.Errorf("veo: model is required")
	}
	payload := buildPredictRequest(req)

	var endpoint string
	if cred.IsDelegated() {
		payload.Parameters.StorageURI = c.storageURI
		endpoint = fmt.Sprintf("%s/v1/projects/%s/locations/%s/publishers/google/models/%s:predictLongRunning",
			c.vertexBase(cred), url.PathEscape(cred.ProjectID), url.PathEscape(cred.Location), url.PathEscape(req.Model))
	} else {
		endpoint = fmt.Sprintf("%s/models/%s:predictLongRunning", c.baseURL, url.PathEscape(req.Model))
	}

	var raw rawOperation
	if err := c.do(ctx, cred, http.MethodPost, endpoint, payload, &raw); err != nil {
		return nil, err
	}
	c.logger.Debug().Str("model", req.Model).Str("operation", raw.Name).Msg("veo: generation submitted")
	return raw.normalize(), nil
}

// Status refreshes an operation snapshot.
func (c *Client) Status(ctx context.Context, cred domain.Credential, op *domain.Operation) (*domain.Operation, error) {
	if op == nil || op.Name == "" {
		return nil, domain.ErrNoOperationHandle
	}

	var raw rawOperation
	if cred.IsDelegated() {
		modelPath, _, found := strings.Cut(op.Name, "/operations/")
		if !found {
			return nil, fmt.Errorf("veo: unexpected operation name %q", op.Name)
		}
		endpoint := fmt.Sprintf("%s/v1/%s:fetchPredictOperation", c.vertexBase(cred), modelPath)
		body := map[string]string{"operationName": op.Name}
		if err := c.do(ctx, cred, http.MethodPost, endpoint, body, &raw); err != nil {
			return nil, err
		}
	} else {
		endpoint := fmt.Sprintf("%s/%s", c.baseURL, strings.TrimLeft(op.Name, "/"))
		if err := c.do(ctx, cred, http.MethodGet, endpoint, nil, &raw); err != nil {
			return nil, err
		}
	}

	if raw.Name == "" {
		raw.Name = op.Name
	}
	return raw.normalize(), nil
}

func (c *Client) vertexBase(cred domain.Credential) string {
	if strings.Contains(c.vertexEndpoint, "%s") {
		return fmt.Sprintf(c.vertexEndpoint, cred.Location)
	}
	return c.vertexEndpoint
}

func (c *Client) do(ctx context.Context, cred domain.Credential, method, endpoint string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("veo: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("veo: build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cred.IsDelegated() {
		req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	} else {
		req.Header.Set("x-goog-api-key", cred.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("veo: %s request: %w", strings.ToLower(method), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("veo: read response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return decodeAPIError(resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("veo: decode response: %w", err)
	}
	return nil
}
