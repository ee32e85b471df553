package cloudinary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// ResourceType selects the Cloudinary upload endpoint.
type ResourceType string

const (
	ResourceImage ResourceType = "image"
	ResourceVideo ResourceType = "video"
)

// Credentials identify the upload destination: an account (cloud name) and
// an unsigned upload preset configured on that account.
type Credentials struct {
	CloudName    string
	UploadPreset string
}

// Configured reports whether both credential parts are present.
func (c Credentials) Configured() bool {
	return c.CloudName != "" && c.UploadPreset != ""
}

// UploadResult holds the fields we consume from Cloudinary's response.
type UploadResult struct {
	SecureURL    string `json:"secure_url"`
	PublicID     string `json:"public_id"`
	ResourceType string `json:"resource_type"`
	Format       string `json:"format"`
	Bytes        int64  `json:"bytes"`
}

// Client performs unsigned multipart uploads to Cloudinary.
type Client struct {
	httpClient *http.Client
	baseURL    string
	folder     string
}

// Option mutates client construction.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the API base, used by tests.
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(base, "/") }
}

// WithFolder sets a destination folder attached to every upload.
func WithFolder(folder string) Option {
	return func(c *Client) { c.folder = folder }
}

// New constructs a Client. Credentials are passed per upload because the
// portal resolves them at request time through the settings fallback chain.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    "https://api.cloudinary.com/v1_1",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResourceTypeForMime maps a MIME type onto an upload endpoint.
// Only image/* and video/* are accepted.
func ResourceTypeForMime(mimeType string) (ResourceType, error) {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return ResourceImage, nil
	case strings.HasPrefix(mimeType, "video/"):
		return ResourceVideo, nil
	default:
		return "", fmt.Errorf("unsupported mime type %q", mimeType)
	}
}

// Upload sends file bytes to the unsigned upload endpoint for the given
// resource type and returns the hosted file's details.
func (c *Client) Upload(ctx context.Context, creds Credentials, resource ResourceType, filename string, r io.Reader) (*UploadResult, error) {
	if !creds.Configured() {
		return nil, fmt.Errorf("cloudinary credentials missing")
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return nil, fmt.Errorf("copy file into form: %w", err)
	}

	_ = w.WriteField("upload_preset", creds.UploadPreset)
	if c.folder != "" {
		_ = w.WriteField("folder", c.folder)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart form: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/upload", c.baseURL, creds.CloudName, resource)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cloudinary upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("cloudinary error %d: %s", resp.StatusCode, string(body))
	}

	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode cloudinary response: %w", err)
	}

	return &result, nil
}
