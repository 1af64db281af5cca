package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mediaorganizer/internal/services"
)

const (
	defaultHTTPTimeout = 60 * time.Second
	maxErrorBody       = 512
)

// Config captures the classifier endpoint settings.
type Config struct {
	URL            string
	TimeoutSeconds int
}

// Client is the HTTP classifier client.
type Client struct {
	url        string
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a classifier client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		url:        strings.TrimSpace(cfg.URL),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// URL returns the configured endpoint.
func (c *Client) URL() string { return c.url }

// Classify scores a single file.
func (c *Client) Classify(ctx context.Context, path string, labels []string) ([]Label, error) {
	results, err := c.ClassifyBatch(ctx, []string{path}, labels)
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// ClassifyBatch scores every path in one request.
func (c *Client) ClassifyBatch(ctx context.Context, paths []string, labels []string) ([][]Label, error) {
	if c.url == "" {
		return nil, services.Wrap(services.ErrConfiguration, "classify", "request", "classifier url not configured", nil)
	}
	if len(paths) == 0 {
		return nil, nil
	}
	body, contentType, err := encodeRequest(paths, labels)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "classify", "new request", c.url, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, services.Wrap(services.ErrTransient, "classify", "request", c.url, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "classify", "read response", c.url, err)
	}
	if resp.StatusCode >= 400 {
		marker := services.ErrExternalTool
		if resp.StatusCode < 500 {
			marker = services.ErrValidation
		}
		detail := fmt.Sprintf("http %d: %s", resp.StatusCode, snippet(payload))
		return nil, services.Wrap(marker, "classify", "request", detail, nil)
	}
	return decodeResponse(payload, len(paths))
}

// UnsafeScore returns the "unsafe" confidence for an image.
func (c *Client) UnsafeScore(ctx context.Context, path string) (float64, error) {
	labels, err := c.Classify(ctx, path, nil)
	if err != nil {
		return 0, err
	}
	return Score(labels, UnsafeLabel), nil
}

// HealthCheck verifies the endpoint answers HTTP. Any response below 500
// counts as reachable since the service only accepts POSTs with a body.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.url == "" {
		return errors.New("classifier health: url not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("classifier health: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("classifier health: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode >= 500 {
		return fmt.Errorf("classifier health: http %d", resp.StatusCode)
	}
	return nil
}

func encodeRequest(paths []string, labels []string) (io.Reader, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, path := range paths {
		if err := addFile(writer, path); err != nil {
			return nil, "", err
		}
	}
	if err := writer.WriteField("labels", strings.Join(labels, ",")); err != nil {
		return nil, "", fmt.Errorf("classify: write labels: %w", err)
	}
	if err := writer.WriteField("format", "json"); err != nil {
		return nil, "", fmt.Errorf("classify: write format: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("classify: close form: %w", err)
	}
	return &body, writer.FormDataContentType(), nil
}

func addFile(writer *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return services.Wrap(services.ErrUnreadable, "classify", "open", path, err)
	}
	defer f.Close()
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("classify: create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return services.Wrap(services.ErrUnreadable, "classify", "read", path, err)
	}
	return nil
}

type fileTags struct {
	Tags map[string]float64 `json:"tags"`
}

func decodeResponse(payload []byte, want int) ([][]Label, error) {
	var parsed []fileTags
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "classify", "decode response", snippet(payload), err)
	}
	if len(parsed) != want {
		detail := fmt.Sprintf("expected %d results, got %d", want, len(parsed))
		return nil, services.Wrap(services.ErrExternalTool, "classify", "decode response", detail, nil)
	}
	out := make([][]Label, len(parsed))
	for i, entry := range parsed {
		labels := make([]Label, 0, len(entry.Tags))
		for name, confidence := range entry.Tags {
			labels = append(labels, Label{Name: name, Confidence: confidence})
		}
		out[i] = Filter(labels, 0)
	}
	return out, nil
}

func snippet(payload []byte) string {
	text := strings.TrimSpace(string(payload))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	return text
}
