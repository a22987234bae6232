// Package blob stores photo bytes in an S3-compatible object store over
// its plain REST surface (PUT/GET/DELETE on object URLs, bearer auth).
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	contractx "github.com/ykravets/friendbook/bot/contract"
)

const maxGetResponseBytes = 32 << 20

type Config struct {
	URL     string        `envconfig:"URL" split_words:"true" required:"true"`
	Bucket  string        `envconfig:"BUCKET" split_words:"true" required:"true"`
	Prefix  string        `envconfig:"PREFIX" split_words:"true" default:"friends"`
	Token   string        `envconfig:"TOKEN" split_words:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// Client implements contract.BlobStore.
type Client struct {
	baseURL    string
	bucket     string
	prefix     string
	token      string
	httpClient *http.Client
}

var _ contractx.BlobStore = (*Client)(nil)

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("blob store url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid blob store url: %w", err)
	}

	bucket := strings.Trim(strings.TrimSpace(cfg.Bucket), "/")
	if bucket == "" {
		return nil, errors.New("blob store bucket is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		baseURL:    baseURL,
		bucket:     bucket,
		prefix:     strings.Trim(strings.TrimSpace(cfg.Prefix), "/"),
		token:      strings.TrimSpace(cfg.Token),
		httpClient: &http.Client{Timeout: timeout},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c, nil
}

func MustNew(cfg Config, opts ...Option) *Client {
	c, err := NewClient(cfg, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// KeyFor derives the object key for a friend's photo:
// <prefix>/<friendID>/<filename>.
func (c *Client) KeyFor(friendID, filename string) string {
	if c.prefix == "" {
		return friendID + "/" + filename
	}
	return c.prefix + "/" + friendID + "/" + filename
}

// URLFor derives the public locator for key. Get of the same key resolves
// the same object.
func (c *Client) URLFor(key string) string {
	return c.baseURL + "/" + c.bucket + "/" + key
}

func (c *Client) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.URLFor(key), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: build blob put: %v", contractx.ErrStore, err)
	}
	req.Header.Set("Content-Type", contentType)
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: put blob %s: %v", contractx.ErrStore, key, err)
	}
	defer drain(resp)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("%w: put blob %s: status=%d", contractx.ErrStore, key, resp.StatusCode)
	}
	return c.URLFor(key), nil
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URLFor(key), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build blob get: %v", contractx.ErrStore, err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: get blob %s: %v", contractx.ErrStore, key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: blob %s", contractx.ErrNotFound, key)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: get blob %s: status=%d", contractx.ErrStore, key, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxGetResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read blob %s: %v", contractx.ErrStore, key, err)
	}
	return data, nil
}

// Delete removes the object at key. An already-absent object is success, so
// delete composes idempotently with the record delete.
func (c *Client) Delete(ctx context.Context, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.URLFor(key), nil)
	if err != nil {
		return fmt.Errorf("%w: build blob delete: %v", contractx.ErrStore, err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: delete blob %s: %v", contractx.ErrStore, key, err)
	}
	defer drain(resp)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil
	case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices:
		return nil
	default:
		return fmt.Errorf("%w: delete blob %s: status=%d", contractx.ErrStore, key, resp.StatusCode)
	}
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}
