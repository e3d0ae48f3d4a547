package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
)

const userAgent = "mangodl/1.0"

// API is a rate limited HTTP helper shared by every request of a session.
type API struct {
	client  *http.Client
	baseURL string
	bucket  *TokenBucket
}

// NewAPI builds an API for baseURL. A nil client gets a fresh one with the
// given timeout; a nil bucket disables throttling.
func NewAPI(baseURL string, client *http.Client, bucket *TokenBucket, timeout time.Duration) *API {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &API{client: client, baseURL: baseURL, bucket: bucket}
}

func (a *API) Client() *http.Client {
	return a.client
}

func (a *API) BaseURL() string {
	return a.baseURL
}

// Get fetches baseURL+path and decodes the JSON body into v.
func (a *API) Get(ctx context.Context, path string, params url.Values, v any) error {
	if params != nil {
		path += "?" + params.Encode()
	}
	body, _, err := a.do(ctx, a.baseURL+path, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Fetch downloads an absolute URL and returns its body and content type.
func (a *API) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	return a.do(ctx, rawURL, "*/*")
}

func (a *API) do(ctx context.Context, rawURL, accept string) ([]byte, string, error) {
	if a.bucket != nil {
		if err := a.bucket.Acquire(ctx); err != nil {
			return nil, "", err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Encoding", "br, gzip")
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, "", &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := readBody(resp)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", rawURL, err)
	}
	if resp.ContentLength > 0 && resp.Header.Get("Content-Encoding") == "" && int64(len(body)) < resp.ContentLength {
		return nil, "", fmt.Errorf("read %s: %w", rawURL, io.ErrUnexpectedEOF)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// readBody decodes the body by hand since setting Accept-Encoding turns off
// the transport's own gzip handling.
func readBody(resp *http.Response) ([]byte, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "br":
		return io.ReadAll(brotli.NewReader(resp.Body))
	case "gzip":
		return readGzip(resp.Body)
	default:
		return io.ReadAll(resp.Body)
	}
}

func readGzip(r io.Reader) ([]byte, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
