package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

var (
	ErrNoLastModified  = errors.New("missing last-modified header")
	ErrBadLastModified = errors.New("bad last-modified header")
)

// StatusError is returned when the server answers with a non-2xx status
type StatusError struct {
	Method string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d %s", e.Method, e.Code, http.StatusText(e.Code))
}

// Client issues the HEAD and GET requests for the fetch task
type Client struct {
	http    *http.Client
	timeout time.Duration
}

// NewClient creates a client. A timeout of zero leaves requests bounded only by their context.
func NewClient(httpClient *http.Client, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		http:    httpClient,
		timeout: timeout,
	}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// LastModified returns the remote Last-Modified time of u
func (c *Client) LastModified(ctx context.Context, u *url.URL) (time.Time, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u.String(), nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to head remote: %w", err)
	}
	defer resp.Body.Close()

	header := resp.Header.Get("Last-Modified")
	if header == "" {
		return time.Time{}, ErrNoLastModified
	}

	modified, err := http.ParseTime(header)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadLastModified, header)
	}

	return modified, nil
}

// Download streams the body of u into w and returns the number of bytes written
func (c *Client) Download(ctx context.Context, u *url.URL, w io.Writer) (int64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to get remote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &StatusError{Method: http.MethodGet, Code: resp.StatusCode}
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("error reading response body: %w", err)
	}

	return n, nil
}
