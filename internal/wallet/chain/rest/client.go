// Package rest is the HTTP transport shared by the REST based chain adapters.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github/chapool/go-custody/internal/wallet/chain"
)

const maxErrorBody = 512

// Client talks to one of several equivalent base URLs and fails over on transport errors
// and 5xx responses. 404 maps to chain.ErrNotFound.
type Client struct {
	bases   []string
	headers map[string]string
	http    *http.Client

	mu      sync.Mutex
	current int
}

func New(bases []string, timeout time.Duration, headers map[string]string) (*Client, error) {
	if len(bases) == 0 {
		return nil, errors.New("at least one base URL is required")
	}

	trimmed := make([]string, 0, len(bases))
	for _, b := range bases {
		trimmed = append(trimmed, strings.TrimSuffix(b, "/"))
	}

	return &Client{
		bases:   trimmed,
		headers: headers,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// StatusError is returned for non 2xx responses that are not retried.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return "unexpected status " + http.StatusText(e.StatusCode) + ": " + e.Body
}

// GetJSON decodes the JSON body of GET path into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	body, err := c.Do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return err
	}

	return decode(body, out)
}

// GetText returns the trimmed text body of GET path.
func (c *Client) GetText(ctx context.Context, path string) (string, error) {
	body, err := c.Do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(body)), nil
}

// PostJSON posts in as JSON and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, path string, in any, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "failed to marshal request")
	}

	body, err := c.Do(ctx, http.MethodPost, path, "application/json", payload)
	if err != nil {
		return err
	}

	return decode(body, out)
}

// PostText posts a plain text body and returns the trimmed text response.
func (c *Client) PostText(ctx context.Context, path string, text string) (string, error) {
	body, err := c.Do(ctx, http.MethodPost, path, "text/plain", []byte(text))
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(body)), nil
}

// Do performs the request against the preferred base URL, failing over to the next ones.
func (c *Client) Do(ctx context.Context, method, path, contentType string, payload []byte) ([]byte, error) {
	var lastErr error

	for i := range c.bases {
		idx := c.index(i)
		body, err := c.once(ctx, method, c.bases[idx]+path, contentType, payload)
		if err == nil {
			c.prefer(idx)
			return body, nil
		}

		if !chain.IsTransient(err) {
			return nil, err
		}

		lastErr = err
		log.Warn().Str("url", c.bases[idx]).Str("path", path).Err(err).Msg("Chain API call failed, trying next endpoint")
	}

	return nil, lastErr
}

func (c *Client) once(ctx context.Context, method, url, contentType string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, chain.Unavailable(err, method+" "+url)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, chain.Unavailable(err, "read "+url)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.Wrapf(chain.ErrNotFound, "%s %s", method, url)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, chain.Unavailable(&StatusError{StatusCode: resp.StatusCode, Body: truncate(body)}, method+" "+url)
	default:
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(body)}
	}
}

func (c *Client) index(offset int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return (c.current + offset) % len(c.bases)
}

func (c *Client) prefer(idx int) {
	c.mu.Lock()
	c.current = idx
	c.mu.Unlock()
}

func decode(body []byte, out any) error {
	if out == nil {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}

	return nil
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}

	return s
}
