// Package httpx is a small retrying HTTP client for the external
// collaborator APIs (the IPFS node). Transient failures are retried with
// exponential backoff and jitter; status codes map onto the error
// taxonomy.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net"
	"net/http"
	"time"

	qaerr "github.com/verifiable-ai/onchainqa/internal/errors"
)

type Client struct {
	httpClient *http.Client
	retries    int
	userAgent  string
}

func New(timeout time.Duration, retries int) *Client {
	if retries < 0 {
		retries = 0
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		retries:    retries,
		userAgent:  "onchainqa/1.0",
	}
}

// Do executes req with retries and returns the response body. The
// request must set GetBody when it carries one, so retries can replay it.
func (c *Client) Do(ctx context.Context, req *http.Request) ([]byte, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, qaerr.Wrap(qaerr.CodeUnavailable, "request cancelled", ctx.Err())
			case <-time.After(backoff(attempt)):
			}
		}

		cloneReq := req.Clone(ctx)
		if req.Body != nil && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, qaerr.Wrap(qaerr.CodeInternal, "clone request body", err)
			}
			cloneReq.Body = body
		}

		resp, err := c.httpClient.Do(cloneReq)
		if err != nil {
			lastErr = mapNetError(err)
			if attempt < c.retries {
				continue
			}
			return nil, lastErr
		}

		buf, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, qaerr.Wrap(qaerr.CodeUnavailable, "read response", readErr)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = qaerr.New(qaerr.CodeRateLimited, "endpoint rate limited request")
			if attempt < c.retries {
				continue
			}
			return nil, lastErr
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, qaerr.New(qaerr.CodeAuth, "endpoint authentication failed")
		case resp.StatusCode >= http.StatusInternalServerError:
			lastErr = qaerr.Newf(qaerr.CodeUnavailable, "endpoint unavailable (status %d)", resp.StatusCode)
			if attempt < c.retries {
				continue
			}
			return nil, lastErr
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return nil, qaerr.Newf(qaerr.CodeUnavailable, "endpoint returned unexpected status %d", resp.StatusCode)
		}

		return buf, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, qaerr.New(qaerr.CodeUnavailable, "request failed")
}

// DoJSON executes req and decodes the response body into out.
func (c *Client) DoJSON(ctx context.Context, req *http.Request, out any) error {
	buf, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(buf)) == 0 {
		return qaerr.New(qaerr.CodeUnavailable, "endpoint returned empty response")
	}
	if err := json.Unmarshal(buf, out); err != nil {
		return qaerr.Wrap(qaerr.CodeUnavailable, "decode endpoint JSON", err)
	}
	return nil
}

func mapNetError(err error) error {
	if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
		return qaerr.Wrap(qaerr.CodeUnavailable, "endpoint timeout", err)
	}
	return qaerr.Wrap(qaerr.CodeUnavailable, "endpoint request failed", err)
}

func backoff(attempt int) time.Duration {
	base := 120 * time.Millisecond
	d := base * time.Duration(1<<uint(attempt-1))
	if d > 2*time.Second {
		d = 2 * time.Second
	}
	jitter := time.Duration(rand.Intn(75)) * time.Millisecond
	return d + jitter
}
