// Package transport is the default core.Transport over net/http. It stays
// deliberately thin: the negotiator owns request bodies and status-code
// interpretation, this package only moves bytes.
package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/mvercan/latch/core"
)

const defaultTimeout = 30 * time.Second

type HTTPTransport struct {
	client *http.Client
}

var _ core.Transport = (*HTTPTransport)(nil)

func New(timeout time.Duration) *HTTPTransport {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &HTTPTransport{client: &http.Client{Timeout: timeout}}
}

// NewWithClient wraps an existing client, e.g. one carrying proxy or
// pinning configuration.
func NewWithClient(client *http.Client) *HTTPTransport {
	return &HTTPTransport{client: client}
}

func (t *HTTPTransport) Post(ctx context.Context, url string, header map[string]string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, err
	}

	return resp.StatusCode, respBody, nil
}
