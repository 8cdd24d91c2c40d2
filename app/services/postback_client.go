package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// PostbackClient delivers signed conversion confirmations to advertiser
// postback URLs. Calls are bounded by the configured timeout and never
// retried here; retry policy belongs to the queue.
type PostbackClient interface {
	Send(ctx context.Context, postbackURL, method string, params map[string]string) (int, error)
}

// PostbackClientImpl implements PostbackClient over plain HTTP
type PostbackClientImpl struct {
	client *http.Client
}

// NewPostbackClient creates a postback client with the given request timeout
func NewPostbackClient(timeout time.Duration) PostbackClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PostbackClientImpl{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Send issues a GET with query parameters or a form-encoded POST, per the
// advertiser's configured method, and returns the response status code.
func (p *PostbackClientImpl) Send(ctx context.Context, postbackURL, method string, params map[string]string) (int, error) {
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}

	var req *http.Request
	var err error

	switch strings.ToUpper(method) {
	case http.MethodGet:
		target := postbackURL
		if strings.Contains(target, "?") {
			target += "&" + form.Encode()
		} else {
			target += "?" + form.Encode()
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	default:
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, postbackURL, strings.NewReader(form.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to build postback request: %w", err)
	}
	req.Header.Set("User-Agent", "Affiliate-Platform/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("postback request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

// MockPostbackClient records outbound confirmations for tests
type MockPostbackClient struct {
	Sent       []map[string]string
	URLs       []string
	StatusCode int
	Err        error
}

func NewMockPostbackClient() *MockPostbackClient {
	return &MockPostbackClient{StatusCode: http.StatusOK}
}

func (m *MockPostbackClient) Send(_ context.Context, postbackURL, _ string, params map[string]string) (int, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	m.URLs = append(m.URLs, postbackURL)
	m.Sent = append(m.Sent, params)
	return m.StatusCode, nil
}
