package httputil

import (
	"fmt"
	"net/http"
	"time"
)

const DefaultTimeout = 30 * time.Second

// UploadTimeout is used for multipart uploads of the source spreadsheets.
const UploadTimeout = 5 * time.Minute

// UserAgent is sent on every outbound request.
const UserAgent = "inaddash/1.0"

// NewClient returns an HTTP client with standard timeout configuration.
func NewClient() *http.Client {
	return NewClientWithTimeout(DefaultTimeout)
}

// NewClientWithTimeout returns an HTTP client that stamps the User-Agent header.
func NewClientWithTimeout(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &userAgentTransport{base: http.DefaultTransport},
	}
}

type userAgentTransport struct {
	base http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", UserAgent)
	}
	return t.base.RoundTrip(req)
}

// Retryable reports whether a status code is worth retrying for an idempotent request.
func Retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// StatusError is returned when a status code is retryable but retries ran out.
type StatusError struct {
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d", e.Status)
}
