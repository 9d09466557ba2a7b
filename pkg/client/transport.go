package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/textproto"

	"github.com/rs/zerolog"

	"github.com/framesight/respcache/pkg/logging"
)

// Fetch is one resolved upstream request: the URL already carries the
// descriptor's query parameters.
type Fetch struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    []byte
}

// FetchResult is a successful upstream response.
type FetchResult struct {
	Status  int
	Headers map[string]string
	Data    []byte
}

// Header returns the named response header, case-insensitively.
func (r *FetchResult) Header(name string) string {
	return r.Headers[textproto.CanonicalMIMEHeaderKey(name)]
}

// Transport performs the actual network I/O for the cache. The engine
// holds no lock while Perform runs. Implementations return a
// *TransportError for network failures, timeouts and non-2xx statuses;
// 304 Not Modified counts as success so revalidation can be cheap.
type Transport interface {
	Perform(ctx context.Context, f Fetch) (*FetchResult, error)
}

// HTTPTransport is the production Transport over net/http.
type HTTPTransport struct {
	client    *http.Client
	userAgent string
	logger    zerolog.Logger
}

// NewHTTPTransport creates an HTTP transport. A nil httpClient gets a
// plain http.Client; timeouts come from the caller's context, not the
// client. userAgent may be empty.
func NewHTTPTransport(httpClient *http.Client, userAgent string) *HTTPTransport {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HTTPTransport{
		client:    httpClient,
		userAgent: userAgent,
		logger:    logging.NewLogger("transport"),
	}
}

// Perform executes the fetch.
func (t *HTTPTransport) Perform(ctx context.Context, f Fetch) (*FetchResult, error) {
	var body io.Reader
	if len(f.Body) > 0 {
		body = bytes.NewReader(f.Body)
	}

	req, err := http.NewRequestWithContext(ctx, f.Method, f.URL, body)
	if err != nil {
		return nil, &TransportError{
			Method: f.Method,
			URL:    f.URL,
			Class:  ErrorClassClient,
			Err:    err,
		}
	}

	req.Header.Set("Accept", "application/json")
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	for name, value := range f.Headers {
		req.Header.Set(name, value)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		class := ErrorClassNetwork
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			class = ErrorClassTimeout
		}
		t.logger.Debug().
			Str("url", f.URL).
			Str("error_class", string(class)).
			Err(err).
			Msg("fetch failed")
		return nil, &TransportError{
			Method: f.Method,
			URL:    f.URL,
			Class:  class,
			Err:    err,
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{
			Method: f.Method,
			URL:    f.URL,
			Class:  ErrorClassNetwork,
			Err:    err,
		}
	}

	// 304 is a revalidation success, not a failure
	if resp.StatusCode == http.StatusNotModified {
		return &FetchResult{
			Status:  resp.StatusCode,
			Headers: flattenHeaders(resp.Header),
		}, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{
			Method:     f.Method,
			URL:        f.URL,
			StatusCode: resp.StatusCode,
			Class:      classifyStatus(resp.StatusCode),
			Message:    resp.Status,
		}
	}

	return &FetchResult{
		Status:  resp.StatusCode,
		Headers: flattenHeaders(resp.Header),
		Data:    data,
	}, nil
}

// flattenHeaders keeps the first value of each header under its
// canonical name.
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if len(values) > 0 {
			out[name] = values[0]
		}
	}
	return out
}
