// Package testutil provides testing utilities for the read cache.
package testutil

import (
	"net/http"
	"sync"
)

// OriginResponse defines the behavior of a mock origin route.
type OriginResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// Origin is a configurable downstream handler that counts how often it runs.
// Tests put it behind the HTTP cache middleware and assert on the counters
// to prove whether a request reached the handler.
type Origin struct {
	mu        sync.RWMutex
	responses map[string]OriginResponse

	// Tracking
	requestCount      int
	conditionalCount  int
	lastRequestHeader http.Header
}

// NewOrigin creates an origin that answers unknown paths with a JSON 200.
func NewOrigin() *Origin {
	return &Origin{
		responses: make(map[string]OriginResponse),
	}
}

// ServeHTTP implements http.Handler.
func (o *Origin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	o.mu.Lock()
	o.requestCount++
	o.lastRequestHeader = r.Header.Clone()
	if r.Header.Get("If-None-Match") != "" {
		o.conditionalCount++
	}
	resp, ok := o.responses[r.URL.Path]
	o.mu.Unlock()

	if !ok {
		resp = NewJSONResponse(`{"status":"ok"}`)
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		_, _ = w.Write([]byte(resp.Body))
	}
}

// SetResponse configures the response for a path.
func (o *Origin) SetResponse(path string, resp OriginResponse) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.responses[path] = resp
}

// RequestCount returns the number of requests that reached the origin.
func (o *Origin) RequestCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.requestCount
}

// ConditionalCount returns how many of those carried If-None-Match.
func (o *Origin) ConditionalCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.conditionalCount
}

// LastRequestHeader returns the headers of the most recent request.
func (o *Origin) LastRequestHeader() http.Header {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastRequestHeader
}

// Reset clears all tracking counters.
func (o *Origin) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.requestCount = 0
	o.conditionalCount = 0
	o.lastRequestHeader = nil
}

// NewJSONResponse creates a 200 OK JSON response.
func NewJSONResponse(body string) OriginResponse {
	return OriginResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewTextResponse creates a 200 OK plain text response.
func NewTextResponse(body string) OriginResponse {
	return OriginResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": "text/plain; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() OriginResponse {
	return OriginResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error":"internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewNotFoundResponse creates a 404 Not Found response.
func NewNotFoundResponse() OriginResponse {
	return OriginResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"error":"not found"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}
