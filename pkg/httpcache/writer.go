package httpcache

import (
	"bytes"
	"net/http"
)

// responseWriter buffers a handler's response so the middleware can inspect
// it before anything reaches the client. Nothing is sent until the
// middleware calls send.
//
// Flush and Unwrap are not exposed; headers are committed only by send.
type responseWriter struct {
	header      http.Header
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func newResponseWriter() *responseWriter {
	return &responseWriter{
		header: make(http.Header),
		status: http.StatusOK,
	}
}

func (w *responseWriter) Header() http.Header {
	return w.header
}

func (w *responseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.body.Write(b)
}

// send copies the buffered response to dst. extra headers override the
// handler's. A 304 carries no body.
func (w *responseWriter) send(dst http.ResponseWriter, status int, extra http.Header) error {
	h := dst.Header()
	for k, v := range w.header {
		h[k] = v
	}
	for k, v := range extra {
		h[k] = v
	}

	if status == http.StatusNotModified {
		h.Del("Content-Type")
		h.Del("Content-Length")
		dst.WriteHeader(status)
		return nil
	}

	dst.WriteHeader(status)
	_, err := dst.Write(w.body.Bytes())
	return err
}
