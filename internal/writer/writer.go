// Package writer implements the byte sink that ships formatted log records to a
// search backend as HTTP documents.
package writer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"
)

// ContentType is sent with every document.
const ContentType = "application/json"

// DefaultTimeout bounds every request made by the default transport.
const DefaultTimeout = 30 * time.Second

// ErrDeliveryFailed is matched by every error returned from Write.
var ErrDeliveryFailed = errors.New("delivery failed")

// DeliveryError reports that a record could not be handed to the backend.
type DeliveryError struct {
	Endpoint string
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %s failed: %v", e.Endpoint, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrDeliveryFailed.
func (e *DeliveryError) Is(target error) bool {
	return target == ErrDeliveryFailed
}

// Option configures a Writer.
type Option func(*Writer)

// WithHTTPClient replaces the transport used for every request.
func WithHTTPClient(client HTTPDoer) Option {
	return func(w *Writer) {
		w.client = client
	}
}

// WithTimeout sets the request timeout of the default transport.
// It has no effect when combined with WithHTTPClient.
func WithTimeout(d time.Duration) Option {
	return func(w *Writer) {
		w.timeout = d
	}
}

// Writer posts each record it receives to a fixed endpoint.
//
// Its configuration is frozen at construction and it holds no buffer, so a
// Writer is safe for concurrent use whenever its transport is.
type Writer struct {
	endpoint string
	username string
	password string
	timeout  time.Duration
	client   HTTPDoer
}

// New creates a Writer for endpoint authenticating with username and password.
// The endpoint is not validated; a malformed URL surfaces on the first Write.
func New(endpoint, username, password string, opts ...Option) *Writer {
	w := &Writer{
		endpoint: endpoint,
		username: username,
		password: password,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.client == nil {
		w.client = NewHTTPClient(w.timeout)
	}
	return w
}

// Endpoint returns the URL records are posted to.
func (w *Writer) Endpoint() string {
	return w.endpoint
}

// Write posts p as a single document and reports len(p) on success.
//
// Records that are not valid UTF-8 are dropped and still reported as fully
// written, so a malformed record never surfaces as a pipeline error. The
// response status is not inspected: any answer from the backend counts as
// delivered.
func (w *Writer) Write(p []byte) (int, error) {
	if !utf8.Valid(p) {
		return len(p), nil
	}

	req, err := http.NewRequest(http.MethodPost, w.endpoint, bytes.NewReader(p))
	if err != nil {
		return 0, &DeliveryError{Endpoint: w.endpoint, Err: err}
	}
	req.SetBasicAuth(w.username, w.password)
	req.Header.Set("Content-Type", ContentType)

	resp, err := w.client.Do(req)
	if err != nil {
		return 0, &DeliveryError{Endpoint: w.endpoint, Err: err}
	}
	if resp.Body != nil {
		// Drain so the connection goes back to the pool.
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}

	return len(p), nil
}

// WriteAll is Write without the byte count.
func (w *Writer) WriteAll(p []byte) error {
	_, err := w.Write(p)
	return err
}

// Flush is a no-op: every Write has completed or failed by the time it returns.
func (w *Writer) Flush() error {
	return nil
}

// Sync implements zapcore.WriteSyncer.
func (w *Writer) Sync() error {
	return w.Flush()
}

// CloseIdleConnections releases idle pooled connections of the transport, if
// it keeps any. In-flight requests are not affected and the Writer stays usable.
func (w *Writer) CloseIdleConnections() {
	if c, ok := w.client.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}
}
