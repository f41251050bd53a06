package partition

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Entry is a stored response snapshot: status, headers, and a fully
// materialized body. Materializing the body is deliberate: a live response
// body can only be consumed once, so storing to cache and returning to the
// caller must each work from an independent copy.
type Entry struct {
	// Data is the response body
	Data []byte `json:"data"`

	// StatusCode is the HTTP status code of the cached response
	StatusCode int `json:"status_code"`

	// Headers are the response headers
	Headers http.Header `json:"headers"`

	// StoredAt is when the snapshot was taken
	StoredAt time.Time `json:"stored_at"`
}

// SnapshotResponse converts an HTTP response into an Entry.
// It drains the response body and restores it afterwards, so the caller
// can still consume the original response.
func SnapshotResponse(resp *http.Response) (*Entry, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	resp.Body.Close()

	// Restore body for caller
	resp.Body = io.NopCloser(bytes.NewReader(body))

	return &Entry{
		Data:       body,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header.Clone(),
		StoredAt:   time.Now(),
	}, nil
}

// Response converts the entry back into an HTTP response with a fresh,
// independently readable body. Each call returns a new body reader.
func (e *Entry) Response() *http.Response {
	status := e.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		Status:        http.StatusText(status),
		StatusCode:    status,
		Header:        e.Headers.Clone(),
		Body:          io.NopCloser(bytes.NewReader(e.Data)),
		ContentLength: int64(len(e.Data)),
	}
}
