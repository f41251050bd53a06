package partition

import (
	"fmt"
	"net/http"
	"strings"
)

// Key uniquely identifies a cached response within a partition.
// Only GET requests enter the cache pipeline, so Method is normalized
// to upper case and URL is stored verbatim.
type Key struct {
	// Method is the HTTP method (effectively always "GET").
	Method string

	// URL is the full request URL or absolute path.
	URL string
}

// KeyForRequest builds a cache key from an HTTP request.
func KeyForRequest(req *http.Request) Key {
	return Key{
		Method: req.Method,
		URL:    req.URL.String(),
	}
}

// String generates a deterministic key string.
// Format: method:url
//
// Example:
//
//	GET:/assets/app.css
func (k Key) String() string {
	method := strings.ToUpper(k.Method)
	if method == "" {
		method = http.MethodGet
	}
	return fmt.Sprintf("%s:%s", method, k.URL)
}
