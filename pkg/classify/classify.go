// Package classify assigns intercepted requests to routing classes.
//
// Classification is a pure function of request method, origin, and path.
// It decides which retrieval strategy serves the request:
//
//   - Bypass: non-GET traffic, passed straight to the network
//   - Static: precached app-shell assets, served cache-first
//   - Navigation: top-level document loads, served network-first
//   - Dynamic: everything else, served stale-while-revalidate
package classify

import (
	"net/http"
	"net/url"
	"strings"
)

// Class is the routing class assigned to an intercepted request.
type Class string

const (
	// ClassBypass excludes the request from the cache pipeline entirely.
	// Mutating requests must never be served from cache or have their
	// side effects replayed.
	ClassBypass Class = "bypass"

	// ClassStatic routes to the cache-first strategy.
	ClassStatic Class = "static"

	// ClassNavigation routes to the network-first strategy.
	ClassNavigation Class = "navigation"

	// ClassDynamic routes to the stale-while-revalidate strategy.
	ClassDynamic Class = "dynamic"
)

// Classifier holds the static decision inputs: the app's own origin, the
// static-asset path prefix, and the precache manifest.
type Classifier struct {
	origin       *url.URL
	staticPrefix string
	manifest     map[string]struct{}
}

// New creates a classifier for an origin, a static path prefix, and the
// precache manifest paths.
func New(origin *url.URL, staticPrefix string, manifest []string) *Classifier {
	set := make(map[string]struct{}, len(manifest))
	for _, path := range manifest {
		set[path] = struct{}{}
	}
	return &Classifier{
		origin:       origin,
		staticPrefix: staticPrefix,
		manifest:     set,
	}
}

// Classify assigns a request to its routing class.
//
// The static check takes priority over navigation: a navigation request
// to a precached path is still served by the static strategy.
func (c *Classifier) Classify(req *http.Request) Class {
	if req.Method != http.MethodGet {
		return ClassBypass
	}

	if c.sameOrigin(req.URL) && c.isStaticPath(req.URL.Path) {
		return ClassStatic
	}

	if IsNavigation(req) {
		return ClassNavigation
	}

	return ClassDynamic
}

// sameOrigin reports whether a request URL targets the app's own origin.
// Relative URLs (no host) are treated as same-origin.
func (c *Classifier) sameOrigin(u *url.URL) bool {
	if u.Host == "" {
		return true
	}
	if c.origin == nil {
		return false
	}
	return u.Host == c.origin.Host && (u.Scheme == "" || u.Scheme == c.origin.Scheme)
}

// isStaticPath matches the static-asset prefix or a verbatim manifest
// entry. The manifest check lets precached root documents (e.g. "/",
// "/offline.html") route cache-first even outside the asset prefix.
func (c *Classifier) isStaticPath(path string) bool {
	if c.staticPrefix != "" && strings.HasPrefix(path, c.staticPrefix) {
		return true
	}
	_, ok := c.manifest[path]
	return ok
}

// IsNavigation reports whether a request is a top-level document load.
// Browsers flag these with Sec-Fetch-Mode: navigate; older clients are
// recognized by an Accept header preferring text/html.
func IsNavigation(req *http.Request) bool {
	if mode := req.Header.Get("Sec-Fetch-Mode"); mode != "" {
		return mode == "navigate"
	}
	return strings.Contains(req.Header.Get("Accept"), "text/html")
}
