// internal/middleware/security.go
//
// Security-header middleware for the intake API.
//
// Injects headers suited to a JSON API that also serves staged photo
// previews:
//
//   • Content-Security-Policy   –  nothing may load from our responses
//   • X-Frame-Options           –  click-jacking defence
//   • X-Content-Type-Options    –  stops browsers sniffing previews as HTML
//   • Referrer-Policy           –  drops path and query from Referer
//   • Cache-Control             –  drafts and previews are never cached
//
// Notes
// -----
// • Headers are set *before* next.ServeHTTP so they reach the client even
//   when a handler calls WriteHeader; handlers may still override them.
// • Uploaded photos under /uploads/ are public and cacheable, so main.go
//   mounts that file server behind StoredFiles instead of this middleware.
// • Oxford commas, two spaces after periods.

package middleware

import "net/http"

// Security sets API security headers on every response.
func Security(next http.Handler) http.Handler {
	const (
		csp   = "default-src 'none'; frame-ancestors 'none'"
		xfo   = "DENY"
		nosn  = "nosniff"
		refer = "no-referrer"
		cache = "no-store"
	)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Security-Policy", csp)
		h.Set("X-Frame-Options", xfo)
		h.Set("X-Content-Type-Options", nosn)
		h.Set("Referrer-Policy", refer)
		h.Set("Cache-Control", cache)

		next.ServeHTTP(w, r)
	})
}

// StoredFiles sets the headers for publicly served uploads.  Responses stay
// cacheable, but browsers must trust the served Content-Type and render
// anything that is not an image in a sandbox.
func StoredFiles(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Content-Security-Policy", "sandbox")
		h.Set("Referrer-Policy", "no-referrer")

		next.ServeHTTP(w, r)
	})
}
