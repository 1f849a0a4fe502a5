// internal/server/timeouts.go
//
// HTTP server helper with robust timeouts.
//
// Production hardening recommends:
//
//   • ReadHeaderTimeout – abort slow-loris headers (10 s)
//   • ReadTimeout       – cap a full photo batch upload (60 s)
//   • WriteTimeout      – must outlast a whole Submit (see WriteTimeoutFor)
//   • IdleTimeout       – close keep-alives on idle clients (60 s)
//
// This helper centralises those defaults so cmd/web doesn’t repeat boilerplate.
//

package server

import (
	"net/http"
	"time"
)

const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 60 * time.Second
	idleTimeout       = 60 * time.Second
	minWriteTimeout   = 15 * time.Second
)

// New constructs an *http.Server with sensible defaults.  writeTimeout
// below 15 s is raised to 15 s.
func New(addr string, handler http.Handler, writeTimeout time.Duration) *http.Server {
	if writeTimeout < minWriteTimeout {
		writeTimeout = minWriteTimeout
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}

// WriteTimeoutFor returns a write deadline long enough for a Submit that
// makes `calls` sequential network calls of up to callTimeout each, plus a
// little slack for encoding the response.
func WriteTimeoutFor(callTimeout time.Duration, calls int) time.Duration {
	return time.Duration(calls)*callTimeout + 5*time.Second
}
