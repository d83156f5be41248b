// Package session owns per-connection gateway state and transport settings.
//
// Ownership boundary:
// - authentication and direction bookkeeping for one connection
// - connection timeouts and line limits
// - server TLS material validation and tls.Config construction
//
// A Session is touched only by the goroutine serving its connection and is
// never shared.
package session
