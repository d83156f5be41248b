// Package server owns the gateway's TLS listener and runtime lifecycle.
//
// Ownership boundary:
// - accept loop, TLS handshake and per-connection sessions
// - stopped/running/paused lifecycle and engine load/unload around it
// - the loopback JSON admin control endpoint
package server
