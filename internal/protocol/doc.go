// Package protocol owns the gateway's line-oriented wire contract.
//
// Ownership boundary:
// - command line parsing and response codes
// - percent encoding of TR/RES payloads
// - the per-connection state machine driving Session and the engine
package protocol
