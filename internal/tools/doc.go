// Package tools provides host runtime helpers.
//
// Ownership boundary:
// - external process execution with stdin, environment and deadlines
package tools
