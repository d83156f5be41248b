// Package auth provides client token validation for gateway sessions.
//
// It intentionally avoids storage concerns; tokens are owned by configuration
// and swapped in whole.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
)

var ErrUnauthorized = errors.New("auth: unauthorized")

// Validator validates an authentication token.
type Validator interface {
	Validate(token string) error
}

// StaticToken is a simple validator for a single shared token.
// It is intended only for development and proofs of concept.
type StaticToken struct {
	Token string
}

func (s StaticToken) Validate(token string) error {
	if s.Token == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// FuncValidator adapts a function into a Validator.
type FuncValidator func(token string) error

func (f FuncValidator) Validate(token string) error {
	return f(token)
}

// TokenSet is the registered client token list. Readers see an immutable
// snapshot; writers build a new slice and swap it in.
type TokenSet struct {
	writeMu sync.Mutex
	tokens  atomic.Pointer[[]string]
}

// NewTokenSet returns a set holding tokens. Empty entries are dropped.
func NewTokenSet(tokens []string) *TokenSet {
	s := &TokenSet{}
	s.Replace(tokens)
	return s
}

// Validate compares token against every registered entry in constant time per entry.
func (s *TokenSet) Validate(token string) error {
	if token == "" {
		return ErrUnauthorized
	}
	match := 0
	for _, t := range s.load() {
		match |= subtle.ConstantTimeCompare([]byte(t), []byte(token))
	}
	if match != 1 {
		return ErrUnauthorized
	}
	return nil
}

// Replace swaps the whole token list.
func (s *TokenSet) Replace(tokens []string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.store(normalize(tokens))
}

// Add appends token. Duplicates are kept; they are harmless.
func (s *TokenSet) Add(token string) bool {
	token = strings.TrimSpace(token)
	if token == "" {
		return false
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	cur := s.load()
	next := make([]string, 0, len(cur)+1)
	next = append(next, cur...)
	next = append(next, token)
	s.store(next)
	return true
}

// Remove deletes every copy of token and reports whether any was present.
func (s *TokenSet) Remove(token string) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	cur := s.load()
	next := make([]string, 0, len(cur))
	for _, t := range cur {
		if t != token {
			next = append(next, t)
		}
	}
	if len(next) == len(cur) {
		return false
	}
	s.store(next)
	return true
}

// Snapshot returns a copy of the registered tokens.
func (s *TokenSet) Snapshot() []string {
	cur := s.load()
	out := make([]string, len(cur))
	copy(out, cur)
	return out
}

// Len returns the number of registered entries, duplicates included.
func (s *TokenSet) Len() int {
	return len(s.load())
}

func (s *TokenSet) load() []string {
	if p := s.tokens.Load(); p != nil {
		return *p
	}
	return nil
}

func (s *TokenSet) store(tokens []string) {
	s.tokens.Store(&tokens)
}

func normalize(in []string) []string {
	out := make([]string, 0, len(in))
	for _, raw := range in {
		if t := strings.TrimSpace(raw); t != "" {
			out = append(out, t)
		}
	}
	return out
}
