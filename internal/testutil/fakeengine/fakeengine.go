// Package fakeengine provides a scripted in-memory engine for tests.
package fakeengine

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/atlasgate/internal/direction"
)

var (
	ErrLoad      = errors.New("fakeengine: load failed")
	ErrDirection = errors.New("fakeengine: set direction failed")
	ErrTranslate = errors.New("fakeengine: translate failed")
)

// Engine records calls and translates by tagging the input with the active
// direction, e.g. "[JE]あ". It also detects overlapping calls, which the
// coordinator must never produce.
type Engine struct {
	mu sync.Mutex

	loaded      bool
	active      direction.Direction
	environment string

	FailLoad      bool
	FailDirection bool
	FailTranslate bool
	Delay         time.Duration
	Environments  []string

	Loads      int
	Unloads    int
	Directions []direction.Direction
	Calls      []Call

	inFlight atomic.Int32
	overlap  atomic.Bool
}

// Call is one observed Translate invocation.
type Call struct {
	Text      string
	Direction direction.Direction
}

func New() *Engine {
	return &Engine{Environments: []string{"General", "Business"}}
}

func (e *Engine) enter() {
	if e.inFlight.Add(1) > 1 {
		e.overlap.Store(true)
	}
}

func (e *Engine) leave() {
	e.inFlight.Add(-1)
}

// Overlapped reports whether two engine calls ever ran concurrently.
func (e *Engine) Overlapped() bool {
	return e.overlap.Load()
}

func (e *Engine) Load(environment string, dir direction.Direction) error {
	e.enter()
	defer e.leave()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Loads++
	if e.FailLoad {
		return ErrLoad
	}
	e.loaded = true
	e.active = dir
	e.environment = environment
	return nil
}

func (e *Engine) Unload() {
	e.enter()
	defer e.leave()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Unloads++
	e.loaded = false
}

func (e *Engine) SetDirection(dir direction.Direction) error {
	e.enter()
	defer e.leave()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Directions = append(e.Directions, dir)
	if e.FailDirection {
		e.loaded = false
		return ErrDirection
	}
	e.active = dir
	return nil
}

func (e *Engine) Translate(text string) (string, error) {
	e.enter()
	defer e.leave()
	e.mu.Lock()
	delay := e.Delay
	e.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Calls = append(e.Calls, Call{Text: text, Direction: e.active})
	if e.FailTranslate {
		return "", ErrTranslate
	}
	return "[" + e.active.String() + "]" + strings.TrimSpace(text), nil
}

func (e *Engine) IsLoaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

func (e *Engine) ListEnvironments() ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.Environments))
	copy(out, e.Environments)
	return out, nil
}

// Active returns the direction the fake was last initialized with.
func (e *Engine) Active() direction.Direction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Environment returns the environment passed to the last Load.
func (e *Engine) Environment() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.environment
}

// SetFailTranslate toggles translation failures safely while tests run.
func (e *Engine) SetFailTranslate(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.FailTranslate = v
}

// CallCount returns the number of Translate invocations.
func (e *Engine) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Calls)
}
