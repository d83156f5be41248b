// Package engine owns access to the shared translation engine.
//
// Ownership boundary:
// - the single engine handle and its loaded/active-direction state
// - the serialized critical section around reinitialization and translation
// - load/unload lifecycle used by the server
//
// The engine itself is an external collaborator behind the Engine interface.
package engine

import (
	"errors"

	"github.com/danmuck/atlasgate/internal/direction"
)

var (
	ErrUnavailable       = errors.New("engine: unavailable")
	ErrLoadFailed        = errors.New("engine: load failed")
	ErrTranslationFailed = errors.New("engine: translation failed")
)

// Engine is the black-box translation capability. Implementations are not
// required to be safe for concurrent use; the Coordinator serializes all calls.
type Engine interface {
	Load(environment string, dir direction.Direction) error
	Unload()
	// SetDirection switches the active direction. It may require a full reinit.
	SetDirection(dir direction.Direction) error
	Translate(text string) (string, error)
	IsLoaded() bool
	ListEnvironments() ([]string, error)
}

// Observer receives coordinator events. All methods must be cheap.
type Observer interface {
	EngineLoaded(environment string, dir direction.Direction, ok bool)
	EngineReinitialized(from, to direction.Direction, ok bool)
	TranslationCompleted(dir direction.Direction, ok bool, seconds float64)
}

type nopObserver struct{}

func (nopObserver) EngineLoaded(string, direction.Direction, bool) {}
func (nopObserver) EngineReinitialized(direction.Direction, direction.Direction, bool) {}
func (nopObserver) TranslationCompleted(direction.Direction, bool, float64) {}
