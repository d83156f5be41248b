package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/atlasgate/internal/direction"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// Result is the outcome of one serialized translation.
type Result struct {
	Text          string
	Effective     direction.Direction
	Reinitialized bool
}

// Stats is a point-in-time snapshot of coordinator counters.
type Stats struct {
	Translations      uint64
	Failures          uint64
	Reinitializations uint64
}

// State is a lock-free snapshot of the engine handle.
type State struct {
	Loaded      bool
	Active      direction.Direction
	Environment string
}

// Coordinator owns the single engine handle. Every engine call runs inside a
// weight-1 semaphore, so at most one load, reinit or translate is in flight and
// waiters are admitted in FIFO order.
type Coordinator struct {
	eng    Engine
	sem    *semaphore.Weighted
	policy direction.Policy

	obsMu sync.RWMutex
	obs   Observer

	// guarded by sem
	loaded      bool
	active      direction.Direction
	environment string
	initial     direction.Direction

	stateMu sync.RWMutex
	state   State

	translations      atomic.Uint64
	failures          atomic.Uint64
	reinitializations atomic.Uint64
}

// NewCoordinator wraps eng. The engine starts unloaded.
func NewCoordinator(eng Engine, policy direction.Policy) *Coordinator {
	return &Coordinator{
		eng:     eng,
		sem:     semaphore.NewWeighted(1),
		policy:  policy,
		obs:     nopObserver{},
		initial: direction.JE,
	}
}

// SetObserver binds an event observer. nil restores the no-op observer.
func (c *Coordinator) SetObserver(obs Observer) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	if obs == nil {
		obs = nopObserver{}
	}
	c.obs = obs
}

func (c *Coordinator) observer() Observer {
	c.obsMu.RLock()
	defer c.obsMu.RUnlock()
	return c.obs
}

// Policy returns the Auto resolution policy in use.
func (c *Coordinator) Policy() direction.Policy {
	return c.policy
}

// Load initializes the engine with environment and initial direction. A loaded
// engine is unloaded first. On failure the engine is left unloaded.
func (c *Coordinator) Load(ctx context.Context, environment string, initial direction.Direction) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer c.sem.Release(1)
	return c.loadLocked(strings.TrimSpace(environment), initial)
}

// Reload repeats the last Load with the same environment and initial direction.
func (c *Coordinator) Reload(ctx context.Context) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer c.sem.Release(1)
	return c.loadLocked(c.environment, c.initial)
}

func (c *Coordinator) loadLocked(environment string, initial direction.Direction) error {
	if !initial.Concrete() {
		initial = direction.JE
	}
	c.unloadLocked()
	c.environment = environment
	c.initial = initial

	log.Info().Str("environment", environment).Stringer("direction", initial).Msg("engine.load")
	if err := c.eng.Load(environment, initial); err != nil {
		c.unloadLocked()
		c.observer().EngineLoaded(environment, initial, false)
		log.Error().Err(err).Str("environment", environment).Msg("engine.load failed")
		return fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}
	if !c.eng.IsLoaded() {
		c.unloadLocked()
		c.observer().EngineLoaded(environment, initial, false)
		log.Error().Str("environment", environment).Msg("engine.load reported not ready")
		return fmt.Errorf("%w: engine not ready after load", ErrLoadFailed)
	}
	c.loaded = true
	c.active = initial
	c.publish()
	c.observer().EngineLoaded(environment, initial, true)
	return nil
}

// Unload releases the engine. Safe to call when already unloaded.
func (c *Coordinator) Unload(ctx context.Context) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.sem.Release(1)
	c.unloadLocked()
	return nil
}

func (c *Coordinator) unloadLocked() {
	if c.loaded || c.eng.IsLoaded() {
		c.eng.Unload()
		log.Info().Str("environment", c.environment).Msg("engine.unload")
	}
	c.loaded = false
	c.active = direction.JE
	c.publish()
}

func (c *Coordinator) publish() {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.state = State{
		Loaded:      c.loaded,
		Active:      c.active,
		Environment: c.environment,
	}
}

// Snapshot returns the last published handle state.
func (c *Coordinator) Snapshot() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// IsReady reports whether the engine is loaded.
func (c *Coordinator) IsReady() bool {
	return c.Snapshot().Loaded
}

// ActiveDirection returns the engine's active direction; ok is false when unloaded.
func (c *Coordinator) ActiveDirection() (direction.Direction, bool) {
	s := c.Snapshot()
	return s.Active, s.Loaded
}

func (c *Coordinator) Environment() string {
	return c.Snapshot().Environment
}

// EnsureDirection computes the effective concrete direction for one request.
func (c *Coordinator) EnsureDirection(requested, lastResolved direction.Direction, text string) direction.Direction {
	return direction.Resolve(c.policy, requested, lastResolved, text)
}

// Translate runs one request inside the engine critical section, reinitializing
// the engine first when the effective direction differs from the active one.
func (c *Coordinator) Translate(
	ctx context.Context,
	text string,
	requested direction.Direction,
	lastResolved direction.Direction,
) (Result, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer c.sem.Release(1)

	start := time.Now()
	effective := c.EnsureDirection(requested, lastResolved, text)
	res := Result{Effective: effective}

	if !c.loaded || !c.eng.IsLoaded() {
		if c.loaded {
			c.unloadLocked()
		}
		c.finish(effective, false, start)
		return res, ErrUnavailable
	}

	if effective != c.active {
		if err := c.reinitLocked(effective); err != nil {
			c.finish(effective, false, start)
			return res, err
		}
		res.Reinitialized = true
	}

	out, err := c.eng.Translate(text)
	if err != nil {
		c.finish(effective, false, start)
		log.Warn().Err(err).Stringer("direction", effective).Msg("engine.translate failed")
		return res, fmt.Errorf("%w: %v", ErrTranslationFailed, err)
	}
	if strings.TrimSpace(out) == "" {
		c.finish(effective, false, start)
		return res, fmt.Errorf("%w: empty result", ErrTranslationFailed)
	}
	res.Text = out
	c.finish(effective, true, start)
	return res, nil
}

func (c *Coordinator) reinitLocked(to direction.Direction) error {
	from := c.active
	log.Debug().Stringer("from", from).Stringer("to", to).Str("environment", c.environment).Msg("engine.reinit")
	c.reinitializations.Add(1)
	if err := c.eng.SetDirection(to); err != nil || !c.eng.IsLoaded() {
		c.unloadLocked()
		c.observer().EngineReinitialized(from, to, false)
		log.Error().Err(err).Stringer("to", to).Msg("engine.reinit failed, engine unloaded")
		return ErrUnavailable
	}
	c.active = to
	c.publish()
	c.observer().EngineReinitialized(from, to, true)
	return nil
}

func (c *Coordinator) finish(dir direction.Direction, ok bool, start time.Time) {
	c.translations.Add(1)
	if !ok {
		c.failures.Add(1)
	}
	c.observer().TranslationCompleted(dir, ok, time.Since(start).Seconds())
}

// ListEnvironments passes through to the engine; empty when not loaded.
func (c *Coordinator) ListEnvironments(ctx context.Context) []string {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return []string{}
	}
	defer c.sem.Release(1)
	if !c.loaded {
		return []string{}
	}
	envs, err := c.eng.ListEnvironments()
	if err != nil {
		log.Warn().Err(err).Msg("engine.list_environments failed")
		return []string{}
	}
	out := make([]string, len(envs))
	copy(out, envs)
	return out
}

// Stats returns coordinator counters.
func (c *Coordinator) Stats() Stats {
	return Stats{
		Translations:      c.translations.Load(),
		Failures:          c.failures.Load(),
		Reinitializations: c.reinitializations.Load(),
	}
}
