// Package command adapts an external translator program to engine.Engine.
//
// Each Translate runs the configured program once: the source text goes to
// stdin, the translation is read from stdout. Both streams use the configured
// legacy encoding. Direction and environment reach the program through
// {direction} / {environment} argument placeholders and the
// ATLASGATE_DIRECTION / ATLASGATE_ENVIRONMENT variables.
package command

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/danmuck/atlasgate/internal/direction"
	"github.com/danmuck/atlasgate/internal/tools"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotConfigured = errors.New("command: program not configured")
	ErrNotLoaded     = errors.New("command: engine not loaded")
	ErrEmptyOutput   = errors.New("command: program produced no output")
)

const (
	EnvDirection   = "ATLASGATE_DIRECTION"
	EnvEnvironment = "ATLASGATE_ENVIRONMENT"

	DefaultTimeout = 30 * time.Second
)

// Config describes the external program.
type Config struct {
	Command  string
	Args     []string
	EnvFile  string
	Encoding string
	Timeout  time.Duration
}

// Engine runs one process per translation. It keeps no process alive between
// calls; "loaded" means the program resolved and the codec is usable.
type Engine struct {
	cfg    Config
	codec  Codec
	runner tools.CommandRunner

	path        string
	loaded      bool
	active      direction.Direction
	environment string
}

type Option func(*Engine)

// WithRunner replaces the process runner.
func WithRunner(r tools.CommandRunner) Option {
	return func(e *Engine) {
		if r != nil {
			e.runner = r
		}
	}
}

func New(cfg Config, opts ...Option) (*Engine, error) {
	codec, err := CodecFor(cfg.Encoding)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	e := &Engine{cfg: cfg, codec: codec, runner: tools.ExecRunner{}, active: direction.JE}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) Load(environment string, dir direction.Direction) error {
	e.Unload()
	if strings.TrimSpace(e.cfg.Command) == "" {
		return ErrNotConfigured
	}
	path, err := exec.LookPath(e.cfg.Command)
	if err != nil {
		return fmt.Errorf("command: resolve %q: %w", e.cfg.Command, err)
	}
	e.path = path
	e.environment = environment
	e.active = dir
	e.loaded = true
	log.Info().Str("program", path).Str("environment", environment).Stringer("direction", dir).Msg("engine.command.loaded")
	return nil
}

func (e *Engine) Unload() {
	e.loaded = false
	e.path = ""
	e.active = direction.JE
}

// SetDirection only records the direction; the next process picks it up.
func (e *Engine) SetDirection(dir direction.Direction) error {
	if !e.loaded {
		return ErrNotLoaded
	}
	if !dir.Concrete() {
		return fmt.Errorf("command: direction %s is not concrete", dir)
	}
	e.active = dir
	return nil
}

func (e *Engine) IsLoaded() bool {
	return e.loaded
}

func (e *Engine) Translate(text string) (string, error) {
	if !e.loaded {
		return "", ErrNotLoaded
	}
	in, err := e.codec.Encode(text)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Timeout)
	defer cancel()

	res, err := e.runner.Run(ctx, tools.Command{
		Name: e.path,
		Args: e.args(),
		Env: []string{
			EnvDirection + "=" + e.active.String(),
			EnvEnvironment + "=" + e.environment,
		},
		Stdin: in,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("command: timed out after %s: %w", e.cfg.Timeout, ctx.Err())
		}
		return "", fmt.Errorf("command: run (exit %d): %w: %s", res.ExitCode, err, strings.TrimSpace(string(res.Stderr)))
	}
	out, err := e.codec.Decode(res.Stdout)
	if err != nil {
		return "", err
	}
	out = strings.TrimRight(out, "\r\n\x00")
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyOutput
	}
	return out, nil
}

// ListEnvironments reads EnvName entries from the configured env file.
func (e *Engine) ListEnvironments() ([]string, error) {
	if e.cfg.EnvFile == "" {
		return []string{}, nil
	}
	return ReadEnvironments(e.cfg.EnvFile, e.codec)
}

func (e *Engine) args() []string {
	out := make([]string, len(e.cfg.Args))
	r := strings.NewReplacer("{direction}", e.active.String(), "{environment}", e.environment)
	for i, a := range e.cfg.Args {
		out[i] = r.Replace(a)
	}
	return out
}
