package protocol

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/atlasgate/internal/auth"
	"github.com/danmuck/atlasgate/internal/direction"
	"github.com/danmuck/atlasgate/internal/engine"
	"github.com/danmuck/atlasgate/internal/protocol/session"
	"github.com/rs/zerolog/log"
)

// Translator is the engine surface the machine needs.
type Translator interface {
	Translate(ctx context.Context, text string, requested, lastResolved direction.Direction) (engine.Result, error)
}

// Reply is the outcome of one request line.
type Reply struct {
	Verb     Verb
	Response Response
	// Close is set when the connection must be closed after Response is written.
	Close bool
	Err   error
}

// Machine drives one connection's Unauthenticated -> Authenticated -> Closed
// transitions. It is not safe for concurrent use; each connection owns one.
type Machine struct {
	sess       *session.Session
	tokens     auth.Validator
	translator Translator
	state      State
}

func NewMachine(sess *session.Session, tokens auth.Validator, translator Translator) *Machine {
	return &Machine{
		sess:       sess,
		tokens:     tokens,
		translator: translator,
		state:      StateUnauthenticated,
	}
}

func (m *Machine) State() State {
	return m.state
}

func (m *Machine) Session() *session.Session {
	return m.sess
}

// Handle processes one request line and returns the reply to send.
func (m *Machine) Handle(ctx context.Context, line string) Reply {
	if m.state == StateClosed {
		return Reply{Close: true, Err: ErrClosed}
	}
	cmd, err := ParseCommand(line)
	if err != nil {
		return m.fail("", err)
	}

	if m.state == StateUnauthenticated {
		if cmd.Verb != VerbInit {
			return m.fail(cmd.Verb, fmt.Errorf("%w: %s before INIT", ErrNotRecognized, cmd.Verb))
		}
		return m.handleInit(cmd)
	}

	switch cmd.Verb {
	case VerbInit:
		return m.fail(cmd.Verb, fmt.Errorf("%w: repeated INIT", ErrNotRecognized))
	case VerbDir:
		d := direction.Parse(cmd.Arg)
		m.sess.SetDirection(d)
		log.Debug().Str("session", m.sess.ID()).Str("direction", d.String()).Msg("protocol.dir")
		return Reply{Verb: cmd.Verb, Response: RespOK}
	case VerbTR:
		return m.handleTranslate(ctx, cmd)
	case VerbFin:
		m.state = StateClosed
		return Reply{Verb: cmd.Verb, Response: RespOK, Close: true}
	default:
		return m.fail(cmd.Verb, ErrNotRecognized)
	}
}

func (m *Machine) handleInit(cmd Command) Reply {
	token := strings.TrimSpace(cmd.Arg)
	if err := m.tokens.Validate(token); err != nil {
		return m.fail(cmd.Verb, fmt.Errorf("%w: %v", ErrNotAuthorized, err))
	}
	m.sess.Authenticate()
	m.state = StateAuthenticated
	log.Debug().Str("session", m.sess.ID()).Msg("protocol.authenticated")
	return Reply{Verb: cmd.Verb, Response: RespOK}
}

func (m *Machine) handleTranslate(ctx context.Context, cmd Command) Reply {
	text, err := DecodeText(cmd.Arg)
	if err != nil {
		return Reply{Verb: cmd.Verb, Response: RespNullStrDecoded, Err: err}
	}
	res, err := m.translator.Translate(ctx, text, m.sess.Direction(), m.sess.LastResolved())
	if err != nil {
		log.Debug().Err(err).Str("session", m.sess.ID()).Msg("protocol.translate.failed")
		return Reply{Verb: cmd.Verb, Response: RespTransFailed, Err: err}
	}
	m.sess.SetLastResolved(res.Effective)
	return Reply{Verb: cmd.Verb, Response: Result(res.Text)}
}

// fail builds the reply for a session-ending error and moves to Closed.
func (m *Machine) fail(verb Verb, err error) Reply {
	m.state = StateClosed
	resp := RespNotRecognized
	if errors.Is(err, ErrNotAuthorized) {
		resp = RespNotAuthorized
	}
	log.Debug().Err(err).Str("session", m.sess.ID()).Msg("protocol.session.rejected")
	return Reply{Verb: verb, Response: resp, Close: true, Err: err}
}
