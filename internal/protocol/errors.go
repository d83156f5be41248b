package protocol

import (
	"errors"

	"github.com/danmuck/atlasgate/internal/engine"
)

var (
	ErrNotAuthorized = errors.New("protocol: not authorized")
	ErrNotRecognized = errors.New("protocol: command not recognized")
	ErrDecode        = errors.New("protocol: payload decoded to empty or invalid text")
	ErrLineTooLong   = errors.New("protocol: line too long")
	ErrClosed        = errors.New("protocol: session closed")
)

// ResponseFor maps an error to the fixed wire code sent to clients. Engine
// diagnostics never leave the server; every engine error is TRANS_FAILED.
func ResponseFor(err error) Response {
	switch {
	case err == nil:
		return RespOK
	case errors.Is(err, ErrNotAuthorized):
		return RespNotAuthorized
	case errors.Is(err, ErrDecode):
		return RespNullStrDecoded
	case errors.Is(err, engine.ErrUnavailable),
		errors.Is(err, engine.ErrTranslationFailed),
		errors.Is(err, engine.ErrLoadFailed):
		return RespTransFailed
	default:
		return RespNotRecognized
	}
}

// Fatal reports whether err ends the session.
func Fatal(err error) bool {
	return errors.Is(err, ErrNotAuthorized) ||
		errors.Is(err, ErrNotRecognized) ||
		errors.Is(err, ErrLineTooLong) ||
		errors.Is(err, ErrClosed)
}
