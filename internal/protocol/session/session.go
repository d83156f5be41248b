package session

import "github.com/danmuck/atlasgate/internal/direction"

// Session is the per-connection bookkeeping: authentication status, the
// requested direction and the last effective direction used under Auto.
type Session struct {
	id            string
	authenticated bool
	requested     direction.Direction
	lastResolved  direction.Direction
}

// New returns an unauthenticated session requesting JE.
func New(id string) *Session {
	return &Session{
		id:           id,
		requested:    direction.JE,
		lastResolved: direction.JE,
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Authenticate() {
	s.authenticated = true
}

func (s *Session) IsAuthenticated() bool {
	return s.authenticated
}

func (s *Session) SetDirection(d direction.Direction) {
	s.requested = d
}

func (s *Session) Direction() direction.Direction {
	return s.requested
}

// LastResolved is the previous effective direction; JE until a request resolves.
func (s *Session) LastResolved() direction.Direction {
	return s.lastResolved
}

// SetLastResolved records an effective direction. Auto is ignored.
func (s *Session) SetLastResolved(d direction.Direction) {
	if d.Concrete() {
		s.lastResolved = d
	}
}
