package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/danmuck/atlasgate/internal/auth"
	"github.com/danmuck/atlasgate/internal/config"
	"github.com/danmuck/atlasgate/internal/engine"
	"github.com/danmuck/atlasgate/internal/observability"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var ErrNotStarted = errors.New("server: not started")

// Recorder receives connection and command events.
type Recorder interface {
	SessionOpened()
	SessionClosed()
	ConnectionRejected(reason string)
	CommandHandled(verb, response string)
}

type nopRecorder struct{}

func (nopRecorder) SessionOpened()                {}
func (nopRecorder) SessionClosed()                {}
func (nopRecorder) ConnectionRejected(string)     {}
func (nopRecorder) CommandHandled(string, string) {}

type Option func(*Server)

// WithRecorder binds connection/command metrics.
func WithRecorder(r Recorder) Option {
	return func(s *Server) {
		if r != nil {
			s.rec = r
		}
	}
}

// WithConfigPath enables the save_config admin action.
func WithConfigPath(path string) Option {
	return func(s *Server) {
		s.configPath = path
	}
}

// Server accepts TLS clients and drives one protocol.Machine per connection
// against the shared engine coordinator.
type Server struct {
	cfg        config.Config
	coord      *engine.Coordinator
	tokens     *auth.TokenSet
	rec        Recorder
	configPath string

	mu     sync.RWMutex
	phase  Phase
	ln     net.Listener
	tlsCfg *tls.Config
	cancel context.CancelFunc
	runCtx context.Context

	connsMu  sync.Mutex
	conns    map[net.Conn]struct{}
	handlers sync.WaitGroup

	sessions     atomic.Int64
	adminClients atomic.Int64
}

func New(cfg config.Config, coord *engine.Coordinator, tokens *auth.TokenSet, opts ...Option) *Server {
	cfg.Transport = cfg.Transport.WithDefaults()
	s := &Server{
		cfg:    cfg,
		coord:  coord,
		tokens: tokens,
		rec:    nopRecorder{},
		phase:  PhaseStopped,
		conns:  make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the engine, builds the TLS identity and binds the listener.
// A failed engine load or missing TLS material leaves the server stopped.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseStopped {
		return transitionError(s.phase, PhaseRunning)
	}

	tlsCfg, err := s.cfg.Transport.ServerTLSConfig()
	if err != nil {
		log.Error().Err(err).Msg("server.start tls invalid")
		return err
	}
	if err := s.coord.Load(ctx, s.cfg.Environment, s.cfg.Direction); err != nil {
		log.Error().Err(err).Str("environment", s.cfg.Environment).Msg("server.start engine load failed")
		return err
	}
	ln, err := net.Listen("tcp", s.cfg.ListenAddr())
	if err != nil {
		_ = s.coord.Unload(context.Background())
		return fmt.Errorf("server: listen %s: %w", s.cfg.ListenAddr(), err)
	}

	s.runCtx, s.cancel = context.WithCancel(context.Background())
	s.tlsCfg = tlsCfg
	s.ln = ln
	s.phase = PhaseRunning
	log.Info().
		Str("addr", ln.Addr().String()).
		Str("environment", s.cfg.Environment).
		Stringer("direction", s.cfg.Direction).
		Int("tokens", s.tokens.Len()).
		Msg("server.started")
	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Run starts the server and serves clients and the admin endpoint until ctx
// is done, then stops.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	defer s.Stop()

	s.mu.RLock()
	ln := s.ln
	s.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Serve(gctx, ln)
	})
	if addr := s.cfg.AdminListenAddr; addr != "" {
		g.Go(func() error {
			return s.ServeAdminControl(gctx, addr)
		})
	}
	return g.Wait()
}

// Serve accepts raw TCP connections on ln. The TLS handshake runs per
// connection. A paused server closes new connections immediately. Serve
// returns nil once ctx is done or the listener is closed.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.RLock()
	tlsCfg, runCtx := s.tlsCfg, s.runCtx
	s.mu.RUnlock()
	if tlsCfg == nil || runCtx == nil {
		return ErrNotStarted
	}
	defer ln.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		if phase, ok := s.admit(conn); !ok {
			log.Debug().Str("remote", conn.RemoteAddr().String()).Str("phase", string(phase)).Msg("server.conn rejected")
			s.rec.ConnectionRejected(string(phase))
			_ = conn.Close()
			continue
		}
		go func() {
			defer s.handlers.Done()
			s.handleConn(runCtx, tlsCfg, conn)
		}()
	}
}

// admit registers conn for a handler while running. Holding the read lock
// orders handlers.Add before Stop's Wait.
func (s *Server) admit(conn net.Conn) (Phase, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.phase != PhaseRunning {
		return s.phase, false
	}
	s.trackConn(conn)
	s.handlers.Add(1)
	return s.phase, true
}

// Pause stops new sessions; existing sessions continue.
func (s *Server) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseRunning {
		return transitionError(s.phase, PhasePaused)
	}
	s.phase = PhasePaused
	log.Info().Msg("server.paused")
	return nil
}

func (s *Server) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhasePaused {
		return transitionError(s.phase, PhaseRunning)
	}
	s.phase = PhaseRunning
	log.Info().Msg("server.resumed")
	return nil
}

// Stop closes the listener and every session, waits for their handlers and
// unloads the engine. Stopping a stopped server is a no-op.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.phase == PhaseStopped {
		s.mu.Unlock()
		return
	}
	s.phase = PhaseStopped
	if s.cancel != nil {
		s.cancel()
	}
	if s.ln != nil {
		_ = s.ln.Close()
	}
	s.mu.Unlock()

	s.closeAllConns()
	s.handlers.Wait()
	_ = s.coord.Unload(context.Background())

	s.mu.Lock()
	s.ln = nil
	s.tlsCfg = nil
	s.runCtx = nil
	s.cancel = nil
	s.mu.Unlock()
	log.Info().Msg("server.stopped")
}

func (s *Server) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

func (s *Server) Status() Status {
	st := Status{
		Phase:       s.Phase(),
		Sessions:    s.sessions.Load(),
		AutoPolicy:  s.coord.Policy().String(),
		Tokens:      s.tokens.Len(),
		Environment: s.coord.Environment(),
	}
	if addr := s.Addr(); addr != nil {
		st.ListenAddr = addr.String()
	}
	if dir, ok := s.coord.ActiveDirection(); ok {
		st.EngineReady = true
		st.Direction = dir.String()
	}
	stats := s.coord.Stats()
	st.Translations = stats.Translations
	st.Failures = stats.Failures
	st.Reinitializations = stats.Reinitializations
	return st
}

// Health adapts Status for the health HTTP surface.
func (s *Server) Health() observability.Health {
	st := s.Status()
	return observability.Health{
		Phase:       string(st.Phase),
		Ready:       st.EngineReady,
		Sessions:    int(st.Sessions),
		Environment: st.Environment,
		Direction:   st.Direction,
		Tokens:      st.Tokens,
	}
}

func (s *Server) trackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	s.conns[conn] = struct{}{}
}

func (s *Server) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) closeAllConns() {
	s.connsMu.Lock()
	conns := make([]net.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.connsMu.Unlock()
	for _, conn := range conns {
		_ = conn.Close()
	}
}
