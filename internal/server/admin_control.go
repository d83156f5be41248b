package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"slices"
	"strings"
	"time"

	"github.com/danmuck/atlasgate/internal/config"
	"github.com/rs/zerolog/log"
)

const adminActionTimeout = 30 * time.Second

var ErrUnknownEnvironment = errors.New("server: unknown environment")

type adminControlRequest struct {
	Action      string `json:"action"`
	Token       string `json:"token,omitempty"`
	Environment string `json:"environment,omitempty"`
}

type adminControlResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// AdminTokenCount is the list_tokens payload. Token values never leave the
// process.
type AdminTokenCount struct {
	Count int `json:"count"`
}

// ServeAdminControl exposes a TCP JSON request/response endpoint, one request
// per line, for service-wrapper control. addr must be a loopback address.
func (s *Server) ServeAdminControl(ctx context.Context, addr string) error {
	addr, err := config.NormalizeAdminAddr(addr)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.ServeAdminListener(ctx, ln)
}

func (s *Server) ServeAdminListener(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	log.Info().Str("addr", ln.Addr().String()).Msg("server.admin listening")

	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.handleAdminConn(ctx, conn)
	}
}

// handleAdminConn decodes one request per line and writes one response per line.
func (s *Server) handleAdminConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	if !loopbackPeer(conn.RemoteAddr()) {
		log.Warn().Str("remote", remote).Msg("server.admin refused non-loopback peer")
		return
	}
	active := s.adminClients.Add(1)
	log.Debug().Str("remote", remote).Int64("active", active).Msg("server.admin client connected")
	defer func() {
		remaining := s.adminClients.Add(-1)
		log.Debug().Str("remote", remote).Int64("active", remaining).Msg("server.admin client disconnected")
	}()
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF && ctx.Err() == nil {
				log.Warn().Err(err).Msg("server.admin read failed")
			}
			return
		}
		var req adminControlRequest
		if err := json.Unmarshal(line, &req); err != nil {
			_ = writeAdminControlResponse(conn, adminControlResponse{OK: false, Error: err.Error()})
			continue
		}
		resp := s.handleAdminControlRequest(ctx, req)
		if err := writeAdminControlResponse(conn, resp); err != nil {
			log.Warn().Err(err).Msg("server.admin write failed")
			return
		}
	}
}

// handleAdminControlRequest routes one admin action to server methods.
func (s *Server) handleAdminControlRequest(ctx context.Context, req adminControlRequest) adminControlResponse {
	action := strings.TrimSpace(req.Action)
	log.Debug().Str("action", action).Msg("server.admin request")
	switch action {
	case "status":
		return adminControlResponse{OK: true, Data: s.Status()}
	case "pause":
		if err := s.Pause(); err != nil {
			return adminControlResponse{OK: false, Error: err.Error()}
		}
		return adminControlResponse{OK: true}
	case "resume":
		if err := s.Resume(); err != nil {
			return adminControlResponse{OK: false, Error: err.Error()}
		}
		return adminControlResponse{OK: true}
	case "reload_engine":
		if s.Phase() == PhaseStopped {
			return adminControlResponse{OK: false, Error: ErrNotStarted.Error()}
		}
		actx, cancel := context.WithTimeout(ctx, adminActionTimeout)
		defer cancel()
		if err := s.coord.Reload(actx); err != nil {
			return adminControlResponse{OK: false, Error: err.Error()}
		}
		return adminControlResponse{OK: true, Data: s.Status()}
	case "list_environments":
		actx, cancel := context.WithTimeout(ctx, adminActionTimeout)
		defer cancel()
		return adminControlResponse{OK: true, Data: s.coord.ListEnvironments(actx)}
	case "add_token":
		if !s.tokens.Add(req.Token) {
			return adminControlResponse{OK: false, Error: "token required"}
		}
		return adminControlResponse{OK: true, Data: AdminTokenCount{Count: s.tokens.Len()}}
	case "remove_token":
		if !s.tokens.Remove(strings.TrimSpace(req.Token)) {
			return adminControlResponse{OK: false, Error: "token not registered"}
		}
		return adminControlResponse{OK: true, Data: AdminTokenCount{Count: s.tokens.Len()}}
	case "list_tokens":
		return adminControlResponse{OK: true, Data: AdminTokenCount{Count: s.tokens.Len()}}
	case "set_environment":
		if s.Phase() == PhaseStopped {
			return adminControlResponse{OK: false, Error: ErrNotStarted.Error()}
		}
		actx, cancel := context.WithTimeout(ctx, adminActionTimeout)
		defer cancel()
		if err := s.SetEnvironment(actx, req.Environment); err != nil {
			return adminControlResponse{OK: false, Error: err.Error()}
		}
		return adminControlResponse{OK: true, Data: s.Status()}
	case "save_config":
		if err := s.SaveConfig(); err != nil {
			return adminControlResponse{OK: false, Error: err.Error()}
		}
		return adminControlResponse{OK: true}
	default:
		return adminControlResponse{OK: false, Error: fmt.Sprintf("unknown action: %s", req.Action)}
	}
}

// SetEnvironment reloads the engine with environment, which must be one of the
// engine's listed environments when it lists any. On a failed load the
// previous environment is loaded again. The choice is persisted when a config
// path is set.
func (s *Server) SetEnvironment(ctx context.Context, environment string) error {
	environment = strings.TrimSpace(environment)
	if environment == "" {
		return fmt.Errorf("%w: empty name", ErrUnknownEnvironment)
	}
	if known := s.coord.ListEnvironments(ctx); len(known) > 0 && !slices.Contains(known, environment) {
		return fmt.Errorf("%w: %q", ErrUnknownEnvironment, environment)
	}

	s.mu.RLock()
	previous := s.cfg.Environment
	initial := s.cfg.Direction
	s.mu.RUnlock()

	if err := s.coord.Load(ctx, environment, initial); err != nil {
		log.Error().Err(err).Str("environment", environment).Msg("server.environment load failed")
		if rerr := s.coord.Load(ctx, previous, initial); rerr != nil {
			log.Error().Err(rerr).Str("environment", previous).Msg("server.environment restore failed")
		}
		return err
	}

	s.mu.Lock()
	if s.phase == PhaseStopped {
		s.mu.Unlock()
		_ = s.coord.Unload(context.Background())
		return ErrNotStarted
	}
	s.cfg.Environment = environment
	s.mu.Unlock()
	log.Info().Str("from", previous).Str("to", environment).Msg("server.environment changed")

	if s.configPath == "" {
		return nil
	}
	return s.SaveConfig()
}

// SaveConfig persists the startup configuration with the current token set
// and environment.
func (s *Server) SaveConfig() error {
	if s.configPath == "" {
		return fmt.Errorf("server: no config path configured")
	}
	s.mu.RLock()
	cfg := s.cfg
	s.mu.RUnlock()
	cfg.Tokens = s.tokens.Snapshot()
	if err := config.Save(s.configPath, cfg); err != nil {
		return err
	}
	log.Info().Str("path", s.configPath).Int("tokens", len(cfg.Tokens)).Msg("server.config saved")
	return nil
}

func loopbackPeer(addr net.Addr) bool {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return a.IP.IsLoopback()
	case *net.UnixAddr:
		return true
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return false
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func writeAdminControlResponse(w io.Writer, resp adminControlResponse) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	payload = append(payload, '\n')
	_, err = w.Write(payload)
	return err
}
