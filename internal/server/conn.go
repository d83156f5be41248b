package server

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/danmuck/atlasgate/internal/protocol"
	"github.com/danmuck/atlasgate/internal/protocol/session"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const readBufferSize = 4096

// handleConn runs the TLS handshake, then one protocol.Machine until a
// terminal reply, a read error or server shutdown.
func (s *Server) handleConn(ctx context.Context, tlsCfg *tls.Config, raw net.Conn) {
	defer s.untrackConn(raw)
	defer raw.Close()
	remote := raw.RemoteAddr().String()
	transport := s.cfg.Transport

	conn := tls.Server(raw, tlsCfg)
	_ = conn.SetDeadline(time.Now().Add(transport.HandshakeTimeout))
	if err := conn.HandshakeContext(ctx); err != nil {
		log.Debug().Err(err).Str("remote", remote).Msg("server.handshake failed")
		s.rec.ConnectionRejected("handshake")
		return
	}
	_ = conn.SetDeadline(time.Time{})

	sess := session.New(uuid.NewString())
	machine := protocol.NewMachine(sess, s.tokens, s.coord)
	active := s.sessions.Add(1)
	s.rec.SessionOpened()
	log.Info().Str("session", sess.ID()).Str("remote", remote).Int64("active", active).Msg("server.session opened")
	defer func() {
		remaining := s.sessions.Add(-1)
		s.rec.SessionClosed()
		log.Info().Str("session", sess.ID()).Str("remote", remote).Int64("active", remaining).Msg("server.session closed")
	}()

	reader := bufio.NewReaderSize(conn, readBufferSize)
	for {
		if transport.IdleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(transport.IdleTimeout))
		}
		line, err := protocol.ReadLine(reader, transport.MaxLineBytes)
		if err != nil {
			if errors.Is(err, protocol.ErrLineTooLong) {
				log.Warn().Str("session", sess.ID()).Int("max", transport.MaxLineBytes).Msg("server.session line too long")
				s.rec.CommandHandled("", string(protocol.RespNotRecognized))
				_ = s.write(conn, protocol.RespNotRecognized)
				return
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Debug().Err(err).Str("session", sess.ID()).Msg("server.session read ended")
			}
			return
		}

		reply := machine.Handle(ctx, line)
		s.rec.CommandHandled(string(reply.Verb), responseLabel(reply.Response))
		if reply.Response != "" {
			if err := s.write(conn, reply.Response); err != nil {
				log.Debug().Err(err).Str("session", sess.ID()).Msg("server.session write failed, result discarded")
				return
			}
		}
		if reply.Close {
			return
		}
	}
}

func (s *Server) write(conn net.Conn, resp protocol.Response) error {
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.Transport.WriteTimeout))
	return protocol.WriteResponse(conn, resp)
}

// responseLabel collapses RES payloads to a fixed metric label.
func responseLabel(r protocol.Response) string {
	if strings.HasPrefix(string(r), "RES:") {
		return "RES"
	}
	if r == "" {
		return "none"
	}
	return string(r)
}
