// Package session runs the TCP line protocol spoken by connected clients.
//
//	client: LOGIN,<userId>    server: LOGIN_OK,<pending> then one wire line per queued notification
//	client: PING              server: PONG
//	client: LOGOUT            server closes the connection
//
// Anything else is answered with ERROR,<reason>. While logged in, the
// connection is registered as a live channel for the user.
package session

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/medeiros-dev/reservation-notifier/internal/domain"
	"github.com/medeiros-dev/reservation-notifier/internal/domain/port/channel"
	"github.com/medeiros-dev/reservation-notifier/internal/infrastructure/channel/conn"
	"github.com/medeiros-dev/reservation-notifier/internal/observability/metrics"
	"github.com/medeiros-dev/reservation-notifier/pkg/lineproto"
	"github.com/medeiros-dev/reservation-notifier/pkg/logger"
	"go.uber.org/zap"
)

const (
	cmdLogin  = "LOGIN"
	cmdPing   = "PING"
	cmdLogout = "LOGOUT"

	replyLoginOK = "LOGIN_OK"
	replyPong    = "PONG"
	replyError   = "ERROR"

	maxLineSize = 64 * 1024
)

// Dispatcher is what a session needs from the delivery side.
type Dispatcher interface {
	RegisterClient(userID string, ch channel.Channel)
	UnregisterClient(userID string, ch channel.Channel)
	DrainOffline(ctx context.Context, userID string) ([]domain.Notification, error)
}

type Server struct {
	addr         string
	dispatcher   Dispatcher
	writeTimeout time.Duration

	mu       sync.Mutex
	listener net.Listener
	sessions map[string]*conn.Channel
	wg       sync.WaitGroup
}

func NewServer(addr string, dispatcher Dispatcher, writeTimeout time.Duration) *Server {
	return &Server{
		addr:         addr,
		dispatcher:   dispatcher,
		writeTimeout: writeTimeout,
		sessions:     make(map[string]*conn.Channel),
	}
}

// ListenAndServe listens on the configured address and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then closes every open
// session and waits for them to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	logger.L().Info("Session server listening", zap.String("address", ln.Addr().String()))

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
		case <-stop:
		}
	}()

	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.closeSessions()
				s.wg.Wait()
				logger.L().Info("Session server stopped")
				return nil
			}
			logger.L().Error("Accept failed", zap.Error(err))
			time.Sleep(100 * time.Millisecond)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.ServeConn(ctx, c)
		}()
	}
}

// Addr returns the listener address once Serve has started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) closeSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.sessions {
		ch.Close()
	}
}

func (s *Server) track(id string, ch *conn.Channel) {
	s.mu.Lock()
	s.sessions[id] = ch
	s.mu.Unlock()
	metrics.ActiveSessions.Inc()
}

func (s *Server) untrack(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	metrics.ActiveSessions.Dec()
}

type session struct {
	id     string
	userID string
	ch     *conn.Channel
	log    *zap.Logger
}

// ServeConn runs one session to completion and closes c.
func (s *Server) ServeConn(ctx context.Context, c net.Conn) {
	sess := &session{
		id: uuid.NewString(),
		ch: conn.New(c, s.writeTimeout),
	}
	sess.log = logger.L().With(zap.String("sessionID", sess.id), zap.String("remote", sess.ch.RemoteAddr()))

	s.track(sess.id, sess.ch)
	// A connection accepted while shutting down may be tracked after
	// closeSessions ran, so the session also ends on its own when ctx is done.
	stop := context.AfterFunc(ctx, func() { sess.ch.Close() })
	defer stop()
	defer func() {
		if sess.userID != "" {
			s.dispatcher.UnregisterClient(sess.userID, sess.ch)
		}
		sess.ch.Close()
		s.untrack(sess.id)
		sess.log.Info("Session closed", zap.String("userID", sess.userID))
	}()
	sess.log.Debug("Session opened")

	scanner := bufio.NewScanner(c)
	scanner.Buffer(make([]byte, 0, 1024), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		cmd, arg, _ := strings.Cut(line, ",")

		switch strings.ToUpper(strings.TrimSpace(cmd)) {
		case cmdLogin:
			s.login(ctx, sess, strings.TrimSpace(arg))
		case cmdPing:
			s.reply(ctx, sess, replyPong)
		case cmdLogout:
			return
		default:
			s.reply(ctx, sess, replyError+",unknown command")
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		sess.log.Debug("Session read ended", zap.Error(err))
	}
}

// login registers the connection and flushes the user's offline backlog. The
// channel's write lock is held throughout, so live notifications dispatched
// meanwhile are written after the backlog.
func (s *Server) login(ctx context.Context, sess *session, userID string) {
	if userID == "" {
		s.reply(ctx, sess, replyError+",missing user id")
		return
	}
	if sess.userID != "" {
		s.reply(ctx, sess, replyError+",already logged in")
		return
	}

	err := sess.ch.WithLock(func(write func(string) error) error {
		s.dispatcher.RegisterClient(userID, sess.ch)
		sess.userID = userID

		backlog, err := s.dispatcher.DrainOffline(ctx, userID)
		if err != nil {
			sess.log.Error("Failed to drain offline notifications",
				zap.String("userID", userID),
				zap.Error(err),
			)
			backlog = nil
		}

		if err := write(replyLoginOK + "," + strconv.Itoa(len(backlog))); err != nil {
			return err
		}
		for _, n := range backlog {
			if err := write(lineproto.EncodeWire(n)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		sess.log.Warn("Failed to write login response", zap.String("userID", userID), zap.Error(err))
		return
	}
	sess.log.Info("User logged in", zap.String("userID", userID))
}

func (s *Server) reply(ctx context.Context, sess *session, line string) {
	if err := sess.ch.Send(ctx, line); err != nil {
		sess.log.Debug("Failed to write reply", zap.Error(err))
	}
}
