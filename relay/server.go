// Package relay implements the server side of the chat relay: the session
// registry, the per-connection protocol state machine, the idle supervisor,
// and the connection lifecycle around them.
package relay

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cyberinferno/chat-relay/history"
	"github.com/cyberinferno/chat-relay/logger"
	"github.com/cyberinferno/chat-relay/protocol"
)

// DefaultIdleTimeout disconnects an authenticated session after this much
// inbound silence.
const DefaultIdleTimeout = 60 * time.Second

// Config holds the relay server settings.
type Config struct {
	// Addr is the TCP listen address, e.g. ":4000".
	Addr string
	// IdleTimeout is the inactivity threshold for authenticated sessions.
	// Non-positive selects DefaultIdleTimeout.
	IdleTimeout time.Duration
	// MaxLineLen bounds inbound line length; non-positive selects
	// protocol.DefaultMaxLineLen.
	MaxLineLen int
}

// Server accepts client connections and coordinates every session through
// the shared Registry. Sessions arriving over other transports (WebSocket)
// are attached with StartSession and share the same registry and history, so
// clients on different transports talk to each other transparently.
type Server struct {
	cfg      Config
	log      logger.Logger
	registry *Registry
	history  *history.Log

	listener net.Listener
	running  atomic.Bool
	nextID   atomic.Uint32
	wg       sync.WaitGroup

	connMu sync.Mutex
	conns  map[uint32]*Session
}

// NewServer builds a Server for cfg. A nil history log or logger is replaced
// with a default in-memory log and a no-op logger.
func NewServer(cfg Config, hist *history.Log, log logger.Logger) *Server {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if hist == nil {
		hist = history.NewLog(0, 0)
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Server{
		cfg:      cfg,
		log:      log,
		registry: NewRegistry(),
		history:  hist,
		conns:    make(map[uint32]*Session),
	}
}

// Registry returns the server's session registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Addr returns the bound listener address. Valid only after Start.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Start binds the TCP listener and begins the accept loop in a goroutine.
// A bind failure is returned to the caller; it is the one startup error the
// operator must see.
func (s *Server) Start() error {
	if s.running.Load() {
		return fmt.Errorf("relay: server already running")
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.log.Error("failed to bind listener",
			logger.Field{Key: "addr", Value: s.cfg.Addr},
			logger.Field{Key: "error", Value: err})
		return fmt.Errorf("relay: listen on %s: %w", s.cfg.Addr, err)
	}

	s.listener = ln
	s.running.Store(true)
	s.log.Info("server started", logger.Field{Key: "addr", Value: ln.Addr().String()})

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop closes the listener and every live session, then waits for their
// goroutines to finish. Safe to call when the server is not running.
func (s *Server) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}

	if s.listener != nil {
		_ = s.listener.Close()
	}

	s.connMu.Lock()
	for _, sess := range s.conns {
		_ = sess.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	s.log.Info("server stopped")
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() {
				return
			}

			s.log.Error("accept error", logger.Field{Key: "error", Value: err})
			continue
		}

		s.StartSession(NewTCPTransport(conn, s.cfg.MaxLineLen))
	}
}

// StartSession attaches a transport as a fresh unauthenticated session and
// starts its read and write loops. It is the single entry point for every
// transport, TCP and WebSocket alike.
func (s *Server) StartSession(t Transport) *Session {
	sess := newSession(s.nextID.Add(1), t, s)

	s.connMu.Lock()
	s.conns[sess.id] = sess
	s.connMu.Unlock()

	sess.log.Debug("connection accepted")

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		sess.writeLoop()
	}()
	go func() {
		defer s.wg.Done()
		defer func() {
			s.connMu.Lock()
			delete(s.conns, sess.id)
			s.connMu.Unlock()
		}()
		sess.Handle()
	}()

	return sess
}

// broadcastMessage relays text from sender to every other registered session
// and records it in the history buffer. Delivery is fire-and-forget.
func (s *Server) broadcastMessage(sender *Session, text string) {
	from := sender.Username()
	s.history.Append(from, text)

	line := protocol.MsgLine(from, text)
	for _, sess := range s.registry.Snapshot() {
		if sess != sender {
			sess.Send(line)
		}
	}

	s.log.Debug("broadcast", logger.Field{Key: "from", Value: from})
}

// broadcastInfo sends a system notice to every registered session except
// skip. Pass nil to reach the whole room.
func (s *Server) broadcastInfo(text string, skip *Session) {
	line := protocol.InfoLine(text)
	for _, sess := range s.registry.Snapshot() {
		if sess != skip {
			sess.Send(line)
		}
	}

	s.log.Debug("info broadcast", logger.Field{Key: "text", Value: text})
}
