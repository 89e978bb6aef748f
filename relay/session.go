package relay

import (
	"sync"
	"time"

	"github.com/eapache/queue"

	"github.com/cyberinferno/chat-relay/logger"
	"github.com/cyberinferno/chat-relay/protocol"
)

// sessionState tracks the protocol phase of a session. It is owned by the
// read loop and never touched from other goroutines.
type sessionState int

const (
	stateUnauthenticated sessionState = iota
	stateAuthenticated
)

// Session is the server-side state for one client connection, spanning the
// pre-login and post-login phases. Inbound lines are processed strictly in
// arrival order by the read loop; outbound lines pass through a FIFO outbox
// drained by a single write loop, so bytes from distinct messages never
// interleave on the wire.
type Session struct {
	id        uint32
	srv       *Server
	transport Transport
	log       logger.Logger

	state sessionState

	mu       sync.Mutex
	username string
	idle     *time.Timer
	idleGen  uint64

	outMu    sync.Mutex
	outbox   *queue.Queue
	outReady chan struct{}

	closing   chan struct{}
	closeOnce sync.Once
	cleanOnce sync.Once
}

func newSession(id uint32, t Transport, srv *Server) *Session {
	return &Session{
		id:        id,
		srv:       srv,
		transport: t,
		log: srv.log.With(
			logger.Field{Key: "session", Value: id},
			logger.Field{Key: "remote", Value: t.RemoteAddr()},
		),
		outbox:   queue.New(),
		outReady: make(chan struct{}, 1),
		closing:  make(chan struct{}),
	}
}

// ID returns the server-assigned connection ID.
func (s *Session) ID() uint32 {
	return s.id
}

// Username returns the assigned username, or "" while pre-login. Once set it
// never changes for the session's lifetime.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

func (s *Session) setUsername(name string) {
	s.mu.Lock()
	s.username = name
	s.mu.Unlock()
}

// Close requests session shutdown. Safe to call multiple times and from any
// goroutine; the write loop performs the actual transport close after a final
// best-effort drain of queued lines.
func (s *Session) Close() error {
	s.closeOnce.Do(func() { close(s.closing) })
	return nil
}

// Send queues one protocol line for delivery. It never blocks the caller:
// delivery is best-effort and the line is dropped when the session is
// closing. A failure to deliver is never surfaced to the command that
// triggered the send.
func (s *Session) Send(line string) {
	select {
	case <-s.closing:
		return
	default:
	}

	s.outMu.Lock()
	s.outbox.Add(line)
	s.outMu.Unlock()

	select {
	case s.outReady <- struct{}{}:
	default:
	}
}

// writeLoop is the sole writer to the transport. It exits when the session
// closes or a write fails, closing the transport either way, which in turn
// unblocks the read loop.
func (s *Session) writeLoop() {
	defer s.transport.Close()

	for {
		select {
		case <-s.outReady:
			if !s.flushOutbox() {
				return
			}
		case <-s.closing:
			s.flushOutbox()
			return
		}
	}
}

// flushOutbox drains queued lines to the transport and reports whether the
// transport is still usable. A write failure is terminal for this session
// only.
func (s *Session) flushOutbox() bool {
	for {
		s.outMu.Lock()
		if s.outbox.Length() == 0 {
			s.outMu.Unlock()
			return true
		}
		line := s.outbox.Remove().(string)
		s.outMu.Unlock()

		if err := s.transport.WriteLine(line); err != nil {
			s.log.Debug("outbound write failed", logger.Field{Key: "error", Value: err})
			_ = s.Close()
			return false
		}
	}
}

// Handle runs the session's read loop until the connection ends, then
// performs cleanup. Lines are dispatched in arrival order.
func (s *Session) Handle() {
	defer s.teardown()

	for {
		lines, err := s.transport.ReadLines()
		for _, line := range lines {
			s.handleLine(line)
		}

		if err != nil {
			s.log.Debug("read loop ended", logger.Field{Key: "reason", Value: err.Error()})
			return
		}

		select {
		case <-s.closing:
			return
		default:
		}
	}
}

// handleLine processes one normalized inbound line. Any line from an
// authenticated session, the empty one included, counts as activity and
// re-arms the idle timer before dispatch.
func (s *Session) handleLine(line string) {
	if s.state == stateAuthenticated {
		s.armIdleTimer()
	}

	if line == "" {
		return
	}

	cmd := protocol.Parse(line)
	if s.state == stateUnauthenticated {
		s.handleLogin(cmd)
		return
	}

	s.dispatch(cmd)
}

// handleLogin enforces the pre-login contract: nothing but a valid LOGIN gets
// through, and a successful one registers the session, notifies the room, and
// arms the idle timer.
func (s *Session) handleLogin(cmd protocol.Command) {
	if cmd.Kind != protocol.KindLogin {
		s.Send(protocol.ErrLine(protocol.ReasonLoginFirst))
		return
	}

	switch {
	case cmd.Name == "":
		s.Send(protocol.ErrLine(protocol.ReasonUsernameRequired))
	case !protocol.ValidUsername(cmd.Name):
		s.Send(protocol.ErrLine(protocol.ReasonInvalidUsername))
	case s.srv.registry.Add(cmd.Name, s) != nil:
		s.Send(protocol.ErrLine(protocol.ReasonUsernameTaken))
	default:
		s.setUsername(cmd.Name)
		s.state = stateAuthenticated
		s.Send(protocol.ReplyOK)
		s.srv.broadcastInfo(cmd.Name+" connected", s)
		s.armIdleTimer()
		s.log.Info("logged in", logger.Field{Key: "username", Value: cmd.Name})
	}
}

func (s *Session) dispatch(cmd protocol.Command) {
	switch cmd.Kind {
	case protocol.KindBroadcast:
		if cmd.Text == "" {
			s.Send(protocol.ErrLine(protocol.ReasonEmptyMessage))
			return
		}
		s.srv.broadcastMessage(s, cmd.Text)
	case protocol.KindWho:
		for _, name := range s.srv.registry.Usernames() {
			s.Send(protocol.UserLine(name))
		}
	case protocol.KindDirect:
		s.direct(cmd)
	case protocol.KindPing:
		s.Send(protocol.ReplyPong)
	case protocol.KindHistory:
		for _, e := range s.srv.history.Recent() {
			s.Send(protocol.HistLine(e.Sender, e.Text))
		}
	default:
		// a repeated LOGIN lands here as well
		s.Send(protocol.ErrLine(protocol.ReasonUnknownCommand))
	}
}

func (s *Session) direct(cmd protocol.Command) {
	if cmd.Name == "" || cmd.Text == "" {
		s.Send(protocol.ErrLine(protocol.ReasonDMUsage))
		return
	}

	target, ok := s.srv.registry.Get(cmd.Name)
	if !ok {
		s.Send(protocol.ErrLine(protocol.ReasonUserNotFound))
		return
	}

	target.Send(protocol.DMLine(s.Username(), cmd.Text))
	s.Send(protocol.DMSentLine(cmd.Name, cmd.Text))
}

// armIdleTimer replaces any pending idle timer with a fresh one. At most one
// timer is live per session; an expiry that lost the race to a newer arm is
// invalidated by the generation counter.
func (s *Session) armIdleTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.idle != nil {
		s.idle.Stop()
	}

	s.idleGen++
	gen := s.idleGen
	s.idle = time.AfterFunc(s.srv.cfg.IdleTimeout, func() { s.expireIdle(gen) })
}

func (s *Session) expireIdle(gen uint64) {
	s.mu.Lock()
	stale := gen != s.idleGen
	s.mu.Unlock()
	if stale {
		return
	}

	s.log.Info("idle timeout, disconnecting", logger.Field{Key: "username", Value: s.Username()})
	s.Send(protocol.InfoLine("idle-timeout disconnected"))
	_ = s.Close()
}

func (s *Session) stopIdleTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.idle != nil {
		s.idle.Stop()
		s.idle = nil
	}

	// invalidate any expiry already in flight
	s.idleGen++
}

// teardown performs the exactly-once cleanup for a finished session: stop the
// idle timer, leave the registry, notify the room. Duplicate termination
// signals are safe; the registry removal is identity-checked, so a name
// re-registered by a newer session is left alone.
func (s *Session) teardown() {
	s.cleanOnce.Do(func() {
		_ = s.Close()
		s.stopIdleTimer()

		name := s.Username()
		if name == "" {
			s.log.Debug("connection ended before login")
			return
		}

		if s.srv.registry.Remove(name, s) {
			s.srv.broadcastInfo(name+" disconnected", nil)
			s.log.Info("disconnected", logger.Field{Key: "username", Value: name})
		}
	})
}
