package relay

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeSession wires a session to one end of an in-memory pipe and returns the
// peer end for observing its outbound lines.
func pipeSession(t *testing.T, srv *Server, id uint32) (*Session, net.Conn) {
	t.Helper()

	serverEnd, peerEnd := net.Pipe()
	sess := newSession(id, NewTCPTransport(serverEnd, 0), srv)
	go sess.writeLoop()
	t.Cleanup(func() {
		_ = sess.Close()
		_ = peerEnd.Close()
	})

	return sess, peerEnd
}

func readPipeLine(t *testing.T, conn net.Conn, r *bufio.Reader, timeout time.Duration) (string, error) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	return r.ReadString('\n')
}

func TestSessionTeardownIdempotent(t *testing.T) {
	srv := NewServer(Config{IdleTimeout: time.Hour}, nil, nil)

	observer, observerPeer := pipeSession(t, srv, 1)
	observer.setUsername("bob")
	require.NoError(t, srv.registry.Add("bob", observer))

	leaver, _ := pipeSession(t, srv, 2)
	leaver.setUsername("alice")
	require.NoError(t, srv.registry.Add("alice", leaver))

	// two termination signals for the same session
	leaver.teardown()
	leaver.teardown()

	reader := bufio.NewReader(observerPeer)
	line, err := readPipeLine(t, observerPeer, reader, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "INFO alice disconnected\n", line)

	// no second broadcast
	_, err = readPipeLine(t, observerPeer, reader, 200*time.Millisecond)
	assert.Error(t, err)

	_, ok := srv.registry.Get("alice")
	assert.False(t, ok)
}

func TestSessionTeardownPreLogin(t *testing.T) {
	srv := NewServer(Config{IdleTimeout: time.Hour}, nil, nil)

	observer, observerPeer := pipeSession(t, srv, 1)
	observer.setUsername("bob")
	require.NoError(t, srv.registry.Add("bob", observer))

	// a session that never logged in leaves without a trace
	stranger, _ := pipeSession(t, srv, 2)
	stranger.teardown()

	reader := bufio.NewReader(observerPeer)
	_, err := readPipeLine(t, observerPeer, reader, 200*time.Millisecond)
	assert.Error(t, err)
}

func TestSessionSendAfterClose(t *testing.T) {
	srv := NewServer(Config{IdleTimeout: time.Hour}, nil, nil)

	sess, _ := pipeSession(t, srv, 1)
	require.NoError(t, sess.Close())

	// dropped silently, no panic, no block
	sess.Send("MSG ghost hello")
}
