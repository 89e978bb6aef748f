package relay

import (
	"net"

	"github.com/cyberinferno/chat-relay/protocol"
)

// Transport carries protocol lines for one client connection. The relay
// treats every client as a line stream; TCP and WebSocket adapters implement
// this interface. ReadLines is called from a single goroutine (the session's
// read loop) and WriteLine from a single goroutine (the session's write
// loop), so implementations need not serialize internally.
type Transport interface {
	// ReadLines blocks until inbound data arrives and returns the normalized
	// lines it completed, in arrival order. Lines returned alongside an error
	// are still valid and must be processed before acting on the error.
	ReadLines() ([]string, error)

	// WriteLine sends one protocol line, newline handling included.
	WriteLine(line string) error

	// Close tears down the underlying connection. Safe to call multiple times.
	Close() error

	// RemoteAddr returns the client's remote address for logging.
	RemoteAddr() string
}

// tcpTransport adapts a net.Conn into the line Transport, framing the byte
// stream with protocol.Framer.
type tcpTransport struct {
	conn   net.Conn
	framer *protocol.Framer
	chunk  []byte
}

// NewTCPTransport wraps conn as a line transport. A non-positive maxLineLen
// selects protocol.DefaultMaxLineLen.
func NewTCPTransport(conn net.Conn, maxLineLen int) Transport {
	return &tcpTransport{
		conn:   conn,
		framer: protocol.NewFramer(maxLineLen),
		chunk:  make([]byte, 4096),
	}
}

func (t *tcpTransport) ReadLines() ([]string, error) {
	for {
		n, err := t.conn.Read(t.chunk)
		if n > 0 {
			lines, ferr := t.framer.Push(t.chunk[:n])
			if ferr != nil {
				return lines, ferr
			}
			if len(lines) > 0 || err != nil {
				return lines, err
			}
			// partial line buffered, keep reading
			continue
		}

		if err != nil {
			return nil, err
		}
	}
}

func (t *tcpTransport) WriteLine(line string) error {
	_, err := t.conn.Write([]byte(line + "\n"))
	return err
}

func (t *tcpTransport) Close() error {
	return t.conn.Close()
}

func (t *tcpTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}
