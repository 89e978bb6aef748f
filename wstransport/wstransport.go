// Package wstransport bridges WebSocket clients into the relay line
// protocol: each inbound text frame is one command line, each outbound
// protocol line is one text frame. Sessions created here share the relay
// server's registry, so WebSocket and TCP clients chat together.
package wstransport

import (
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/cyberinferno/chat-relay/logger"
	"github.com/cyberinferno/chat-relay/protocol"
	"github.com/cyberinferno/chat-relay/relay"
)

// Endpoint serves the /ws upgrade path and hands upgraded connections to the
// relay server as sessions.
type Endpoint struct {
	server   *relay.Server
	log      logger.Logger
	upgrader websocket.Upgrader
	httpSrv  *http.Server
	listener net.Listener
}

// NewEndpoint builds an Endpoint feeding sessions into srv.
func NewEndpoint(srv *relay.Server, log logger.Logger) *Endpoint {
	if log == nil {
		log = logger.Nop()
	}

	return &Endpoint{
		server: srv,
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the relay has no browser origin policy of its own
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Start binds addr and serves WebSocket upgrades on /ws in a goroutine.
// A bind failure is returned synchronously.
func (e *Endpoint) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		e.log.Error("failed to bind websocket listener",
			logger.Field{Key: "addr", Value: addr},
			logger.Field{Key: "error", Value: err})
		return fmt.Errorf("wstransport: listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", e.handleUpgrade)

	e.listener = ln
	e.httpSrv = &http.Server{Handler: mux}

	e.log.Info("websocket endpoint started", logger.Field{Key: "addr", Value: ln.Addr().String()})

	go func() {
		if serveErr := e.httpSrv.Serve(ln); serveErr != nil && serveErr != http.ErrServerClosed {
			e.log.Error("websocket serve error", logger.Field{Key: "error", Value: serveErr})
		}
	}()

	return nil
}

// Addr returns the bound listener address. Valid only after Start.
func (e *Endpoint) Addr() net.Addr {
	return e.listener.Addr()
}

// Stop closes the HTTP listener. In-flight sessions are torn down by the
// relay server's own shutdown.
func (e *Endpoint) Stop() error {
	if e.httpSrv == nil {
		return nil
	}

	return e.httpSrv.Close()
}

func (e *Endpoint) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		e.log.Warn("websocket upgrade failed",
			logger.Field{Key: "remote", Value: r.RemoteAddr},
			logger.Field{Key: "error", Value: err})
		return
	}

	e.server.StartSession(&wsTransport{conn: conn})
}

// wsTransport adapts a websocket connection to the relay line transport.
type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) ReadLines() ([]string, error) {
	for {
		msgType, data, err := t.conn.ReadMessage()
		if err != nil {
			return nil, err
		}

		if msgType != websocket.TextMessage {
			continue
		}

		return []string{protocol.Normalize(string(data))}, nil
	}
}

func (t *wsTransport) WriteLine(line string) error {
	return t.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}

func (t *wsTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}
