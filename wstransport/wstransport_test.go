package wstransport_test

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/chat-relay/client"
	"github.com/cyberinferno/chat-relay/logger"
	"github.com/cyberinferno/chat-relay/relay"
	"github.com/cyberinferno/chat-relay/wstransport"
)

func startRelay(t *testing.T) (*relay.Server, *wstransport.Endpoint) {
	t.Helper()

	srv := relay.NewServer(relay.Config{
		Addr:        "127.0.0.1:0",
		IdleTimeout: time.Minute,
	}, nil, logger.Nop())
	require.NoError(t, srv.Start())

	ep := wstransport.NewEndpoint(srv, logger.Nop())
	require.NoError(t, ep.Start("127.0.0.1:0"))

	t.Cleanup(func() {
		_ = ep.Stop()
		srv.Stop()
	})

	return srv, ep
}

func dialWS(t *testing.T, ep *wstransport.Endpoint) *websocket.Conn {
	t.Helper()

	url := "ws://" + ep.Addr().String() + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, line string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(line)))
}

func readFrame(t *testing.T, conn *websocket.Conn) string {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	return string(data)
}

func TestWebSocketLogin(t *testing.T) {
	_, ep := startRelay(t)

	conn := dialWS(t, ep)
	sendFrame(t, conn, "LOGIN wanda")
	assert.Equal(t, "OK", readFrame(t, conn))

	sendFrame(t, conn, "PING")
	assert.Equal(t, "PONG", readFrame(t, conn))
}

func TestWebSocketFrameNormalization(t *testing.T) {
	_, ep := startRelay(t)

	conn := dialWS(t, ep)
	sendFrame(t, conn, "  LOGIN   wanda  ")
	assert.Equal(t, "OK", readFrame(t, conn))
}

func TestCrossTransportChat(t *testing.T) {
	srv, ep := startRelay(t)

	tcpCfg := client.DefaultConfig(srv.Addr().String())
	tcpCfg.ReadTimeout = 2 * time.Second
	alice, err := client.Dial(tcpCfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = alice.Close() })

	reply, err := alice.Login("alice")
	require.NoError(t, err)
	require.Equal(t, "OK", reply)

	wanda := dialWS(t, ep)
	sendFrame(t, wanda, "LOGIN wanda")
	require.Equal(t, "OK", readFrame(t, wanda))

	// both directions across transports
	line, err := alice.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "INFO wanda connected", line)

	require.NoError(t, alice.Send("MSG hello ws"))
	assert.Equal(t, "MSG alice hello ws", readFrame(t, wanda))

	sendFrame(t, wanda, "MSG hello tcp")
	line, err = alice.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "MSG wanda hello tcp", line)

	// direct messages cross transports too
	sendFrame(t, wanda, "DM alice psst")
	assert.Equal(t, "DM-SENT alice psst", readFrame(t, wanda))
	line, err = alice.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "DM wanda psst", line)

	// WHO sees both
	sendFrame(t, wanda, "WHO")
	assert.Equal(t, "USER alice", readFrame(t, wanda))
	assert.Equal(t, "USER wanda", readFrame(t, wanda))
}

func TestWebSocketDisconnectNotice(t *testing.T) {
	srv, ep := startRelay(t)

	tcpCfg := client.DefaultConfig(srv.Addr().String())
	tcpCfg.ReadTimeout = 2 * time.Second
	alice, err := client.Dial(tcpCfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = alice.Close() })

	reply, err := alice.Login("alice")
	require.NoError(t, err)
	require.Equal(t, "OK", reply)

	wanda := dialWS(t, ep)
	sendFrame(t, wanda, "LOGIN wanda")
	require.Equal(t, "OK", readFrame(t, wanda))

	line, err := alice.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "INFO wanda connected", line)

	require.NoError(t, wanda.Close())

	line, err = alice.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "INFO wanda disconnected", line)
}
