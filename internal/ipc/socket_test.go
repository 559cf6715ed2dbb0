package ipc_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/distio/internal/ipc"
)

func dialSocketPair(t *testing.T) (client, server *ipc.SocketConn) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	serverReady := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverReady <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	var serverConn *websocket.Conn
	select {
	case serverConn = <-serverReady:
	case <-time.After(time.Second):
		t.Fatal("server never accepted the connection")
	}

	return ipc.NewSocketConn(clientConn), ipc.NewSocketConn(serverConn)
}

func TestSocketConnRoundtrip(t *testing.T) {
	client, server := dialSocketPair(t)
	defer client.Close()
	defer server.Close()

	require.NoError(t, client.WriteFrame(map[string]any{"hello": "world"}))

	var got map[string]any
	require.NoError(t, server.ReadFrame(&got))
	assert.Equal(t, "world", got["hello"])
}

func TestSocketConnWriteAfterCloseFails(t *testing.T) {
	client, server := dialSocketPair(t)
	defer server.Close()

	require.NoError(t, client.Close())
	err := client.WriteFrame(map[string]any{"a": 1})
	assert.ErrorIs(t, err, ipc.ErrClosed)
}

func TestSocketConnUnderlyingExposesRawConn(t *testing.T) {
	client, server := dialSocketPair(t)
	defer client.Close()
	defer server.Close()

	assert.NotNil(t, client.Underlying())
}
