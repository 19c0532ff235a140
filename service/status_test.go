package service

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func dialStatus(t *testing.T, srv *StatusServer) (*websocket.Conn, func()) {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	return conn, func() {
		conn.Close()
		ts.Close()
	}
}

func TestStatusServerBroadcastsToConnectedClients(t *testing.T) {
	srv := NewStatusServer(nil)
	conn, cleanup := dialStatus(t, srv)
	defer cleanup()

	// Give the server goroutine a moment to register the connection.
	time.Sleep(20 * time.Millisecond)

	srv.Broadcast(RunStatus{SiteID: "res-1", Period: 3, TargetLitres: 1000})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got RunStatus
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, "res-1", got.SiteID)
	require.Equal(t, 3, got.Period)
	require.Equal(t, 1000.0, got.TargetLitres)
}

func TestStatusServerDropsDisconnectedClients(t *testing.T) {
	srv := NewStatusServer(nil)
	conn, cleanup := dialStatus(t, srv)

	time.Sleep(20 * time.Millisecond)
	conn.Close()
	cleanup()
	time.Sleep(20 * time.Millisecond)

	srv.mu.Lock()
	n := len(srv.clients)
	srv.mu.Unlock()
	require.Equal(t, 0, n)
}

func TestStatusServerWithNoClientsDoesNotPanic(t *testing.T) {
	srv := NewStatusServer(nil)
	require.NotPanics(t, func() {
		srv.Broadcast(RunStatus{SiteID: "res-1"})
	})
}
