package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quickcourt/reservation-core/internal/model"
)

// serverConn returns the server side of a fresh websocket connection.
func serverConn(t *testing.T) *websocket.Conn {
	t.Helper()
	conns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case conn := <-conns:
		t.Cleanup(func() { conn.Close() })
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("websocket upgrade did not complete")
		return nil
	}
}

func TestAvailabilityHub_BroadcastEvictsSlowSubscriber(t *testing.T) {
	d, err := model.ParseDate("2024-06-01")
	require.NoError(t, err)
	key := hubKey(1, d)
	hub := NewAvailabilityHub(nil, zap.NewNop())

	// Neither writer is running, so queues only fill.
	slow := &hubClient{conn: serverConn(t), send: make(chan windowsMsg, 1)}
	slow.send <- windowsMsg{CourtID: 1, Date: d}
	ready := &hubClient{conn: serverConn(t), send: make(chan windowsMsg, 1)}
	hub.subscribers[key] = []*hubClient{slow, ready}

	done := make(chan struct{})
	go func() {
		hub.broadcast(key, windowsMsg{CourtID: 1, Date: d, Windows: []windowView{{Start: "06:00", End: "22:00"}}})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full subscriber")
	}

	assert.Equal(t, 1, hub.Subscribers(1, d))
	got := <-ready.send
	assert.Len(t, got.Windows, 1)

	<-slow.send
	_, open := <-slow.send
	assert.False(t, open, "evicted subscriber's queue is closed")

	// A later unregister of the evicted client must not close send twice.
	assert.NotPanics(t, func() { hub.remove(key, slow) })
	hub.remove(key, ready)
	assert.Zero(t, hub.Subscribers(1, d))
}
