package station

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snapscan/internal"
	"snapscan/internal/scan"
	"snapscan/internal/store"
)

func dial(t *testing.T, srv *httptest.Server) *ws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *ws.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHubScanRoundTrip(t *testing.T) {
	st := store.New(store.NewMemoryKV(), nil)
	require.NoError(t, st.Load())
	require.NoError(t, st.ReplaceList(internal.ContextReceive, []internal.LineItem{
		{ID: "100-AA", Description: "Lampe", Quantity: 3, Weight: 2},
	}))

	var hub *Hub
	engine := scan.NewEngine(st, scan.Options{
		Notifier: scan.NotifierFunc(func(ev internal.ScanEvent) { hub.Notify(ev) }),
	})
	s := New(engine, internal.ContextPick, time.Minute, nil)
	hub = NewHub(s, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	srv := httptest.NewServer(hub)
	defer srv.Close()
	camera := dial(t, srv)

	require.NoError(t, camera.WriteJSON(map[string]any{"token": "100-AA", "context": "receive"}))
	msg := readMessage(t, camera)
	require.Equal(t, "scan", msg.Type)
	require.NotNil(t, msg.Event)
	assert.Equal(t, internal.ContextReceive, msg.Event.Context)
	assert.Equal(t, "100-AA", msg.Event.ItemID)
	assert.Equal(t, scan.OutcomeOK, msg.Event.Outcome)
	assert.Equal(t, 1, msg.Event.Summary.ProcessedQuantity)
	assert.Equal(t, 2.0, msg.Event.Summary.ProcessedWeight)

	// camera de-bounce: the repeat is dropped, the next code gets through
	require.NoError(t, camera.WriteJSON(map[string]any{"token": "100-AA", "context": "receive"}))
	require.NoError(t, camera.WriteJSON(map[string]any{"token": "300-CC", "context": "receive"}))
	msg = readMessage(t, camera)
	require.NotNil(t, msg.Event)
	assert.Equal(t, "300-CC", msg.Event.ItemID)
	assert.Equal(t, scan.OutcomeCreated, msg.Event.Outcome)
	assert.Equal(t, 2, msg.Event.Summary.ProcessedQuantity, "the repeated 100-AA was not counted")
}

func TestHubRejectsBadMessages(t *testing.T) {
	s := New(newFakeScanner(), internal.ContextPick, 0, nil)
	hub := NewHub(s, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	conn := dial(t, srv)

	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte("not json")))
	msg := readMessage(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Error, "bad scan message")

	require.NoError(t, conn.WriteJSON(map[string]any{"token": "1", "context": "storage"}))
	msg = readMessage(t, conn)
	assert.Equal(t, "error", msg.Type)

	require.NoError(t, conn.WriteJSON(map[string]any{"token": " "}))
	msg = readMessage(t, conn)
	assert.Equal(t, "scan message without token", msg.Error)
}

func TestHubBroadcastsToEveryClient(t *testing.T) {
	hub := NewHub(New(newFakeScanner(), internal.ContextPick, 0, nil), nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	a := dial(t, srv)
	b := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	hub.Notify(internal.ScanEvent{ID: "ev-1", Context: internal.ContextPick, Action: scan.ActionUndo, Outcome: scan.OutcomeOK})
	for _, c := range []*ws.Conn{a, b} {
		msg := readMessage(t, c)
		require.NotNil(t, msg.Event)
		assert.Equal(t, "ev-1", msg.Event.ID)
		assert.Equal(t, scan.ActionUndo, msg.Event.Action)
	}

	a.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
}
