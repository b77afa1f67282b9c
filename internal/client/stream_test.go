package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://localhost:8000", "ws://localhost:8000/ws"},
		{"https://athena.example.com/", "wss://athena.example.com/ws"},
		{"https://athena.example.com/backend", "wss://athena.example.com/backend/ws"},
	}
	for _, tt := range tests {
		got, err := StreamURL(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := StreamURL("ftp://example.com")
	require.Error(t, err)
}

func TestDialProgress(t *testing.T) {
	upgrader := websocket.Upgrader{}
	pong := make(chan map[string]any, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.WriteJSON(map[string]any{"type": "connected", "data": map[string]any{"message": "hello"}})
		_ = conn.WriteJSON(map[string]any{"type": "ping"})

		var reply map[string]any
		if err := conn.ReadJSON(&reply); err == nil {
			pong <- reply
		}

		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		_ = conn.WriteJSON(map[string]any{
			"type": "progress",
			"data": map[string]any{
				"current_step":        2,
				"total_steps":         5,
				"progress_percentage": 40.0,
				"stage":               "evidence_gathering",
				"description":         "Searching sources",
			},
		})
		_ = conn.WriteJSON(map[string]any{
			"type": "error",
			"data": map[string]any{"message": "search backend slow", "error_type": "warning"},
		})
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := DialProgress(ctx, srv.URL)
	require.NoError(t, err)
	defer stream.Close()

	var events []string
	for ev := range stream.Events() {
		events = append(events, ev.Type)
		switch ev.Type {
		case "progress":
			assert.Equal(t, "evidence_gathering", ev.Stage)
			assert.Equal(t, "Searching sources", ev.Message)
			assert.InDelta(t, 40.0, ev.Percentage, 0.001)
		case "error":
			assert.Equal(t, "search backend slow", ev.Message)
		}
	}

	assert.Equal(t, []string{"progress", "error"}, events)

	select {
	case reply := <-pong:
		assert.Equal(t, "pong", reply["type"])
	default:
		t.Fatal("server did not receive pong")
	}
}

func TestDialProgressClosesOnContextCancel(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := DialProgress(ctx, srv.URL)
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-stream.Events():
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("events channel not closed after cancel")
	}
}

func TestDialProgressRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := DialProgress(context.Background(), srv.URL)
	require.Error(t, err)
}
