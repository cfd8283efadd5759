package signaling

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startServer runs handle for each accepted websocket connection.
func startServer(t *testing.T, handle func(conn *websocket.Conn)) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestClient_DropsMalformedFrames(t *testing.T) {
	url := startServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte("garbage"))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"payload":{}}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"peer-joined","payload":{}}`))
		conn.ReadMessage()
	})

	client, err := Dial(context.Background(), url, Options{Logger: newTestLogger()})
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer client.Close()

	select {
	case env := <-client.Incoming():
		if env.Type != TypePeerJoined {
			t.Errorf("first delivered envelope = %q, want %q", env.Type, TypePeerJoined)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no envelope delivered")
	}
}

func TestClient_SendAndRemoteClose(t *testing.T) {
	received := make(chan string, 1)
	url := startServer(t, func(conn *websocket.Conn) {
		_, data, err := conn.ReadMessage()
		if err == nil {
			received <- strings.TrimSpace(string(data))
		}
	})

	client, err := Dial(context.Background(), url, Options{Logger: newTestLogger()})
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer client.Close()

	if err := client.Send(MustEnvelope(TypeCreate, nil)); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	select {
	case got := <-received:
		if got != `{"type":"create","payload":{}}` {
			t.Errorf("server received %s", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server received nothing")
	}

	// The handler returns after one message, closing the connection.
	select {
	case _, ok := <-client.Incoming():
		if ok {
			t.Fatal("unexpected envelope")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("incoming channel not closed after remote close")
	}
	if client.Err() == nil {
		t.Error("Err() = nil after remote close, want error")
	}
}

func TestClient_CloseIdempotent(t *testing.T) {
	url := startServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	client, err := Dial(context.Background(), url, Options{Logger: newTestLogger()})
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}

	client.Close()
	client.Close()

	if err := client.Send(MustEnvelope(TypeCreate, nil)); err != ErrClosed {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}

	select {
	case <-client.Incoming():
	case <-time.After(5 * time.Second):
		t.Fatal("incoming channel not closed after Close")
	}
	for range client.Incoming() {
	}
	if err := client.Err(); err != nil {
		t.Errorf("Err() after local Close = %v, want nil", err)
	}
}

func TestDial_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := Dial(ctx, "ws://127.0.0.1:1/ws", Options{}); err == nil {
		t.Fatal("expected dial error")
	}
}
