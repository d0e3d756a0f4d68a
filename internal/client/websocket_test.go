// ABOUTME: Tests for WebSocket client implementation
// ABOUTME: Runs the handshake and message routing against an in-process server
package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Resonate-Protocol/nu-go/pkg/protocol"
)

func TestNewClient(t *testing.T) {
	client := NewClient(Config{ServerAddr: "localhost:8927", ClientID: "test-client", Name: "Test Player"})
	if client == nil {
		t.Fatal("expected client to be created")
	}
	if client.config.Role != protocol.RolePlayer {
		t.Errorf("expected default role player, got %s", client.config.Role)
	}
	if client.IsConnected() {
		t.Error("expected new client to be disconnected")
	}
}

// fakeServer accepts one connection, answers the hello, then runs script
func fakeServer(t *testing.T, script func(conn *websocket.Conn, hello protocol.ClientHello)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != protocol.Path {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var msg protocol.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		payload, _ := json.Marshal(msg.Payload)
		var hello protocol.ClientHello
		json.Unmarshal(payload, &hello)

		conn.WriteJSON(protocol.Message{
			Type:    protocol.TypeServerHello,
			Payload: protocol.ServerHello{ServerID: "s1", Name: "nu", Version: 1, Index: 5},
		})
		script(conn, hello)
	}))
}

func TestConnectAndRoute(t *testing.T) {
	received := make(chan protocol.ClientHello, 1)
	srv := fakeServer(t, func(conn *websocket.Conn, hello protocol.ClientHello) {
		received <- hello
		conn.WriteJSON(protocol.Message{
			Type:    protocol.TypeControl,
			Payload: protocol.Control{Module: protocol.ModuleGrain, Args: []interface{}{"gain", 0.5}},
		})
		conn.WriteMessage(websocket.BinaryMessage, protocol.EncodeIR(protocol.IR{
			PathID: 3,
			Taps:   []protocol.IRTap{{Time: 0.5, Gain: 1}},
		}))
		conn.WriteJSON(protocol.Message{
			Type:    protocol.TypeServerClock,
			Payload: protocol.ServerClock{Time: 12.5},
		})
		// keep the connection open until the client hangs up
		conn.ReadMessage()
	})
	defer srv.Close()

	c := NewClient(Config{
		ServerAddr: strings.TrimPrefix(srv.URL, "http://"),
		ClientID:   "c1",
		Index:      -1,
		Position:   &protocol.Position{X: 1, Y: 2},
	})
	if err := c.Connect(); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer c.Close()

	hello := <-received
	if hello.Role != protocol.RolePlayer || hello.Position == nil || hello.Position.Y != 2 {
		t.Errorf("unexpected hello %+v", hello)
	}
	if c.Hello().Index != 5 {
		t.Errorf("expected assigned index 5, got %d", c.Hello().Index)
	}

	select {
	case ctrl := <-c.Controls:
		if ctrl.Module != protocol.ModuleGrain || len(ctrl.Args) != 2 {
			t.Errorf("unexpected control %+v", ctrl)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no control received")
	}

	select {
	case ir := <-c.IRs:
		if ir.PathID != 3 || len(ir.Taps) != 1 || ir.Taps[0].Time != 0.5 {
			t.Errorf("unexpected IR %+v", ir)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no IR received")
	}

	select {
	case clock := <-c.Clock:
		if clock.Time != 12.5 {
			t.Errorf("expected clock 12.5, got %v", clock.Time)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no clock received")
	}
}

func TestConnectRefused(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.ReadMessage()
		conn.WriteJSON(protocol.Message{
			Type:    protocol.TypeServerError,
			Payload: protocol.ServerError{Code: "index_taken", Message: "index 2 in use"},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{ServerAddr: strings.TrimPrefix(srv.URL, "http://")})
	err := c.Connect()
	if err == nil || !strings.Contains(err.Error(), "index 2 in use") {
		t.Errorf("expected refusal error, got %v", err)
	}
	if c.IsConnected() {
		t.Error("expected client to be closed after refusal")
	}
}
