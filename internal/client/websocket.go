// ABOUTME: WebSocket client for the Nu protocol
// ABOUTME: Handles connection, handshake, and routing of control, clock and IR frames
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Resonate-Protocol/nu-go/pkg/protocol"
)

// Config holds client configuration
type Config struct {
	ServerAddr string
	ClientID   string
	Name       string
	Version    int
	Role       string
	Index      int
	Position   *protocol.Position
}

// Client represents a WebSocket client
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.RWMutex
	hello  protocol.ServerHello

	// Message channels
	IRs          chan protocol.IR
	Controls     chan protocol.Control
	TimeSyncResp chan protocol.ServerTime
	Clock        chan protocol.ServerClock
	Positions    chan protocol.Positions
	Errors       chan protocol.ServerError

	// State
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new WebSocket client
func NewClient(config Config) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	if config.Role == "" {
		config.Role = protocol.RolePlayer
	}

	return &Client{
		config:       config,
		IRs:          make(chan protocol.IR, 16),
		Controls:     make(chan protocol.Control, 64),
		TimeSyncResp: make(chan protocol.ServerTime, 10),
		Clock:        make(chan protocol.ServerClock, 1),
		Positions:    make(chan protocol.Positions, 4),
		Errors:       make(chan protocol.ServerError, 4),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Connect establishes WebSocket connection and performs handshake
func (c *Client) Connect() error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: protocol.Path}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()

	return nil
}

// handshake performs the protocol handshake
func (c *Client) handshake() error {
	hello := protocol.ClientHello{
		ClientID: c.config.ClientID,
		Name:     c.config.Name,
		Version:  c.config.Version,
		Role:     c.config.Role,
		Index:    c.config.Index,
		Position: c.config.Position,
	}

	if err := c.sendJSON(protocol.Message{Type: protocol.TypeClientHello, Payload: hello}); err != nil {
		return fmt.Errorf("failed to send client/hello: %w", err)
	}

	// Wait for server/hello (with timeout)
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{})

	var serverMsg protocol.Message
	if err := json.Unmarshal(data, &serverMsg); err != nil {
		return fmt.Errorf("failed to parse server/hello: %w", err)
	}

	payload, _ := json.Marshal(serverMsg.Payload)
	switch serverMsg.Type {
	case protocol.TypeServerHello:
	case protocol.TypeServerError:
		var e protocol.ServerError
		json.Unmarshal(payload, &e)
		return fmt.Errorf("server refused connection: %s", e.Message)
	default:
		return fmt.Errorf("expected server/hello, got %s", serverMsg.Type)
	}

	var sh protocol.ServerHello
	if err := json.Unmarshal(payload, &sh); err != nil {
		return fmt.Errorf("failed to parse server/hello payload: %w", err)
	}

	c.mu.Lock()
	c.hello = sh
	c.mu.Unlock()

	log.Printf("Handshake complete with %s: assigned %s #%d", sh.Name, c.config.Role, sh.Index)
	return nil
}

// Hello returns the server's handshake reply
func (c *Client) Hello() protocol.ServerHello {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hello
}

// sendJSON sends a JSON message
func (c *Client) sendJSON(msg protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return fmt.Errorf("not connected")
	}

	return c.conn.WriteJSON(msg)
}

// readMessages reads and routes incoming messages
func (c *Client) readMessages() {
	defer c.Close()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			log.Printf("Read error: %v", err)
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			c.handleBinaryMessage(data)
		case websocket.TextMessage:
			c.handleJSONMessage(data)
		}
	}
}

// handleBinaryMessage handles impulse response frames
func (c *Client) handleBinaryMessage(data []byte) {
	ir, err := protocol.DecodeIR(data)
	if err != nil {
		log.Printf("Invalid binary message: %v", err)
		return
	}

	select {
	case c.IRs <- ir:
	case <-c.ctx.Done():
	}
}

// handleJSONMessage routes JSON messages
func (c *Client) handleJSONMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Failed to parse JSON message: %v", err)
		return
	}

	payloadBytes, _ := json.Marshal(msg.Payload)

	switch msg.Type {
	case protocol.TypeControl:
		var ctrl protocol.Control
		if err := json.Unmarshal(payloadBytes, &ctrl); err != nil {
			log.Printf("Failed to parse control: %v", err)
			return
		}
		select {
		case c.Controls <- ctrl:
		case <-c.ctx.Done():
		}

	case protocol.TypeServerTime:
		var timeMsg protocol.ServerTime
		json.Unmarshal(payloadBytes, &timeMsg)
		select {
		case c.TimeSyncResp <- timeMsg:
		case <-c.ctx.Done():
		}

	case protocol.TypeServerClock:
		var clock protocol.ServerClock
		json.Unmarshal(payloadBytes, &clock)
		// only the latest broadcast matters
		select {
		case <-c.Clock:
		default:
		}
		select {
		case c.Clock <- clock:
		default:
		}

	case protocol.TypePositions:
		var pos protocol.Positions
		json.Unmarshal(payloadBytes, &pos)
		select {
		case c.Positions <- pos:
		case <-time.After(100 * time.Millisecond):
			log.Printf("Positions channel full, dropping message")
		}

	case protocol.TypeServerError:
		var e protocol.ServerError
		json.Unmarshal(payloadBytes, &e)
		log.Printf("Server error %s: %s", e.Code, e.Message)
		select {
		case c.Errors <- e:
		default:
		}

	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
}

// SendTimeSync sends a client/time message
func (c *Client) SendTimeSync(t1 int64) error {
	return c.sendJSON(protocol.Message{
		Type:    protocol.TypeClientTime,
		Payload: protocol.ClientTime{ClientTransmitted: t1},
	})
}

// SendPosition reports this player's coordinates
func (c *Client) SendPosition(index int, x, y float64) error {
	return c.sendJSON(protocol.Message{
		Type:    protocol.TypePlayerPosition,
		Payload: protocol.PlayerPosition{Index: index, X: x, Y: y},
	})
}

// SendControl sends a module control message (controller role)
func (c *Client) SendControl(module string, args ...interface{}) error {
	return c.sendJSON(protocol.Message{
		Type:    protocol.TypeControl,
		Payload: protocol.Control{Module: module, Args: args},
	})
}

// SendGoodbye sends a client/goodbye message before disconnecting
func (c *Client) SendGoodbye(reason string) error {
	return c.sendJSON(protocol.Message{
		Type:    protocol.TypeClientGoodbye,
		Payload: protocol.ClientGoodbye{Reason: reason},
	})
}

// Done is closed when the connection ends
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		c.conn.Close()
		log.Printf("Connection closed")
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
