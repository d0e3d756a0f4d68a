// ABOUTME: Main server implementation for the Nu coordinating node
// ABOUTME: Manages WebSocket connections, player indices, time sync and module traffic
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/Resonate-Protocol/nu-go/internal/discovery"
	"github.com/Resonate-Protocol/nu-go/internal/metrics"
	"github.com/Resonate-Protocol/nu-go/pkg/propagation"
	"github.com/Resonate-Protocol/nu-go/pkg/protocol"
	"github.com/Resonate-Protocol/nu-go/pkg/protocol/control"
	nusync "github.com/Resonate-Protocol/nu-go/pkg/sync"
)

const (
	// ProtocolVersion is reported in server/hello
	ProtocolVersion = 1

	// DefaultClockInterval is how often the shared clock is broadcast
	DefaultClockInterval = 100 * time.Millisecond
)

// Config holds server configuration
type Config struct {
	Port           int
	Name           string
	EnableMDNS     bool
	Debug          bool
	UseTUI         bool
	Setup          *Setup
	ClockInterval  time.Duration
	AllowedOrigins []string
}

// Server represents the Nu coordinating server
type Server struct {
	config   Config
	serverID string

	// WebSocket upgrader
	upgrader websocket.Upgrader

	// HTTP server
	httpServer *http.Server
	router     *mux.Router

	// Client management
	clients     map[string]*Client
	players     map[int]*Client
	controllers map[int]*Client
	clientsMu   sync.RWMutex

	clock       *nusync.ServerClock
	registry    *Registry
	coordinator *Coordinator
	metrics     *metrics.Metrics

	// mDNS discovery
	mdnsManager *discovery.Manager

	// TUI
	tui *ServerTUI

	// Control
	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// Client represents a connected client
type Client struct {
	ID    string
	Name  string
	Conn  *websocket.Conn
	Role  string
	Index int

	// Output channel for messages
	sendChan chan interface{}
}

// New creates a new server instance
func New(config Config) (*Server, error) {
	if config.ClockInterval == 0 {
		config.ClockInterval = DefaultClockInterval
	}

	m, err := metrics.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Installations run on a trusted local network
				origin := r.Header.Get("Origin")
				if origin != "" && config.Debug {
					log.Printf("[DEBUG] Accepting WebSocket from origin: %s", origin)
				}
				return true
			},
		},
		clients:     make(map[string]*Client),
		players:     make(map[int]*Client),
		controllers: make(map[int]*Client),
		clock:       nusync.NewServerClock(),
		registry:    NewRegistry(),
		metrics:     m,
		stopChan:    make(chan struct{}),
	}
	s.coordinator = NewCoordinator(s, s.clock, s.registry, m, config.Setup)
	s.router = s.routes()

	return s, nil
}

// Start starts the server and blocks until it stops
func (s *Server) Start() error {
	if s.config.UseTUI {
		s.tui = NewServerTUI()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.tui.Start(s.config.Name, s.config.Port); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()

		// Give TUI time to initialize
		time.Sleep(100 * time.Millisecond)
	}

	log.Printf("Server starting: %s (ID: %s)", s.config.Name, s.serverID)

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			ServerMode:  true,
		})

		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		} else {
			log.Printf("mDNS advertisement started")
		}
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	log.Printf("WebSocket server listening on %s", addr)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		s.clockLoop(gctx)
		return nil
	})

	var tuiQuitChan <-chan struct{}
	if s.tui != nil {
		tuiQuitChan = s.tui.QuitChan()
	}

	select {
	case <-s.stopChan:
		log.Printf("Server shutting down...")
	case <-tuiQuitChan:
		log.Printf("TUI quit requested, shutting down...")
	case <-gctx.Done():
		// the HTTP server failed; Wait reports why
	}

	// Reject new connections from here on
	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	if s.tui != nil {
		s.tui.Stop()
	}

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	cancel()
	s.closeClients()

	err := g.Wait()
	s.wg.Wait()
	log.Printf("Server stopped cleanly")

	return err
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// closeClients hangs up every websocket; hijacked connections outlive Shutdown
func (s *Server) closeClients() {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for _, c := range s.clients {
		c.Conn.Close()
	}
}

// clockLoop broadcasts the shared clock until ctx ends
func (s *Server) clockLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.ClockInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Broadcast("", protocol.Message{
				Type:    protocol.TypeServerClock,
				Payload: protocol.ServerClock{Time: s.clock.Now()},
			})
		case <-ctx.Done():
			return
		}
	}
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("New WebSocket connection from %s", r.RemoteAddr)

	s.handleConnection(conn)
}

// refuse sends a server/error before the connection closes
func refuse(conn *websocket.Conn, code, message string) {
	msg := protocol.Message{
		Type:    protocol.TypeServerError,
		Payload: protocol.ServerError{Code: code, Message: message},
	}
	if data, err := json.Marshal(msg); err == nil {
		conn.WriteMessage(websocket.TextMessage, data)
	}
}

// handleConnection manages a client connection
func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		log.Printf("Rejecting connection during shutdown")
		return
	}
	s.shutdownMu.RUnlock()

	if s.config.Debug {
		log.Printf("[DEBUG] New connection, waiting for handshake")
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		log.Printf("Error reading hello: %v", err)
		return
	}

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		return
	}

	if msg.Type != protocol.TypeClientHello {
		log.Printf("Expected client/hello, got %s", msg.Type)
		return
	}

	var hello protocol.ClientHello
	if err := decodePayload(msg.Payload, &hello); err != nil {
		log.Printf("Error unmarshaling client hello: %v", err)
		return
	}

	if hello.ClientID == "" {
		log.Printf("Client hello missing ClientID")
		return
	}
	if hello.Name == "" {
		log.Printf("Client hello missing Name")
		return
	}
	if hello.Role == "" {
		hello.Role = protocol.RolePlayer
	}
	if hello.Role != protocol.RolePlayer && hello.Role != protocol.RoleController {
		refuse(conn, "unknown_role", fmt.Sprintf("unknown role %q", hello.Role))
		return
	}

	log.Printf("Client hello: %s (ID: %s, Role: %s, Index: %d)", hello.Name, hello.ClientID, hello.Role, hello.Index)

	client := &Client{
		ID:       hello.ClientID,
		Name:     hello.Name,
		Conn:     conn,
		Role:     hello.Role,
		sendChan: make(chan interface{}, 256),
	}

	if code, reason := s.register(client, hello.Index); code != "" {
		log.Printf("Rejecting %s: %s", hello.Name, reason)
		refuse(conn, code, reason)
		return
	}

	defer s.unregister(client)

	serverHello := protocol.ServerHello{
		ServerID: s.serverID,
		Name:     s.config.Name,
		Version:  ProtocolVersion,
		Index:    client.Index,
	}

	if err := s.sendMessage(client, protocol.TypeServerHello, serverHello); err != nil {
		log.Printf("Error sending server hello: %v", err)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.clientWriter(client)
	}()

	if client.Role == protocol.RolePlayer {
		s.enterPlayer(client, hello.Position)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		s.handleClientMessage(client, data)
	}
}

// register assigns an index and records the client. A non-empty code means
// the client was refused.
func (s *Server) register(client *Client, requested int) (code, reason string) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	if existing, exists := s.clients[client.ID]; exists {
		return "duplicate_client_id", fmt.Sprintf("client ID already connected as %s", existing.Name)
	}

	byIndex := s.players
	if client.Role == protocol.RoleController {
		byIndex = s.controllers
		requested = -1
	}

	if requested >= 0 {
		if _, taken := byIndex[requested]; taken {
			return "index_in_use", fmt.Sprintf("%s index %d already connected", client.Role, requested)
		}
		client.Index = requested
	} else {
		client.Index = lowestFree(byIndex)
	}

	byIndex[client.Index] = client
	s.clients[client.ID] = client
	go s.updateTUI()
	return "", ""
}

func (s *Server) unregister(client *Client) {
	s.clientsMu.Lock()
	delete(s.clients, client.ID)
	if client.Role == protocol.RoleController {
		delete(s.controllers, client.Index)
	} else {
		delete(s.players, client.Index)
	}
	close(client.sendChan)
	s.clientsMu.Unlock()

	log.Printf("Client disconnected: %s (%s #%d)", client.Name, client.Role, client.Index)

	if client.Role == protocol.RolePlayer {
		s.registry.Remove(client.Index)
		s.metrics.SetReceivers(s.registry.Len())
		s.broadcastPositions()
	}
	s.updateTUI()
}

// lowestFree returns the smallest index not in use
func lowestFree(byIndex map[int]*Client) int {
	for i := 0; ; i++ {
		if _, taken := byIndex[i]; !taken {
			return i
		}
	}
}

// enterPlayer places a new player and brings its modules up to date
func (s *Server) enterPlayer(client *Client, pos *protocol.Position) {
	if pos != nil {
		s.registry.Set(client.Index, propagation.Point{X: pos.X, Y: pos.Y})
	} else if p, ok := s.config.Setup.Coordinate(client.Index); ok {
		s.registry.Set(client.Index, p)
	}
	s.metrics.SetReceivers(s.registry.Len())
	s.broadcastPositions()

	s.coordinator.EnterPlayer(client.Index)
}

// clientWriter sends messages to the client
func (s *Server) clientWriter(client *Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	const writeDeadline = 10 * time.Second

	for {
		select {
		case msg, ok := <-client.sendChan:
			if !ok {
				return
			}

			switch v := msg.(type) {
			case []byte:
				client.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
				if err := client.Conn.WriteMessage(websocket.BinaryMessage, v); err != nil {
					log.Printf("Error writing binary message: %v", err)
					return
				}
			default:
				data, err := json.Marshal(v)
				if err != nil {
					log.Printf("Error marshaling message: %v", err)
					continue
				}
				client.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
				if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
					log.Printf("Error writing text message: %v", err)
					return
				}
			}

		case <-ticker.C:
			if err := client.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}

// handleClientMessage processes messages from clients
func (s *Server) handleClientMessage(client *Client, data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.metrics.Report(metrics.KindBadMessage, fmt.Errorf("message from %s: %w", client.Name, err))
		return
	}

	switch msg.Type {
	case protocol.TypeClientTime:
		s.handleTimeSync(client, msg.Payload)
	case protocol.TypePlayerPosition:
		s.handlePosition(client, msg.Payload)
	case protocol.TypeControl:
		s.handleControl(client, msg.Payload)
	case protocol.TypeClientGoodbye:
		var bye protocol.ClientGoodbye
		decodePayload(msg.Payload, &bye)
		log.Printf("Client %s leaving: %s", client.Name, bye.Reason)
	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
}

// handleTimeSync responds to time synchronization requests
func (s *Server) handleTimeSync(client *Client, payload interface{}) {
	// Capture receive time as early as possible
	serverRecv := s.clock.Micros()

	var clientTime protocol.ClientTime
	if err := decodePayload(payload, &clientTime); err != nil {
		log.Printf("Error unmarshaling client time: %v", err)
		return
	}

	serverSend := s.clock.Micros()

	if s.config.Debug {
		log.Printf("[DEBUG] Time sync for %s: t1=%d, t2=%d, t3=%d",
			client.Name, clientTime.ClientTransmitted, serverRecv, serverSend)
	}

	response := protocol.ServerTime{
		ClientTransmitted: clientTime.ClientTransmitted,
		ServerReceived:    serverRecv,
		ServerTransmitted: serverSend,
	}

	if err := s.sendMessage(client, protocol.TypeServerTime, response); err != nil {
		log.Printf("Error sending server time: %v", err)
	}
}

// handlePosition moves a player
func (s *Server) handlePosition(client *Client, payload interface{}) {
	if client.Role != protocol.RolePlayer {
		return
	}

	var pos protocol.PlayerPosition
	if err := decodePayload(payload, &pos); err != nil {
		s.metrics.Report(metrics.KindBadMessage, fmt.Errorf("position from %s: %w", client.Name, err))
		return
	}

	s.registry.Set(client.Index, propagation.Point{X: pos.X, Y: pos.Y})
	s.metrics.SetReceivers(s.registry.Len())
	log.Printf("Player #%d at (%.2f, %.2f)", client.Index, pos.X, pos.Y)
	s.broadcastPositions()
	s.updateTUI()
}

// handleControl runs a controller's message on the server modules
func (s *Server) handleControl(client *Client, payload interface{}) {
	var ctrl protocol.Control
	if err := decodePayload(payload, &ctrl); err != nil {
		s.metrics.Report(metrics.KindBadMessage, fmt.Errorf("control from %s: %w", client.Name, err))
		return
	}

	if client.Role != protocol.RoleController {
		log.Printf("Ignoring control from player %s", client.Name)
		return
	}

	if err := s.HandleControl(ctrl); err != nil {
		s.sendMessage(client, protocol.TypeServerError, protocol.ServerError{Code: errorCode(err), Message: err.Error()})
	}
}

// HandleControl runs ctrl on the server modules and reports failures
func (s *Server) HandleControl(ctrl protocol.Control) error {
	err := s.coordinator.Handle(ctrl)
	if err != nil {
		s.metrics.Report(errorCode(err), err)
	}
	return err
}

func errorCode(err error) string {
	if errors.Is(err, control.ErrUnknownName) {
		return metrics.KindUnknownControl
	}
	return metrics.KindBadMessage
}

func (s *Server) broadcastPositions() {
	s.Broadcast(protocol.RoleController, protocol.Message{
		Type:    protocol.TypePositions,
		Payload: s.registry.Positions(),
	})
}

// Broadcast sends msg to every client of role; an empty role means everyone
func (s *Server) Broadcast(role string, msg protocol.Message) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, c := range s.clients {
		if role != "" && c.Role != role {
			continue
		}
		select {
		case c.sendChan <- msg:
		default:
			log.Printf("Send buffer full for %s, dropping %s", c.Name, msg.Type)
		}
	}
}

// Send sends msg to the client of role with the given index
func (s *Server) Send(role string, index int, msg protocol.Message) error {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	byIndex := s.players
	if role == protocol.RoleController {
		byIndex = s.controllers
	}
	c, ok := byIndex[index]
	if !ok {
		return fmt.Errorf("no %s with index %d", role, index)
	}

	select {
	case c.sendChan <- msg:
		return nil
	default:
		return fmt.Errorf("client send buffer full")
	}
}

// SendBinary sends a binary frame to player index
func (s *Server) SendBinary(index int, frame []byte) error {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	c, ok := s.players[index]
	if !ok {
		return fmt.Errorf("no player with index %d", index)
	}

	select {
	case c.sendChan <- frame:
		return nil
	default:
		return fmt.Errorf("client send buffer full")
	}
}

// sendMessage sends a JSON message to a client
func (s *Server) sendMessage(client *Client, msgType string, payload interface{}) error {
	msg := protocol.Message{
		Type:    msgType,
		Payload: payload,
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	select {
	case client.sendChan <- msg:
		return nil
	default:
		return fmt.Errorf("client send buffer full")
	}
}

// sortedIndices lists the indices of byIndex in order
func sortedIndices(byIndex map[int]*Client) []int {
	out := make([]int, 0, len(byIndex))
	for i := range byIndex {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// decodePayload re-decodes a generic JSON payload into v
func decodePayload(payload interface{}, v interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
