// ABOUTME: Nu wire protocol message type definitions
// ABOUTME: Defines the JSON envelope and payload structs exchanged with the server
package protocol

// Path is the WebSocket endpoint served by nu-server
const Path = "/nu"

// Message types carried in the JSON envelope
const (
	TypeClientHello    = "client/hello"
	TypeServerHello    = "server/hello"
	TypeClientTime     = "client/time"
	TypeServerTime     = "server/time"
	TypeClientGoodbye  = "client/goodbye"
	TypePlayerPosition = "player/position"
	TypePositions      = "server/positions"
	TypeControl        = "control"
	TypeServerClock    = "server/clock"
	TypeServerError    = "server/error"
)

// Client roles
const (
	RolePlayer     = "player"
	RoleController = "controller"
)

// Message is the top-level wrapper for all protocol messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Position is a receiver location in installation coordinates
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ClientHello is sent by clients to initiate the handshake
type ClientHello struct {
	ClientID string    `json:"client_id"`
	Name     string    `json:"name"`
	Version  int       `json:"version"`
	Role     string    `json:"role"`  // "player" or "controller"
	Index    int       `json:"index"` // requested player index, -1 = any
	Position *Position `json:"position,omitempty"`
}

// ServerHello is the server's response to client/hello
type ServerHello struct {
	ServerID string `json:"server_id"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
	Index    int    `json:"index"` // assigned player or controller index
}

// ClientGoodbye is sent before graceful disconnect
type ClientGoodbye struct {
	Reason string `json:"reason"` // "shutdown", "restart", "user_request"
}

// ClientTime is sent for clock synchronization
type ClientTime struct {
	ClientTransmitted int64 `json:"client_transmitted"` // Client timestamp in microseconds
}

// ServerTime is the response to client/time
type ServerTime struct {
	ClientTransmitted int64 `json:"client_transmitted"` // Echoed client timestamp
	ServerReceived    int64 `json:"server_received"`    // Server receive timestamp
	ServerTransmitted int64 `json:"server_transmitted"` // Server send timestamp
}

// PlayerPosition reports where a player stands
type PlayerPosition struct {
	Index int     `json:"index"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// Positions lists every known player position
type Positions struct {
	Players []PlayerPosition `json:"players"`
}

// Control routes a module message: args[0] names a param or command
type Control struct {
	Module string        `json:"module"`
	Args   []interface{} `json:"args"`
}

// ServerClock is the periodic shared-time broadcast
type ServerClock struct {
	Time float64 `json:"time"` // shared seconds
}

// ServerError reports a request the server rejected
type ServerError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Module names
const (
	ModuleMain   = "nuMain"
	ModuleGrain  = "nuGrain"
	ModulePath   = "nuPath"
	ModuleGroups = "nuGroups"
)
