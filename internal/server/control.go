// ABOUTME: HTTP routes of the coordinating server
// ABOUTME: WebSocket endpoint, control API for sequencers, positions and metrics
package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/Resonate-Protocol/nu-go/pkg/protocol"
)

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc(protocol.Path, s.handleWebSocket)
	r.HandleFunc("/control", s.handleControlHTTP).Methods(http.MethodPost)
	r.HandleFunc("/player", s.handlePlayerHTTP).Methods(http.MethodPost)
	r.HandleFunc("/positions", s.handlePositionsHTTP).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	return r
}

// Handler returns the server's HTTP handler with CORS applied
func (s *Server) Handler() http.Handler {
	origins := s.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}).Handler(s.router)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// handleControlHTTP runs a control message on the server modules
func (s *Server) handleControlHTTP(w http.ResponseWriter, r *http.Request) {
	var ctrl protocol.Control
	if err := json.NewDecoder(r.Body).Decode(&ctrl); err != nil {
		writeJSON(w, http.StatusBadRequest, protocol.ServerError{Code: "bad_request", Message: err.Error()})
		return
	}

	if err := s.HandleControl(ctrl); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, protocol.ServerError{Code: errorCode(err), Message: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePlayerHTTP forwards a control message to every player untouched
func (s *Server) handlePlayerHTTP(w http.ResponseWriter, r *http.Request) {
	var ctrl protocol.Control
	if err := json.NewDecoder(r.Body).Decode(&ctrl); err != nil {
		writeJSON(w, http.StatusBadRequest, protocol.ServerError{Code: "bad_request", Message: err.Error()})
		return
	}
	if ctrl.Module == "" || len(ctrl.Args) == 0 {
		writeJSON(w, http.StatusBadRequest, protocol.ServerError{Code: "bad_request", Message: "module and args are required"})
		return
	}

	s.coordinator.Forward(ctrl)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePositionsHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Positions())
}
