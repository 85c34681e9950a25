package httpmon

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/quietgrid/gridopt/internal/action"
	"github.com/quietgrid/gridopt/internal/coordinator"
)

type healthResponse struct {
	Healthy   bool      `json:"healthy"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, healthResponse{Healthy: true, Timestamp: time.Now()})
}

type progressResponse struct {
	coordinator.Progress
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	s.metricsMu.Lock()
	p := s.latest
	s.metricsMu.Unlock()
	writeJSON(w, progressResponse{Progress: p, Timestamp: time.Now()})
}

type bestResponse struct {
	HasBest bool                    `json:"has_best"`
	Metrics interface{}             `json:"metrics,omitempty"`
	Actions map[int][]action.Action `json:"actions,omitempty"`
}

func (s *Server) handleBest(w http.ResponseWriter, r *http.Request) {
	best := s.coord.BestMetrics()
	if best == nil {
		writeJSON(w, bestResponse{HasBest: false})
		return
	}
	writeJSON(w, bestResponse{HasBest: true, Metrics: best, Actions: s.coord.BestActions()})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	writeJSON(w, map[string]string{"error": "not found"})
}

// handleProgressWS upgrades to a WebSocket and streams every subsequent
// Progress snapshot to this one client until it disconnects.
func (s *Server) handleProgressWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("httpmon: websocket upgrade failed")
		return
	}

	s.metricsMu.Lock()
	s.wsClients[conn] = struct{}{}
	s.metricsMu.Unlock()

	// Drain inbound control/close frames on this goroutine so the
	// connection is cleaned up as soon as the client disconnects.
	go func() {
		defer s.removeClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.metricsMu.Lock()
	delete(s.wsClients, conn)
	s.metricsMu.Unlock()
	conn.Close()
}

// onProgress is registered with the coordinator and fans each snapshot out
// to the Prometheus gauges and every connected WebSocket client.
func (s *Server) onProgress(p coordinator.Progress) {
	s.metricsMu.Lock()
	s.latest = p
	clients := make([]*websocket.Conn, 0, len(s.wsClients))
	for c := range s.wsClients {
		clients = append(clients, c)
	}
	s.metricsMu.Unlock()

	s.iterationsGauge.Set(float64(p.Completed))
	s.elapsedGauge.Set(p.ElapsedSecs)
	s.stagnationGauge.Set(float64(p.IterationsStagnant))
	if p.HasBest {
		s.bestScoreGauge.Set(p.BestScore)
	}

	for _, c := range clients {
		if err := c.WriteJSON(p); err != nil {
			s.removeClient(c)
		}
	}
}
