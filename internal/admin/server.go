package admin

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"catisim/internal/sim"
)

// Server exposes run progress and sweep results over HTTP while a study runs.
type Server struct {
	Sim *sim.Simulator
}

func NewServer(sim *sim.Simulator) *Server {
	return &Server{Sim: sim}
}

func (s *Server) routes() {
	http.HandleFunc("/healthz", s.handleHealthz)
	http.HandleFunc("/status", s.handleStatus)
	http.HandleFunc("/rings", s.handleRings)
	http.HandleFunc("/power", s.handlePower)
	http.Handle("/metrics", promhttp.Handler())
}

func (s *Server) Start(addr string) error {
	s.routes()
	return http.ListenAndServe(addr, nil)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.Sim.Status())
}

func (s *Server) handleRings(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.Sim.Rings())
}

func (s *Server) handlePower(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.Sim.PowerRows())
}
