package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/codis-weather-etl/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RunStatus is what the server needs from a running fetch job.
type RunStatus interface {
	sharedobs.ReadinessChecker
	Outcomes() []domain.StationOutcome
}

// Server exposes probes, metrics and per-station progress while a job runs.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer wires /healthz, /readyz, /metrics and /stations. /readyz turns
// healthy once the job has finished its first station.
func NewServer(addr string, status RunStatus, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(status))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /stations", handleStations(status, logger))

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
	}
}

// Start listens until Shutdown; it then returns http.ErrServerClosed.
func (s *Server) Start() error {
	s.logger.Info("status server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains open connections until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type stationsResponse struct {
	Finished int                     `json:"finished"`
	Failed   int                     `json:"failed"`
	Stations []domain.StationOutcome `json:"stations"`
}

func handleStations(status RunStatus, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := stationsResponse{Stations: status.Outcomes()}
		if resp.Stations == nil {
			resp.Stations = []domain.StationOutcome{}
		}
		resp.Finished = len(resp.Stations)
		for _, o := range resp.Stations {
			if o.Failed() {
				resp.Failed++
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Debug("write stations response", "error", err)
		}
	}
}
