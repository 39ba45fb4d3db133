package overlay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"satfusion-desktop/internal/footprint"
	"satfusion-desktop/internal/logging"
	"satfusion-desktop/internal/observability"
)

// FootprintsPath serves the latest published footprint overlay.
const FootprintsPath = "/overlay/footprints.geojson"

// Server is the local HTTP server the map frontend loads overlay sources
// from. It also exposes Prometheus metrics.
type Server struct {
	store   *footprint.Store
	metrics *observability.Collector
	log     logging.Logger

	mu      sync.Mutex
	server  *http.Server
	baseURL string
}

// NewServer creates an overlay server backed by store.
func NewServer(store *footprint.Store, metrics *observability.Collector, log logging.Logger) *Server {
	if log == nil {
		log = logging.Noop()
	}
	return &Server{store: store, metrics: metrics, log: log}
}

// URL returns the server's base URL, empty until started.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseURL
}

// FootprintsURL returns the absolute URL of the footprint overlay.
func (s *Server) FootprintsURL() string {
	if u := s.URL(); u != "" {
		return u + FootprintsPath
	}
	return ""
}

// corsMiddleware adds CORS headers to allow requests from Wails frontend
// On macOS/Linux, Wails uses wails://wails origin which requires CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Handler returns the server's routes wrapped in CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+FootprintsPath, s.handleFootprints)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return corsMiddleware(mux)
}

func (s *Server) handleFootprints(w http.ResponseWriter, r *http.Request) {
	data, err := s.store.MarshalLatest()
	if err != nil {
		s.log.Error(r.Context(), "overlay.encode_failed", logging.Err(err))
		http.Error(w, "failed to encode footprints", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(data)
}

// Start listens on a random loopback port and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return nil
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to start overlay server: %w", err)
	}

	port := listener.Addr().(*net.TCPAddr).Port
	s.baseURL = fmt.Sprintf("http://127.0.0.1:%d", port)
	s.server = &http.Server{Handler: s.Handler()}
	s.log.Info(context.Background(), "overlay.started", logging.String("url", s.baseURL))

	srv := s.server
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn(context.Background(), "overlay.stopped", logging.Err(err))
		}
	}()
	return nil
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.baseURL = ""
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
