package ui

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/zombor/label-scan/internal/imagesource"
	"github.com/zombor/label-scan/internal/workflow"
)

// Server exposes the scan workflow to the web view
type Server struct {
	workflow  *workflow.Workflow
	feed      *imagesource.FeedDevice
	basicAuth BasicAuth
	mux       *http.ServeMux
	hub       *hub

	httpMu sync.Mutex
	http   *http.Server
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with default mux. feed may be nil when the
// camera is disabled.
func NewServer(wf *workflow.Workflow, feed *imagesource.FeedDevice, basicAuth BasicAuth) *Server {
	return NewServerWithMux(wf, feed, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(wf *workflow.Workflow, feed *imagesource.FeedDevice, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		workflow:  wf,
		feed:      feed,
		basicAuth: basicAuth,
		mux:       mux,
		hub:       newHub(),
	}
	wf.Subscribe(s.hub.broadcast)
	s.registerRoutes()
	return s
}

func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	credentials := strings.SplitN(string(decoded), ":", 2)
	if len(credentials) != 2 {
		return false
	}

	return credentials[0] == s.basicAuth.Username && credentials[1] == s.basicAuth.Password
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			setCORSHeaders(w)
			w.Header().Set("WWW-Authenticate", `Basic realm="Label Scan"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// registerRoutes registers all routes on the server's mux.
// More specific patterns win, so order only matters for readability.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /ws", s.requireAuth(s.handleStream))

	s.mux.HandleFunc("GET /api/state", s.requireAuth(s.handleState))
	s.mux.HandleFunc("GET /api/categories", s.requireAuth(s.handleCategories))
	s.mux.HandleFunc("POST /api/dashboard", s.requireAuth(s.handleDashboard))
	s.mux.HandleFunc("POST /api/categories/{id}/scan", s.requireAuth(s.handleSelectCategory))

	// scan view
	s.mux.HandleFunc("POST /api/scan/image", s.requireAuth(s.handlePickImage))
	s.mux.HandleFunc("POST /api/scan/camera/frame", s.requireAuth(s.handleCameraFrame))
	s.mux.HandleFunc("POST /api/scan/camera", s.requireAuth(s.handleStartCamera))
	s.mux.HandleFunc("DELETE /api/scan/camera", s.requireAuth(s.handleStopCamera))
	s.mux.HandleFunc("POST /api/scan/capture", s.requireAuth(s.handleCapture))
	s.mux.HandleFunc("POST /api/scan/submit", s.requireAuth(s.handleSubmit))
	s.mux.HandleFunc("POST /api/scan/dismiss", s.requireAuth(s.handleDismiss))

	// report view
	s.mux.HandleFunc("POST /api/report/scan-another", s.requireAuth(s.handleScanAnother))
	s.mux.HandleFunc("POST /api/report/ask", s.requireAuth(s.handleAsk))

	// history view
	s.mux.HandleFunc("POST /api/history/{id}", s.requireAuth(s.handleViewEntry))
	s.mux.HandleFunc("POST /api/history", s.requireAuth(s.handleOpenHistory))
	s.mux.HandleFunc("DELETE /api/history", s.requireAuth(s.handleClearHistory))

	s.mux.HandleFunc("GET /index.html", s.requireAuth(s.handleIndex))
	s.mux.HandleFunc("GET /{$}", s.requireAuth(s.handleIndex))
}

// Start serves until Shutdown is called
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.corsMiddleware(s.mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpMu.Lock()
	s.http = srv
	s.httpMu.Unlock()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and closes every open stream
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.closeAll()

	s.httpMu.Lock()
	srv := s.http
	s.httpMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.corsMiddleware(s.mux).ServeHTTP(w, r)
}
