// Package server exposes the automation tool surface over local HTTP: tool
// invocation, workflow submission with live progress streaming, and
// recorder control with a live semantic-event stream.
package server

import (
	"context"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/tribhuwan-kumar/terminator-sub004/internal/recorder"
	"github.com/tribhuwan-kumar/terminator-sub004/internal/tools"
	"github.com/tribhuwan-kumar/terminator-sub004/internal/uia"
	"github.com/tribhuwan-kumar/terminator-sub004/internal/workflow"
)

// Config holds server configuration.
type Config struct {
	Addr string // listen address, e.g. "127.0.0.1:9375"

	Engine   uia.Engine
	Registry *tools.Registry
	// StateDir is where workflow resume state persists.
	StateDir string
	// SimSource, when set, is attached to every recorder the server starts;
	// the simulated CLI mode and tests inject events through it.
	SimSource recorder.RawSource
}

// Server is the HTTP server for driving automation tools, workflows, and
// the recorder.
type Server struct {
	config  Config
	runs    *RunRegistry
	baseCtx context.Context
	cancel  context.CancelFunc
	httpSrv *http.Server
	logger  *log.Logger

	recMu sync.Mutex
	rec   *recorder.Recorder
}

// New creates a new Server with the given config.
func New(cfg Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:  cfg,
		runs:    NewRunRegistry(),
		baseCtx: ctx,
		cancel:  cancel,
		logger:  log.New(os.Stderr, "[terminator-server] ", log.LstdFlags),
	}

	mux := http.NewServeMux()

	// Go 1.22+ method+pattern routing.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /tools", s.handleListTools)
	mux.HandleFunc("POST /tools/{name}", s.handleCallTool)
	mux.HandleFunc("POST /workflows", s.handleSubmitWorkflow)
	mux.HandleFunc("GET /workflows/{id}", s.handleGetWorkflow)
	mux.HandleFunc("GET /workflows/{id}/events", s.handleWorkflowEvents)
	mux.HandleFunc("POST /workflows/{id}/cancel", s.handleCancelWorkflow)
	mux.HandleFunc("POST /recorder/start", s.handleRecorderStart)
	mux.HandleFunc("POST /recorder/stop", s.handleRecorderStop)
	mux.HandleFunc("GET /recorder/events", s.handleRecorderEvents)

	s.httpSrv = &http.Server{
		Handler:      csrfProtect(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE requires no write timeout
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	return s
}

// ListenAndServe starts the server and blocks until shutdown.
func (s *Server) ListenAndServe() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		s.logger.Printf("received %s, shutting down...", sig)
		s.Shutdown()
	}()

	s.logger.Printf("listening on %s", s.config.Addr)
	s.httpSrv.Addr = s.config.Addr
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Serve runs the server on an existing listener; tests use it with a
// 127.0.0.1:0 listener.
func (s *Server) Serve(ln net.Listener) error {
	err := s.httpSrv.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// csrfProtect rejects cross-origin POST requests. Browsers automatically set
// the Origin header on cross-origin requests, so checking it blocks CSRF from
// malicious web pages while allowing CLI/programmatic callers (which either
// omit Origin or set it to match the server).
func csrfProtect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			origin := r.Header.Get("Origin")
			if origin != "" {
				u, err := url.Parse(origin)
				if err != nil {
					http.Error(w, `{"error":"invalid Origin header"}`, http.StatusForbidden)
					return
				}
				// Allow only localhost-family origins. This blocks browser-based
				// CSRF from remote pages while allowing local web UIs.
				host := u.Hostname()
				if host != "localhost" && host != "127.0.0.1" && host != "::1" {
					http.Error(w, `{"error":"cross-origin request blocked"}`, http.StatusForbidden)
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown gracefully stops the server, cancels running workflows, and
// stops any active recorder.
func (s *Server) Shutdown() {
	s.runs.CancelAll("server shutting down")

	s.recMu.Lock()
	if s.rec != nil {
		if err := s.rec.Stop(); err != nil {
			s.logger.Printf("stop recorder: %v", err)
		}
		s.rec = nil
	}
	s.recMu.Unlock()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	_ = s.httpSrv.Shutdown(shutdownCtx)

	s.cancel()
}

func (s *Server) newExecutor(progress func(map[string]any)) *workflow.Executor {
	return &workflow.Executor{
		Tools:    s.config.Registry,
		StateDir: s.config.StateDir,
		Progress: progress,
	}
}
