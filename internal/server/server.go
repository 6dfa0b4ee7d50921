// Package server exposes the Resonance engine over HTTP and streams engine
// events to websocket clients.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/scrypster/resonance/internal/engine"
	"github.com/scrypster/resonance/internal/scheduler"
)

// Options configures a Server.
type Options struct {
	Version string

	// Scheduler is reported by the health endpoint when set.
	Scheduler *scheduler.DecayScheduler

	// RateLimit is the sustained request rate for /api routes. Zero disables limiting.
	RateLimit float64
	RateBurst int

	// OriginPatterns lists extra websocket origin host patterns (e.g. "localhost:*").
	OriginPatterns []string
}

// Server is the Resonance HTTP API server.
type Server struct {
	engine    *engine.Engine
	scheduler *scheduler.DecayScheduler
	hub       *EventHub
	router    chi.Router
	version   string
	started   time.Time
	limiter   *RateLimiter
}

// New creates a Server over eng and wires the engine callbacks into a new
// event hub. Call Hub().Run in a goroutine before serving websocket clients.
func New(eng *engine.Engine, opts Options) *Server {
	s := &Server{
		engine:    eng,
		scheduler: opts.Scheduler,
		hub:       NewEventHub(opts.OriginPatterns...),
		version:   opts.Version,
		started:   time.Now(),
	}
	if opts.RateLimit > 0 {
		s.limiter = NewRateLimiter(opts.RateLimit, opts.RateBurst)
	}
	s.hub.Attach(eng)
	s.routes()
	return s
}

// Hub returns the server's event hub.
func (s *Server) Hub() *EventHub {
	return s.hub
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(securityHeadersMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/events", s.hub.ServeHTTP)

		r.Group(func(r chi.Router) {
			if s.limiter != nil {
				r.Use(s.limiter.Middleware)
			}

			r.Post("/feelings", s.handleIngest)
			r.Get("/feelings/{id}", s.handleGetFeeling)
			r.Get("/feelings/{id}/lineage", s.handleLineage)
			r.Post("/feelings/{id}/sit", s.handleSit)
			r.Post("/feelings/{id}/resolve", s.handleResolve)

			r.Post("/decay", s.handleDecay)

			r.Get("/spark", s.handleSpark)
			r.Get("/spark/stats", s.handleSparkStats)

			r.Get("/trait", s.handleTrait)
			r.Post("/trait/refresh", s.handleTraitRefresh)
			r.Get("/trait/history", s.handleTraitHistory)
			r.Get("/shadows", s.handleShadows)

			r.Get("/entities", s.handleEntities)
			r.Post("/entities", s.handleAddEntity)

			r.Get("/emotions", s.handleEmotions)
			r.Put("/emotions/{label}", s.handleCalibrate)
		})
	})

	s.router = r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully and stops the event hub.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve is ListenAndServe over an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go s.hub.Run()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("server: listening on %s", listener.Addr())
		errCh <- srv.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.hub.Stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("server: shutdown error: %v", err)
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		s.hub.Stop()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// securityHeadersMiddleware adds security headers to all HTTP responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
