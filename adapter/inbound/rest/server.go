package rest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/ajkula/notifytrigger/config"
	"github.com/ajkula/notifytrigger/domain/port/outbound"
)

// Server runs the status API on its own listener
type Server struct {
	server   *http.Server
	listener net.Listener
	logger   outbound.Logger
}

// NewServer builds the router, applies CORS when enabled and binds the listener
func NewServer(cfg *config.Config, handler *Handler, logger outbound.Logger) (*Server, error) {
	router := mux.NewRouter()
	handler.SetupRoutes(router)

	// log requests at debug level
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Debug("Request", "method", r.Method, "path", r.URL.Path)
			next.ServeHTTP(w, r)
		})
	})

	var root http.Handler = router
	if cfg.HTTP.CORS.Enabled {
		root = cors.New(cors.Options{
			AllowedOrigins: cfg.HTTP.CORS.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
		}).Handler(router)
	}

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	return &Server{
		server: &http.Server{
			Handler:      root,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		listener: listener,
		logger:   logger,
	}, nil
}

// Addr returns the bound address
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

func (s *Server) Start() {
	go func() {
		s.logger.Info("HTTP status server listening", "address", s.Addr())
		if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
