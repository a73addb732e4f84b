package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/labops/coord/internal/auth"
	"github.com/labops/coord/internal/config"
	"github.com/labops/coord/internal/database"
	"github.com/labops/coord/internal/server"
)

type CoordApp struct {
	log            *log.Logger
	db             database.CoordRepository
	mux            *http.Server
	cs             *server.CoordServer
	verifier       *auth.Verifier
	allowedOrigins []string
}

func NewCoordApp(mux *http.ServeMux, logger *log.Logger, cs *server.CoordServer, db database.CoordRepository, verifier *auth.Verifier, cfg *config.Config) *CoordApp {
	s := &CoordApp{
		log:            logger,
		db:             db,
		cs:             cs,
		verifier:       verifier,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.Handle("GET /api/ws", s.authMiddleware(s.serveWs))
	mux.Handle("POST /api/messages", s.authMiddleware(s.sendMessage))
	mux.Handle("GET /api/messages", s.authMiddleware(s.getMessages))
	mux.Handle("GET /api/pool", s.authMiddleware(s.listPoolTasks))
	mux.Handle("GET /api/pool/{id}", s.authMiddleware(s.getPoolTask))
	mux.Handle("POST /api/pool/claim", s.authMiddleware(s.claimTask))
	mux.Handle("POST /api/pool/help", s.authMiddleware(s.requestHelp))
	mux.Handle("POST /api/pool/respond", s.authMiddleware(s.respondToHelp))
	mux.Handle("POST /api/pool/complete", s.authMiddleware(s.completeTask))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *CoordApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *CoordApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
