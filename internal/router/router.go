package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/kiwari-pos/terminal/internal/engine"
	"github.com/kiwari-pos/terminal/internal/floor"
	"github.com/kiwari-pos/terminal/internal/handler"
	"github.com/kiwari-pos/terminal/internal/store"
	"github.com/kiwari-pos/terminal/internal/ws"
	"github.com/sirupsen/logrus"
)

// New creates a Chi router with the terminal's surface wired up: floor
// administration, the open-table session, order history with reopen, KOT
// reprints and the UI websocket feed.
func New(eng *engine.Engine, fl *floor.Service, st store.DocumentStore, hub *ws.Hub, log *logrus.Logger) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS: the UI is served from the terminal host itself or a LAN peer.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300, // 5 minutes
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// WebSocket feed for the terminal UI
	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, log, w, r)
	})

	tableHandler := handler.NewTableHandler(fl, hub)
	sessionHandler := handler.NewSessionHandler(eng)
	orderHandler := handler.NewOrderHandler(eng)
	kotHandler := handler.NewKOTHandler(st)

	r.Route("/tables", func(r chi.Router) {
		tableHandler.RegisterRoutes(r)
		r.Route("/{tid}/session", sessionHandler.RegisterRoutes)
	})
	r.Route("/orders", orderHandler.RegisterRoutes)
	r.Route("/kots", kotHandler.RegisterRoutes)

	return r
}
