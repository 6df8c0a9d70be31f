package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiwari-pos/floor/internal/config"
	"github.com/kiwari-pos/floor/internal/database"
	"github.com/kiwari-pos/floor/internal/handler"
	mw "github.com/kiwari-pos/floor/internal/middleware"
	"github.com/kiwari-pos/floor/internal/service"
	"github.com/kiwari-pos/floor/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// cache may be nil, in which case idempotent replays are answered from the
// database alone.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub, notifier service.Notifier, cache service.ReplayCache) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", handler.IdempotencyKeyHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/outlets/{oid}/floor", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	newStore := func(db database.DBTX) service.FloorStore {
		return database.New(db)
	}
	tables := service.NewTableService(pool, newStore, notifier)
	ledger := service.NewOrderLedger(pool, newStore, service.NewDBCatalog(queries), tables, notifier)
	payments := service.NewPaymentService(pool, newStore, tables, cache, notifier)

	tableHandler := handler.NewTableHandler(tables)
	orderHandler := handler.NewOrderHandler(ledger)
	paymentHandler := handler.NewPaymentHandler(payments)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		r.Route("/outlets/{oid}", func(r chi.Router) {
			r.Use(mw.RequireOutlet)

			r.Route("/tables", func(r chi.Router) {
				tableHandler.RegisterRoutes(r)
				orderHandler.RegisterTableRoutes(r)
			})

			r.Route("/orders", func(r chi.Router) {
				orderHandler.RegisterRoutes(r)
				paymentHandler.RegisterRoutes(r)
			})
		})
	})

	log.Println("Router initialized with floor handlers")
	return r
}
