package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiwari-pos/floor/internal/cache"
	"github.com/kiwari-pos/floor/internal/config"
	"github.com/kiwari-pos/floor/internal/database"
	"github.com/kiwari-pos/floor/internal/events"
	"github.com/kiwari-pos/floor/internal/router"
	"github.com/kiwari-pos/floor/internal/service"
	"github.com/kiwari-pos/floor/internal/ws"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Unable to ping database: %v", err)
	}
	log.Println("Connected to database")

	hub := ws.NewHub()
	go hub.Run(ctx)

	notifiers := events.Fanout{events.NewHubNotifier(hub)}

	if cfg.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.NATSURL, "floor-api")
		if err != nil {
			log.Fatalf("Unable to connect to NATS: %v", err)
		}
		defer pub.Close()
		notifiers = append(notifiers, events.NewBusNotifier(pub, events.DefaultSubjectPrefix))
		log.Println("Publishing floor events to NATS")
	}

	var replay service.ReplayCache
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Invalid REDIS_URL: %v", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			// The cache is an accelerator; payments still dedupe in Postgres.
			log.Printf("WARN: redis unavailable, continuing without replay cache: %v", err)
		} else {
			replay = cache.NewPaymentReplay(client, cfg.IdempotencyTTL)
			log.Println("Connected to redis")
		}
	}

	r := router.New(cfg, database.New(pool), pool, hub, notifiers, replay)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: server shutdown: %v", err)
	}
}
