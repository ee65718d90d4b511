// Package app wires every component in dependency order and owns the
// lifecycle of the process: store first, then presence and the bus, the
// worker pool, the badge aggregator and streamer on top, and finally the
// HTTP surface.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"studyhub/internal/api"
	"studyhub/internal/badge"
	"studyhub/internal/bus"
	"studyhub/internal/chat"
	"studyhub/internal/config"
	"studyhub/internal/dashboard"
	"studyhub/internal/meeting"
	"studyhub/internal/presence"
	"studyhub/internal/store"
	"studyhub/internal/worker"
	"studyhub/pkg/interfaces"
)

// Application coordinates all system components.
type Application struct {
	config      *config.Config
	store       *store.Store
	eventBus    interfaces.Bus
	presence    interfaces.Presence
	pool        *worker.Pool
	streamer    *dashboard.Streamer
	redisClient *redis.Client
	httpServer  *http.Server
}

// NewApplication builds the component graph. Initialization order is
// strict: Store → Presence → Bus → Pool → Badges → Streamer → Handlers →
// HTTP. With Redis.Addr set, both the bus and presence run on Redis so
// multiple instances share one broadcast plane; otherwise everything stays
// in-process.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	st, err := store.Open(cfg.Database.Path, cfg.Database.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	var (
		eventBus      interfaces.Bus
		presenceStore interfaces.Presence
		redisClient   *redis.Client
	)
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		eventBus = bus.NewRedisBus(redisClient, cfg.WebSocket.BufferSize)
		presenceStore = presence.NewRedisStore(redisClient, cfg.Presence.TTL)
		log.Printf("Using redis backends at %s", cfg.Redis.Addr)
	} else {
		eventBus = bus.NewMemoryBus(cfg.WebSocket.BufferSize)
		presenceStore = presence.NewMemoryStore(cfg.Presence.TTL)
	}

	pool := worker.NewPool(cfg.Worker.Workers, cfg.Worker.QueueSize)

	badges := badge.NewAggregator(st, st, st, st)
	streamer := dashboard.NewStreamer(eventBus, st, badges)

	dashboardHandler := dashboard.NewHandler(eventBus, st, badges, presenceStore, pool, cfg.WebSocket)

	relay := meeting.NewRelay(eventBus, st, st, streamer, pool)
	meetingHandler := meeting.NewHandler(relay, cfg.WebSocket)

	eligibility := chat.NewEligibilityService(st, st)
	chatService := chat.NewService(eligibility, st)
	threadHandler := chat.NewStreamHandler(eventBus, st, st, cfg.WebSocket)

	var busStats api.BusStats
	if mb, ok := eventBus.(*bus.MemoryBus); ok {
		busStats = mb
	}
	apiServer := api.NewServer(st, streamer, badges, chatService, busStats)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws/dashboard", dashboardHandler.HandleStream)
	mux.HandleFunc("/ws/meeting/", meetingHandler.HandleRoom)
	mux.HandleFunc("/ws/thread", threadHandler.HandleStream)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:      cfg,
		store:       st,
		eventBus:    eventBus,
		presence:    presenceStore,
		pool:        pool,
		streamer:    streamer,
		redisClient: redisClient,
		httpServer:  httpServer,
	}, nil
}

// Start launches the worker pool and the HTTP server.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("Starting studyhub on %s", app.httpServer.Addr)

	if err := app.pool.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		app.pool.Stop()
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("studyhub started successfully")
		return nil
	case <-ctx.Done():
		app.pool.Stop()
		return ctx.Err()
	}
}

// Stop shuts everything down in reverse order: HTTP first so no new
// connections arrive, then the pool drains queued work, then the bus closes
// live subscriber channels, and the store flushes last.
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("Shutting down studyhub")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	app.pool.Stop()

	if err := app.eventBus.Close(); err != nil {
		log.Printf("Bus shutdown error: %v", err)
	}

	if app.redisClient != nil {
		if err := app.redisClient.Close(); err != nil {
			log.Printf("Redis shutdown error: %v", err)
		}
	}

	if err := app.store.Close(); err != nil {
		log.Printf("Store shutdown error: %v", err)
	}

	log.Printf("studyhub shutdown complete")
	return nil
}

// GetAddr returns the server address for external connections.
func (app *Application) GetAddr() string {
	return app.httpServer.Addr
}
