package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"

	config "github.com/avvvet/rookies-services/configs"
	"github.com/avvvet/rookies-services/internal/auth"
	"github.com/avvvet/rookies-services/internal/broker"
	"github.com/avvvet/rookies-services/internal/db"
	"github.com/avvvet/rookies-services/internal/handlers"
	"github.com/avvvet/rookies-services/internal/metrics"
	nats "github.com/avvvet/rookies-services/internal/nats"
	"github.com/avvvet/rookies-services/internal/service"
	"github.com/avvvet/rookies-services/internal/store"
	"github.com/avvvet/rookies-services/internal/ws"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "rookies"

func init() {
	config.LoadEnv(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service")
}

func main() {
	settings := config.Load()
	instanceId := config.CreateUniqueInstance(SERVICE_NAME)

	// storage
	var (
		st     store.Store
		dbpool *pgxpool.Pool
	)
	switch settings.StoreMode {
	case config.StoreModeMemory:
		st = store.NewMemoryStore()
		log.Warn("STORE_MODE=memory, state is lost on restart")
	default:
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		pool, err := db.Connect(ctx, settings.DatabaseURL)
		if err != nil {
			cancel()
			log.Fatalf("Failed to connect to DB: %v", err)
		}
		if err := db.Migrate(ctx, pool); err != nil {
			cancel()
			log.Fatalf("Failed to apply schema: %v", err)
		}
		cancel()
		dbpool = pool
		defer dbpool.Close()
		st = store.NewPostgres(dbpool)
		log.Printf("pg connection established successfully")
	}

	// bet events, optional
	var events service.BetEvents
	if settings.NatsURL != "" {
		n, err := nats.Connect(settings.NatsURL, settings.NatsToken, SERVICE_NAME+"-"+instanceId)
		if err != nil {
			log.Fatalf("Error: unable to connect to NATS server %v", err)
		}
		defer n.Conn.Close()
		log.Printf("NATS connection established successfully %s", n.Url)
		events = broker.NewBroker(n.Conn, instanceId)
	} else {
		log.Info("NATS_URL not set, bet events are not published")
	}

	registry := ws.NewRegistry(nil)
	authenticator := auth.New(settings.JWTSecret, st, settings.SessionTTL)

	svc := handlers.Services{
		Users:       service.NewUserService(st, settings.StartingBalance),
		Streams:     service.NewStreamService(st),
		Bets:        service.NewBetService(st, st, registry, events),
		Chat:        service.NewChatService(st, st, registry, settings.ChatBackfillLimit),
		Stats:       service.NewStatsService(st, st, registry),
		Leaderboard: service.NewLeaderboardService(st, settings.LeaderboardLimit, settings.LeaderboardTZ),
	}

	socket := ws.NewWs(registry, ws.Config{
		PingPeriod: settings.WSPingPeriod,
		PongWait:   settings.WSPongWait,
		SendBuffer: settings.WSSendBuffer,
	}, ws.Deps{
		Sessions: authenticator,
		Chat:     svc.Chat,
		Stats:    svc.Stats,
		Streams:  svc.Streams,
		Presence: svc.Users,
	})

	// Setup router
	r := chi.NewRouter()
	c := config.CORS(settings.CORSOrigins)

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(c.Handler)

	// to protect the service api from any over requests
	r.Use(httprate.LimitByIP(settings.RateLimit, 1*time.Minute))

	// Init handlers and routes
	h := handlers.NewHandler(authenticator, svc, socket, settings.CORSOrigins, settings.CookieSecure)
	h.SetRoutes(r)

	// expired session rows
	reaperCtx, stopReaper := context.WithCancel(context.Background())
	defer stopReaper()
	go reapSessions(reaperCtx, st, time.Hour)

	metricsServer := metrics.StartMetricsServer(settings.MetricsPort, func(ctx context.Context) error {
		if dbpool != nil {
			return dbpool.Ping(ctx)
		}
		return nil
	})

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + settings.ServicePort,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s, metrics at %s", SERVICE_NAME, server.Addr, metricsServer.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	registry.CloseAll()
	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	if err := metricsServer.Shutdown(ctx); err != nil {
		log.Errorf("metrics server shutdown failed: %+v", err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}

func reapSessions(ctx context.Context, sessions store.SessionRepository, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := sessions.DeleteExpiredSessions(ctx, now)
			if err != nil {
				log.Errorf("Error deleting expired sessions: %v", err)
				continue
			}
			if n > 0 {
				log.Infof("deleted %d expired sessions", n)
			}
		}
	}
}
