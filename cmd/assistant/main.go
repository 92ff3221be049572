package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	ahttp "github.com/DevbyNaveen/X-Seven-sub001/internal/adapter/http"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/adapter/litellm"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/adapter/mcp"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/adapter/memstore"
	anats "github.com/DevbyNaveen/X-Seven-sub001/internal/adapter/nats"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/adapter/natskv"
	aotel "github.com/DevbyNaveen/X-Seven-sub001/internal/adapter/otel"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/adapter/postgres"
	aredis "github.com/DevbyNaveen/X-Seven-sub001/internal/adapter/redis"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/adapter/ristretto"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/adapter/tiered"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/adapter/ws"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/config"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/logger"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/middleware"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/broadcast"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/cache"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/database"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/llm"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/messagequeue"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/notifier"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/service"
)

const version = "0.1.0"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLog := logger.New(cfg.Logging)
	defer closeLog.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"store", cfg.Store.Driver,
		"log_level", cfg.Logging.Level,
		"cache_l2", cfg.Cache.L2,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---

	shutdownOTEL, err := aotel.Init(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTEL(sctx); err != nil {
			slog.Warn("otel shutdown failed", "error", err)
		}
	}()
	metrics, err := aotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	var probes []ahttp.Probe

	// --- Store ---

	var store database.Store
	switch cfg.Store.Driver {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		pg := postgres.NewStore(pool)
		probes = append(probes, ahttp.Probe{Name: "postgres", Required: true, Check: pg.Ping})
		store = pg
		slog.Info("postgres connected")
	case "memory", "":
		mem := memstore.New()
		if cfg.Store.Seed {
			slog.Info("memory store seeded", "businesses", mem.Seed())
		}
		store = mem
	default:
		return fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	// --- NATS ---

	var queue *anats.Queue
	if cfg.NATS.URL != "" {
		queue, err = anats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = queue.Close() }()
		probes = append(probes, ahttp.Probe{Name: "nats", Check: func(context.Context) error {
			if !queue.IsConnected() {
				return errors.New("disconnected")
			}
			return nil
		}})
	}

	// --- Cache ---

	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB)
	if err != nil {
		return fmt.Errorf("l1 cache: %w", err)
	}
	defer l1.Close()

	var l2 cache.Cache
	switch cfg.Cache.L2 {
	case "redis":
		rc, err := aredis.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer func() { _ = rc.Close() }()
		probes = append(probes, ahttp.Probe{Name: "redis", Check: rc.Ping})
		l2 = rc
	case "nats":
		if queue == nil {
			return errors.New("cache.l2 = nats requires nats.url")
		}
		kv, err := queue.KeyValue(ctx, cfg.Cache.L2Bucket, cfg.Cache.SessionTTL)
		if err != nil {
			return fmt.Errorf("nats kv: %w", err)
		}
		l2 = natskv.New(kv)
	case "":
	default:
		return fmt.Errorf("unknown cache.l2 %q", cfg.Cache.L2)
	}
	appCache := tiered.New(l1, l2, cfg.Cache.CatalogTTL)

	// --- Model provider ---

	var (
		provider llm.Provider
		embedder llm.Embedder
	)
	if cfg.LiteLLM.URL != "" {
		client := litellm.NewClient(cfg.LiteLLM.URL, cfg.LiteLLM.MasterKey, cfg.LiteLLM.Model, cfg.LiteLLM.EmbeddingModel, cfg.LiteLLM.Timeout)
		provider, embedder = client, client
		probes = append(probes, ahttp.Probe{Name: "litellm", Check: func(ctx context.Context) error {
			ok, err := client.Health(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("unhealthy")
			}
			return nil
		}})
	} else {
		slog.Warn("litellm not configured, agents run deterministic paths only")
	}

	// --- Notifications ---

	notifiers := buildNotifiers(cfg.Notify)
	if queue != nil {
		notifiers = append(notifiers, anats.NewNotifier(queue))
	}
	notifications := service.NewNotificationService(notifiers, cfg.Notify.Events, cfg.Notify.MaxInFlight)

	// --- Agents ---

	origins := originPatterns(cfg.Server.CORSOrigin)
	hub := ws.NewHub(origins...)
	defer hub.Close()

	broadcasters := broadcast.Multi{hub}
	if queue != nil {
		broadcasters = append(broadcasters, anats.NewBroadcaster(queue))
	}
	sup := service.NewSupervisor(service.SupervisorConfigFrom(cfg.Supervisor, cfg.Breaker), broadcasters)
	defer sup.Close()
	sup.SetMetrics(metrics)

	var mq messagequeue.Publisher
	if queue != nil {
		mq = queue
	}
	memories := service.NewMemoryManager(store, embedder, mq, cfg.Memory)
	catalogSvc := service.NewCatalogService(store, appCache, cfg.Cache.CatalogTTL)
	sessions := service.NewSessionStore(appCache, cfg.Cache.SessionTTL)

	orch := service.NewOrchestrator(sup, provider, service.Agents{
		Intent:    service.NewIntentAgent(provider),
		Slots:     service.NewSlotFillingAgent(provider),
		Retrieval: service.NewRAGAgent(provider),
		Execution: service.NewExecutionAgent(store, store, notifications),
		Memory:    memories,
	}, catalogSvc, sessions, cfg.Stream)
	if err := orch.RegisterAgents(); err != nil {
		return fmt.Errorf("register agents: %w", err)
	}
	orch.SetMetrics(metrics)

	go service.RunMemoryJanitor(ctx, memories, cfg.Memory.JanitorInterval)

	// --- HTTP ---

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	limiter.StartCleanup(ctx, 5*time.Minute, 10*time.Minute)

	probes = append(probes, ahttp.Probe{Name: "l1_cache", Required: true, Check: func(ctx context.Context) error {
		_, _, err := l1.Get(ctx, "health")
		return err
	}})

	handlers := &ahttp.Handlers{
		Conversations: orch,
		Agents:        sup,
		Memory:        memories,
		Probes:        probes,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(ahttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(ahttp.CORS(cfg.Server.CORSOrigin))
	r.Use(ahttp.SecurityHeaders)
	r.Use(aotel.HTTPMiddleware(cfg.OTEL.ServiceName))

	ahttp.MountRoutes(r, handlers, ahttp.Sockets{
		Chat:      ws.NewChatHandler(orch, origins...),
		Dashboard: hub.HandleWS,
	}, limiter.Handler, middleware.Idempotency(appCache, cfg.Server.IdempotencyTTL))

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// --- MCP ---

	var mcpSrv *mcp.Server
	if cfg.MCP.Enabled {
		mcpSrv = mcp.NewServer(mcp.ServerConfig{
			Addr:    cfg.MCP.Addr,
			Name:    cfg.OTEL.ServiceName,
			Version: version,
			APIKey:  cfg.MCP.APIKey,
		}, mcp.ServerDeps{Tools: orch, Agents: sup})
		if err := mcpSrv.Start(); err != nil {
			return fmt.Errorf("mcp: %w", err)
		}
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown failed", "error", err)
	}
	if mcpSrv != nil {
		if err := mcpSrv.Stop(shutdownCtx); err != nil {
			slog.Warn("mcp shutdown failed", "error", err)
		}
	}
	notifications.Wait()
	slog.Info("l1 cache stats", "stats", l1.Stats())
	if queue != nil {
		if err := queue.Drain(); err != nil {
			slog.Warn("nats drain failed", "error", err)
		}
	}
	return nil
}

// buildNotifiers creates every downstream notifier that has a target configured.
func buildNotifiers(cfg config.Notify) []notifier.Notifier {
	out, err := notifier.Build(
		notifier.Target{Name: "webhook", Config: map[string]string{"url": cfg.WebhookURL, "secret": cfg.WebhookSecret}},
		notifier.Target{Name: "slack", Config: map[string]string{"webhook_url": cfg.SlackWebhookURL, "username": cfg.ChatUsername}},
		notifier.Target{Name: "discord", Config: map[string]string{"webhook_url": cfg.DiscordWebhookURL, "username": cfg.ChatUsername}},
	)
	if err != nil {
		slog.Warn("notifier unavailable", "error", err)
	}
	for _, n := range out {
		slog.Info("notifier enabled", "notifier", n.Name())
	}
	return out
}

// originPatterns turns the CORS origin list into websocket host patterns.
func originPatterns(corsOrigins string) []string {
	var out []string
	for o := range strings.SplitSeq(corsOrigins, ",") {
		o = strings.TrimSpace(o)
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
		}
	}
	if len(out) == 0 && strings.TrimSpace(corsOrigins) == "" {
		return []string{"*"}
	}
	return out
}
