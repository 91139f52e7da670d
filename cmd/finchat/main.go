package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finchat/internal/aggregate"
	"finchat/internal/amqp"
	"finchat/internal/cache"
	"finchat/internal/config"
	"finchat/internal/game"
	apphttp "finchat/internal/http"
	"finchat/internal/intent"
	"finchat/internal/ledger"
	"finchat/internal/ledger/memory"
	"finchat/internal/llm"
	"finchat/internal/log"
	"finchat/internal/services"
	"finchat/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	var (
		store      ledger.Store
		users      ledger.UserDirectory
		recorder   services.TransactionRecorder
		exchanges  services.ExchangeLog
		history    apphttp.ExchangeReader
		events     game.EventLog
		states     game.StateStore
		readyCheck func(context.Context) error
	)

	switch cfg.LedgerBackend {
	case "sqlite":
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer repo.Close()
		store, users, recorder, exchanges, history = repo, repo, repo, repo, repo
		events, states = repo, repo
		readyCheck = repo.Ping
		logger.Info("Initialized SQLite backend", "path", cfg.SQLiteDBPath)
	default:
		mem := memory.New()
		exch := memory.NewExchangeLog()
		store, users, recorder = mem, mem, mem
		exchanges, history = exch, exch
		events, states = game.NewMemoryLog(), game.NewMemoryStates()
		logger.Info("Initialized memory backend")
	}

	// LLM gateway. Without an API key the pipeline still serves templated
	// answers grounded in ledger data.
	var completer llm.Completer = llm.Disabled{}
	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGemini(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Error("Failed to initialize Gemini client", "error", err, "model", cfg.GeminiModel)
			os.Exit(1)
		}
		completer = gemini
		logger.Info("Gemini client initialized", "model", cfg.GeminiModel)
	} else {
		logger.Info("No GEMINI_API_KEY provided, serving fallback answers only")
	}
	gateway := llm.NewGateway(completer, llm.Config{
		AttemptTimeout: cfg.LLMAttemptTimeout,
		MaxRetries:     cfg.LLMMaxRetries,
	})

	// AMQP is optional for the API process: without it XP events are
	// applied in-process instead of going through the worker.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, XP events will be applied in-process", "error", err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	aggregator := aggregate.New(store, cfg.CacheSize, cfg.CacheTTL)

	cacheManager := cache.NewManager()
	if c := aggregator.Cache(); c != nil {
		cacheManager.Register(c)
	}
	cacheManager.StartCleanup(time.Minute)
	defer cacheManager.Stop()

	engine := game.NewEngine(events, states, users, logger.WithComponent("game"))
	resolver := intent.NewResolver(intent.DefaultCategories())

	chatService := services.NewChatService(resolver, aggregator, gateway, users, exchanges, logger.WithComponent("chat"))
	gameService := services.NewGameService(engine, publisher, logger.WithComponent("game"))
	ledgerService := services.NewLedgerService(recorder, gameService, logger.WithComponent("ledger"))

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		AllowedOrigins:     cfg.CORSAllowedOrigins,
		LLMConfigured:      cfg.GeminiAPIKey != "",
		ReadyCheck:         readyCheck,
	}, chatService, gameService, ledgerService, history, logger.WithComponent("http"))
	if err != nil {
		logger.Error("Invalid server configuration", "error", err)
		os.Exit(1)
	}

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	// The chat pipeline may ride out LLM retries, so writes get headroom.
	srv.WriteTimeout = 60 * time.Second
	srv.IdleTimeout = 120 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting finchat server", "port", cfg.Port, "backend", cfg.LedgerBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
