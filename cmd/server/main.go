package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/cache"
	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/config"
	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/engine"
	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/logger"
	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/server"
)

const (
	defaultAddr         = ":8080"
	defaultConfigFile   = "./config.yaml"
	defaultLogLevel     = "info"
	httpReadTimeout     = 30 * time.Second
	httpWriteTimeout    = 120 * time.Second
	httpIdleTimeout     = 60 * time.Second
	httpShutdownTimeout = 10 * time.Second
)

func main() {
	addr := getEnv("ADDR", defaultAddr)
	configFile := getEnv("CONFIG_FILE", defaultConfigFile)
	redisURL := getEnv("REDIS_URL", "")
	logLevel := getEnv("LOG_LEVEL", defaultLogLevel)

	log := logger.New(logger.ParseLevel(logLevel))

	log.Info("starting gspdf API server", "log_level", logLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var cfg *config.Config
	if _, statErr := os.Stat(configFile); statErr == nil {
		log.Info("loading config from file", "file", configFile)
		loaded, err := config.Load(configFile)
		if err != nil {
			log.Error("failed to load config from file", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	} else {
		log.Info("using default configuration (config file not found)", "checked", configFile)
		cfg = config.New()
	}

	if wasmPath := os.Getenv("GS_WASM"); wasmPath != "" {
		cfg.Engine.WasmPath = wasmPath
	}
	if addr == defaultAddr && cfg.Server.Addr != "" {
		addr = cfg.Server.Addr
	}

	eng, err := engine.New(ctx, engine.Config{
		WasmPath:   cfg.Engine.GetWasmPath(),
		MinIdle:    cfg.Engine.MinIdle,
		MaxIdle:    cfg.Engine.GetMaxIdle(),
		MaxTotal:   cfg.Engine.GetMaxTotal(),
		RunTimeout: cfg.Engine.GetRunTimeout(),
	})
	if err != nil {
		log.Error("failed to start engine", "error", err)
		os.Exit(1)
	}
	eng = eng.WithLogger(log)
	defer eng.Close(context.Background())

	var redisClient *redis.Client
	var store cache.Cache
	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Error("failed to parse redis URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Error("failed to connect to redis", "error", err, "url", redisURL)
			os.Exit(1)
		}
		log.Info("redis connection established", "url", redisURL)

		store = cache.NewRedis(redisClient, cache.Config{
			Prefix: cfg.Cache.Prefix,
			TTL:    cfg.Cache.TTL.Std(),
		})
	} else {
		log.Info("REDIS_URL not set, using in-memory artifact cache")
		memory := cache.NewMemory(cache.Config{
			Prefix: cfg.Cache.Prefix,
			TTL:    cfg.Cache.TTL.Std(),
		})
		defer memory.Close()
		store = memory
	}

	srv, err := server.New(eng, store, cfg, log, &server.Options{RedisClient: redisClient})
	if err != nil {
		log.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Router(),
		ReadTimeout:  httpReadTimeout,
		WriteTimeout: httpWriteTimeout,
		IdleTimeout:  httpIdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting API server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down API server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown error", "error", err)
			os.Exit(1)
		}
	case err := <-errCh:
		log.Error("server error", "error", err)
		os.Exit(1)
	}

	log.Info("server shutdown complete")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
