package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/coinsight/crypto_screener/internal/gateway"
	"github.com/coinsight/crypto_screener/internal/infrastructure/backend"
	"github.com/coinsight/crypto_screener/internal/infrastructure/logger"
	"github.com/coinsight/crypto_screener/internal/infrastructure/storage"
	"github.com/coinsight/crypto_screener/internal/usecase"
	"github.com/coinsight/crypto_screener/internal/web"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Backend struct {
		BaseURL      string `yaml:"base_url"`
		TimeoutMs    int    `yaml:"timeout_ms"`
		ServiceToken string `yaml:"service_token"`
	} `yaml:"backend"`
	Refresh struct {
		Enabled    bool `yaml:"enabled"`
		IntervalMs int  `yaml:"interval_ms"`
	} `yaml:"refresh"`
	Gateway struct {
		RedirectDelayMs int `yaml:"redirect_delay_ms"`
	} `yaml:"gateway"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
}

func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func main() {
	// 1. Load Environment + Config
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Init Storage
	dbPath := cfg.Storage.Path
	if dbPath == "" {
		dbPath = "dashboard.db"
	}
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Init Event Hub + Scan Cache
	hub := web.NewHub(log)
	go hub.Run(ctx)

	cache := usecase.NewScanCache(ctx, store, log)

	// 5. Init Backend Client
	timeout := time.Duration(cfg.Backend.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	backendClient := backend.NewClient(cfg.Backend.BaseURL, timeout, log)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// 6. Background Refresh Loop (optional)
	serviceToken := os.Getenv("BACKEND_SERVICE_TOKEN")
	if serviceToken == "" {
		serviceToken = cfg.Backend.ServiceToken
	}
	if cfg.Refresh.Enabled && serviceToken != "" {
		tokenStore := gateway.NewTokenStore(serviceToken)
		gw := gateway.New(
			backendClient,
			&gateway.HeaderSource{Store: tokenStore},
			cache,
			hub,
			hub.Navigate,
			time.Duration(cfg.Gateway.RedirectDelayMs)*time.Millisecond,
			log,
		)

		interval := time.Duration(cfg.Refresh.IntervalMs) * time.Millisecond
		if interval <= 0 {
			interval = time.Minute
		}

		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				gen := cache.NextGeneration()
				raw, err := gw.Get(ctx, backend.PathScan)
				if err != nil {
					// The gateway already classified and toasted this.
					log.Warn("Background scan failed", zap.Error(err))
				} else if res, applied := cache.Update(ctx, raw, gen); applied {
					hub.BroadcastScan(res)
				}

				select {
				case <-ticker.C:
					continue
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// 7. Init + Start Web Server
	port := cfg.Server.Port
	if port == 0 {
		port = 8080 // Default
	}
	server := web.NewServer(port, backendClient, cache, store, hub, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// 8. Wait for Shutdown
	<-stop

	log.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Shutdown error", zap.Error(err))
	}
}
