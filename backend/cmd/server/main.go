// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/inclusivelearn/eduaccess/backend/config"
	"github.com/inclusivelearn/eduaccess/backend/integration"
	"github.com/inclusivelearn/eduaccess/backend/logging"
	"github.com/inclusivelearn/eduaccess/backend/middleware"
	"github.com/inclusivelearn/eduaccess/backend/storage"
	"github.com/inclusivelearn/eduaccess/backend/storage/memory"
	"github.com/inclusivelearn/eduaccess/backend/storage/postgres"
	redisStore "github.com/inclusivelearn/eduaccess/backend/storage/redis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	gateway, bus, closeStore, err := openStorage(cfg, logger)
	if err != nil {
		logger.Fatal("failed to open storage", zap.Error(err))
	}
	defer closeStore()

	messaging, err := integration.New(&integration.Config{
		Gateway:        gateway,
		Bus:            bus,
		JWTSecret:      cfg.Auth.JWTSecret,
		JWTIssuer:      cfg.Auth.JWTIssuer,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("failed to initialise messaging", zap.Error(err))
	}

	r := mux.NewRouter()
	r.Use(middleware.NewCORS(cfg.Server.AllowedOrigins))
	messaging.RegisterRoutes(r, nil)

	// Health check (no auth required)
	r.HandleFunc("/health", messaging.Health).Methods("GET")

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("server starting",
		zap.String("addr", cfg.Server.Addr),
		zap.String("storage", cfg.Storage.Driver),
		zap.Bool("realtime", bus != nil),
		zap.String("jwt_issuer", cfg.Auth.JWTIssuer),
	)
	if err := runServer(ctx, srv, messaging.Shutdown); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}

// openStorage returns the gateway and event bus for the configured driver.
// bus is nil when no realtime backend is available.
func openStorage(cfg *config.Config, logger *zap.Logger) (storage.Gateway, storage.EventBus, func(), error) {
	if cfg.Storage.Driver == config.DriverMemory {
		store := memory.NewStore(memory.Seed())
		return store, store, func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.Storage.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}

	var rdb *redis.Client
	var bus storage.EventBus
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		bus = redisStore.NewBus(rdb, logger)
	}

	closeFn := func() {
		if rdb != nil {
			_ = rdb.Close()
		}
		_ = db.Close()
	}
	return postgres.NewStore(db, rdb, logger), bus, closeFn, nil
}

func runServer(ctx context.Context, srv *http.Server, onShutdown func()) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		onShutdown()
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
