// Command stubapi runs the development stand-in for the BookDen backend.
// It speaks the same wire contract as the real API with an in-memory store,
// so the client stack can be exercised without a deployed server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"bookden/internal/platform/httpserver"
	"bookden/internal/platform/logger"
	"bookden/internal/stub"
)

type serverConfig struct {
	Env    string        `env:"BOOKDEN_ENV" env-default:"development"`
	Addr   string        `env:"BOOKDEN_STUB_ADDR" env-default:":8000"`
	Secret string        `env:"BOOKDEN_STUB_SECRET" env-default:"dev-only-secret"`
	Stop   time.Duration `env:"BOOKDEN_STUB_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

func main() {
	_ = godotenv.Load()

	var cfg serverConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		os.Stderr.WriteString("reading configuration: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.New(cfg.Env)

	server := stub.NewServer(stub.NewStore(), stub.NewTokenManager(cfg.Secret), log)
	srv := httpserver.New(cfg.Addr, server.Router())

	go func() {
		log.Info("stub API listening", "addr", cfg.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Stop)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("stub API stopped")
}
