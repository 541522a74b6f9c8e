// Command rendezvous runs the internal/rendezvous HTTP relay standalone,
// adapted from the teacher's cmd/server/main.go bootstrap: same
// zap.NewProduction/Sugar setup, PORT env var with a hardcoded
// default, goroutine-started listener, and signal.Notify graceful
// shutdown.
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vertexhub/libpico/internal/rendezvous"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	sugar := logger.Sugar()
	sugar.Info("libpico rendezvous relay starting...")

	port := os.Getenv("PORT")
	if port == "" {
		port = "3200"
	}

	server := rendezvous.NewServer(rendezvous.ServerConfig{
		Port:   port,
		Logger: sugar,
	})

	go func() {
		if err := server.Start(); err != nil {
			sugar.Fatalf("relay server failed: %v", err)
		}
	}()

	sugar.Infof("relay listening at http://0.0.0.0:%s", port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sugar.Info("shutting down gracefully...")
	if err := server.Stop(); err != nil {
		sugar.Warnf("error during shutdown: %v", err)
	}
}
