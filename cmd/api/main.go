package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dreznev/authcore/internal/infra/app"
	"github.com/dreznev/authcore/internal/infra/config"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("init: %v", err)
	}

	log.Printf("listening on %s:%d", cfg.App.Host, cfg.App.Port)

	if err := application.Run(ctx); err != nil {
		log.Fatalf("run: %v", err)
	}
}
