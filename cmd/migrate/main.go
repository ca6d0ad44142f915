// migrate applies the embedded MFA schema migrations: go run ./cmd/migrate -direction up
package main

import (
	"flag"

	"go.uber.org/zap"

	"coaching-platform/backend/internal/config"
	"coaching-platform/backend/internal/db/migrate"
	"coaching-platform/backend/internal/platform/logger"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	dir, err := migrate.ParseDirection(*direction)
	if err != nil {
		log.Fatal("migrate: invalid flag", zap.Error(err))
	}
	if err := migrate.Run(cfg.DatabaseURL, dir); err != nil {
		log.Fatal("migrate: failed", zap.String("direction", string(dir)), zap.Error(err))
	}
	log.Info("migrate: done", zap.String("direction", string(dir)))
}
