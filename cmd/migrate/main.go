package main

import (
	"os"

	"github.com/oscar-duarte/sifen-worker/internal/config"
	"github.com/oscar-duarte/sifen-worker/internal/infrastructure/database/postgres"
	"github.com/oscar-duarte/sifen-worker/pkg/database"
	"github.com/oscar-duarte/sifen-worker/pkg/logger"
)

func main() {
	l := logger.NewZapLogger()
	l.Info("running document store migrations")

	cfg, err := config.InitConfig()
	if err != nil {
		l.Error("failed to load configuration", logger.F("error", err.Error()))
		os.Exit(1)
	}

	db, err := database.InitDatabase(cfg.GetDatabaseDSN(), cfg.Env)
	if err != nil {
		l.Error("failed to connect to database", logger.F("error", err.Error()))
		os.Exit(1)
	}

	if err := postgres.RunMigrations(db, "./migrations"); err != nil {
		l.Error("failed to run migrations", logger.F("error", err.Error()))
		os.Exit(1)
	}

	l.Info("migrations applied")
}
