package main

import (
	"context"
	"log"
	"os"

	"github.com/safar/storefront/internal/config"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/logger"
	"go.uber.org/zap"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run scripts/run_migrations.go [up|down|version]")
	}

	direction := os.Args[1]
	if direction != "up" && direction != "down" && direction != "version" {
		log.Fatal("Direction must be 'up', 'down' or 'version'")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	zl := logger.New(cfg.Log)
	defer func() {
		_ = zl.Sync()
	}()

	db, err := database.NewConnection(context.Background(), &cfg.Database)
	if err != nil {
		zl.Fatal("connect to database", zap.Error(err))
	}

	m, err := database.NewMigrator(db, zl)
	if err != nil {
		db.Close()
		zl.Fatal("prepare migrations", zap.Error(err))
	}
	defer func() {
		if err := m.Close(); err != nil {
			zl.Warn("close migrator", zap.Error(err))
		}
	}()

	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "version":
		var (
			version uint
			dirty   bool
		)
		version, dirty, err = m.Version()
		if err == nil {
			zl.Info("current schema", zap.Uint("version", version), zap.Bool("dirty", dirty))
		}
	}
	if err != nil {
		zl.Fatal("migration failed", zap.String("direction", direction), zap.Error(err))
	}
}
