package main

import (
	"log"
	_ "time/tzdata"

	_ "teamtasks/docs"
	"teamtasks/internal/config"
	"teamtasks/internal/database"
	"teamtasks/internal/logger"
	"teamtasks/internal/server"
)

// @title           Team Tasks API
// @version         1.0
// @description     API for shared-household teams: task lists, distribution, trades and ratings.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @schemes http
func main() {
	cfg := config.Load()

	zapLogger, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("logger initialization failed: %v", err)
	}
	defer func() {
		_ = zapLogger.Sync()
	}()
	sugar := zapLogger.Sugar()

	db, err := database.Open(cfg)
	if err != nil {
		sugar.Fatalw("database connection failed", "err", err)
	}
	sugar.Infow("connected to database", "host", cfg.DBHost, "name", cfg.DBName)

	if cfg.DBAutoMigrate {
		if err := database.Migrate(cfg, sugar); err != nil {
			sugar.Fatalw("database migration failed", "err", err)
		}
	}

	s, err := server.Init(cfg, zapLogger, db)
	if err != nil {
		sugar.Fatalw("server initialization failed", "err", err)
	}

	s.Run()
}
