package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"teamtasks/internal/config"
	"teamtasks/internal/distribution"
	"teamtasks/internal/handler"
	"teamtasks/internal/messaging"
	"teamtasks/internal/metrics"
	"teamtasks/internal/middleware"
	"teamtasks/internal/rating"
	"teamtasks/internal/repository"
	"teamtasks/internal/scheduler"
	"teamtasks/internal/trade"
)

type Server struct {
	Engine *gin.Engine
	DB     *gorm.DB
	Config *config.Config

	logger    *zap.SugaredLogger
	scheduler *scheduler.Manager
}

type handlers struct {
	users        *handler.UserHandler
	teams        *handler.TeamHandler
	tasks        *handler.TaskHandler
	distribution *handler.DistributionHandler
	trades       *handler.TradeHandler
	ratings      *handler.RatingHandler
}

func Init(cfg *config.Config, zapLogger *zap.Logger, db *gorm.DB) (*Server, error) {
	logger := zapLogger.Sugar()

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return nil, fmt.Errorf("load scheduler time zone %q: %w", cfg.Scheduler.TimeZone, err)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(logger, db)
	teamRepo := repository.NewTeamRepository(logger, db)
	taskRepo := repository.NewTaskRepository(logger, db, loc)
	taskRepo.UseCache(repository.NewTaskQueryCache(cfg.TaskCacheTTL))
	distributionRepo := repository.NewDistributionRepository(logger, db)
	tradeRepo := repository.NewTradeRepository(logger, db)
	ratingRepo := repository.NewRatingRepository(logger, db)
	tokenRepo := repository.NewTokenRepository(logger, db)

	var gateway messaging.Gateway
	if cfg.Messaging.Endpoint != "" {
		gateway = messaging.NewHTTPGateway(cfg.Messaging.Endpoint, cfg.Messaging.ServerKey, cfg.Messaging.Timeout)
	} else {
		logger.Infow("messaging endpoint not set, notifications are only logged")
		gateway = messaging.NewLogGateway(logger)
	}
	notifier := messaging.NewNotifier(logger, tokenRepo, gateway)

	// Initialize engines
	ratingEngine := rating.NewEngine(logger, ratingRepo, userRepo, teamRepo)
	distributionEngine := distribution.NewEngine(logger, taskRepo, teamRepo, distributionRepo, ratingEngine, notifier)
	tradeEngine := trade.NewEngine(logger, tradeRepo, taskRepo, teamRepo, notifier)

	h := handlers{
		users:        handler.NewUserHandler(logger, userRepo, tokenRepo),
		teams:        handler.NewTeamHandler(logger, teamRepo, userRepo, taskRepo),
		tasks:        handler.NewTaskHandler(logger, taskRepo, teamRepo, distributionEngine, ratingEngine, loc),
		distribution: handler.NewDistributionHandler(logger, distributionEngine),
		trades:       handler.NewTradeHandler(logger, tradeEngine),
		ratings:      handler.NewRatingHandler(logger, ratingEngine),
	}

	r := gin.New()
	r.Use(ginzap.GinzapWithConfig(zapLogger, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		Skipper: func(c *gin.Context) bool {
			return c.Request.URL.Path == "/metrics" || c.Request.URL.Path == "/health"
		},
	}))
	r.Use(ginzap.RecoveryWithZap(zapLogger, true))
	r.Use(metrics.GinMiddleware)
	if len(cfg.CORSOrigins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = cfg.CORSOrigins
		corsConfig.AddAllowHeaders("Authorization")
		r.Use(cors.New(corsConfig))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metrics.Handler())
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	authorized := r.Group("/")
	authorized.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
	registerRoutes(authorized, h)

	s := &Server{
		Engine: r,
		DB:     db,
		Config: cfg,
		logger: logger,
	}

	if cfg.Scheduler.Enabled {
		manager, err := scheduler.NewManager(logger, loc)
		if err != nil {
			return nil, err
		}

		reset := scheduler.NewResetJob(logger, taskRepo, ratingEngine, loc, scheduler.ResetOptions{
			BatchSize: cfg.Scheduler.BatchSize,
			Delay:     cfg.Scheduler.BatchDelay,
			Retries:   cfg.Scheduler.BatchRetries,
		})
		if err := manager.RegisterDaily(reset, cfg.Scheduler.ResetAt); err != nil {
			return nil, err
		}

		digest := scheduler.NewDigestJob(logger, taskRepo, tokenRepo, gateway, loc, cfg.Scheduler.DigestWorkers)
		if err := manager.RegisterDaily(digest, cfg.Scheduler.DigestAt); err != nil {
			return nil, err
		}
		s.scheduler = manager
	}

	return s, nil
}

func registerRoutes(authorized *gin.RouterGroup, h handlers) {
	// User routes
	authorized.GET("/me", h.users.Me)
	authorized.PUT("/me", h.users.UpdateProfile)
	authorized.PUT("/me/token", h.users.SetToken)
	authorized.DELETE("/me/token", h.users.DeleteToken)

	// Team routes
	authorized.POST("/teams", h.teams.Create)
	authorized.GET("/teams", h.teams.List)
	authorized.POST("/teams/join", h.teams.Join)
	authorized.GET("/teams/:id", h.teams.GetByID)
	authorized.PUT("/teams/:id", h.teams.Update)
	authorized.POST("/teams/:id/invitation-code", h.teams.RegenerateInvitationCode)
	authorized.DELETE("/teams/:id/members/:user_id", h.teams.RemoveMember)
	authorized.PUT("/teams/:id/members/:user_id/role", h.teams.SetRole)

	// Task list routes
	authorized.POST("/teams/:id/task-lists", h.teams.CreateTaskList)
	authorized.GET("/teams/:id/task-lists", h.teams.ListTaskLists)
	authorized.GET("/task-lists/:id", h.teams.GetTaskList)
	authorized.PUT("/task-lists/:id", h.teams.UpdateTaskList)
	authorized.DELETE("/task-lists/:id", h.teams.DeleteTaskList)

	// Task routes
	authorized.POST("/task-lists/:id/tasks", h.tasks.Create)
	authorized.GET("/task-lists/:id/tasks", h.tasks.List)
	authorized.GET("/tasks/:id", h.tasks.GetByID)
	authorized.PUT("/tasks/:id", h.tasks.Update)
	authorized.DELETE("/tasks/:id", h.tasks.Delete)
	authorized.POST("/tasks/:id/complete", h.tasks.Complete)

	// Distribution routes
	authorized.POST("/tasks/:id/temporal-assign", h.distribution.TemporarilyAssign)
	authorized.DELETE("/tasks/:id/temporal-assign", h.distribution.Unassign)
	authorized.POST("/task-lists/:id/preferences", h.distribution.MarkPreferred)
	authorized.POST("/task-lists/:id/preferences/done", h.distribution.SetPreferencesDone)
	authorized.POST("/task-lists/:id/distribution/complete", h.distribution.CompleteDistribution)
	authorized.POST("/task-lists/:id/rounds", h.distribution.StartNewRound)

	// Trade routes
	authorized.POST("/trades", h.trades.Create)
	authorized.GET("/trades", h.trades.List)
	authorized.GET("/trades/:id", h.trades.GetByID)
	authorized.POST("/trades/:id/accept", h.trades.Accept)
	authorized.POST("/trades/:id/reject", h.trades.Reject)
	authorized.DELETE("/trades/:id", h.trades.Delete)

	// Rating routes
	authorized.PUT("/ratings", h.ratings.Upsert)
	authorized.GET("/task-lists/:id/ratings", h.ratings.ListByTaskList)
	authorized.DELETE("/task-lists/:id/ratings/:user_id", h.ratings.Delete)
}

func (s *Server) Run() {
	srv := &http.Server{
		Addr:    ":" + s.Config.ServerPort,
		Handler: s.Engine,
	}

	if s.scheduler != nil {
		s.scheduler.Start()
	}

	go func() {
		s.logger.Infow("server running", "port", s.Config.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Fatalw("failed to listen", "err", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	s.logger.Info("shutting down server")

	if s.scheduler != nil {
		s.scheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Fatalw("server forced to shutdown", "err", err)
	}

	if sqlDB, err := s.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	s.logger.Info("server exited properly")
}
