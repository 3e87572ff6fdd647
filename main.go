package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"promptparty/config"
	"promptparty/handlers"
	"promptparty/logging"
	"promptparty/middleware"
	"promptparty/models"
	"promptparty/routes"
	"promptparty/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatal("Failed to create logger:", err)
	}
	defer logger.Sync()

	db, err := config.InitDB(cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	questionService := services.NewQuestionService(db, logger.Named("questions"))
	if _, err := questionService.SeedDefaults(ctx); err != nil {
		logger.Fatal("failed to seed questions", zap.Error(err))
	}

	redisClient := config.InitRedis(cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}
	stateCache := services.NewStateCache(redisClient, cfg.Game.StateCacheTTL, logger.Named("cache"))

	locks := services.NewSessionLocks()
	timers := services.NewPhaseTimers()
	gameService := services.NewGameService(db, questionService, stateCache, locks, timers, cfg.Game, logger.Named("game"))
	roomService := services.NewRoomService(db, gameService, locks, cfg.Game, logger.Named("rooms"))
	authService := services.NewAuthService(db, cfg.JWTSecret, logger.Named("auth"))

	hub := services.NewHub(gameService, cfg.Game.HeartbeatInterval, cfg.Game.HeartbeatTimeout, logger.Named("hub"))
	gameService.SetNotifier(hub)
	hub.Start()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(logger.Named("http")), middleware.CORS(cfg.AllowedOrigins))

	routes.SetupRoutes(router, routes.Deps{
		Auth:         handlers.NewAuthHandler(authService),
		Rooms:        handlers.NewRoomHandler(roomService),
		Games:        handlers.NewGameHandler(gameService),
		Hub:          hub,
		Participants: gameService,
		Tokens:       authService,
		Origins:      cfg.AllowedOrigins,
		Log:          logger.Named("ws"),
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddress, cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	timers.Stop()
	hub.Shutdown()
}
