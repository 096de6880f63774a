package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sonderhq/sonder-server/internal/api"
	"github.com/sonderhq/sonder-server/internal/app"
	"github.com/sonderhq/sonder-server/internal/app/maintenance"
	iauth "github.com/sonderhq/sonder-server/internal/auth"
	"github.com/sonderhq/sonder-server/internal/cache"
	"github.com/sonderhq/sonder-server/internal/database"
	"github.com/sonderhq/sonder-server/internal/otp"
	"github.com/sonderhq/sonder-server/internal/realtime"
	"github.com/sonderhq/sonder-server/internal/services"
	"github.com/sonderhq/sonder-server/pkg/logger"
	"github.com/sonderhq/sonder-server/pkg/mail"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sonder-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	generated, err := app.ApplyRuntimeDefaults(cfg)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")
	for key := range generated {
		log.Info("generated runtime secret", zap.String("key", key))
	}

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	memoryStore := cache.NewMemoryStore()

	var store cache.Store = memoryStore
	if cfg.Cache.Redis.Enabled {
		client, redisErr := cache.NewRedisClient(cfg.Cache.RedisClientConfig())
		if redisErr != nil {
			log.Warn("redis unavailable; falling back to in-memory cache", zap.Error(redisErr))
		} else {
			store = client
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	defer func() {
		if rc, ok := store.(*cache.RedisClient); ok && rc != nil {
			_ = rc.Close()
		}
	}()

	jwtService, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return fmt.Errorf("initialise jwt service: %w", err)
	}

	mailer, err := buildMailer(cfg, log)
	if err != nil {
		return err
	}

	otpService, err := otp.NewService(store, mailer, cfg.Auth.OTPServiceOptions()...)
	if err != nil {
		return fmt.Errorf("initialise otp service: %w", err)
	}

	hub := realtime.NewHub()

	userSvc, err := services.NewUserService(db, otpService, jwtService)
	if err != nil {
		return fmt.Errorf("initialise user service: %w", err)
	}

	notificationSvc, err := services.NewNotificationService(db, hub)
	if err != nil {
		return fmt.Errorf("initialise notification service: %w", err)
	}

	scheduleSvc, err := services.NewScheduleService(db, notificationSvc)
	if err != nil {
		return fmt.Errorf("initialise schedule service: %w", err)
	}

	chatSvc, err := services.NewChatService(db, hub)
	if err != nil {
		return fmt.Errorf("initialise chat service: %w", err)
	}

	ratingSvc, err := services.NewRatingService(db)
	if err != nil {
		return fmt.Errorf("initialise rating service: %w", err)
	}

	assistantSvc, closeAssistant, err := buildAssistant(ctx, cfg, chatSvc, log)
	if err != nil {
		return err
	}
	defer closeAssistant()

	cleaner := maintenance.NewCleaner(db, memoryStore)
	if err := cleaner.Start(); err != nil {
		return fmt.Errorf("start maintenance jobs: %w", err)
	}
	defer func() {
		stopCtx := cleaner.Stop()
		if err := cleaner.RunOnce(stopCtx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}()

	router, err := api.NewRouter(api.Deps{
		DB:                 db,
		JWT:                jwtService,
		Store:              store,
		Hub:                hub,
		Users:              userSvc,
		Chats:              chatSvc,
		Schedules:          scheduleSvc,
		Notifications:      notificationSvc,
		Ratings:            ratingSvc,
		Assistant:          assistantSvc,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
	})
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

func buildMailer(cfg *app.Config, log *zap.Logger) (mail.Mailer, error) {
	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise smtp mailer: %w", err)
	}
	if !cfg.Email.SMTP.Enabled {
		log.Warn("smtp disabled; verification codes will not be delivered by email")
	}
	return mailer, nil
}

// buildAssistant constructs the AI chat service when a Gemini key is
// configured. Without a key the assistant endpoint reports unavailable.
func buildAssistant(ctx context.Context, cfg *app.Config, chats *services.ChatService, log *zap.Logger) (*services.AssistantService, func(), error) {
	if strings.TrimSpace(cfg.Assistant.Gemini.APIKey) == "" {
		log.Info("assistant disabled; no gemini api key configured")
		return nil, func() {}, nil
	}

	completer, err := services.NewGeminiCompleter(ctx, services.GeminiConfig{
		APIKey: cfg.Assistant.Gemini.APIKey,
		Model:  cfg.Assistant.Gemini.Model,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("initialise gemini client: %w", err)
	}

	assistant, err := services.NewAssistantService(chats, completer)
	if err != nil {
		_ = completer.Close()
		return nil, nil, fmt.Errorf("initialise assistant service: %w", err)
	}

	log.Info("assistant enabled", zap.String("model", cfg.Assistant.Gemini.Model))
	return assistant, func() { _ = completer.Close() }, nil
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.MigrateAndSeed(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}

	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		dbCfg.Host = strings.TrimSpace(cfg.Database.Postgres.Host)
		dbCfg.Port = cfg.Database.Postgres.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.Postgres.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.Postgres.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.Postgres.Password)
	case "mysql":
		dbCfg.Host = strings.TrimSpace(cfg.Database.MySQL.Host)
		dbCfg.Port = cfg.Database.MySQL.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.MySQL.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.MySQL.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.MySQL.Password)
	default:
		// Leave driver as-is to surface unsupported driver error during open.
	}

	return dbCfg
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
