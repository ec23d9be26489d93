package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"bacopilot/internal/ai"
	appsvc "bacopilot/internal/app"
	"bacopilot/internal/cache"
	"bacopilot/internal/config"
	"bacopilot/internal/logging"
	"bacopilot/internal/pipeline"
	"bacopilot/internal/platform/database"
	rabbitmqClient "bacopilot/internal/platform/rabbitmq"
	redisClient "bacopilot/internal/platform/redis"
	"bacopilot/internal/platform/storage"
	"bacopilot/internal/repository"
	"bacopilot/internal/worker"
)

// Services groups the application services used by the transport layer.
type Services struct {
	Auth     *appsvc.AuthService
	User     *appsvc.UserService
	Project  *appsvc.ProjectService
	Folder   *appsvc.FolderService
	File     *appsvc.FileService
	Document *appsvc.DocumentService
	Session  *appsvc.SessionService
}

type App struct {
	Config *config.Config
	Logger *slog.Logger
	DB     *gorm.DB
	// Redis and MQConn are nil when the dependency is disabled.
	Redis  *redis.Client
	MQConn *amqp.Connection
	Store  storage.Store
	AI     *ai.Client

	Services       *Services
	Registry       *pipeline.Registry
	Hub            *pipeline.Hub
	Runner         *pipeline.Runner
	MetadataWorker *worker.MetadataWorker

	StartedAt time.Time
}

// Deps are the already connected infrastructure clients an App is assembled from.
type Deps struct {
	Config *config.Config
	Logger *slog.Logger
	DB     *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection
	Store  storage.Store
	AI     *ai.Client
}

// New loads the configuration, connects every dependency and assembles the App.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	db, err := database.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		closeDB(db)
		return nil, err
	}

	deps := Deps{
		Config: cfg,
		Logger: logger,
		DB:     db,
		AI: ai.NewClient(cfg.AITimeout(),
			ai.WithMaxAttempts(cfg.AI.MaxAttempts),
			ai.WithBackoffBase(cfg.AIBackoffBase()),
		),
	}

	deps.Store, err = storage.NewFromConfig(ctx, cfg.Storage)
	if err != nil {
		closeDB(db)
		return nil, fmt.Errorf("create storage failed: %w", err)
	}

	if cfg.Redis.Addr != "" {
		deps.Redis, err = redisClient.New(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, session cache, token deny-list and password reset disabled", "error", err)
		}
	}
	if cfg.RabbitMQ.URL != "" {
		deps.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.MetadataQueue)
		if err != nil {
			logger.Warn("rabbitmq unavailable, metadata extraction disabled", "error", err)
		}
	}

	app, err := Assemble(ctx, deps)
	if err != nil {
		if deps.Redis != nil {
			_ = deps.Redis.Close()
		}
		if deps.MQConn != nil {
			_ = deps.MQConn.Close()
		}
		closeDB(db)
		return nil, err
	}
	return app, nil
}

// Assemble wires repositories, services and the pipeline on top of deps. The
// metadata worker is started when a broker connection is present.
func Assemble(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	aiClient := deps.AI
	if aiClient == nil {
		aiClient = ai.NewClient(cfg.AITimeout(),
			ai.WithMaxAttempts(cfg.AI.MaxAttempts),
			ai.WithBackoffBase(cfg.AIBackoffBase()),
		)
	}

	userRepo := repository.NewUserRepository(deps.DB)
	tokenRepo := repository.NewTokenRepository(deps.DB)
	projectRepo := repository.NewProjectRepository(deps.DB)
	folderRepo := repository.NewFolderRepository(deps.DB)
	fileRepo := repository.NewFileRepository(deps.DB)
	sessionRepo := repository.NewChatSessionRepository(deps.DB)

	var (
		authOpts     []appsvc.AuthServiceOption
		docOpts      []appsvc.DocumentOption
		sessionCache appsvc.SessionCache
		publisher    appsvc.MetadataJobPublisher
	)
	if deps.Redis != nil {
		sc := cache.NewSessionCache(deps.Redis, time.Duration(cfg.Redis.SessionTTLSeconds)*time.Second, 0)
		sessionCache = sc
		docOpts = append(docOpts, appsvc.WithSessionCache(sc))
		authOpts = append(authOpts,
			appsvc.WithDenylist(cache.NewTokenDenylist(deps.Redis)),
			appsvc.WithPasswordReset(cache.NewOTPStore(deps.Redis), nil, cfg.ResetCodeTTL()),
		)
	}
	if deps.MQConn != nil && cfg.AI.MetadataEndpoint != "" {
		publisher = rabbitmqClient.NewMetadataPublisher(deps.MQConn, cfg.RabbitMQ.MetadataQueue)
	}

	folderService := appsvc.NewFolderService(projectRepo, folderRepo, fileRepo)
	services := &Services{
		Auth: appsvc.NewAuthService(userRepo, tokenRepo, cfg.Auth.JWTSecret,
			cfg.AccessTokenTTL(), cfg.RefreshTokenTTL(), authOpts...),
		User:    appsvc.NewUserService(userRepo),
		Project: appsvc.NewProjectService(projectRepo, folderRepo, fileRepo),
		Folder:  folderService,
		File:    appsvc.NewFileService(projectRepo, folderRepo, fileRepo, deps.Store, publisher),
		Document: appsvc.NewDocumentService(projectRepo, fileRepo, folderService, deps.Store,
			aiClient, cfg.AIEndpoint, docOpts...),
		Session: appsvc.NewSessionService(fileRepo, sessionRepo, sessionCache),
	}

	app := &App{
		Config:    cfg,
		Logger:    logger,
		DB:        deps.DB,
		Redis:     deps.Redis,
		MQConn:    deps.MQConn,
		Store:     deps.Store,
		AI:        aiClient,
		Services:  services,
		Registry:  pipeline.NewRegistry(),
		Hub:       pipeline.NewHub(logger),
		Runner:    pipeline.NewRunner(services.Document, cfg.Pipeline.MaxParallel),
		StartedAt: time.Now(),
	}

	if publisher != nil {
		processor := worker.NewMetadataProcessor(fileRepo, deps.Store,
			aiClient.WithAttempts(cfg.AI.MetadataMaxAttempts), cfg.AI.MetadataEndpoint)
		app.MetadataWorker = worker.NewMetadataWorker(deps.MQConn, processor, cfg.RabbitMQ.MetadataQueue, logger)
		if err := app.MetadataWorker.Start(ctx); err != nil {
			return nil, fmt.Errorf("start metadata worker failed: %w", err)
		}
	}

	return app, nil
}

// Close stops the pipeline and the worker and releases every connection.
func (a *App) Close() error {
	var closeErr error
	if a.Registry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.Registry.Shutdown(ctx); err != nil {
			closeErr = err
		}
		cancel()
	}
	if a.MetadataWorker != nil {
		a.MetadataWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
