package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/householdhq/budget/internal/config"
	"github.com/householdhq/budget/internal/db"
	"github.com/householdhq/budget/internal/middleware"
	"github.com/householdhq/budget/internal/repository"
	"github.com/householdhq/budget/internal/service"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

type App struct {
	Cfg             *config.Config
	DB              *sqlx.DB
	Redis           *redis.Client
	AuthLimiter     middleware.Limiter
	AuthService     *service.AuthService
	TokenService    *service.TokenService
	AccountService  *service.AccountService
	FamilyService   *service.FamilyService
	CategoryService *service.CategoryService
	Notifier        service.Notifier
}

func New(cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Run database migrations
	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	emailService := service.NewEmailService(
		cfg.ResendAPIKey,
		cfg.EmailFrom,
		cfg.AppURL,
		cfg.AppName,
		cfg.IsDevelopment(),
		cfg.EmailTimeout,
	).WithSupportEmail(cfg.SupportEmail)

	if cfg.EmailProvider == config.EmailProviderSES && !cfg.IsDevelopment() {
		client, err := connectSES(cfg.AWSRegion)
		if err != nil {
			_ = database.Close()
			return nil, err
		}
		emailService = emailService.WithSES(client)
	}

	a, err := Wire(cfg, database, emailService)
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	// Rate limiter: shared through Redis when configured, per process otherwise
	if cfg.RedisURL != "" {
		client, err := connectRedis(cfg.RedisURL)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.Redis = client
		a.stopLimiter()
		a.AuthLimiter = middleware.NewRedisRateLimiter(client, cfg.RateLimitAuthRequests, cfg.RateLimitAuthWindow)
	}

	return a, nil
}

// Wire builds the services on an open, migrated database.
func Wire(cfg *config.Config, database *sqlx.DB, notifier service.Notifier) (*App, error) {
	authService, err := service.NewAuthService(repository.NewUserRepository(database), service.AuthConfig{
		JWTSecret:    cfg.JWTSecret,
		JWTExpiry:    cfg.JWTExpiry,
		SecureCookie: cfg.SecureCookies(),
		BcryptCost:   cfg.BcryptCost,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	tokenService := service.NewTokenService(database, service.TokenWindows{
		EmailVerify:   cfg.TokenEmailVerifyExpiry,
		PasswordReset: cfg.TokenPasswordResetExpiry,
		FamilyInvite:  cfg.TokenInviteExpiry,
	}, nil)

	return &App{
		Cfg:             cfg,
		DB:              database,
		AuthLimiter:     middleware.NewRateLimiter(cfg.RateLimitAuthRequests, cfg.RateLimitAuthWindow),
		AuthService:     authService,
		TokenService:    tokenService,
		AccountService:  service.NewAccountService(database, tokenService, authService, notifier, nil),
		FamilyService:   service.NewFamilyService(database, tokenService, authService, notifier, cfg.InviteConflictPolicy == config.InviteConflictDelete, nil),
		CategoryService: service.NewCategoryService(repository.NewCategoryRepository(database)),
		Notifier:        notifier,
	}, nil
}

func connectRedis(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("redis connected", "addr", opts.Addr)
	return client, nil
}

func connectSES(region string) (*ses.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	slog.Info("email via ses", "region", region)
	return ses.NewFromConfig(awsCfg), nil
}

func (a *App) stopLimiter() {
	if stopper, ok := a.AuthLimiter.(interface{ Stop() }); ok {
		stopper.Stop()
	}
}

func (a *App) Close() error {
	var errs []error
	a.stopLimiter()
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, db.Close(a.DB))
	}
	return errors.Join(errs...)
}
