// Package app wires config into the store, service and HTTP engines shared by
// cmd/api and cmd/admin.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"go-gin-gorm-accounts/internal/core/auth"
	"go-gin-gorm-accounts/internal/core/cache"
	"go-gin-gorm-accounts/internal/core/config"
	"go-gin-gorm-accounts/internal/core/database"
	"go-gin-gorm-accounts/internal/core/logger"
	"go-gin-gorm-accounts/internal/repo"
	"go-gin-gorm-accounts/internal/service"
	"go-gin-gorm-accounts/internal/transport/http/handler"
	mdw "go-gin-gorm-accounts/internal/transport/http/middleware"
	"go-gin-gorm-accounts/internal/transport/http/router"
	"go-gin-gorm-accounts/pkg/utils"
)

type App struct {
	Cfg     *config.Config
	Log     *zap.Logger
	DB      *gorm.DB
	JWT     *auth.JWTer
	Repo    *repo.AccountRepo
	Service *service.AccountService
	Secured *service.Secured

	redis *cache.Cache
}

// NewLogger builds the process logger from log.* and routes the standard
// library logger and gin's writers into it.
func NewLogger(c config.Log) (*zap.Logger, func()) {
	var (
		l       *zap.Logger
		cleanup func()
	)
	if c.File.Enable {
		f := c.File
		l, cleanup = logger.NewWithRotate(c.Level, c.JSON, f.Filename, f.MaxSizeMB, f.MaxBackups, f.MaxAgeDays, f.Compress)
	} else {
		l, cleanup = logger.New(c.Level, c.JSON)
	}
	undo := logger.RedirectStdLog(l, zapcore.InfoLevel)
	gin.DefaultWriter = logger.ToWriter(l.Named("gin"), zapcore.DebugLevel)
	gin.DefaultErrorWriter = logger.ToWriter(l.Named("gin"), zapcore.ErrorLevel)
	return l, func() {
		undo()
		cleanup()
	}
}

// New opens the database, applies migrations when db.autoMigrate is set and
// builds the guarded account service. Redis is optional: an unreachable
// server disables the read cache with a warning.
func New(ctx context.Context, cfg *config.Config, l *zap.Logger) (*App, error) {
	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
		SlowThresholdMs:    cfg.DB.SlowThresholdMs,
	}, l)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	l.Info("database connected", zap.String("driver", cfg.DB.Driver))

	if cfg.DB.AutoMigrate {
		if err := database.Migrate(ctx, db, cfg.DB.Driver, l); err != nil {
			return nil, err
		}
		l.Info("migrations done")
	}

	a := &App{
		Cfg: cfg,
		Log: l,
		DB:  db,
		JWT: auth.NewJWTer(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL()),
	}
	a.Repo = repo.NewAccountRepo(repo.NewTombstoneStore(db, nil), utils.NewID)

	deps := service.Deps{
		Repo:   a.Repo,
		Hasher: utils.NewBcryptHasher(cfg.Accounts.BcryptCost),
		Tokens: a.JWT,
		Log:    l,
	}
	if c := a.openCache(ctx); c != nil {
		deps.Cache = c
	}
	a.Service = service.NewAccountService(deps, service.Options{
		EmailCaseInsensitive: cfg.Accounts.EmailCaseInsensitive,
		MaxPageSize:          cfg.Accounts.MaxPageSize,
	})
	a.Secured = service.NewSecured(a.Service, service.NewGuard(nil, l), a.Repo)
	return a, nil
}

func (a *App) openCache(ctx context.Context) *cache.AccountCache {
	if !a.Cfg.Cache.Enabled || a.Cfg.Redis.Addr == "" {
		return nil
	}
	c := cache.New(a.Cfg.Redis.Addr, a.Cfg.Redis.Password, a.Cfg.Redis.DB)
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.Ping(pctx); err != nil {
		a.Log.Warn("redis unreachable, account cache disabled", zap.String("addr", a.Cfg.Redis.Addr), zap.Error(err))
		_ = c.Close()
		return nil
	}
	a.redis = c
	a.Log.Info("account cache enabled", zap.String("addr", a.Cfg.Redis.Addr))
	return cache.NewAccountCache(c, time.Duration(a.Cfg.Cache.TTLSec)*time.Second, a.Log)
}

func (a *App) routerOptions() router.Options {
	mode := gin.ReleaseMode
	if a.Cfg.App.Env == "local" || a.Cfg.App.Env == "dev" {
		mode = gin.DebugMode
	}
	return router.Options{
		Name:           a.Cfg.App.Name,
		Mode:           mode,
		AllowedOrigins: a.Cfg.CORS.AllowedOrigins,
		Limits:         a.Cfg.Limits,
	}
}

// APIEngine serves /api/v1.
func (a *App) APIEngine() *gin.Engine {
	var reg router.Registry
	reg.Register(handler.NewAccountHandler(a.Secured, mdw.AuthJWT(a.JWT, ""), a.Cfg.Accounts.DefaultPageSize))
	return router.NewAPIEngine(a.Log, a.routerOptions(), &reg)
}

// AdminEngine serves /admin/v1.
func (a *App) AdminEngine() *gin.Engine {
	var reg router.Registry
	reg.Register(handler.NewAdminHandler(a.Secured, a.Cfg.Accounts.DefaultPageSize))
	return router.NewAdminEngine(a.Log, a.routerOptions(), a.JWT, &reg)
}

func (a *App) Close() error {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
