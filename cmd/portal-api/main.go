package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/dept-portal-api/api/swagger"
	"github.com/noah-isme/dept-portal-api/internal/handler"
	"github.com/noah-isme/dept-portal-api/internal/kv"
	"github.com/noah-isme/dept-portal-api/internal/middleware"
	"github.com/noah-isme/dept-portal-api/internal/models"
	"github.com/noah-isme/dept-portal-api/internal/repository"
	"github.com/noah-isme/dept-portal-api/internal/service"
	"github.com/noah-isme/dept-portal-api/pkg/blob"
	"github.com/noah-isme/dept-portal-api/pkg/config"
	"github.com/noah-isme/dept-portal-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/dept-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/dept-portal-api/pkg/middleware/requestid"
)

// @title Department Portal API
// @version 1.0.0
// @description Student, faculty, marks and coursework records for a college department
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()

	backend, err := kv.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	defer backend.Close() //nolint:errcheck

	store := kv.NewStore(backend, kv.WithLogger(logr), kv.WithObserver(metrics))
	repos := repository.New(store)
	validate := validator.New()

	migrations, err := service.DefaultMigrations()
	if err != nil {
		return err
	}
	bootstrap := service.NewBootstrapper(store, models.StorageKeys, migrations, logr, metrics)
	if err := bootstrap.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}

	auth := service.NewAuthService(repos.Users, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	if cfg.Admin.Email != "" {
		created, err := auth.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.Name)
		if err != nil {
			return fmt.Errorf("ensure admin: %w", err)
		}
		if created {
			logr.Info("bootstrap admin created", zap.String("email", cfg.Admin.Email))
		}
	}

	graduation := service.NewGraduationService(repos.Students, repos.Batches, logr, metrics)
	if cfg.Graduation.OnStart {
		if report, err := graduation.Recompute(ctx, time.Now()); err != nil {
			logr.Error("graduation recompute failed", zap.Error(err))
		} else {
			logr.Info("graduation recomputed", zap.Int("checked", report.Checked), zap.Int("graduated", len(report.Graduated)))
		}
	}
	go graduation.Run(ctx, cfg.Graduation.Interval)

	prefix := "/" + strings.Trim(cfg.APIPrefix, "/")
	links := blob.NewLinkSigner(cfg.JWT.Secret)
	var blobs blob.Store
	if cfg.Backups.Enabled {
		opened, err := blob.Open(ctx, cfg.Blob, links, prefix+"/backups/download")
		if err != nil {
			logr.Warn("backups disabled", zap.String("driver", cfg.Blob.Driver), zap.Error(err))
		} else {
			blobs = opened
		}
	}
	backups := service.NewBackupService(store, blobs, service.BackupConfig{
		Workers:    cfg.Backups.Workers,
		Retries:    cfg.Backups.Retries,
		RetryDelay: cfg.Backups.RetryDelay,
		LinkTTL:    cfg.Blob.LinkTTL,
	}, logr, metrics)
	backups.Start(ctx)
	defer backups.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	handler.Register(r, handler.RouterConfig{APIPrefix: prefix, Docs: cfg.Env != config.EnvProduction}, handler.Handlers{
		Auth:        handler.NewAuthHandler(auth),
		Marks:       handler.NewMarkHandler(service.NewMarkService(repos.Marks, validate, logr)),
		Workflow:    handler.NewWorkflowHandler(service.NewLeaveService(repos.Leave, logr), service.NewAchievementService(repos.Achievements, validate, logr)),
		Exports:     handler.NewExportHandler(service.NewExportService(repos.Marks, repos.Students, logr)),
		Admin:       handler.NewAdminHandler(bootstrap, graduation, backups, links, logr),
		System:      handler.NewMetricsHandler(metrics, bootstrap, backend.Name()),
		Collections: handler.Collections(repos, validate, logr, time.Now),
		Tokens:      auth,
		Readiness:   bootstrap,
		AuditLog:    logr.Named("audit"),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("backend", backend.Name()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
