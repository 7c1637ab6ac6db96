package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/planflow/backend/internal/config"
	"github.com/planflow/backend/internal/models"
	"github.com/planflow/backend/internal/services"
	"github.com/planflow/backend/internal/utils"
	"github.com/planflow/backend/pkg/logger"
	"gorm.io/gorm"
)

// App holds everything a running server needs.
type App struct {
	Config *config.Config
	DB     *gorm.DB
	Router *gin.Engine
}

// Bootstrap wires config, logging, database, background jobs and routes into
// a ready-to-run App.
func Bootstrap(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger.Init(cfg.Log.Level)
	logger.Infof("starting planflow server (mode=%s)", cfg.Server.Mode)

	utils.SetJWTSecret(cfg.JWT.Secret)
	gin.SetMode(cfg.Server.Mode)

	if err := models.InitDB(&cfg.Database); err != nil {
		return nil, err
	}
	if err := models.AutoMigrate(); err != nil {
		return nil, err
	}
	if err := models.SeedDefaultData(); err != nil {
		return nil, err
	}
	db := models.GetDB()

	services.InitSystemLogger(db)
	services.StartLogCleanupScheduler(db)

	authService := services.NewAuthService(db, &cfg.LDAP, &cfg.JWT)
	if err := authService.CreateAdminIfNotExists(); err != nil {
		return nil, err
	}

	router := SetupRouter(db, cfg)

	return &App{Config: cfg, DB: db, Router: router}, nil
}

// Run starts the HTTP server and blocks until SIGINT/SIGTERM, then shuts
// down gracefully.
func (a *App) Run() error {
	addr := a.Config.Server.Host + ":" + a.Config.Server.Port
	srv := &http.Server{
		Addr:    addr,
		Handler: a.Router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Infof("received %s, shutting down", sig)
	}

	services.StopLogCleanupScheduler()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}

	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}

	logger.Info().Msg("server stopped")
	return nil
}
