package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"brickdesk/server/config"
	"brickdesk/server/internal/api"
	"brickdesk/server/internal/auth"
	"brickdesk/server/internal/database"
	"brickdesk/server/internal/geocoding"
	"brickdesk/server/internal/geometry"
	"brickdesk/server/internal/notify"
	"brickdesk/server/internal/processor"
	"brickdesk/server/internal/queue"
	"brickdesk/server/internal/scheduler"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	// Load .env if present; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if cfg.Auth.Secret == "" {
		logger.Fatal("AUTH_SECRET is required")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
		logger.WithError(err).Fatal("Failed to create database directory")
	}
	logger.Infof("Using database at: %s", cfg.Database.Path)

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	logger.Info("Running database migrations...")
	if err := db.RunMigrations(); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	config.SetRegionPath(cfg.Regions.Path)
	if err := config.LoadRegionConfig(); err != nil {
		logger.WithError(err).Fatal("Failed to load region configuration")
	}

	authService, err := auth.NewService(db, cfg.Auth.Secret,
		auth.WithAccessTTL(time.Duration(cfg.Auth.AccessTTLHours)*time.Hour),
		auth.WithRefreshTTL(time.Duration(cfg.Auth.RefreshTTLDays)*24*time.Hour),
	)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize auth service")
	}

	importQueue := queue.NewImportQueue(cfg.Import.QueueSize, logger)
	importQueue.Start()
	defer importQueue.Close()

	batchProcessor := processor.NewBatchProcessor(db.ORM(), importQueue, cfg, logger)
	batchProcessor.Start()
	defer batchProcessor.Stop()

	hullPath := filepath.Join(filepath.Dir(cfg.Database.Path), "district_hulls.geojson")
	districtManager := geometry.NewDistrictManager(db.GetDB(), logger, hullPath)
	if err := districtManager.UpdateDistrictHulls(); err != nil {
		logger.WithError(err).Error("Failed to compute initial district hulls")
	}

	if cfg.Geocoding.Enabled {
		cacheDir := filepath.Join(os.TempDir(), "brickdesk", "geocode_cache")
		geocoder := geocoding.NewGeocoder(logger, cfg.Geocoding.Endpoint, cacheDir)
		logger.Info("Starting initial geocoding of listings without coordinates...")
		go func() {
			if err := db.UpdateMissingCoordinates(geocoder); err != nil {
				logger.WithError(err).Error("Failed to update coordinates")
			}
		}()
	}

	notifier := notify.NewService(logger, cfg.Notify.TelegramBotToken, cfg.Notify.TelegramChatID)

	maintenance := scheduler.NewScheduler(logger, cfg.Scheduler.MaintenanceHour)
	maintenance.Register("district-hulls", districtManager.UpdateDistrictHulls)
	maintenance.Start()
	defer maintenance.Stop()

	if cfg.Server.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	handler := api.NewHandler(db, cfg, authService, districtManager, notifier, importQueue, logger)
	api.SetupRoutes(router, handler, cfg.Server.CORSOrigins)

	logger.Infof("Starting server on port %s", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logger.WithError(err).Fatal("Server failed to start")
	}
}
