package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	httpapi "github.com/huddlekit/huddle/internal/api/http"
	"github.com/huddlekit/huddle/internal/config"
	"github.com/huddlekit/huddle/internal/gateway"
	"github.com/huddlekit/huddle/internal/registry"
	"github.com/huddlekit/huddle/internal/repository"
	"github.com/huddlekit/huddle/internal/repository/model"
	"github.com/huddlekit/huddle/internal/service"
	"github.com/huddlekit/huddle/internal/storage"
	"github.com/huddlekit/huddle/lib/logger/sl"
	"github.com/huddlekit/huddle/lib/logger/slogpretty"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)

	var meetingRepo repository.MeetingRepository
	var userRepo repository.UserRepository

	// The metadata store is optional: without a DSN everything runs from
	// memory and rooms work in anonymous mode.
	if cfg.Database.DSN != "" {
		db, err := connectDatabase(cfg.Database)
		if err != nil {
			log.Error("failed to connect database", sl.Err(err))
			os.Exit(1)
		}
		meetingRepo = repository.NewPostgresMeetingRepository(db)
		userRepo = repository.NewPostgresUserRepository(db)
	} else {
		log.Info("no database configured, using in-memory metadata store")
		meetingRepo = repository.NewInMemoryMeetingRepository()
		userRepo = repository.NewInMemoryUserRepository()
	}

	meetingService := service.NewMeetingService(meetingRepo, log)
	userService := service.NewUserService(userRepo, log)

	reg := registry.New(log)
	gw := gateway.New(reg, meetingService, log)

	blobs, err := storage.NewFSStore(cfg.Storage.RecordingsDir)
	if err != nil {
		log.Error("failed to init recording storage", sl.Err(err))
		os.Exit(1)
	}

	meetingController := httpapi.NewMeetingController(meetingService, userService)
	userController := httpapi.NewUserController(userService)
	recordingController := httpapi.NewRecordingController(blobs, log)
	roomController := httpapi.NewRoomController(reg)

	router := httpapi.SetupRouter(gw, meetingController, userController, recordingController, roomController, cfg.WebRTC.STUNServers)

	log.Info("starting application", slog.String("addr", cfg.HTTP.Address))
	if err := router.Run(cfg.HTTP.Address); err != nil {
		log.Error("http server stopped", sl.Err(err))
		os.Exit(1)
	}
}

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = setupPrettySlog()
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

func connectDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	db.AutoMigrate(&model.Meeting{}, &model.Attendee{}, &model.User{})

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}
