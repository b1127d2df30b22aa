package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gigmarket/gigmarket-api/internal/config"
	"github.com/gigmarket/gigmarket-api/internal/domain/appointment"
	"github.com/gigmarket/gigmarket-api/internal/pkg/database"
	"github.com/gigmarket/gigmarket-api/internal/pkg/lock"
	"github.com/gigmarket/gigmarket-api/internal/pkg/logger"
)

func main() {
	once := flag.Bool("once", false, "run a single catch-up pass and exit (for cron)")
	flag.Parse()

	cfg := config.Load()
	logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
		LogFile:     cfg.LogFile,
		Service:     "recurrence-worker",
	})

	log.Info().Bool("once", *once).Msg("Starting recurrence-worker")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	rdb, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(rdb)

	worker := appointment.NewWorker(appointment.NewRepository(db), lock.New(rdb, "gigmarket:"), appointment.WorkerConfig{
		Interval:    cfg.RecurrenceWorkerInterval,
		HorizonDays: cfg.RecurrenceHorizonDays,
	})

	if *once {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		n, err := worker.CatchUp(ctx, time.Now())
		if err != nil {
			log.Error().Err(err).Msg("Recurrence catch-up failed")
			return
		}
		log.Info().Int("created", n).Msg("Recurrence catch-up finished")
		return
	}

	worker.Start()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	worker.Stop()
	log.Info().Msg("recurrence-worker stopped")
}
