package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tapgate/server/internal/auth"
	"github.com/tapgate/server/internal/config"
	"github.com/tapgate/server/internal/db"
	"github.com/tapgate/server/internal/httpapi"
	"github.com/tapgate/server/internal/tapgate/service"
	"github.com/tapgate/server/internal/tapgate/store/sqlite"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "tapgate-server ", log.LstdFlags|log.LUTC)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		logger.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	if cfg.Env == "dev" {
		if err := db.SeedDev(ctx, conn); err != nil {
			logger.Fatalf("seed dev: %v", err)
		}
	}

	writer := db.NewWorker(conn)
	defer writer.Close()

	// Stores
	passStore := sqlite.NewPassStore(conn, writer)
	promptStore := sqlite.NewPromptStore(conn, writer)
	scanEventStore := sqlite.NewScanEventStore(conn, writer)
	operatorStore := sqlite.NewOperatorStore(conn, writer)

	// Services
	passSvc := service.NewPassService(passStore, promptStore, scanEventStore, service.Config{
		PromptWindow:        time.Duration(cfg.PromptWindowMinutes) * time.Minute,
		SessionDefaultUses:  cfg.SessionDefaultUses,
		SeasonalDefaultUses: cfg.SeasonalDefaultUses,
		AllAccessCategory:   cfg.AllAccessCategory,
	})

	authenticator := auth.NewAuthenticator(
		operatorStore,
		[]byte(cfg.JWTSecret),
		time.Duration(cfg.TokenTTLMinutes)*time.Minute,
	)

	reaper := service.NewPromptReaper(promptStore, service.ReaperConfig{
		IntervalMinutes: cfg.ReapIntervalMinutes,
	}, logger)
	reaper.Start(ctx)
	defer reaper.Stop()

	// HTTP
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:      logger,
		Addr:        cfg.HTTPAddr,
		PassService: passSvc,
		Auth:        authenticator,
	})

	go func() {
		logger.Printf("listening on %s", cfg.HTTPAddr)
		if err := srv.Start(); err != nil {
			logger.Printf("server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
