package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stormhold/auctionhouse/internal/auctionhouse"
	"github.com/stormhold/auctionhouse/internal/config"
	"github.com/stormhold/auctionhouse/internal/database"
	"github.com/stormhold/auctionhouse/internal/database/repositories"
	"github.com/stormhold/auctionhouse/internal/game"
	"github.com/stormhold/auctionhouse/internal/logger"
)

var (
	version = "dev"
	commit  = "unknown"
)

const tickInterval = 100 * time.Millisecond

func main() {
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}

	slog.SetDefault(slog.New(logger.NewHandler(logger.ParseLevel(cfg.Log.Level))))
	slog.Info("Starting auction house daemon",
		slog.String("version", version),
		slog.String("commit", commit))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dbStartTime := time.Now()
	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		slog.Error("Database connection failed",
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}
	defer db.Close()

	repo := repositories.NewAuctionRepository(db.BunDB())
	if err := repo.InitializeTables(ctx); err != nil {
		slog.Error("Failed to initialize tables", slog.Any("error", err))
		os.Exit(-1)
	}

	directory := game.NewLocalDirectory()
	pipeline := auctionhouse.NewSettlementPipeline(db.BunDB(), directory, cfg.AuctionHouse.CommitWorkers)

	registry := auctionhouse.NewRegistry(cfg.AuctionHouse, auctionhouse.Dependencies{
		Ledger:    game.NewLocalLedger(),
		Directory: directory,
		Packets:   game.LogPacketSink{},
		Mailer:    game.LogMailer{},
		Stats:     game.LogStats{},
		Settler:   pipeline,
		Repo:      repo,
		Items:     game.NewStaticItems(),
	})

	if err := registry.Recover(ctx); err != nil {
		slog.Error("Failed to recover auction state", slog.Any("error", err))
		os.Exit(-1)
	}

	slog.Info("Auction houses ready", slog.Duration("took", time.Since(dbStartTime)))

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case now := <-ticker.C:
			registry.Update(now)
		case sig := <-stop:
			slog.Info("Shutting down", slog.String("signal", sig.String()))
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()
			if err := registry.Shutdown(shutdownCtx); err != nil {
				slog.Error("Shutdown did not complete cleanly", slog.Any("error", err))
				os.Exit(1)
			}
			return
		}
	}
}
