// Command agorasim runs the adaptive commodity-market simulation.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/talgya/agora/internal/catalog"
	"github.com/talgya/agora/internal/dist"
	"github.com/talgya/agora/internal/sim"
	"github.com/talgya/agora/internal/tradelog"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load .env file", "error", err)
	}

	catalogPath := envOr("AGORA_CATALOG", "config.toml")
	dbPath := envOr("AGORA_DB", "data/agora.db")
	seed := uint64(time.Now().UnixNano())
	if s := os.Getenv("AGORA_SEED"); s != "" {
		parsed, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			slog.Error("invalid AGORA_SEED", "value", s, "error", err)
			os.Exit(1)
		}
		seed = parsed
	}

	runID := uuid.NewString()
	slog.Info("Agora — adaptive commodity-market simulation", "run_id", runID, "seed", seed)

	// The catalog is the one fatal dependency. Everything after this
	// point degrades rather than aborts.
	products, err := catalog.Load(catalogPath)
	if err != nil {
		slog.Error("failed to load product catalog", "path", catalogPath, "error", err)
		os.Exit(1)
	}
	slog.Info("catalog loaded", "path", catalogPath, "products", len(products))

	os.MkdirAll("data", 0755)
	var recorder tradelog.Recorder
	recorder, err = tradelog.OpenSQLite(dbPath, runID)
	if err != nil {
		slog.Error("failed to open trade log, running without persistence", "path", dbPath, "error", err)
		recorder = tradelog.Nop{}
	} else {
		slog.Info("trade log opened", "path", dbPath)
	}
	defer func() {
		if err := recorder.Close(); err != nil {
			slog.Error("trade log close failed", "error", err)
		}
	}()

	src := dist.NewSource(seed)
	market := sim.NewMarket(products, src, recorder, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	market.StartDesireLoops(ctx)

	started := time.Now()
	rounds := market.Run(ctx)

	var totalCash float64
	for _, agent := range market.Agents() {
		totalCash += agent.Cash()
	}

	fmt.Printf("\nSimulation complete: %s rounds in %s.\n",
		humanize.Comma(int64(rounds)), time.Since(started).Round(time.Second))
	fmt.Printf("Closing consumer cash across the economy: %s\n",
		humanize.CommafWithDigits(totalCash, 2))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
