// Command chainsim runs the supply-chain contract negotiation game server.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"chainsim/internal/api"
	"chainsim/internal/config"
	"chainsim/internal/game"
	"chainsim/internal/llm"
	"chainsim/internal/negotiation"
	"chainsim/internal/store"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("chainsim — supply-chain contract negotiation game")

	// ── Configuration ─────────────────────────────────────────────────
	cfg, err := config.Load(config.DefaultPaths(), logger)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// ── Audit log (optional) ──────────────────────────────────────────
	audit, err := store.OpenFromEnv(logger)
	if err != nil {
		slog.Error("failed to open audit log", "error", err)
		os.Exit(1)
	}
	if audit != nil {
		defer audit.Close()
	} else {
		slog.Info("audit log disabled (DB_DIALECT not set)")
	}

	// ── Supplier model ────────────────────────────────────────────────
	var provider negotiation.Provider
	if client := llm.NewClient(os.Getenv("OPENAI_API_KEY"), llm.Options{
		BaseURL: os.Getenv("OPENAI_BASE_URL"),
		Model:   os.Getenv("OPENAI_MODEL"),
	}, logger); client != nil {
		provider = client
		slog.Info("LLM supplier enabled")
	} else {
		slog.Warn("OPENAI_API_KEY not set — supplier falls back to rule-based evaluation")
	}

	// ── Engine ────────────────────────────────────────────────────────
	var recorder game.Recorder
	if audit != nil {
		recorder = audit
	}
	engine := game.NewEngine(cfg, provider, recorder, logger)
	sessions := game.NewMemoryStore()

	// ── Observer hub ──────────────────────────────────────────────────
	hub := api.NewHub(logger)
	go hub.Run()

	// ── HTTP API ──────────────────────────────────────────────────────
	adminKey := os.Getenv("CHAINSIM_ADMIN_KEY")
	if adminKey == "" {
		slog.Warn("CHAINSIM_ADMIN_KEY not set — admin endpoints will be disabled")
	}

	apiServer := &api.Server{
		Store:    sessions,
		Engine:   engine,
		Cfg:      cfg,
		Audit:    audit,
		Hub:      hub,
		Port:     port(),
		AdminKey: adminKey,
	}
	apiServer.Start()

	fmt.Printf("API: http://localhost:%d/api/v1/health\n", apiServer.Port)
	fmt.Println("Serving... (Ctrl+C to stop)")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)
}

func port() int {
	if raw := os.Getenv("CHAINSIM_PORT"); raw != "" {
		if p, err := strconv.Atoi(raw); err == nil && p > 0 {
			return p
		}
	}
	return 8080
}

func logLevel() slog.Level {
	if os.Getenv("CHAINSIM_DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
