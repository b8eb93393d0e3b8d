package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"querysource/internal/agent"
	"querysource/internal/config"
	"querysource/internal/connector"
	"querysource/internal/driver"
	"querysource/internal/executor"
)

var version = "dev"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "QuerySource Agent %s\n\n", version)
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  querysource-agent [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables (Required):\n")
		fmt.Fprintf(os.Stderr, "  AGENT_KEY              Agent key sent to the control plane\n")
		fmt.Fprintf(os.Stderr, "  AGENT_SECRET           Secret that signs job commands\n")
		fmt.Fprintf(os.Stderr, "  REACTOR_URL            WebSocket URL (e.g., wss://reactor.example.com)\n")
		fmt.Fprintf(os.Stderr, "  SOURCE_CONNECT_STRING  Database connect string, or CONNECTION_FILE\n")
		fmt.Fprintf(os.Stderr, "\nExample:\n")
		fmt.Fprintf(os.Stderr, "  export AGENT_KEY=\"ak_123\"\n")
		fmt.Fprintf(os.Stderr, "  export AGENT_SECRET=\"change-me\"\n")
		fmt.Fprintf(os.Stderr, "  export REACTOR_URL=\"ws://localhost:8080\"\n")
		fmt.Fprintf(os.Stderr, "  export CONNECTION_FILE=\"./connection.yaml\"\n")
		fmt.Fprintf(os.Stderr, "  querysource-agent\n")
	}

	showVersion := flag.Bool("version", false, "Show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("QuerySource Agent %s\n", version)
		os.Exit(0)
	}

	_ = godotenv.Load()
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel()}))
	slog.SetDefault(logger)

	if cfg.ReactorURL == "" || cfg.AgentSecret == "" {
		slog.Error("Missing configuration (REACTOR_URL, AGENT_SECRET)")
		os.Exit(1)
	}

	conn, err := cfg.SourceConnection()
	if err != nil {
		slog.Error("Failed to load connection", "error", err)
		os.Exit(1)
	}
	if err := conn.Validate(); err != nil {
		slog.Error("Invalid connection", "error", err)
		os.Exit(1)
	}

	countMode := executor.CountExact
	if !cfg.CountRows {
		countMode = executor.CountSkip
	}

	m := driver.NewManager(driver.DefaultBackends()...)
	defer m.Close()
	c := connector.New(m, countMode)

	slog.Info("Starting QuerySource Agent", "env", cfg.AppEnv, "reactor", cfg.ReactorURL, "backend", conn.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if status := c.TestConnection(ctx, conn); !status.OK {
		slog.Error("Connection test failed", "reason", status.Reason)
		os.Exit(1)
	}

	if err := agent.New(c, conn, cfg.ReactorURL, cfg.AgentKey, cfg.AgentSecret).Run(ctx); err != nil {
		slog.Error("Agent stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("Agent shut down")
}
