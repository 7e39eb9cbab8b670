// Command kagebunshin runs a single kagebunshin web-automation agent
// against one task, optionally coordinating with sibling agents over a
// shared group-chat room.
//
// Usage:
//
//	kagebunshin -task "find the current weather in Tokyo"
//	kagebunshin -task "..." -room research -headless=false
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"net/http"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/kagebunshin"
	"github.com/hazyhaar/kagebunshin/audit"
	"github.com/hazyhaar/kagebunshin/chatbus"
	"github.com/hazyhaar/kagebunshin/dbopen"
	"github.com/hazyhaar/kagebunshin/httpapi"
	"github.com/hazyhaar/kagebunshin/swarm"
)

func main() {
	task := flag.String("task", "", "the task to give the root agent")
	headless := flag.Bool("headless", true, "run Chrome headless")
	vendor := flag.String("llm-vendor", env("KAGEBUNSHIN_LLM_VENDOR", "anthropic"), "anthropic or openai")
	model := flag.String("llm-model", env("KAGEBUNSHIN_LLM_MODEL", ""), "model name (vendor default if empty)")
	room := flag.String("room", env("KAGEBUNSHIN_ROOM", "lobby"), "group chat room name")
	maxAgents := flag.Int("max-agents", swarm.DefaultMaxAgents, "maximum live agents (root + clones)")
	maxDepth := flag.Int("max-clone-depth", swarm.DefaultMaxCloneDepth, "maximum clone delegation depth")
	noChat := flag.Bool("no-group-chat", os.Getenv("KAGEBUNSHIN_NO_CHAT") != "", "disable group-chat coordination")
	auditDB := flag.String("audit-db", env("KAGEBUNSHIN_AUDIT_DB", ""), "path to a SQLite audit trail (disabled if empty)")
	logLevel := flag.String("log-level", env("LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	serveAddr := flag.String("serve", env("KAGEBUNSHIN_SERVE_ADDR", ""), "if set, run an HTTP front on this address (e.g. :8085) instead of a single task")
	flag.Parse()

	if *task == "" && *serveAddr == "" {
		fmt.Fprintln(os.Stderr, "usage: kagebunshin -task \"<instructions>\" | -serve :8085")
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(*logLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, runConfig{
		task:      *task,
		headless:  *headless,
		vendor:    *vendor,
		model:     *model,
		room:      *room,
		maxAgents: *maxAgents,
		maxDepth:  *maxDepth,
		noChat:    *noChat,
		auditDB:   *auditDB,
		serveAddr: *serveAddr,
	}); err != nil {
		logger.Error("kagebunshin: fatal", "error", err)
		os.Exit(1)
	}
}

type runConfig struct {
	task      string
	headless  bool
	vendor    string
	model     string
	room      string
	maxAgents int
	maxDepth  int
	noChat    bool
	auditDB   string
	serveAddr string
}

func run(ctx context.Context, logger *slog.Logger, cfg runConfig) error {
	opts := kagebunshin.Options{
		LLM:             kagebunshin.LLMOptions{Vendor: cfg.vendor, Model: cfg.model},
		Headless:        cfg.headless,
		RecycleInterval: 4 * time.Hour,
		Room:            cfg.room,
		Limits:          swarm.Limits{MaxAgents: cfg.maxAgents, MaxCloneDepth: cfg.maxDepth},
		Logger:          logger,
	}

	if !cfg.noChat {
		chat, err := kagebunshin.WithGroupChat(ctx, chatbus.ConfigFromEnv())
		if err != nil {
			logger.Warn("kagebunshin: group chat unavailable, continuing without it", "error", err)
		} else {
			opts.Chat = chat
			defer chat.Close()
		}
	}

	if cfg.auditDB != "" {
		db, err := dbopen.Open(cfg.auditDB, dbopen.WithMkdirAll())
		if err != nil {
			logger.Warn("kagebunshin: audit db unavailable, continuing without audit trail", "error", err)
		} else {
			defer db.Close()
			auditLogger := audit.NewSQLiteLogger(db)
			if err := auditLogger.Init(); err != nil {
				logger.Warn("kagebunshin: audit init failed, continuing without audit trail", "error", err)
			} else {
				opts.AuditLogger = auditLogger
				defer auditLogger.Close()
			}
		}
	}

	agent, err := kagebunshin.New(ctx, opts)
	if err != nil {
		return fmt.Errorf("build agent: %w", err)
	}
	defer agent.Close()

	if cfg.serveAddr != "" {
		return serve(ctx, logger, agent, cfg.serveAddr)
	}

	answer, err := agent.Run(ctx, cfg.task)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	fmt.Println(answer)
	return nil
}

func serve(ctx context.Context, logger *slog.Logger, agent *kagebunshin.Agent, addr string) error {
	var jwtSecret []byte
	if s := os.Getenv("KAGEBUNSHIN_JWT_SECRET"); s != "" {
		jwtSecret = []byte(s)
	}
	router := httpapi.NewRouter(agent, httpapi.Config{JWTSecret: jwtSecret, Logger: logger})

	srv := &http.Server{Addr: addr, Handler: router}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	logger.Info("kagebunshin: http front listening", "addr", addr)
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http front: %w", err)
		}
		return nil
	}
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
