// Command gateway runs the Cognigy-to-A2A protocol-translation
// gateway: it loads an agent registry from a JSON config file and
// serves every configured agent as an A2A JSON-RPC endpoint.
//
// Usage:
//
//	gateway serve --config gateway.json
//	gateway validate --config gateway.json
//	gateway version
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/alecthomas/kong"

	"github.com/sngueneko/cognigy-a2a-gateway/internal/config"
	"github.com/sngueneko/cognigy-a2a-gateway/internal/executor"
	"github.com/sngueneko/cognigy-a2a-gateway/internal/gateway"
	"github.com/sngueneko/cognigy-a2a-gateway/internal/httpserver"
	"github.com/sngueneko/cognigy-a2a-gateway/internal/logging"
	"github.com/sngueneko/cognigy-a2a-gateway/internal/pool"
	"github.com/sngueneko/cognigy-a2a-gateway/internal/registry"
	"github.com/sngueneko/cognigy-a2a-gateway/internal/store"
	"github.com/sngueneko/cognigy-a2a-gateway/internal/taskreg"
)

// CLI defines the gateway's command-line interface.
type CLI struct {
	Serve    ServeCmd    `cmd:"" help:"Start the A2A gateway."`
	Validate ValidateCmd `cmd:"" help:"Validate the configuration file and exit."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`

	Config    string `short:"c" env:"GATEWAY_CONFIG_FILE" default:"gateway.json" help:"Path to the agents JSON config file." type:"path"`
	LogLevel  string `env:"GATEWAY_LOG_LEVEL" default:"info" help:"Log level (debug, info, warn, error)."`
	LogFile   string `env:"GATEWAY_LOG_FILE" help:"Log file path (empty = stderr)."`
	LogFormat string `env:"GATEWAY_LOG_FORMAT" default:"simple" help:"Log format (simple or verbose)."`
}

// VersionCmd prints the build version and exits.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
	fmt.Printf("cognigy-a2a-gateway %s\n", version)
	return nil
}

// ValidateCmd loads the config file and reports whether it resolves
// to a valid, non-empty agent registry, without starting the server.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	descriptors, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	fmt.Printf("OK: %d agent(s) resolved from %s\n", len(descriptors), cli.Config)
	for _, d := range descriptors {
		fmt.Printf("  - %s (%s): %s\n", d.ID, d.Transport, d.Name)
	}
	return nil
}

// ServeCmd starts the HTTP server and blocks until a shutdown signal
// arrives or the server fails.
type ServeCmd struct {
	Port            int           `env:"GATEWAY_PORT" default:"8080" help:"Port to listen on."`
	BaseURL         string        `env:"GATEWAY_BASE_URL" help:"Externally-visible base URL used to build discovery card URLs (default: http://localhost:<port>)."`
	Env             string        `name:"environment" env:"GATEWAY_ENV" default:"development" help:"Deployment environment tag, surfaced in logs only."`
	Watch           bool          `env:"GATEWAY_WATCH_CONFIG" help:"Log a warning when the config file changes on disk."`
	TaskStoreKind   string        `name:"task-store" env:"GATEWAY_TASK_STORE" default:"memory" help:"Task store backend: memory, redis, postgres, mysql, or sqlite."`
	TaskStoreURL    string        `name:"task-store-url" env:"GATEWAY_TASK_STORE_URL" help:"Connection string/DSN for a redis or SQL task store."`
	TaskStoreTTL    time.Duration `name:"task-store-ttl" env:"GATEWAY_TASK_STORE_TTL" help:"Task expiry for the redis task store (0 = no expiry)."`
	TaskStorePrefix string        `name:"task-store-prefix" env:"GATEWAY_TASK_STORE_PREFIX" default:"gateway:task:" help:"Redis key prefix for stored tasks."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	logOutput := os.Stderr
	var closeLog func()
	if cli.LogFile != "" {
		file, cleanup, err := logging.OpenLogFile(cli.LogFile)
		if err != nil {
			return fmt.Errorf("gateway: open log file: %w", err)
		}
		logOutput = file
		closeLog = cleanup
	}
	logger := logging.New(logging.ParseLevel(cli.LogLevel), logOutput, cli.LogFormat)
	slog.SetDefault(logger)
	if closeLog != nil {
		defer closeLog()
	}

	_ = config.LoadEnvFile("")

	logger.Info("gateway: starting", "environment", c.Env, "config", cli.Config)

	descriptors, err := config.Load(cli.Config)
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}

	baseURL := c.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://localhost:%d", c.Port)
	}

	reg, err := registry.New(descriptors, baseURL)
	if err != nil {
		return fmt.Errorf("gateway: building agent registry: %w", err)
	}
	logger.Info("gateway: agent registry built", "agents", reg.Count())

	if c.Watch {
		if watcher, err := config.WatchForChanges(cli.Config, logger); err != nil {
			logger.Warn("gateway: could not watch config file", "error", err)
		} else {
			defer watcher.Close()
		}
	}

	taskStore, closeStore, err := buildTaskStore(c, logger)
	if err != nil {
		return fmt.Errorf("gateway: building task store: %w", err)
	}
	if closeStore != nil {
		defer closeStore()
	}

	streamDescs := make(map[string]gateway.AgentDescriptor)
	for _, d := range reg.List() {
		if d.Transport == gateway.TransportSTREAM {
			streamDescs[d.ID] = d
		}
	}

	var connPool *pool.Pool
	if len(streamDescs) > 0 {
		dialer := pool.NewWebSocketDialer(streamDescs)
		connPool = pool.New(dialer, logger)
		dialer.SetPool(connPool)
		for id := range streamDescs {
			if err := connPool.GetOrCreate(id); err != nil {
				logger.Warn("gateway: initial connection pool dial failed; agent not kept in the pool", "agent_id", id, "error", err)
			}
		}
	}

	runtimes := make(map[string]httpserver.AgentRuntime, reg.Count())
	for _, d := range reg.List() {
		sender := newSender(d, logger)
		sessions := taskreg.New(logger)
		exec := executor.New(sender, sessions, logger)
		runtimes[d.ID] = httpserver.AgentRuntime{Executor: exec, TaskStore: taskStore}
	}

	srv, err := httpserver.New(reg, runtimes, logger)
	if err != nil {
		return fmt.Errorf("gateway: building http server: %w", err)
	}

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", c.Port),
		Handler: srv,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway: listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("gateway: shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("gateway: server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("gateway: error during shutdown", "error", err)
	}
	return nil
}

// newSender builds the executor.Sender for one agent, dispatching on
// its configured transport.
func newSender(d gateway.AgentDescriptor, logger *slog.Logger) executor.Sender {
	if d.Transport == gateway.TransportSTREAM {
		return executor.NewStreamSender(d, logger)
	}
	return executor.NewReqSender(d)
}

// buildTaskStore selects an a2asrv.TaskStore implementation per
// spec.md §6's task-store kind knob (memory | redis | postgres |
// mysql | sqlite). The returned cleanup func (nil if none needed)
// must be deferred by the caller.
func buildTaskStore(c *ServeCmd, logger *slog.Logger) (a2asrv.TaskStore, func(), error) {
	switch c.TaskStoreKind {
	case "", "memory":
		return store.NewMemoryStore(), nil, nil

	case "redis":
		if c.TaskStoreURL == "" {
			return nil, nil, fmt.Errorf("task-store-url is required for task-store=redis")
		}
		s, err := store.NewRedisStore(store.RedisConfig{
			Addr:      c.TaskStoreURL,
			KeyPrefix: c.TaskStorePrefix,
			TTL:       c.TaskStoreTTL,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.(*store.RedisStore).Close() }, nil

	case "postgres", "mysql", "sqlite", "sqlite3":
		if c.TaskStoreURL == "" {
			return nil, nil, fmt.Errorf("task-store-url is required for task-store=%s", c.TaskStoreKind)
		}
		driver := c.TaskStoreKind
		if driver == "sqlite" {
			driver = "sqlite3"
		}
		db, err := sql.Open(driver, c.TaskStoreURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		s, err := store.NewSQLStore(db, driver, logger)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return s, func() { _ = db.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown task-store kind %q (supported: memory, redis, postgres, mysql, sqlite)", c.TaskStoreKind)
	}
}

func main() {
	_ = config.LoadEnvFile("")

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("gateway"),
		kong.Description("Cognigy-to-A2A protocol-translation gateway"),
		kong.UsageOnError(),
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
