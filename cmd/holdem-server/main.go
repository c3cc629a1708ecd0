package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/lox/cardroom/internal/auth"
	"github.com/lox/cardroom/internal/natsbus"
	"github.com/lox/cardroom/internal/server"
	"github.com/lox/cardroom/internal/store"
	"github.com/lox/cardroom/internal/table"
)

var CLI struct {
	Config   string `short:"c" long:"config" default:"holdem-server.hcl" help:"Path to HCL configuration file"`
	EnvFile  string `long:"env-file" default:".env" help:"Dotenv file with secrets, ignored if missing"`
	LogLevel string `short:"l" long:"log-level" help:"Log level (overrides config)"`

	Serve ServeCmd `cmd:"" default:"1" help:"Run the game server"`
	Token TokenCmd `cmd:"" help:"Issue a player token signed with the configured JWT secret"`
}

type ServeCmd struct {
	Addr string `short:"a" long:"addr" help:"Server address to bind to, host:port (overrides config)"`
}

type TokenCmd struct {
	Player string        `arg:"" help:"Player id"`
	Name   string        `long:"name" help:"Display name"`
	TTL    time.Duration `long:"ttl" default:"24h" help:"Token lifetime"`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("holdem-server"),
		kong.Description("Texas Hold'em table server"),
	)
	if err := ctx.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		ctx.Exit(1)
	}
}

func loadConfig() (*server.Config, error) {
	cfg, err := server.LoadConfig(CLI.Config)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ApplyEnv(CLI.EnvFile); err != nil {
		return nil, err
	}
	if CLI.LogLevel != "" {
		cfg.Server.LogLevel = CLI.LogLevel
	}
	return cfg, nil
}

func newLogger(level string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

func (c *TokenCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Server.JWTSecret == "" {
		return fmt.Errorf("no JWT secret configured; set jwt_secret or JWT_SECRET")
	}
	token, err := auth.NewJWTValidator(cfg.Server.JWTSecret).Issue(c.Player, c.Name, c.TTL)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func (c *ServeCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if c.Addr != "" {
		host, port, err := net.SplitHostPort(c.Addr)
		if err != nil {
			return fmt.Errorf("invalid --addr: %w", err)
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid --addr port: %w", err)
		}
		cfg.Server.Address, cfg.Server.Port = host, p
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cfg.Server.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st store.Store = store.NewMemory()
	if cfg.Storage.PostgresURL != "" {
		pg, err := store.Connect(ctx, cfg.Storage.PostgresURL)
		if err != nil {
			return err
		}
		st = pg
		logger.Info("Using postgres storage")
	} else {
		logger.Warn("No postgres_url configured, table state will not survive a restart")
	}
	defer st.Close()

	writer := store.NewAsyncWriter(st, logger)
	bus := table.NewBus()

	if cfg.NATS.URL != "" {
		nc, err := natsbus.Connect(natsbus.Config{
			URL:           cfg.NATS.URL,
			Token:         cfg.NATS.Token,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
		}, logger)
		if err != nil {
			return fmt.Errorf("connecting to nats: %w", err)
		}
		defer func() { _ = nc.Drain() }()
		mirror := natsbus.NewMirror(nc, cfg.NATS.SubjectPrefix, logger)
		unsubscribe := bus.Subscribe(mirror.Handle)
		defer unsubscribe()
		logger.Info("Mirroring table events to NATS", "url", cfg.NATS.URL, "prefix", cfg.NATS.SubjectPrefix)
	}

	manager := table.NewManager()
	for _, tc := range cfg.Tables {
		t, err := table.Restore(ctx, st, tc.EngineConfig(),
			table.WithLogger(logger),
			table.WithBus(bus),
			table.WithPersister(writer),
		)
		if err != nil {
			return fmt.Errorf("table %s: %w", tc.Name, err)
		}
		if err := manager.Add(t); err != nil {
			return err
		}
		logger.Info("Table ready",
			"id", tc.Name,
			"stakes", fmt.Sprintf("%d/%d", tc.SmallBlind, tc.BigBlind),
			"ante", tc.Ante,
			"maxPlayers", tc.MaxPlayers)
		if tc.DeckSeed != 0 {
			logger.Warn("Table deals seeded decks; hands are predictable", "id", tc.Name, "seed", tc.DeckSeed)
		}
	}

	opts := server.Options{
		AllowedOrigins:     cfg.Server.AllowedOrigins,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
	}
	if cfg.Server.JWTSecret != "" {
		opts.Validator = auth.NewJWTValidator(cfg.Server.JWTSecret)
	} else {
		logger.Warn("No JWT secret configured, players are trusted by id")
	}
	srv := server.NewServer(cfg.GetServerAddress(), manager, bus, logger, opts)

	// The writer outlives the server so the final table writes are flushed.
	writerCtx, stopWriter := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return writer.Run(writerCtx)
	})
	g.Go(func() error {
		defer stopWriter()
		err := srv.Run(gctx)
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if serr := manager.Stop(stopCtx); serr != nil {
			logger.Error("Failed to stop tables", "error", serr)
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
