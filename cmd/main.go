package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"

	"github.com/okian/xpboard/internal/adapters/discord"
	"github.com/okian/xpboard/internal/adapters/http/api"
	"github.com/okian/xpboard/internal/adapters/http/swagger"
	"github.com/okian/xpboard/internal/adapters/repository"
	"github.com/okian/xpboard/internal/adapters/repository/sqlite"
	app "github.com/okian/xpboard/internal/app"
	"github.com/okian/xpboard/internal/config"
	"github.com/okian/xpboard/pkg/logger"
	"github.com/okian/xpboard/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 10 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is fine; real deployments set the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	opts := append(serviceOptions(cfg, log), app.WithStore(store))
	var session *discordgo.Session
	if cfg.DiscordToken != "" {
		if session, err = discord.NewSession(cfg.DiscordToken); err != nil {
			_ = store.Close()
			return err
		}
		publisher := discord.NewPublisher(session)
		opts = append(opts,
			app.WithPublisher(publisher),
			app.WithAnnouncer(publisher),
			app.WithRoleMutator(discord.NewRoleMutator(session)),
		)
	} else {
		log.Warn(ctx, "no discord token configured; running the HTTP surface only")
	}
	svc := app.New(opts...)

	var bot *discord.Bot
	if session != nil {
		bot = discord.New(session, svc,
			discord.WithGuildID(cfg.DiscordGuildID),
			discord.WithPolicy(discord.Policy{
				PerChar:  cfg.XPPerChar,
				MinGain:  cfg.MinXPPerMessage,
				MaxGain:  cfg.MaxXPPerMessage,
				Cooldown: cfg.Cooldown(),
			}),
		)
	}
	return serve(ctx, cfg, svc, bot)
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.StorageDriver {
	case config.DriverMemory:
		return repository.NewMemoryStore(), nil
	default:
		return sqlite.Open(ctx, cfg.DatabasePath)
	}
}

func serviceOptions(cfg *config.Config, log logger.Logger) []app.Option {
	return []app.Option{
		app.WithLogger(log),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.EventQueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithCooldown(cfg.Cooldown()),
		app.WithGainPolicy(cfg.XPPerChar, cfg.MinXPPerMessage, cfg.MaxXPPerMessage),
		app.WithPruneSchedule(cfg.CooldownPruneSchedule),
		app.WithMaxLeaderboard(cfg.MaxLeaderboardLimit),
	}
}

// serve starts the service, the bot (when configured) and the HTTP server,
// and blocks until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, svc *app.Service, bot *discord.Bot) error {
	log := logger.Get()
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	if bot != nil {
		if err := bot.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := bot.Stop(); err != nil {
				log.Error(ctx, "discord session close failed", logger.Error(err))
			}
		}()
	}

	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, cfg, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

func newMux(ctx context.Context, cfg *config.Config, svc *app.Service) *http.ServeMux {
	mux := http.NewServeMux()
	var opts []api.Option
	if cfg.AdminJWTSecret != "" {
		opts = append(opts, api.WithAdminSecret(cfg.AdminJWTSecret))
	}
	swagger.Register(ctx, mux)
	api.NewServer(svc, cfg.MaxLeaderboardLimit, opts...).Register(ctx, mux)
	return mux
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
