package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"

	"github.com/okian/xpboard/internal/replay"
	"github.com/okian/xpboard/pkg/logger"
)

const (
	defaultWorkers = 2 // multiplier for runtime.NumCPU()
	defaultRunTime = 10 * time.Minute
)

func main() {
	_ = godotenv.Load()

	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		secret    = flag.String("secret", os.Getenv("XPBOARD_ADMIN_JWT_SECRET"), "Admin JWT secret of the service")
		guildID   = flag.String("guild", "replay", "Guild id stamped on generated events")
		users     = flag.Int("users", replay.DefaultUsers, "Number of synthetic authors")
		perUser   = flag.Int("messages", replay.DefaultMessagesPerUser, "Messages generated per author")
		dupes     = flag.Float64("duplicates", replay.DefaultDuplicateRatio, "Share of events re-sent with the same id")
		topN      = flag.Int("top", replay.DefaultTopN, "Leaderboard size to verify")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		timeout   = flag.Duration("timeout", replay.DefaultTimeout, "HTTP request timeout")
		settle    = flag.Duration("settle", replay.DefaultSettle, "Wait between submission and verification")
		logFormat = flag.String("log-format", "text", "Log format: text or json")
		verbose   = flag.Bool("verbose", false, "Log every failed submission")
	)
	flag.Parse()

	if err := logger.Init(logger.WithFormat(*logFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTime)
	defer cancel()

	_, err := replay.Run(ctx, replay.Config{
		BaseURL:         *baseURL,
		Secret:          *secret,
		GuildID:         *guildID,
		Users:           *users,
		MessagesPerUser: *perUser,
		DuplicateRatio:  *dupes,
		TopN:            *topN,
		Workers:         *workers,
		Timeout:         *timeout,
		Settle:          *settle,
		Verbose:         *verbose,
	})
	if err != nil {
		logger.Get().Error(ctx, "replay failed", logger.Error(err))
		os.Exit(1)
	}
}
