package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/carlmjohnson/versioninfo"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/joho/godotenv/autoload"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	cli "github.com/urfave/cli/v2"

	"github.com/maaaruch/tg-suggest-bot/internal/app"
	"github.com/maaaruch/tg-suggest-bot/internal/artifact"
	"github.com/maaaruch/tg-suggest-bot/internal/moderation"
	"github.com/maaaruch/tg-suggest-bot/internal/publish"
	"github.com/maaaruch/tg-suggest-bot/internal/schedule"
	"github.com/maaaruch/tg-suggest-bot/internal/storage"
	"github.com/maaaruch/tg-suggest-bot/internal/telegram"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {
	cliApp := cli.App{
		Name:    "tg-suggest-bot",
		Usage:   "photo suggestion bot with reviewer moderation and timed channel posting",
		Version: versioninfo.Short(),
		Action:  runBot,
	}

	cliApp.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:     "telegram-bot-token",
			Usage:    "Bot API token",
			Required: true,
			EnvVars:  []string{"TELEGRAM_BOT_TOKEN"},
		},
		&cli.Int64SliceFlag{
			Name:     "reviewer-ids",
			Usage:    "comma-separated Telegram user ids allowed to moderate",
			Required: true,
			EnvVars:  []string{"REVIEWER_IDS"},
		},
		&cli.StringFlag{
			Name:     "channel-id",
			Usage:    "channel approved photos are posted to: numeric id or @username",
			Required: true,
			EnvVars:  []string{"CHANNEL_ID"},
		},
		&cli.IntFlag{
			Name:    "required-approvals",
			Usage:   "distinct approvals needed to accept a photo",
			Value:   moderation.DefaultRequiredApprovals,
			EnvVars: []string{"REQUIRED_APPROVALS"},
		},
		&cli.StringFlag{
			Name:    "db-path",
			Usage:   "path of the SQLite journal",
			Value:   "data/data.db",
			EnvVars: []string{"DB_PATH"},
		},
		&cli.StringFlag{
			Name:    "photos-dir",
			Usage:   "directory approved photos wait in until publication",
			Value:   "photos",
			EnvVars: []string{"PHOTOS_DIR"},
		},
		&cli.StringFlag{
			Name:    "timezone",
			Usage:   "IANA zone the publication slots are computed in; empty means local time",
			EnvVars: []string{"TIMEZONE"},
		},
		&cli.Float64Flag{
			Name:    "telegram-rate-limit",
			Usage:   "max outgoing Bot API calls per second (0 = unlimited)",
			Value:   25,
			EnvVars: []string{"TELEGRAM_RATE_LIMIT"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3989",
			EnvVars: []string{"METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			Value:   "info",
			EnvVars: []string{"LOG_LEVEL"},
		},
		&cli.BoolFlag{
			Name:    "bot-debug",
			Usage:   "log raw Bot API traffic",
			EnvVars: []string{"BOT_DEBUG"},
		},
	}

	return cliApp.Run(args)
}

func runBot(cctx *cli.Context) error {
	ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := configLogger(cctx.String("log-level"))
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	reviewers := uniqueIDs(cctx.Int64Slice("reviewer-ids"))
	if len(reviewers) == 0 {
		return fmt.Errorf("no reviewers configured")
	}

	loc, err := loadLocation(cctx.String("timezone"))
	if err != nil {
		return err
	}

	dbPath := cctx.String("db-path")
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := storage.New(db)
	if err := store.InitSchema(); err != nil {
		return fmt.Errorf("init db schema: %w", err)
	}

	artifacts, err := artifact.OpenFlatStore(cctx.String("photos-dir"))
	if err != nil {
		return fmt.Errorf("open photo store: %w", err)
	}
	defer artifacts.Close()

	bot, err := tgbotapi.NewBotAPI(cctx.String("telegram-bot-token"))
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}
	bot.Debug = cctx.Bool("bot-debug")
	logger.Info("bot authorized", "username", bot.Self.UserName, "version", versioninfo.Short())

	gw, err := telegram.NewGateway(telegram.Config{
		Logger:    logger,
		Channel:   cctx.String("channel-id"),
		RateLimit: cctx.Float64("telegram-rate-limit"),
	}, bot)
	if err != nil {
		return err
	}

	executor := publish.NewExecutor(logger, artifacts, gw, store)
	sched := schedule.New(schedule.Config{Logger: logger, Location: loc}, executor, store)
	sched.Start(ctx)
	defer sched.Stop()

	pending, err := store.PendingPublications()
	if err != nil {
		return fmt.Errorf("load pending publications: %w", err)
	}
	sched.Resume(pending)

	lastID, err := store.LastSubmissionID()
	if err != nil {
		return fmt.Errorf("read last submission id: %w", err)
	}

	svc := moderation.NewService(moderation.Config{
		Logger:            logger,
		Reviewers:         reviewers,
		RequiredApprovals: cctx.Int("required-approvals"),
		LastID:            lastID,
	}, gw, gw, artifacts, sched, store)

	if stats, err := store.Stats(); err == nil {
		logger.Info("journal loaded", "pending", stats.Pending, "rejected", stats.Rejected, "scheduled", stats.Scheduled, "published", stats.Published, "resumed", len(pending), "slots_held", sched.Booked())
	}

	go func() {
		if err := runMetrics(cctx.String("metrics-listen")); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start metrics endpoint", "err", err)
		}
	}()

	logger.Info("starting", "reviewers", len(reviewers), "required_approvals", svc.RequiredApprovals(), "timezone", loc.String())
	app.New(logger, bot, svc).Run(ctx)

	logger.Info("shutting down")
	return nil
}

func runMetrics(listen string) error {
	if listen == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}

func configLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})), nil
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", name, err)
	}
	return loc, nil
}

// uniqueIDs drops non-positive and repeated ids, keeping the first occurrence order.
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
