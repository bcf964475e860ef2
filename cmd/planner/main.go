// Command planner generates learner formations and macro study schedules.
//
//	planner formation -exam ID -user ID [-force] [-history]
//	planner schedule  -exam ID -user ID [-start YYYY-MM-DD] [-format json|xlsx] [-out FILE]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/p-n-ai/pai-planner/internal/curriculum"
	"github.com/p-n-ai/pai-planner/internal/formation"
	"github.com/p-n-ai/pai-planner/internal/platform/apperr"
	"github.com/p-n-ai/pai-planner/internal/platform/cache"
	"github.com/p-n-ai/pai-planner/internal/platform/config"
	"github.com/p-n-ai/pai-planner/internal/platform/database"
	"github.com/p-n-ai/pai-planner/internal/progress"
	"github.com/p-n-ai/pai-planner/internal/schedule"
	"github.com/p-n-ai/pai-planner/internal/signals"
)

const usage = "usage: planner <formation|schedule> -exam ID -user ID [flags]"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		slog.Error("planner failed", "error", err)
		stop()
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch apperr.Kind(err) {
	case apperr.ErrInvalidArgument:
		return 2
	case apperr.ErrNotFound:
		return 3
	case apperr.ErrConflict:
		return 4
	case apperr.ErrUpstreamUnavailable:
		return 5
	}
	return 1
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: %s", apperr.ErrInvalidArgument, usage)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
	}
	slog.SetDefault(newLogger(cfg.Log, os.Stderr))

	switch args[0] {
	case "formation", "schedule":
	default:
		return fmt.Errorf("%w: unknown command %q; %s", apperr.ErrInvalidArgument, args[0], usage)
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if args[0] == "formation" {
		return a.runFormation(ctx, args[1:], stdout)
	}
	return a.runSchedule(ctx, args[1:], stdout)
}

// newLogger builds the slog handler selected by LEARN_LOG_FORMAT and LEARN_LOG_LEVEL.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// progressStore is what the planner needs from learner progress storage.
type progressStore interface {
	progress.AssessmentHistoryRepository
	progress.MissedQuestionLogRepository
	progress.UserProgressRepository
}

type app struct {
	generator *formation.Generator
	scheduler *schedule.Scheduler
	closers   []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp wires storage for the configured driver, plus the optional cache.
func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	var (
		curricula curriculum.Repository
		prog      progressStore
		store     formation.Store
		events    formation.EventLogger = formation.NopEventLogger{}
	)

	switch cfg.Database.Driver {
	case config.DriverPostgres:
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrUpstreamUnavailable, err)
		}
		a.closers = append(a.closers, db.Close)
		if err := db.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrUpstreamUnavailable, err)
		}
		repo, err := curriculum.NewPostgresRepository(db.Pool)
		if err != nil {
			return nil, err
		}
		ps, err := progress.NewPostgresStore(db.Pool)
		if err != nil {
			return nil, err
		}
		formationStore, err := formation.NewPostgresStore(db.Pool)
		if err != nil {
			return nil, err
		}
		curricula, prog, store = repo, ps, formationStore
		events = formation.NewPostgresEventLogger(db.Pool)

	case config.DriverSQLite:
		loader, err := curriculum.NewLoader(cfg.CurriculumPath)
		if err != nil {
			return nil, err
		}
		sqlDB, err := database.OpenSQLite(ctx, cfg.Database.SQLiteDSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = sqlDB.Close() })
		formationStore, err := formation.NewSQLiteStore(sqlDB)
		if err != nil {
			return nil, err
		}
		curricula, prog, store = loader, progress.NewMemoryStore(), formationStore

	default:
		loader, err := curriculum.NewLoader(cfg.CurriculumPath)
		if err != nil {
			return nil, err
		}
		curricula, prog, store = loader, progress.NewMemoryStore(), formation.NewMemoryStore()
	}

	genOpts := []formation.Option{formation.WithEventLogger(events)}
	var schedOpts []schedule.Option
	if cfg.Cache.Enabled {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrUpstreamUnavailable, err)
		}
		a.closers = append(a.closers, func() { _ = c.Close() })
		genOpts = append(genOpts, formation.WithLocker(c))
		schedOpts = append(schedOpts, schedule.WithCache(c, cfg.Cache.TTL))
	}

	a.generator = formation.NewGenerator(curricula, prog, signals.NewLoader(prog, prog), store, genOpts...)
	a.scheduler = schedule.New(curricula, a.generator, prog, schedule.OptionsFromConfig(cfg.Schedule), schedOpts...)

	slog.Debug("planner ready", "driver", cfg.Database.Driver, "cache", cfg.Cache.Enabled)
	return a, nil
}

func (a *app) runFormation(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("formation", flag.ContinueOnError)
	examID := fs.String("exam", "", "exam (curriculum) id")
	userID := fs.String("user", "", "learner id")
	force := fs.Bool("force", false, "build a new version even when nothing changed")
	history := fs.Bool("history", false, "print every stored version instead of generating")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
	}
	if *examID == "" {
		return fmt.Errorf("%w: -exam is required", apperr.ErrInvalidArgument)
	}

	if *history {
		snaps, err := a.generator.History(ctx, *examID, *userID)
		if err != nil {
			return err
		}
		return writeJSON(stdout, snaps)
	}

	rec, err := a.generator.Generate(ctx, *examID, *userID, *force)
	if err != nil {
		return err
	}
	return writeJSON(stdout, rec)
}

func (a *app) runSchedule(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("schedule", flag.ContinueOnError)
	examID := fs.String("exam", "", "exam (curriculum) id")
	userID := fs.String("user", "", "learner id")
	start := fs.String("start", "", "first plan day, YYYY-MM-DD (default today)")
	format := fs.String("format", "json", "output format: json or xlsx")
	out := fs.String("out", "", "output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
	}
	if *format != "json" && *format != "xlsx" {
		return fmt.Errorf("%w: -format must be json or xlsx, got %q", apperr.ErrInvalidArgument, *format)
	}

	result, err := a.scheduler.Build(ctx, schedule.Request{ExamID: *examID, UserID: *userID, StartDate: *start})
	if err != nil {
		return err
	}

	if *out == "" {
		err = writeSchedule(stdout, *format, result)
	} else {
		err = writeScheduleFile(*out, *format, result)
	}
	if err != nil {
		return err
	}

	slog.Info("schedule written",
		"exam_id", *examID,
		"user_id", *userID,
		"days", result.Summary.DaysAvailable,
		"format", *format,
	)
	return nil
}

func writeSchedule(w io.Writer, format string, result *schedule.Result) error {
	if format == "xlsx" {
		return schedule.WriteXLSX(w, result)
	}
	return writeJSON(w, result)
}

// writeScheduleFile writes the schedule to path.
func writeScheduleFile(path, format string, result *schedule.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	return writeAndClose(f, path, format, result)
}

// writeAndClose reports a failed Close, which is where buffered writes surface.
func writeAndClose(wc io.WriteCloser, name, format string, result *schedule.Result) (err error) {
	defer func() {
		if cerr := wc.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", name, cerr)
		}
	}()
	return writeSchedule(wc, format, result)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
