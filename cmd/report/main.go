// Package main - выгрузка сводки по треку в JSON.
//
// Пример:
//
//	report -track prepa -year 2024              # глобальная сводка
//	report -track prepa -year 2024 -center lyon-1
//	report -track insertion -center _           # сессии без центра
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alem-hub/cohort-metrics/config"
	"github.com/alem-hub/cohort-metrics/internal/application/query"
	"github.com/alem-hub/cohort-metrics/internal/domain/center"
	"github.com/alem-hub/cohort-metrics/internal/domain/objective"
	"github.com/alem-hub/cohort-metrics/internal/domain/session"
	"github.com/alem-hub/cohort-metrics/internal/domain/shared"
	"github.com/alem-hub/cohort-metrics/internal/infrastructure/persistence"
	"github.com/alem-hub/cohort-metrics/pkg/logger"
	"github.com/alem-hub/cohort-metrics/pkg/timeutil"
)

const unknownCenterFlag = center.UnknownID

type options struct {
	track    string
	year     int
	center   string
	hasCtr   bool
	compact  bool
	logLevel string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := run(ctx, opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "report: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.StringVar(&opts.track, "track", string(session.TrackPrepa), "track: prepa, insertion or ateliers")
	fs.IntVar(&opts.year, "year", timeutil.CurrentYear(), "calendar year")
	fs.StringVar(&opts.center, "center", "", `center ID; "_" selects sessions without a center; empty for the global synthesis`)
	fs.BoolVar(&opts.compact, "compact", false, "print JSON on one line")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "center" {
			opts.hasCtr = true
		}
	})
	if opts.year < objective.MinYear || opts.year > objective.MaxYear {
		return options{}, shared.ErrInvalidYear
	}
	return opts, nil
}

func run(ctx context.Context, opts options, out io.Writer) error {
	track, err := session.ParseTrack(opts.track)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.New(logger.Options{
		Output: os.Stderr,
		Level:  logger.ParseLevel(opts.logLevel),
		Format: "console",
	})

	stores, err := persistence.Open(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() { _ = stores.Close() }()

	engine := query.NewEngine(stores.Sessions, stores.Objectives, stores.Centers, query.WithLogger(log))
	return writeSynthesis(ctx, engine, opts, track, out)
}

func writeSynthesis(ctx context.Context, engine *query.Engine, opts options, track session.Track, out io.Writer) error {
	var centerID *string
	if opts.hasCtr && opts.center != "" {
		id := opts.center
		if id == unknownCenterFlag {
			id = ""
		}
		centerID = &id
	}

	synthesis, err := engine.Synthesize(ctx, centerID, opts.year, track)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	if !opts.compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(synthesis)
}
