package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/prematch/internal/matching"
	"github.com/desertthunder/prematch/internal/metrics"
	"github.com/desertthunder/prematch/internal/repositories"
	"github.com/desertthunder/prematch/internal/shared"
	"github.com/desertthunder/prematch/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The store is opened lazily by the first command that needs it and closed by [Runner.Close].
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	registry   *prometheus.Registry
	store      *store
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	DB         *sql.DB // optional, skips opening the configured database
}

// store bundles the database with the repositories and engine built on it.
type store struct {
	db       *sql.DB
	owned    bool
	predb    *repositories.PreDBRepository
	releases *repositories.ReleaseRepository
	runs     *repositories.RunRepository
	engine   *tasks.MatchEngine
	stages   *tasks.StageRunner
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		registry:   prometheus.NewRegistry(),
	}
	if opts.DB != nil {
		r.store = r.newStore(opts.DB, false)
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, predbCommand, matchCommand, stageCommand, runsCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by the runner and anything it builds afterwards.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
	if r.store != nil {
		r.store = r.newStore(r.store.db, r.store.owned)
	}
}

// loadConfig reads path when it exists and keeps the defaults otherwise.
func (r *Runner) loadConfig(path string) error {
	r.configPath = path
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		r.logger.Debug("config file not found, using defaults", "path", path)
		return nil
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return err
	}
	r.config = config
	return nil
}

// open returns the store, opening and migrating the configured database on first use.
func (r *Runner) open() (*store, error) {
	if r.store != nil {
		return r.store, nil
	}
	if err := r.config.Validate(); err != nil {
		return nil, err
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, err
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	r.store = r.newStore(db, true)
	return r.store, nil
}

func (r *Runner) newStore(db *sql.DB, owned bool) *store {
	predb := repositories.NewPreDBRepository(db).
		WithCache(repositories.NewListingCache(r.config.Cache.ListingTTL.Duration))
	releases := repositories.NewReleaseRepository(db)
	runs := repositories.NewRunRepository(db)

	m, err := metrics.NewMatchMetrics(r.registry)
	if err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			m, _ = already.ExistingCollector.(*metrics.MatchMetrics)
		} else {
			r.logger.Warn("match metrics disabled", "error", err)
		}
	}

	engine := tasks.NewMatchEngine(tasks.EngineDeps{
		PreDB:       predb,
		Releases:    releases,
		Runs:        runs,
		Categorizer: matching.NewReleaseTypeCategorizer(r.config.Categories),
		Metrics:     m,
		Logger:      r.logger,
	}, r.config.Correlation)

	return &store{
		db:       db,
		owned:    owned,
		predb:    predb,
		releases: releases,
		runs:     runs,
		engine:   engine,
		stages:   tasks.NewStageRunner(engine, r.config, r.logger),
	}
}

// registerRuntimeCollectors adds the Go runtime and process collectors served next to the match metrics.
func (r *Runner) registerRuntimeCollectors() {
	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := r.registry.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				r.logger.Warn("failed to register collector", "error", err)
			}
		}
	}
}

// Close closes the database when the runner opened it.
func (r *Runner) Close() error {
	if r.store == nil || !r.store.owned {
		return nil
	}
	err := r.store.db.Close()
	r.store = nil
	return err
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
