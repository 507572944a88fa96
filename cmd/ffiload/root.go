package main

import (
	"context"
	"os"

	"github.com/koustreak/ffiload/internal/config"
	"github.com/koustreak/ffiload/internal/database"
	"github.com/koustreak/ffiload/internal/database/connect"
	"github.com/koustreak/ffiload/internal/importer"
	"github.com/koustreak/ffiload/internal/inserter"
	"github.com/koustreak/ffiload/internal/logger"
	"github.com/koustreak/ffiload/internal/metrics"
	"github.com/koustreak/ffiload/internal/source"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:           "ffiload",
		Short:         "Load FFI XML exports into a relational store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("FFILOAD_CONFIG"),
		"YAML config file (environment only when empty)")

	cmd.AddCommand(newRunCmd(&opts), newCheckCmd(&opts), newServeCmd(&opts))
	return cmd
}

// app is everything a subcommand needs, opened from the config.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	db       database.DB
	metrics  *metrics.Metrics
	importer *importer.Importer
}

func openApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.LoggerConfig())

	db, err := connect.Open(ctx, cfg.StoreConfig())
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Import.Location()
	if err != nil {
		db.Close()
		return nil, err
	}
	machine, user := cfg.Import.Actor()
	m := metrics.New(nil)

	iopts := importer.Options{
		PivotVersions:  cfg.Import.PivotVersions,
		SkipDuplicates: cfg.Import.SkipDuplicates,
		Location:       loc,
		Insert: inserter.Options{
			BatchSize:  cfg.Import.BatchSize,
			Exclusions: cfg.Import.Exclusions,
			StampTable: cfg.Import.StampTable,
			Stamp:      inserter.Stamp{Machine: machine, User: user},
		},
		ReportDir: cfg.Import.ReportDir,
		Metrics:   m,
		Logger:    log,
	}

	return &app{
		cfg:      cfg,
		log:      log,
		db:       db,
		metrics:  m,
		importer: importer.New(db, iopts),
	}, nil
}

func (a *app) openSource(ctx context.Context) (*source.Source, error) {
	store, err := source.Open(ctx, a.cfg.FilestoreConfig())
	if err != nil {
		return nil, err
	}
	return source.New(store, a.cfg.SourceOptions()), nil
}

func (a *app) Close() {
	a.db.Close()
}
