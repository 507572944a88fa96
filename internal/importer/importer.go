// Package importer runs the per-file import pipeline: flatten the export,
// pivot long-format attributes, check for duplicates, then write every table
// in foreign-key order.
//
// Files are imported strictly one at a time. A failing file is reported and
// the driver moves on to the next one.
package importer

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/koustreak/ffiload/internal/database"
	"github.com/koustreak/ffiload/internal/dedup"
	"github.com/koustreak/ffiload/internal/ffixml"
	"github.com/koustreak/ffiload/internal/inserter"
	"github.com/koustreak/ffiload/internal/logger"
	"github.com/koustreak/ffiload/internal/metrics"
	"github.com/koustreak/ffiload/internal/pivot"
	"github.com/koustreak/ffiload/internal/schema"
	"github.com/koustreak/ffiload/internal/source"
)

// Status is the outcome of one file.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailure Status = "failure"
	StatusSkipped Status = "skipped"
)

// Options configures an Importer.
type Options struct {
	// PivotVersions are the format versions whose exports are pivoted.
	PivotVersions []string

	// SkipDuplicates skips files the duplicate check classifies as Duplicate.
	SkipDuplicates bool

	// Location is the zone export timestamps are rendered in.
	Location *time.Location

	// Insert configures the table writer. Its Stamp.Now is refreshed per
	// file when left zero.
	Insert inserter.Options

	// ReportDir receives one YAML report per file. Empty disables reports.
	ReportDir string

	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

// DefaultOptions returns the options used by the CLI.
func DefaultOptions() Options {
	return Options{
		PivotVersions: slices.Clone(pivot.DefaultVersions),
		Insert:        inserter.DefaultOptions(),
	}
}

// Report describes one imported file.
type Report struct {
	File        string                  `yaml:"file"`
	Version     string                  `yaml:"version,omitempty"`
	Status      Status                  `yaml:"status"`
	Verdict     string                  `yaml:"verdict,omitempty"`
	Duplicates  *dedup.Report           `yaml:"duplicates,omitempty"`
	Pivoted     []string                `yaml:"pivoted_tables,omitempty"`
	PivotSkips  int                     `yaml:"pivot_skipped_records,omitempty"`
	Collisions  []string                `yaml:"pivot_collisions,omitempty"`
	Synthesized []string                `yaml:"synthesized_audit_columns,omitempty"`
	Tables      []*inserter.TableResult `yaml:"tables,omitempty"`
	Error       string                  `yaml:"error,omitempty"`
	Started     time.Time               `yaml:"started"`
	Duration    time.Duration           `yaml:"duration"`
}

// Importer imports export files into one store. The schema cache is shared
// by every file; imports are serialised.
type Importer struct {
	db     database.DB
	schema *schema.Introspector
	dedup  *dedup.Detector
	pivot  *pivot.Engine
	opts   Options
	log    *logger.Logger

	mu sync.Mutex
}

// New returns an Importer writing to db.
func New(db database.DB, opts Options) *Importer {
	log := logger.OrNop(opts.Logger).Component("importer")
	if opts.Insert.Logger == nil {
		opts.Insert.Logger = opts.Logger
	}
	if opts.Insert.Metrics == nil {
		opts.Insert.Metrics = opts.Metrics
	}
	return &Importer{
		db:     db,
		schema: schema.New(db),
		dedup:  dedup.New(db, dedup.WithBatchSize(opts.Insert.BatchSize), dedup.WithLogger(opts.Logger)),
		pivot:  pivot.New(opts.Logger),
		opts:   opts,
		log:    log,
	}
}

// Schema returns the shared schema cache.
func (im *Importer) Schema() *schema.Introspector {
	return im.schema
}

// ImportFile flattens the export read from r and imports it under name.
// The returned error is non-nil only when ctx ended; everything else is
// carried in the report.
func (im *Importer) ImportFile(ctx context.Context, name string, r io.Reader) (*Report, error) {
	started := time.Now()
	doc, err := ffixml.Parse(r, ffixml.Options{Location: im.opts.Location})
	if err != nil {
		return im.failed(name, started, fmt.Errorf("flatten %s: %w", name, err)), nil
	}
	doc.Name = name
	return im.Import(ctx, doc)
}

// ImportPath imports the export file at path.
func (im *Importer) ImportPath(ctx context.Context, path string) (*Report, error) {
	started := time.Now()
	doc, err := ffixml.ParseFile(path, ffixml.Options{Location: im.opts.Location})
	if err != nil {
		return im.failed(path, started, err), nil
	}
	return im.Import(ctx, doc)
}

// Import runs the pipeline on an already flattened export.
func (im *Importer) Import(ctx context.Context, doc *ffixml.Document) (*Report, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	rep := &Report{File: doc.Name, Version: doc.Version, Started: time.Now()}
	log := im.log.With().Str("file", doc.Name).Logger()

	if pivot.Applies(doc.Version, im.opts.PivotVersions) {
		log.Infof("pivoting format version %s", doc.Version)
		res := im.pivot.Expand(doc.Entities)
		rep.Pivoted = res.Tables
		rep.PivotSkips = res.Skipped
		rep.Synthesized = res.Synthesized
		for _, c := range res.Collisions {
			rep.Collisions = append(rep.Collisions, c.Error())
		}
	}

	dup, err := im.dedup.Check(ctx, doc.Entities)
	if err != nil {
		log.WarnWith("duplicate check failed", err, nil)
	} else {
		rep.Duplicates = dup
		rep.Verdict = dup.Verdict.String()
		if dup.Verdict == dedup.Duplicate && im.opts.SkipDuplicates {
			rep.Status = StatusSkipped
			return im.finish(log, rep, nil), nil
		}
	}

	opts := im.opts.Insert
	if opts.Stamp.Now.IsZero() {
		opts.Stamp.Now = time.Now()
	}
	results, err := inserter.New(im.db, im.schema, doc.Entities, opts).InsertAll(ctx)
	rep.Tables = results
	if err != nil {
		return im.finish(log, rep, err), err
	}
	return im.finish(log, rep, nil), nil
}

func (im *Importer) failed(name string, started time.Time, err error) *Report {
	rep := &Report{File: name, Started: started}
	return im.finish(im.log.With().Str("file", name).Logger(), rep, err)
}

// Check runs only the duplicate check on the export read from r.
func (im *Importer) Check(ctx context.Context, r io.Reader) (*dedup.Report, error) {
	doc, err := ffixml.Parse(r, ffixml.Options{Location: im.opts.Location})
	if err != nil {
		return nil, err
	}
	return im.dedup.Check(ctx, doc.Entities)
}

// finish settles the status, records metrics and writes the report.
func (im *Importer) finish(log *logger.Logger, rep *Report, err error) *Report {
	rep.Duration = time.Since(rep.Started)
	if err != nil {
		rep.Error = err.Error()
	}
	if rep.Status == "" {
		rep.Status = settle(rep, err)
	}
	im.opts.Metrics.FileDone(string(rep.Status), rep.Duration)

	fields := map[string]any{
		"status":   rep.Status,
		"verdict":  rep.Verdict,
		"tables":   len(rep.Tables),
		"duration": rep.Duration.String(),
	}
	if rep.Status == StatusFailure {
		log.ErrorWith("import failed", err, fields)
	} else {
		log.InfoWith("import finished", fields)
	}

	if im.opts.ReportDir != "" {
		if path, werr := WriteReport(im.opts.ReportDir, rep); werr != nil {
			log.WarnWith("writing report", werr, nil)
		} else {
			log.Debugf("report written to %s", path)
		}
	}
	return rep
}

// settle derives the file status from its table outcomes. A file fails when
// it could not be read or no table made it in; it is partial when some
// tables failed or a pivot collision dropped a method.
func settle(rep *Report, err error) Status {
	if err != nil {
		return StatusFailure
	}
	var ok, bad int
	for _, t := range rep.Tables {
		switch t.Status {
		case inserter.StatusWritten, inserter.StatusUnchanged:
			ok++
		default:
			bad++
		}
	}
	switch {
	case bad > 0 && ok == 0:
		return StatusFailure
	case bad > 0 || len(rep.Collisions) > 0:
		return StatusPartial
	default:
		return StatusSuccess
	}
}

// Run imports every pending file of src, one at a time, and moves each file
// that did not fail under the processed prefix. It stops early only when ctx
// ends.
func (im *Importer) Run(ctx context.Context, src *source.Source) ([]*Report, error) {
	files, err := src.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing exports: %w", err)
	}
	im.log.Infof("%d exports pending", len(files))

	var reports []*Report
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		rep, err := im.runOne(ctx, src, f)
		if rep != nil {
			reports = append(reports, rep)
		}
		if err != nil {
			return reports, err
		}
	}
	return reports, nil
}

func (im *Importer) runOne(ctx context.Context, src *source.Source, f source.File) (*Report, error) {
	log := im.log.With().Str("file", f.Key).Logger()

	rc, err := src.Open(ctx, f.Key)
	if err != nil {
		return im.failed(f.Name, time.Now(), fmt.Errorf("open %s: %w", f.Key, err)), nil
	}
	rep, err := im.ImportFile(ctx, f.Name, rc)
	rc.Close()
	if err != nil {
		return rep, err
	}

	if rep.Status == StatusFailure {
		log.Warn("left in place for retry")
		return rep, nil
	}
	dst, err := src.MarkProcessed(ctx, f.Key)
	if err != nil {
		log.WarnWith("moving processed export", err, nil)
		return rep, nil
	}
	log.Debugf("moved to %s", dst)
	return rep, nil
}
