// Package inserter writes the tables of one export file into the store in
// foreign-key order.
//
// Insert walks the foreign-key graph depth first: every referenced table that
// is part of the same import is written before the table that references it.
// Rows whose primary key already exists in the store are filtered out before
// writing, so importing the same file twice leaves the store unchanged.
//
// Failures are contained per table. A table whose rows cannot be written is
// recorded as failed and its dependents still run; a table the store does not
// know, or a foreign-key cycle, aborts the chain of tables that depend on it.
package inserter

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/koustreak/ffiload/internal/database"
	"github.com/koustreak/ffiload/internal/entity"
	"github.com/koustreak/ffiload/internal/errs"
	"github.com/koustreak/ffiload/internal/logger"
	"github.com/koustreak/ffiload/internal/metrics"
	"github.com/koustreak/ffiload/internal/schema"
)

// DefaultExclusions are tables never written: lookup, configuration and
// schema-version entities shared across every export.
var DefaultExclusions = []string{
	"FuelConstants_DL",
	"FuelConstants_ExpDL",
	"FuelConstants_FWD",
	"FuelConstants_Veg",
	"FuelConstants_CWD",
	"Schema_Version",
	"Program",
	"Project",
	"DataGridViewSettings",
	"MasterSpecies_LastModified",
	"Settings",
}

// DefaultStampTable holds the single last-modified record.
const DefaultStampTable = "Last_Modified_Date"

// Stamp identifies who wrote and when. It is supplied by the caller for every
// import rather than read from the process environment.
type Stamp struct {
	Machine string
	User    string
	Now     time.Time
}

// UserName is the stored actor identity, machine\user.
func (s Stamp) UserName() string {
	return s.Machine + `\` + s.User
}

// Options configures an Inserter.
type Options struct {
	// BatchSize bounds the key tuples of one existence query.
	BatchSize int

	// Exclusions are table names never written.
	Exclusions []string

	// StampTable receives the last-modified record after each write. Empty
	// disables stamping.
	StampTable string

	Stamp   Stamp
	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

// DefaultOptions returns the options used by the importer.
func DefaultOptions() Options {
	return Options{
		BatchSize:  database.DefaultBatchSize,
		Exclusions: slices.Clone(DefaultExclusions),
		StampTable: DefaultStampTable,
	}
}

// Status is the outcome of one table.
type Status string

const (
	StatusWritten   Status = "written"
	StatusUnchanged Status = "unchanged"
	StatusFailed    Status = "failed"
	StatusAborted   Status = "aborted"
)

// TableResult records what happened to one table.
type TableResult struct {
	Table          string   `yaml:"table"`
	Status         Status   `yaml:"status"`
	Incoming       int      `yaml:"incoming"`
	Existing       int      `yaml:"existing"`
	Written        int64    `yaml:"written"`
	Dropped        []string `yaml:"dropped_columns,omitempty"`
	IdentityInsert bool     `yaml:"identity_insert,omitempty"`
	Error          string   `yaml:"error,omitempty"`
	Err            error    `yaml:"-"`
}

// Inserter writes one file's entity map. It is not safe for concurrent use;
// create one per file.
type Inserter struct {
	db       database.DB
	schema   *schema.Introspector
	entities *entity.Map
	opts     Options
	log      *logger.Logger

	processed  map[string]bool
	inProgress map[string]bool
	aborted    map[string]error
	order      []string
	results    []*TableResult

	stampChecked bool
	stampOK      bool
}

// New returns an Inserter for the tables in m.
func New(db database.DB, sch *schema.Introspector, m *entity.Map, opts Options) *Inserter {
	if opts.BatchSize <= 0 {
		opts.BatchSize = database.DefaultBatchSize
	}
	if opts.Stamp.Now.IsZero() {
		opts.Stamp.Now = time.Now()
	}
	return &Inserter{
		db:         db,
		schema:     sch,
		entities:   m,
		opts:       opts,
		log:        logger.OrNop(opts.Logger).Component("inserter"),
		processed:  map[string]bool{},
		inProgress: map[string]bool{},
		aborted:    map[string]error{},
	}
}

// Processed returns the processed tables in the order they completed.
func (in *Inserter) Processed() []string {
	return slices.Clone(in.order)
}

// Results returns one result per table visited, in completion order.
func (in *Inserter) Results() []*TableResult {
	return slices.Clone(in.results)
}

// InsertAll inserts every non-excluded table of the entity map. Call order
// follows dependencies, not map order. Per-table failures are reported in
// the results; only context cancellation stops the walk.
func (in *Inserter) InsertAll(ctx context.Context) ([]*TableResult, error) {
	for _, name := range in.entities.Names() {
		if err := ctx.Err(); err != nil {
			return in.Results(), err
		}
		if in.excluded(name) {
			continue
		}
		if err := in.Insert(ctx, name); err != nil {
			in.log.Table(name).WarnWith("dependency chain aborted", err, nil)
		}
	}
	return in.Results(), nil
}

// Insert writes table after the tables it references. It returns an error
// only when the chain must stop: the table is unknown to the store, a
// dependency was aborted, or the walk re-entered a table in progress.
// Write failures are recorded and return nil.
func (in *Inserter) Insert(ctx context.Context, table string) error {
	if in.processed[table] {
		return nil
	}
	if err, ok := in.aborted[table]; ok {
		return err
	}
	if in.inProgress[table] {
		return errs.Newf(errs.ErrKindCycle, "foreign-key cycle through %s", table)
	}

	t, ok := in.entities.Get(table)
	if !ok {
		return errs.Newf(errs.ErrKindNotFound, "table %s is not part of this import", table)
	}

	in.inProgress[table] = true
	defer delete(in.inProgress, table)

	res := &TableResult{Table: table, Incoming: t.Len()}

	info, err := in.schema.Table(ctx, table)
	if err != nil {
		return in.abort(res, err)
	}

	if err := in.insertDependencies(ctx, table); err != nil {
		return in.abort(res, fmt.Errorf("dependency of %s: %w", table, err))
	}

	in.write(ctx, t, info, res)
	in.finish(res)
	return nil
}

func (in *Inserter) insertDependencies(ctx context.Context, table string) error {
	refs, err := in.schema.ReferencedTables(ctx, table)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		name, ok := in.entityName(ref)
		if !ok || name == table || in.excluded(name) || in.processed[name] {
			continue
		}
		if err := in.Insert(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// write filters and appends t's rows, filling res. Errors land in res.
func (in *Inserter) write(ctx context.Context, t *entity.Table, info *database.TableInfo, res *TableResult) {
	log := in.log.Table(info.Name)

	cols, dropped := projectColumns(t, info)
	res.Dropped = dropped
	if len(dropped) > 0 {
		log.Warnf("dropping %d columns unknown to the store: %s", len(dropped), strings.Join(dropped, ", "))
	}
	if len(cols) == 0 {
		res.Status = StatusUnchanged
		return
	}

	rows := buildRows(t, cols)

	eligible, existing, err := in.filterExisting(ctx, info, cols, rows)
	if err != nil {
		in.fail(res, fmt.Errorf("existence check on %s: %w", info.Name, err))
		return
	}
	res.Existing = existing
	in.opts.Metrics.RowsExisting(info.Name, existing)

	if len(eligible) == 0 {
		res.Status = StatusUnchanged
		log.Debug("all rows already present")
		return
	}

	storeCols := make([]string, len(cols))
	for i, c := range cols {
		storeCols[i] = c.store
	}

	err = in.db.Session(ctx, func(s database.Session) error {
		identity := false
		switch err := in.db.SetIdentityInsert(ctx, s, info.Name, true); {
		case err == nil:
			identity = true
		case errs.IsUnsupported(err):
		default:
			return err
		}
		res.IdentityInsert = identity

		n, werr := database.WriteRows(ctx, s, in.db.Dialect(), info.Name, storeCols, eligible, database.WriteAppend)
		res.Written = n
		if identity {
			// the mode outlives the transaction on this connection
			if err := in.db.SetIdentityInsert(ctx, s, info.Name, false); err != nil && werr == nil {
				werr = err
			}
		}
		return werr
	})
	if err != nil {
		res.Written = 0
		in.fail(res, err)
		return
	}

	res.Status = StatusWritten
	in.opts.Metrics.RowsWritten(info.Name, res.Written)
	log.InfoWith("rows written", map[string]any{
		"written":  res.Written,
		"existing": existing,
	})
	in.stamp(ctx)
}

// stamp replaces the last-modified record. A failed stamp is logged only.
func (in *Inserter) stamp(ctx context.Context) {
	if in.opts.StampTable == "" {
		return
	}
	if !in.stampChecked {
		ok, err := in.schema.Has(ctx, in.opts.StampTable)
		if err != nil {
			in.log.WarnWith("last-modified table lookup failed", err, nil)
		}
		in.stampChecked, in.stampOK = true, ok
		if !ok {
			in.log.Debugf("store has no %s table; not stamping", in.opts.StampTable)
		}
	}
	if !in.stampOK {
		return
	}

	s := in.opts.Stamp
	cols := []string{"last_edit_date", "Machine_Name", "User_Name"}
	row := []any{s.Now, s.Machine, s.UserName()}
	err := in.db.Session(ctx, func(sess database.Session) error {
		_, err := database.WriteRows(ctx, sess, in.db.Dialect(), in.opts.StampTable, cols, [][]any{row}, database.WriteReplace)
		return err
	})
	if err != nil {
		in.log.WarnWith("last-modified stamp failed", err, map[string]any{"table": in.opts.StampTable})
	}
}

func (in *Inserter) fail(res *TableResult, err error) {
	res.Status = StatusFailed
	res.Err = err
	res.Error = err.Error()
	in.opts.Metrics.TableFailed(res.Table, errs.KindOf(err).String())
	in.log.ErrorWith("table insert failed", err, map[string]any{"table": res.Table})
}

func (in *Inserter) finish(res *TableResult) {
	in.processed[res.Table] = true
	in.order = append(in.order, res.Table)
	in.results = append(in.results, res)
}

func (in *Inserter) abort(res *TableResult, err error) error {
	res.Status = StatusAborted
	res.Err = err
	res.Error = err.Error()
	in.aborted[res.Table] = err
	in.results = append(in.results, res)
	in.opts.Metrics.TableFailed(res.Table, errs.KindOf(err).String())
	in.log.ErrorWith("table insert aborted", err, map[string]any{"table": res.Table})
	return err
}

func (in *Inserter) excluded(name string) bool {
	for _, ex := range in.opts.Exclusions {
		if strings.EqualFold(ex, name) {
			return true
		}
	}
	return false
}

// entityName resolves a store table name to the entity map's spelling.
func (in *Inserter) entityName(table string) (string, bool) {
	if in.entities.Has(table) {
		return table, true
	}
	for _, n := range in.entities.Names() {
		if strings.EqualFold(n, table) {
			return n, true
		}
	}
	return "", false
}

// column pairs a file column with the store column it is written to.
type column struct {
	file  string
	store string
	info  *database.ColumnInfo
}

// projectColumns maps the file's columns onto the store table, returning
// the kept columns and the names of those the store does not have.
func projectColumns(t *entity.Table, info *database.TableInfo) ([]column, []string) {
	var cols []column
	var dropped []string
	seen := map[string]bool{}
	for _, c := range t.Columns {
		ci := info.Column(c)
		if ci == nil || seen[ci.Name] {
			dropped = append(dropped, c)
			continue
		}
		seen[ci.Name] = true
		cols = append(cols, column{file: c, store: ci.Name, info: ci})
	}
	return cols, dropped
}

// buildRows projects records onto cols, coercing integer key columns.
func buildRows(t *entity.Table, cols []column) [][]any {
	coerce := make([]bool, len(cols))
	for i, c := range cols {
		coerce[i] = c.info.IsPrimary && isIntegerKey(c.info)
	}

	rows := make([][]any, len(t.Records))
	for r, rec := range t.Records {
		row := make([]any, len(cols))
		for i, c := range cols {
			v := rec[c.file]
			if coerce[i] {
				v = toInt(v)
			}
			row[i] = v
		}
		rows[r] = row
	}
	return rows
}

// isIntegerKey reports whether a key column holds integer identifiers. An
// untyped column is judged by name: an ID that is not a GUID.
func isIntegerKey(c *database.ColumnInfo) bool {
	if c.DataType != "" {
		return database.IsIntegerType(c.DataType)
	}
	name := strings.ToUpper(c.Name)
	return strings.Contains(name, "ID") && !strings.Contains(name, "GUID")
}

// toInt converts text and integral floats to int64. Other values pass through.
func toInt(v any) any {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && integral(f) {
			return int64(f)
		}
	case []byte:
		return toInt(string(x))
	case float64:
		if integral(x) {
			return int64(x)
		}
	case int:
		return int64(x)
	case int32:
		return int64(x)
	}
	return v
}

// integral reports whether f is a whole number that fits in an int64.
func integral(f float64) bool {
	return f == math.Trunc(f) && math.Abs(f) < 1<<63
}

// filterExisting returns the rows whose primary key is absent from the store
// and the count of those that were present. Tables without a usable key are
// written in full.
func (in *Inserter) filterExisting(ctx context.Context, info *database.TableInfo, cols []column, rows [][]any) ([][]any, int, error) {
	keyIdx := make([]int, 0, len(info.PrimaryKey))
	for _, pk := range info.PrimaryKey {
		idx := slices.IndexFunc(cols, func(c column) bool { return c.store == pk })
		if idx < 0 {
			in.log.Table(info.Name).With().Str("column", pk).Logger().
				Warn("key column missing from file; skipping existence check")
			return rows, 0, nil
		}
		keyIdx = append(keyIdx, idx)
	}
	if len(keyIdx) == 0 {
		return rows, 0, nil
	}

	tuples := make([][]any, 0, len(rows))
	seen := map[string]bool{}
	for _, row := range rows {
		tuple := make([]any, len(keyIdx))
		for i, idx := range keyIdx {
			tuple[i] = row[idx]
		}
		k := database.TupleKey(tuple)
		if !seen[k] {
			seen[k] = true
			tuples = append(tuples, tuple)
		}
	}

	existing, err := ExistingKeys(ctx, in.db, in.db.Dialect(), info.Name, info.PrimaryKey, tuples, in.opts.BatchSize)
	if err != nil {
		return nil, 0, err
	}

	eligible := make([][]any, 0, len(rows))
	for _, row := range rows {
		tuple := make([]any, len(keyIdx))
		for i, idx := range keyIdx {
			tuple[i] = row[idx]
		}
		if !existing[database.TupleKey(tuple)] {
			eligible = append(eligible, row)
		}
	}
	return eligible, len(rows) - len(eligible), nil
}

// ExistingKeys returns the canonical TupleKey of every tuple in tuples whose
// key columns already match a row of table. Tuples are queried batchSize at
// a time; a single-column key uses IN, a composite key an OR of ANDs.
func ExistingKeys(ctx context.Context, q database.Querier, d database.Dialect, table string, keys []string, tuples [][]any, batchSize int) (map[string]bool, error) {
	found := map[string]bool{}
	for _, chunk := range database.Chunk(tuples, batchSize) {
		b := database.Select(table, d).Columns(keys...)
		if len(keys) == 1 {
			vals := make([]any, len(chunk))
			for i, t := range chunk {
				vals[i] = t[0]
			}
			b.WhereIn(keys[0], vals)
		} else {
			b.WhereAnyTuple(keys, chunk)
		}

		sql, args, err := b.Build()
		if err != nil {
			return nil, err
		}
		rows, err := database.QueryMaps(ctx, q, sql, args)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			tuple := make([]any, len(keys))
			for i, k := range keys {
				tuple[i] = lookup(row, k)
			}
			found[database.TupleKey(tuple)] = true
		}
	}
	return found, nil
}

func lookup(row map[string]any, col string) any {
	if v, ok := row[col]; ok {
		return v
	}
	for k, v := range row {
		if strings.EqualFold(k, col) {
			return v
		}
	}
	return nil
}
