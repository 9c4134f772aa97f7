// Package ingest validates SDoH datasets and loads each one atomically into a
// shared variable catalog plus a per-dataset wide table.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tordrt/sdohload/internal/db"
	"github.com/tordrt/sdohload/internal/schema"
	"github.com/tordrt/sdohload/internal/tabular"
)

// DefaultCleanupTimeout bounds rollback and compensating statements once the caller's context is gone
const DefaultCleanupTimeout = 30 * time.Second

// State is a step of one load request
type State int

const (
	StateValidating State = iota
	StateStaged
	StateCommitting
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateStaged:
		return "staged"
	case StateCommitting:
		return "committing"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled back"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Request is one dataset to load
type Request struct {
	Source      string
	Version     string
	CensusYear  int
	Granularity schema.Granularity
	GeoIDColumn string
	URL         string
	Description string
	Descriptor  *tabular.Table
	Data        *tabular.Table
}

// Key returns the dataset key of the request
func (r Request) Key() schema.DatasetKey {
	return schema.DatasetKey{Source: r.Source, Version: r.Version, Granularity: r.Granularity}
}

// Plan holds every statement of a load, built but not yet executed
type Plan struct {
	Key         schema.DatasetKey
	Table       schema.WideTable
	Source      db.Statement
	Catalog     db.Batch
	CreateTable db.Statement
	Rows        db.Batch
	DropTable   db.Statement
	Removal     []db.Statement
	Variables   int
	Records     int
}

// Outcome is the terminal result of a load
type Outcome struct {
	Key       schema.DatasetKey
	State     State
	Variables int
	Rows      int
	Err       error
}

// Success reports whether the dataset was committed
func (o Outcome) Success() bool {
	return o.State == StateCommitted && o.Err == nil
}

// Message reports what was loaded, or why nothing was
func (o Outcome) Message() string {
	if o.Success() {
		return fmt.Sprintf("%d variables, %d rows loaded into %s", o.Variables, o.Rows, o.Key.TableName())
	}
	if o.Err == nil {
		return o.State.String()
	}
	return o.Err.Error()
}

// Options tunes a Coordinator. Zero values select defaults.
type Options struct {
	BatchSize      int
	Timeout        time.Duration
	CleanupTimeout time.Duration
}

// Coordinator sequences validation, staging and the atomic commit of one dataset
type Coordinator struct {
	store          db.Store
	catalog        *CatalogWriter
	loader         *TableLoader
	timeout        time.Duration
	cleanupTimeout time.Duration
}

// NewCoordinator creates a coordinator writing to store
func NewCoordinator(store db.Store, opts Options) *Coordinator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = db.DefaultBatchSize
	}
	if opts.CleanupTimeout <= 0 {
		opts.CleanupTimeout = DefaultCleanupTimeout
	}
	return &Coordinator{
		store:          store,
		catalog:        NewCatalogWriter(store.Dialect(), store.Schema(), opts.BatchSize),
		loader:         NewTableLoader(store.Dialect(), store.Schema(), opts.BatchSize),
		timeout:        opts.Timeout,
		cleanupTimeout: opts.CleanupTimeout,
	}
}

// LoadDataset loads one dataset and reports (success, message)
func (c *Coordinator) LoadDataset(ctx context.Context, req Request) (bool, string) {
	o := c.Load(ctx, req)
	return o.Success(), o.Message()
}

// Load validates, stages and commits one dataset. On failure nothing of the
// dataset remains in the store.
func (c *Coordinator) Load(ctx context.Context, req Request) Outcome {
	out := Outcome{Key: req.Key(), State: StateValidating}

	plan, err := c.Stage(req)
	if err != nil {
		out.State, out.Err = StateRolledBack, err
		return out
	}
	out.State = StateStaged

	if err := ctx.Err(); err != nil {
		out.State, out.Err = StateRolledBack, &Error{Kind: KindStorage, Detail: "load cancelled before commit", Err: err}
		return out
	}

	out.State, out.Err = c.Commit(ctx, plan)
	if out.State == StateCommitted {
		out.Variables, out.Rows = plan.Variables, plan.Records
	}
	return out
}

// Stage runs every validation and builds the statements of a load without touching the store
func (c *Coordinator) Stage(req Request) (*Plan, error) {
	key := req.Key()
	if err := ValidateDomain(key.Granularity, req.CensusYear); err != nil {
		return nil, err
	}
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if req.Descriptor == nil || req.Data == nil {
		return nil, newError(KindSchema, "both a descriptor and a data table are required")
	}

	vars, err := ValidateDescriptor(req.Descriptor, key.Granularity, req.CensusYear)
	if err != nil {
		return nil, err
	}

	derived, err := DeriveSchema(req.Data, req.GeoIDColumn)
	if err != nil {
		return nil, err
	}
	if err := matchColumns(vars, derived.Columns); err != nil {
		return nil, err
	}

	table := c.loader.WideTable(key, derived.Columns)
	create, err := c.loader.DeriveTableDDL(table)
	if err != nil {
		return nil, err
	}
	rows, err := c.loader.BatchInsert(table, derived.Records)
	if err != nil {
		return nil, err
	}

	return &Plan{
		Key:         key,
		Table:       table,
		Source:      c.catalog.StageSourceEntry(SourceEntryFor(key, req.URL, req.Description, req.CensusYear)),
		Catalog:     c.catalog.StageCatalogEntries(CatalogEntriesFor(vars, key, req.CensusYear)),
		CreateTable: create,
		Rows:        rows,
		DropTable:   c.loader.DropTable(table),
		Removal:     c.catalog.StageRemoval(key),
		Variables:   len(vars),
		Records:     len(derived.Records),
	}, nil
}

// Commit executes a staged plan as one unit and returns the terminal state.
//
// Where DDL is transactional, catalog rows, table creation and row inserts
// share one transaction. Otherwise the table is created first, the writes run
// in one transaction, and any failure drops the table again (and removes
// catalog rows if the failure was at commit, where the outcome is unknown).
// Cancellation does not interrupt a commit already issued; if a transactional
// commit still reports an error, the stored source entry decides the state.
func (c *Coordinator) Commit(ctx context.Context, plan *Plan) (State, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var err error
	if c.store.Dialect().TransactionalDDL() {
		var atCommit bool
		atCommit, err = c.runTx(ctx, plan, true)
		if err != nil && atCommit && !errors.Is(err, ErrConflict) {
			return c.resolveCommit(ctx, plan, err)
		}
	} else {
		err = c.commitCompensated(ctx, plan)
	}
	if err != nil {
		return StateRolledBack, err
	}
	return StateCommitted, nil
}

// resolveCommit settles a commit that returned an error by looking for the
// source entry, which is written in the same transaction as everything else.
func (c *Coordinator) resolveCommit(ctx context.Context, plan *Plan, commitErr error) (State, error) {
	cctx, cancel := c.cleanupContext(ctx)
	defer cancel()

	src, err := db.NewInspector(c.store).Source(cctx, plan.Key.TableName())
	if err != nil {
		return StateRolledBack, &Error{
			Kind:   KindStorage,
			Detail: fmt.Sprintf("outcome of commit for %s unknown after: %v", plan.Key, commitErr),
			Err:    err,
		}
	}
	if src != nil {
		return StateCommitted, nil
	}
	return StateRolledBack, commitErr
}

func (c *Coordinator) commitCompensated(ctx context.Context, plan *Plan) error {
	if err := c.store.Exec(ctx, plan.CreateTable); err != nil {
		// nothing was created; a conflict here belongs to another load
		return c.classify(err, "create table", plan.Key)
	}

	atCommit, err := c.runTx(ctx, plan, false)
	if err == nil {
		return nil
	}

	undo := []db.Statement{}
	if atCommit {
		undo = append(undo, plan.Removal...)
	}
	undo = append(undo, plan.DropTable)

	cctx, cancel := c.cleanupContext(ctx)
	defer cancel()
	for _, st := range undo {
		if uerr := c.store.Exec(cctx, st); uerr != nil {
			return &Error{
				Kind:   KindStorage,
				Detail: fmt.Sprintf("rollback of %s incomplete after: %v", plan.Key, err),
				Err:    uerr,
			}
		}
	}
	return err
}

// runTx executes the plan's writes in one transaction. atCommit reports
// whether the failure came from Commit itself.
func (c *Coordinator) runTx(ctx context.Context, plan *Plan, withDDL bool) (atCommit bool, err error) {
	tx, err := c.store.Begin(ctx)
	if err != nil {
		return false, c.classify(err, "begin transaction", plan.Key)
	}
	committed := false
	defer func() {
		if !committed {
			cctx, cancel := c.cleanupContext(ctx)
			defer cancel()
			_ = tx.Rollback(cctx)
		}
	}()

	if err := tx.Exec(ctx, plan.Source); err != nil {
		return false, c.classify(err, "register source", plan.Key)
	}
	if err := tx.ExecBatch(ctx, plan.Catalog); err != nil {
		return false, c.classify(err, "register variables", plan.Key)
	}
	if withDDL {
		if err := tx.Exec(ctx, plan.CreateTable); err != nil {
			return false, c.classify(err, "create table", plan.Key)
		}
	}
	if err := tx.ExecBatch(ctx, plan.Rows); err != nil {
		return false, c.classify(err, "insert rows", plan.Key)
	}
	// a commit in flight is not interrupted by cancellation
	cctx, cancel := c.cleanupContext(ctx)
	defer cancel()
	if err := tx.Commit(cctx); err != nil {
		return true, c.classify(err, "commit", plan.Key)
	}
	committed = true
	return false, nil
}

// matchColumns checks that every described variable is a column of the data table
func matchColumns(vars []schema.Variable, columns []string) error {
	have := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		have[col] = struct{}{}
	}
	for _, v := range vars {
		if _, ok := have[v.Name]; !ok {
			return newError(KindSchema, "variable %q is described but has no column in the data file", v.Name)
		}
	}
	return nil
}

// cleanupContext outlives cancellation of ctx so a cancelled commit still reaches a terminal state
func (c *Coordinator) cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.cleanupTimeout)
}

func (c *Coordinator) classify(err error, op string, key schema.DatasetKey) error {
	var ie *Error
	if errors.As(err, &ie) {
		return err
	}
	if c.store.Dialect().IsConflict(err) {
		return &Error{Kind: KindConflict, Detail: fmt.Sprintf("dataset %s is already loaded", key), Err: err}
	}
	return &Error{Kind: KindStorage, Detail: "failed to " + op, Err: err}
}
