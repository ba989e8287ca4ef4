package view

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/veloxdb/dialect"
)

// Syncer applies plans against a database and manages the declared views'
// lifecycle. All mutating operations run inside a single transaction.
type Syncer struct {
	drv dialect.Driver
	reg *Registry
	log *slog.Logger

	viewSynced func(d *Definition, s Status)
	allSynced  func()
}

// SyncerOption configures a Syncer.
type SyncerOption func(*Syncer)

// WithLogger replaces the logger used for sync progress.
func WithLogger(log *slog.Logger) SyncerOption {
	return func(s *Syncer) { s.log = log }
}

// OnViewSynced registers a callback invoked after each view's step is
// applied, including no-op steps.
func OnViewSynced(f func(d *Definition, s Status)) SyncerOption {
	return func(s *Syncer) { s.viewSynced = f }
}

// OnAllSynced registers a callback invoked after a sync run commits.
func OnAllSynced(f func()) SyncerOption {
	return func(s *Syncer) { s.allSynced = f }
}

// NewSyncer returns a Syncer for the given driver and registry.
func NewSyncer(drv dialect.Driver, reg *Registry, opts ...SyncerOption) *Syncer {
	s := &Syncer{drv: drv, reg: reg, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Plan reads the catalog and computes the actions a Sync would take,
// without touching the database.
func (s *Syncer) Plan(ctx context.Context, opts ...PlanOption) (*Plan, error) {
	cat, err := ReadCatalog(ctx, s.drv)
	if err != nil {
		return nil, err
	}
	return PlanSync(s.reg, cat, opts...)
}

// Sync brings the database's views in line with the registry. The catalog
// read, the planning, and all resulting statements share one transaction:
// a failed sync leaves the views as they were. The applied plan is
// returned; check Plan.Pending for views that need force.
func (s *Syncer) Sync(ctx context.Context, opts ...PlanOption) (*Plan, error) {
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("view: starting sync transaction: %w", err)
	}
	cat, err := ReadCatalog(ctx, tx)
	if err != nil {
		return nil, rollback(tx, err)
	}
	plan, err := PlanSync(s.reg, cat, opts...)
	if err != nil {
		return nil, rollback(tx, err)
	}
	for i := range plan.Steps {
		step := &plan.Steps[i]
		for _, stmt := range step.Stmts {
			if err := tx.Exec(ctx, stmt, []any{}, nil); err != nil {
				return nil, rollback(tx, fmt.Errorf("view: syncing %q: %w", step.View.Name, err))
			}
		}
		s.logStep(step)
		if s.viewSynced != nil {
			s.viewSynced(step.View, step.Status)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("view: committing sync: %w", err)
	}
	if s.allSynced != nil {
		s.allSynced()
	}
	return plan, nil
}

func (s *Syncer) logStep(step *Step) {
	var msg string
	switch step.Status {
	case StatusCreated:
		msg = "view created"
	case StatusExists:
		msg = "view already exists, skipping"
	case StatusForced:
		msg = "forced overwrite of existing view"
	case StatusForceRequired:
		msg = "view definition changed, force required to update"
	default:
		msg = "view synced"
	}
	s.log.Info(msg, "view", step.View.Name, "status", string(step.Status))
}

// Clear drops every declared view in reverse dependency order. Drops
// cascade, so undeclared dependents go with them.
func (s *Syncer) Clear(ctx context.Context) error {
	order, err := s.reg.Order()
	if err != nil {
		return err
	}
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("view: starting clear transaction: %w", err)
	}
	for i := len(order) - 1; i >= 0; i-- {
		d := order[i]
		if err := tx.Exec(ctx, dropStmt(d.Name, d.Materialized), []any{}, nil); err != nil {
			return rollback(tx, fmt.Errorf("view: dropping %q: %w", d.Name, err))
		}
		s.log.Info("view dropped", "view", d.Name, "status", string(StatusDropped))
		if s.viewSynced != nil {
			s.viewSynced(d, StatusDropped)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("view: committing clear: %w", err)
	}
	return nil
}

// Refresh refreshes one materialized view. Concurrent refresh is used only
// when requested and the definition declares a concurrent index; without
// the index the refresh silently falls back to a blocking one.
func (s *Syncer) Refresh(ctx context.Context, name string, concurrently bool) error {
	d, ok := s.reg.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownView, name)
	}
	if !d.Materialized {
		return fmt.Errorf("%w: %q", ErrNotMaterialized, name)
	}
	stmt := "REFRESH MATERIALIZED VIEW " + d.Name
	if concurrently && d.ConcurrentIndex != "" {
		stmt = "REFRESH MATERIALIZED VIEW CONCURRENTLY " + d.Name
	}
	if err := s.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
		return fmt.Errorf("view: refreshing %q: %w", name, err)
	}
	s.log.Info("view refreshed", "view", d.Name)
	return nil
}

// RefreshAll refreshes every declared materialized view in dependency
// order. With parallel > 1, up to that many refreshes run at once; views
// then refresh in arbitrary order, so parallel refresh suits independent
// views only.
func (s *Syncer) RefreshAll(ctx context.Context, concurrently bool, parallel int) error {
	order, err := s.reg.Order()
	if err != nil {
		return err
	}
	if parallel <= 1 {
		for _, d := range order {
			if !d.Materialized {
				continue
			}
			if err := s.Refresh(ctx, d.Name, concurrently); err != nil {
				return err
			}
		}
		return nil
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for _, d := range order {
		if !d.Materialized {
			continue
		}
		d := d
		g.Go(func() error {
			return s.Refresh(ctx, d.Name, concurrently)
		})
	}
	return g.Wait()
}

// DropAffected drops the declared views whose SQL references any of the
// changed tables, in reverse dependency order. Transitive dependents are
// handled by the cascading drop. A nil changed slice triggers conservative
// mode: every declared view is dropped, for callers that cannot analyze
// the schema change. The dropped view names are returned.
func (s *Syncer) DropAffected(ctx context.Context, changed []string) ([]string, error) {
	order, err := s.reg.Order()
	if err != nil {
		return nil, err
	}
	var changedSet map[string]struct{}
	if changed != nil {
		changedSet = make(map[string]struct{}, len(changed))
		for _, t := range changed {
			changedSet[t] = struct{}{}
		}
	}
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("view: starting drop transaction: %w", err)
	}
	var dropped []string
	for i := len(order) - 1; i >= 0; i-- {
		d := order[i]
		if changedSet != nil && !references(d, changedSet) {
			continue
		}
		if err := tx.Exec(ctx, dropStmt(d.Name, d.Materialized), []any{}, nil); err != nil {
			return nil, rollback(tx, fmt.Errorf("view: dropping %q: %w", d.Name, err))
		}
		if changedSet == nil {
			s.log.Info("view dropped, conservative mode", "view", d.Name)
		} else {
			s.log.Info("view dropped, depends on changed table", "view", d.Name)
		}
		dropped = append(dropped, d.Name)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("view: committing drop: %w", err)
	}
	return dropped, nil
}

func references(d *Definition, tables map[string]struct{}) bool {
	for _, t := range DependencyTables(d.SQL) {
		if _, ok := tables[t]; ok {
			return true
		}
	}
	return false
}

func rollback(tx dialect.Tx, err error) error {
	if rerr := tx.Rollback(); rerr != nil {
		err = fmt.Errorf("%w: rolling back: %v", err, rerr)
	}
	return err
}
