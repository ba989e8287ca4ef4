package view

import (
	"fmt"
	"strings"
)

// Status reports what the syncer did (or would do) for one view.
type Status string

const (
	// StatusCreated means the view was absent and gets created.
	StatusCreated Status = "CREATED"
	// StatusExists means the view is left untouched: its stored definition
	// already matches the declared one, or updates are disabled.
	StatusExists Status = "EXISTS"
	// StatusForced means the stored definition differs and the view is
	// dropped and recreated because force is set.
	StatusForced Status = "FORCED"
	// StatusForceRequired means the stored definition differs but force is
	// not set, so the view is left untouched.
	StatusForceRequired Status = "FORCE_REQUIRED"
	// StatusDropped is reported by Clear and DropAffected.
	StatusDropped Status = "DROPPED"
)

// Step is one planned action for one declared view.
type Step struct {
	View   *Definition
	Status Status
	// Stmts are the statements that apply the step, in order. Empty for
	// StatusExists and StatusForceRequired.
	Stmts []string
	// Revert are the statements that undo the step, in reverse-migration
	// order. A forced recreate reverts to the catalog's stored definition.
	Revert []string
}

// Changed reports whether applying the step touches the database.
func (s *Step) Changed() bool {
	return len(s.Stmts) > 0
}

// Plan is an ordered list of steps, dependency-sorted.
type Plan struct {
	Steps []Step
}

// Pending reports whether any step requires force to proceed.
func (p *Plan) Pending() []string {
	var names []string
	for i := range p.Steps {
		if p.Steps[i].Status == StatusForceRequired {
			names = append(names, p.Steps[i].View.Name)
		}
	}
	return names
}

type planConfig struct {
	update bool
	force  bool
}

// PlanOption configures planning.
type PlanOption func(*planConfig)

// WithForce allows the planner to drop and recreate views whose stored
// definition differs from the declared one.
func WithForce() PlanOption {
	return func(c *planConfig) { c.force = true }
}

// WithNoUpdate makes the planner leave existing views untouched even when
// their stored definition differs.
func WithNoUpdate() PlanOption {
	return func(c *planConfig) { c.update = false }
}

// PlanSync computes the actions needed to bring the catalog in line with the
// registry. Views are ordered so dependencies come first. Per view:
//
//   - absent from the catalog: create (StatusCreated)
//   - present with a matching definition and kind: no-op (StatusExists)
//   - present with a differing definition, or stored as the wrong kind
//     (plain where materialized is declared, or vice versa): drop and
//     recreate when force is set (StatusForced), otherwise report
//     StatusForceRequired. With WithNoUpdate, differing views are skipped
//     as StatusExists.
//
// Definitions are compared textually after whitespace normalization; the
// database re-renders stored view SQL, so declared bodies should use the
// rendered form (see Catalog) to read as unchanged.
func PlanSync(r *Registry, cat Catalog, opts ...PlanOption) (*Plan, error) {
	cfg := planConfig{update: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	order, err := r.Order()
	if err != nil {
		return nil, err
	}
	p := &Plan{Steps: make([]Step, 0, len(order))}
	for _, d := range order {
		entry, exists := cat[d.QualifiedName()]
		step := Step{View: d}
		switch {
		case !exists:
			step.Status = StatusCreated
			step.Stmts = createStmts(d)
			step.Revert = []string{dropStmt(d.Name, d.Materialized)}
		case entry.Materialized == d.Materialized && normalizeSQL(entry.SQL) == normalizeSQL(d.SQL):
			step.Status = StatusExists
		case !cfg.update:
			step.Status = StatusExists
		case cfg.force:
			step.Status = StatusForced
			// The drop targets the object as it exists in the catalog; the
			// declared kind may differ from the stored one.
			step.Stmts = append([]string{dropStmt(d.Name, entry.Materialized)}, createStmts(d)...)
			step.Revert = []string{
				dropStmt(d.Name, d.Materialized),
				createStmt(d.Name, entry.SQL, entry.Materialized),
			}
		default:
			step.Status = StatusForceRequired
		}
		p.Steps = append(p.Steps, step)
	}
	return p, nil
}

func createStmts(d *Definition) []string {
	stmts := []string{createStmt(d.Name, d.SQL, d.Materialized)}
	if d.Materialized && d.ConcurrentIndex != "" {
		stmts = append(stmts, indexStmt(d))
	}
	return stmts
}

func createStmt(name, body string, materialized bool) string {
	body = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(body), ";"))
	if materialized {
		return fmt.Sprintf("CREATE MATERIALIZED VIEW %s AS %s;", name, body)
	}
	return fmt.Sprintf("CREATE VIEW %s AS %s;", name, body)
}

func dropStmt(name string, materialized bool) string {
	if materialized {
		return fmt.Sprintf("DROP MATERIALIZED VIEW IF EXISTS %s CASCADE;", name)
	}
	return fmt.Sprintf("DROP VIEW IF EXISTS %s CASCADE;", name)
}

// indexStmt builds the unique index enabling concurrent refresh.
func indexStmt(d *Definition) string {
	cols := strings.Split(d.ConcurrentIndex, ",")
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}
	return fmt.Sprintf("CREATE UNIQUE INDEX %s_%s_index ON %s (%s);",
		baseName(d.Name), strings.Join(cols, "_"), d.Name, strings.Join(cols, ", "))
}
