package view

import (
	"fmt"
	"time"

	"ariga.io/atlas/sql/migrate"
	"ariga.io/atlas/sql/sqltool"
)

// Formatter returns the migration-file formatter for a named migration
// tool. The empty string selects the golang-migrate format.
func Formatter(tool string) (migrate.Formatter, error) {
	switch tool {
	case "", "golang-migrate":
		return sqltool.GolangMigrateFormatter, nil
	case "goose":
		return sqltool.GooseFormatter, nil
	case "flyway":
		return sqltool.FlywayFormatter, nil
	case "dbmate":
		return sqltool.DBMateFormatter, nil
	case "liquibase":
		return sqltool.LiquibaseFormatter, nil
	case "atlas":
		return migrate.DefaultFormatter, nil
	default:
		return nil, fmt.Errorf("view: unknown migration format %q", tool)
	}
}

// WriteMigration renders a plan as a versioned migration in dir and updates
// the directory's checksum file. Steps that change nothing contribute no
// statements. The reverse statements restore dropped views from their
// stored catalog definitions, so a forced recreate migrates back cleanly.
func WriteMigration(dir migrate.Dir, f migrate.Formatter, name string, p *Plan) error {
	if f == nil {
		f = sqltool.GolangMigrateFormatter
	}
	if name == "" {
		name = "views"
	}
	mp := &migrate.Plan{
		Name:          name,
		Version:       time.Now().UTC().Format("20060102150405"),
		Reversible:    true,
		Transactional: true,
	}
	for i := range p.Steps {
		step := &p.Steps[i]
		if !step.Changed() {
			continue
		}
		verb := "create"
		if step.Status == StatusForced {
			verb = "recreate"
		}
		for _, stmt := range step.Stmts {
			mp.Changes = append(mp.Changes, &migrate.Change{
				Cmd:     stmt,
				Comment: fmt.Sprintf("%s view %q", verb, step.View.Name),
			})
		}
		// The step reverts as a unit, attached to its last statement.
		if len(step.Revert) > 0 {
			mp.Changes[len(mp.Changes)-1].Reverse = step.Revert
		}
	}
	if len(mp.Changes) == 0 {
		return migrate.ErrNoPlan
	}
	files, err := f.Format(mp)
	if err != nil {
		return fmt.Errorf("view: formatting migration: %w", err)
	}
	for _, file := range files {
		if err := dir.WriteFile(file.Name(), file.Bytes()); err != nil {
			return fmt.Errorf("view: writing migration file %q: %w", file.Name(), err)
		}
	}
	sum, err := dir.Checksum()
	if err != nil {
		return fmt.Errorf("view: computing migration checksum: %w", err)
	}
	if err := migrate.WriteSumFile(dir, sum); err != nil {
		return fmt.Errorf("view: writing migration checksum: %w", err)
	}
	return nil
}
