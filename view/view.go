package view

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Sentinel errors returned by Registry operations and the planner. Callers
// match them with errors.Is.
var (
	ErrInvalidName       = errors.New("view: invalid view name")
	ErrDuplicate         = errors.New("view: duplicate view")
	ErrUnknownView       = errors.New("view: unknown view")
	ErrUnknownDependency = errors.New("view: unknown dependency")
	ErrDependencyCycle   = errors.New("view: dependency cycle")
	ErrNotMaterialized   = errors.New("view: not a materialized view")
)

// identRe matches an optionally schema-qualified SQL identifier.
var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Definition declares one database view to be kept in sync.
type Definition struct {
	// Name of the view, optionally schema-qualified ("reporting.active_users").
	// Unqualified names live in the public schema.
	Name string
	// SQL is the SELECT body of the view, without the CREATE wrapper and
	// without a trailing terminator.
	SQL string
	// Dependencies names other declared views this view selects from. The
	// syncer creates dependencies first.
	Dependencies []string
	// Materialized marks the view as a materialized view, which persists its
	// result set and must be refreshed explicitly.
	Materialized bool
	// ConcurrentIndex holds a comma-separated column list. When set on a
	// materialized view, a unique index over these columns is created after
	// the view, enabling REFRESH MATERIALIZED VIEW CONCURRENTLY.
	ConcurrentIndex string
}

// QualifiedName returns the definition's name with an explicit schema.
func (d *Definition) QualifiedName() string {
	return qualify(d.Name)
}

func qualify(name string) string {
	if strings.Contains(name, ".") {
		return name
	}
	return "public." + name
}

// baseName returns the name without the schema qualifier.
func baseName(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// Registry holds the declared views in registration order.
type Registry struct {
	views []*Definition
	index map[string]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register adds a view declaration. The name must be a valid (optionally
// schema-qualified) identifier and must not collide with an already
// registered view.
func (r *Registry) Register(d Definition) error {
	if !identRe.MatchString(d.Name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, d.Name)
	}
	if d.SQL == "" {
		return fmt.Errorf("view: empty SQL for view %q", d.Name)
	}
	if d.ConcurrentIndex != "" && !d.Materialized {
		return fmt.Errorf("view: concurrent index on non-materialized view %q", d.Name)
	}
	name := qualify(d.Name)
	if _, ok := r.index[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicate, d.Name)
	}
	r.index[name] = len(r.views)
	r.views = append(r.views, &d)
	return nil
}

// MustRegister is like Register but panics on error. It simplifies
// package-level view declarations.
func (r *Registry) MustRegister(d Definition) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Views returns the declared views in registration order.
func (r *Registry) Views() []*Definition {
	return r.views
}

// Lookup returns the declared view with the given (optionally qualified) name.
func (r *Registry) Lookup(name string) (*Definition, bool) {
	i, ok := r.index[qualify(name)]
	if !ok {
		return nil, false
	}
	return r.views[i], true
}

// Order returns the declared views sorted so that every view appears after
// the views it depends on. The sort is deterministic: independent views keep
// their registration order. A dependency naming no declared view or a
// dependency cycle is a configuration error.
func (r *Registry) Order() ([]*Definition, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	var (
		order []*Definition
		state = make(map[string]int, len(r.views))
		visit func(d *Definition, path []string) error
	)
	visit = func(d *Definition, path []string) error {
		name := d.QualifiedName()
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w: %s", ErrDependencyCycle, strings.Join(append(path, d.Name), " -> "))
		}
		state[name] = visiting
		for _, dep := range d.Dependencies {
			dd, ok := r.Lookup(dep)
			if !ok {
				return fmt.Errorf("%w: view %q depends on %q", ErrUnknownDependency, d.Name, dep)
			}
			if err := visit(dd, append(path, d.Name)); err != nil {
				return err
			}
		}
		state[name] = done
		order = append(order, d)
		return nil
	}
	for _, d := range r.views {
		if err := visit(d, nil); err != nil {
			return nil, err
		}
	}
	return order, nil
}
