package view

import (
	"path/filepath"
	"strings"
	"testing"

	"ariga.io/atlas/sql/migrate"
	"ariga.io/atlas/sql/sqltool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatter(t *testing.T) {
	for tool, want := range map[string]migrate.Formatter{
		"":               sqltool.GolangMigrateFormatter,
		"golang-migrate": sqltool.GolangMigrateFormatter,
		"goose":          sqltool.GooseFormatter,
		"flyway":         sqltool.FlywayFormatter,
		"dbmate":         sqltool.DBMateFormatter,
		"liquibase":      sqltool.LiquibaseFormatter,
		"atlas":          migrate.DefaultFormatter,
	} {
		f, err := Formatter(tool)
		require.NoError(t, err, tool)
		assert.Equal(t, want, f, tool)
	}
	_, err := Formatter("alembic")
	require.Error(t, err)
}

func TestWriteMigration(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Definition{Name: "v", SQL: "SELECT a FROM t"}))
	plan, err := PlanSync(reg, Catalog{})
	require.NoError(t, err)

	p := t.TempDir()
	dir, err := migrate.NewLocalDir(p)
	require.NoError(t, err)
	require.NoError(t, WriteMigration(dir, nil, "views", plan))

	files, err := dir.Files()
	require.NoError(t, err)
	var up, down string
	for _, f := range files {
		switch {
		case strings.HasSuffix(f.Name(), "_views.up.sql"):
			up = string(f.Bytes())
		case strings.HasSuffix(f.Name(), "_views.down.sql"):
			down = string(f.Bytes())
		}
	}
	assert.Contains(t, up, "CREATE VIEW v AS SELECT a FROM t;")
	assert.Contains(t, down, "DROP VIEW IF EXISTS v CASCADE;")

	// Checksum file written and consistent.
	require.FileExists(t, filepath.Join(p, migrate.HashFileName))
	require.NoError(t, migrate.Validate(dir))
}

func TestWriteMigrationNoChanges(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Definition{Name: "v", SQL: "SELECT a FROM t"}))
	plan, err := PlanSync(reg, Catalog{"public.v": {Name: "public.v", SQL: "SELECT a FROM t"}})
	require.NoError(t, err)

	dir, err := migrate.NewLocalDir(t.TempDir())
	require.NoError(t, err)
	err = WriteMigration(dir, nil, "views", plan)
	require.ErrorIs(t, err, migrate.ErrNoPlan)
}
