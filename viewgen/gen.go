// Package viewgen generates typed read-only Go accessors for declared
// database views.
package viewgen

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dave/jennifer/jen"
	"github.com/go-openapi/inflect"
	"golang.org/x/tools/imports"

	"github.com/syssam/veloxdb/view"
)

const (
	dialectPkg = "github.com/syssam/veloxdb/dialect"
	sqlPkg     = "github.com/syssam/veloxdb/dialect/sql"
)

// Generate renders one Go source file with an accessor type per declared
// view. Each accessor exposes the view's rows through the dialect driver;
// materialized views additionally get a Refresh method. The output is
// formatted with goimports.
func Generate(reg *view.Registry, pkg string) ([]byte, error) {
	f := jen.NewFile(pkg)
	f.HeaderComment("Code generated by veloxdb. DO NOT EDIT.")
	for _, d := range reg.Views() {
		genView(f, d)
	}
	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, fmt.Errorf("viewgen: rendering: %w", err)
	}
	formatted, err := imports.Process(pkg+".go", buf.Bytes(), nil)
	if err != nil {
		return nil, fmt.Errorf("viewgen: formatting: %w", err)
	}
	return formatted, nil
}

// WriteFile generates the accessors and writes them to the given path.
func WriteFile(reg *view.Registry, pkg, path string) error {
	src, err := Generate(reg, pkg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("viewgen: create output directory: %w", err)
	}
	if err := os.WriteFile(path, src, 0o644); err != nil {
		return fmt.Errorf("viewgen: write %s: %w", path, err)
	}
	return nil
}

func genView(f *jen.File, d *view.Definition) {
	name := typeName(d)

	f.Commentf("%s provides read-only access to the %s view.", name, d.Name)
	f.Type().Id(name).Struct(
		jen.Id("drv").Qual(dialectPkg, "Driver"),
	)

	f.Commentf("New%s binds the accessor to a driver.", name)
	f.Func().Id("New" + name).Params(
		jen.Id("drv").Qual(dialectPkg, "Driver"),
	).Id(name).Block(
		jen.Return(jen.Id(name).Values(jen.Dict{jen.Id("drv"): jen.Id("drv")})),
	)

	f.Comment("Name returns the view's database name.")
	f.Func().Params(jen.Id("v").Id(name)).Id("Name").Params().String().Block(
		jen.Return(jen.Lit(d.Name)),
	)

	f.Comment("Query selects all rows from the view.")
	f.Func().Params(jen.Id("v").Id(name)).Id("Query").Params(
		jen.Id("ctx").Qual("context", "Context"),
	).Params(jen.Op("*").Qual(sqlPkg, "Rows"), jen.Error()).Block(
		jen.Id("rows").Op(":=").Op("&").Qual(sqlPkg, "Rows").Values(),
		jen.If(
			jen.Err().Op(":=").Id("v").Dot("drv").Dot("Query").Call(
				jen.Id("ctx"),
				jen.Lit(selectStmt(d)),
				jen.Index().Id("any").Values(),
				jen.Id("rows"),
			),
			jen.Err().Op("!=").Nil(),
		).Block(
			jen.Return(jen.Nil(), jen.Err()),
		),
		jen.Return(jen.Id("rows"), jen.Nil()),
	)

	f.Comment("Count returns the number of rows in the view.")
	f.Func().Params(jen.Id("v").Id(name)).Id("Count").Params(
		jen.Id("ctx").Qual("context", "Context"),
	).Params(jen.Int64(), jen.Error()).Block(
		jen.Id("rows").Op(":=").Op("&").Qual(sqlPkg, "Rows").Values(),
		jen.If(
			jen.Err().Op(":=").Id("v").Dot("drv").Dot("Query").Call(
				jen.Id("ctx"),
				jen.Lit(countStmt(d)),
				jen.Index().Id("any").Values(),
				jen.Id("rows"),
			),
			jen.Err().Op("!=").Nil(),
		).Block(
			jen.Return(jen.Lit(0), jen.Err()),
		),
		jen.Defer().Id("rows").Dot("Close").Call(),
		jen.Var().Id("n").Int64(),
		jen.If(jen.Id("rows").Dot("Next").Call()).Block(
			jen.If(
				jen.Err().Op(":=").Id("rows").Dot("Scan").Call(jen.Op("&").Id("n")),
				jen.Err().Op("!=").Nil(),
			).Block(
				jen.Return(jen.Lit(0), jen.Err()),
			),
		),
		jen.Return(jen.Id("n"), jen.Id("rows").Dot("Err").Call()),
	)

	if d.Materialized {
		f.Comment("Refresh recomputes the materialized view's rows.")
		f.Func().Params(jen.Id("v").Id(name)).Id("Refresh").Params(
			jen.Id("ctx").Qual("context", "Context"),
		).Error().Block(
			jen.Return(jen.Id("v").Dot("drv").Dot("Exec").Call(
				jen.Id("ctx"),
				jen.Lit(refreshStmt(d)),
				jen.Index().Id("any").Values(),
				jen.Nil(),
			)),
		)
	}
}

// typeName derives the accessor type name from the view name:
// "reporting.daily_sales" becomes "DailySales".
func typeName(d *view.Definition) string {
	name := d.Name
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return inflect.Camelize(name)
}

func selectStmt(d *view.Definition) string {
	return "SELECT * FROM " + d.Name
}

func countStmt(d *view.Definition) string {
	return "SELECT COUNT(*) FROM " + d.Name
}

func refreshStmt(d *view.Definition) string {
	if d.ConcurrentIndex != "" {
		return "REFRESH MATERIALIZED VIEW CONCURRENTLY " + d.Name
	}
	return "REFRESH MATERIALIZED VIEW " + d.Name
}
