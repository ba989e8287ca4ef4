package cli

import (
	"errors"
	"fmt"
	"strings"

	"ariga.io/atlas/sql/migrate"
	"github.com/spf13/cobra"

	"github.com/syssam/veloxdb/view"
	"github.com/syssam/veloxdb/viewgen"
)

// NewViewsCommand groups the view lifecycle commands.
func NewViewsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "views",
		Short: "Manage the declared database views",
	}
	cmd.AddCommand(newViewsSyncCommand(rootOpts))
	cmd.AddCommand(newViewsClearCommand(rootOpts))
	cmd.AddCommand(newViewsRefreshCommand(rootOpts))
	cmd.AddCommand(newViewsMigrateCommand(rootOpts))
	cmd.AddCommand(newViewsGenCommand(rootOpts))
	return cmd
}

func newViewsSyncCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		force    bool
		noUpdate bool
		dryRun   bool
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Create or update the declared views",
		Long: `Sync brings the database's views in line with the declared definitions.
Views whose stored definition differs are only replaced with --force;
without it they are reported and left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closer, err := rootOpts.syncer()
			if err != nil {
				return err
			}
			defer closer()

			opts := planOptions(force, noUpdate)
			var plan *view.Plan
			if dryRun {
				plan, err = s.Plan(cmd.Context(), opts...)
			} else {
				plan, err = s.Sync(cmd.Context(), opts...)
			}
			if err != nil {
				return err
			}
			printPlan(cmd, plan, dryRun)
			if pending := plan.Pending(); len(pending) > 0 {
				return fmt.Errorf("%d view(s) need --force: %s", len(pending), strings.Join(pending, ", "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "drop and recreate views whose definition changed")
	cmd.Flags().BoolVar(&noUpdate, "no-update", false, "never touch existing views")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the plan without applying it")
	return cmd
}

func planOptions(force, noUpdate bool) []view.PlanOption {
	var opts []view.PlanOption
	if force {
		opts = append(opts, view.WithForce())
	}
	if noUpdate {
		opts = append(opts, view.WithNoUpdate())
	}
	return opts
}

func printPlan(cmd *cobra.Command, plan *view.Plan, dryRun bool) {
	for i := range plan.Steps {
		step := &plan.Steps[i]
		fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s\n", step.Status, step.View.Name)
		if dryRun {
			for _, stmt := range step.Stmts {
				fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", stmt)
			}
		}
	}
}

func newViewsClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop all declared views",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closer, err := rootOpts.syncer()
			if err != nil {
				return err
			}
			defer closer()
			return s.Clear(cmd.Context())
		},
	}
}

func newViewsRefreshCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		concurrently bool
		parallel     int
	)
	cmd := &cobra.Command{
		Use:   "refresh [name]",
		Short: "Refresh materialized views",
		Long: `Refresh recomputes one materialized view, or all of them when no name
is given. --concurrently avoids blocking readers but requires the view
to declare a concurrent index.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closer, err := rootOpts.syncer()
			if err != nil {
				return err
			}
			defer closer()
			if len(args) == 1 {
				return s.Refresh(cmd.Context(), args[0], concurrently)
			}
			return s.RefreshAll(cmd.Context(), concurrently, parallel)
		},
	}
	cmd.Flags().BoolVar(&concurrently, "concurrently", false, "refresh without blocking readers")
	cmd.Flags().IntVar(&parallel, "parallel", 1, "number of views to refresh at once")
	return cmd
}

func newViewsMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		dir    string
		format string
		name   string
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Export the pending view changes as a versioned migration",
		Long: `Migrate writes the statements a forced sync would run into a versioned
migration directory instead of applying them, so view changes can ship
through the regular migration pipeline.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closer, err := rootOpts.syncer()
			if err != nil {
				return err
			}
			defer closer()

			f, err := view.Formatter(format)
			if err != nil {
				return err
			}
			d, err := migrate.NewLocalDir(dir)
			if err != nil {
				return err
			}
			plan, err := s.Plan(cmd.Context(), view.WithForce())
			if err != nil {
				return err
			}
			if err := view.WriteMigration(d, f, name, plan); err != nil {
				if errors.Is(err, migrate.ErrNoPlan) {
					fmt.Fprintln(cmd.OutOrStdout(), "no view changes")
					return nil
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migration written to %s\n", dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "migration directory")
	cmd.Flags().StringVar(&format, "format", "", "migration format (golang-migrate|goose|flyway|dbmate|liquibase|atlas)")
	cmd.Flags().StringVar(&name, "name", "views", "migration name")
	cobra.CheckErr(cmd.MarkFlagRequired("dir"))
	return cmd
}

func newViewsGenCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		out string
		pkg string
	)
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate typed Go accessors for the declared views",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.load()
			if err != nil {
				return err
			}
			reg, err := cfg.Registry()
			if err != nil {
				return err
			}
			if err := viewgen.WriteFile(reg, pkg, out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "generated %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output file")
	cmd.Flags().StringVar(&pkg, "pkg", "views", "package name of the generated file")
	cobra.CheckErr(cmd.MarkFlagRequired("out"))
	return cmd
}
