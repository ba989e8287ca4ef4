// Package view manages the lifecycle of PostgreSQL views and materialized
// views declared in code.
//
// Views are declared in a Registry and kept in sync with the database by a
// Syncer. The planner compares each declared SQL body against the stored
// definition in the catalog and decides, per view, whether to create it,
// leave it alone, or drop and recreate it. Views are processed in
// dependency order, so a view selecting from another declared view is
// created after it.
//
//	reg := view.NewRegistry()
//	reg.MustRegister(view.Definition{
//	    Name: "active_users",
//	    SQL:  "SELECT * FROM users WHERE active",
//	})
//	reg.MustRegister(view.Definition{
//	    Name:            "active_user_stats",
//	    SQL:             "SELECT count(*) AS n FROM active_users",
//	    Dependencies:    []string{"active_users"},
//	    Materialized:    true,
//	    ConcurrentIndex: "n",
//	})
//
//	s := view.NewSyncer(drv, reg)
//	plan, err := s.Sync(ctx, view.WithForce())
//
// A changed definition is never replaced implicitly: without WithForce the
// view keeps its stored definition and the plan reports it as
// StatusForceRequired. Materialized views declaring a ConcurrentIndex get
// a unique index over those columns, which PostgreSQL requires for
// REFRESH MATERIALIZED VIEW CONCURRENTLY.
package view
