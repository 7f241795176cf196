package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/syssam/sqm"
	"github.com/syssam/sqm/dialect/sql/schema"
)

func newValidateCmd(a *app) *cobra.Command {
	var (
		database     bool
		allowMissing bool
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration, the mapping and the named queries",
		Long: `Load the configuration and open a session factory over it, which checks
the mapping, the filters and translates every named query. With
--database the mapped tables and columns are also looked up in the
database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.open(cmd, nil)
			if err != nil {
				return err
			}
			defer e.Close()
			w := cmd.OutOrStdout()
			g := e.factory.Schema()
			fmt.Fprintf(w, "%d entities, %s\n", len(g.Entities()), e.factory.CacheStats())
			if !database {
				color.New(color.FgGreen).Fprintln(w, "mapping ok")
				return nil
			}
			var tables []string
			for _, ent := range g.Entities() {
				tables = append(tables, ent.Table.Name)
				for _, t := range ent.Secondary {
					tables = append(tables, t.Name)
				}
			}
			found, err := schema.Inspect(cmd.Context(), e.driver, e.factory.Dialect(), tables)
			if err != nil {
				return err
			}
			var opts []schema.ValidateOption
			if allowMissing {
				opts = append(opts, schema.AllowMissingColumns())
			}
			r := schema.ValidateDatabase(g, found, opts...)
			fmt.Fprintln(w, r)
			if r.HasErrors() {
				return sqm.NewConfigurationError("database", r.Err())
			}
			color.New(color.FgGreen).Fprintln(w, "database ok")
			return nil
		},
	}
	cmd.Flags().BoolVar(&database, "database", false, "compare the mapping with the database")
	cmd.Flags().BoolVar(&allowMissing, "allow-missing-columns", false, "report missing columns as warnings")
	return cmd
}
