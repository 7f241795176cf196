package main

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/syssam/sqm/config"
	"github.com/syssam/sqm/dialect"
	entsql "github.com/syssam/sqm/dialect/sql"
)

// readStatements returns the statements of a file, one per line. Blank
// lines and lines starting with -- are skipped.
func readStatements(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var stmts []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		stmts = append(stmts, line)
	}
	return stmts, sc.Err()
}

func newStatsCmd(a *app) *cobra.Command {
	var (
		flags  statementFlags
		repeat int
		out    string
		commit bool
	)
	cmd := &cobra.Command{
		Use:   "stats <file>",
		Short: "Run the statements of a file and print the query statistics",
		Long: `Run every statement of a file, one per line, in one session with
statistics enabled, and print the plan cache and database statistics.
The session is rolled back unless --commit is set. --out writes the
statistics snapshot in msgpack.`,
		Example: `  sqm stats --repeat 100 --out stats.msgpack queries.hql`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if repeat < 1 {
				return fmt.Errorf("--repeat must be positive, got %d", repeat)
			}
			stmts, err := readStatements(args[0])
			if err != nil {
				return err
			}
			var sd *entsql.StatsDriver
			e, err := a.open(cmd, func(drv *entsql.Driver, c *config.Config, log *slog.Logger) dialect.Driver {
				sd = newStatsDriver(drv, c, log)
				return sd
			})
			if err != nil {
				return err
			}
			defer e.Close()
			e.factory.Statistics().SetEnabled(true)
			ctx := cmd.Context()
			s, err := e.factory.OpenSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()
			for range repeat {
				for _, stmt := range stmts {
					if _, err := flags.run(ctx, s, stmt); err != nil {
						return fmt.Errorf("%s: %w", stmt, err)
					}
				}
			}
			if commit {
				err = s.Commit(ctx)
			} else {
				err = s.Rollback()
			}
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			label := color.New(color.Bold)
			snap := e.factory.Statistics().Snapshot()
			label.Fprint(w, "plans:    ")
			fmt.Fprintln(w, snap)
			label.Fprint(w, "cache:    ")
			fmt.Fprintln(w, e.factory.CacheStats())
			label.Fprint(w, "database: ")
			fmt.Fprintln(w, sd.QueryStats().Stats())
			if snap.SlowestQuery != "" {
				label.Fprint(w, "slowest:  ")
				fmt.Fprintln(w, snap.SlowestQuery)
			}
			if out == "" {
				return nil
			}
			data, err := snap.MarshalBinary()
			if err != nil {
				return err
			}
			return os.WriteFile(out, data, 0o644)
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVarP(&repeat, "repeat", "n", 1, "number of runs of the file")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the statistics snapshot to a msgpack file")
	cmd.Flags().BoolVar(&commit, "commit", false, "commit the session instead of rolling it back")
	return cmd
}
