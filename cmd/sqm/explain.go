package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/syssam/sqm/config"
	"github.com/syssam/sqm/dialect"
	entsql "github.com/syssam/sqm/dialect/sql"
)

// recorder keeps the statements sent inside transactions.
type recorder struct {
	lines []string
}

func (r *recorder) wrap(drv *entsql.Driver, _ *config.Config, _ *slog.Logger) dialect.Driver {
	return entsql.NewDebugDriver(drv, entsql.DebugWithLog(func(_ context.Context, v ...any) {
		line := fmt.Sprint(v...)
		if strings.HasPrefix(line, "tx query: ") || strings.HasPrefix(line, "tx exec: ") {
			r.lines = append(r.lines, strings.TrimPrefix(strings.TrimPrefix(line, "tx query: "), "tx exec: "))
		}
	}))
}

func newExplainCmd(a *app) *cobra.Command {
	var flags statementFlags
	cmd := &cobra.Command{
		Use:   "explain <statement>",
		Short: "Show the SQL statements of a statement",
		Long: `Run a statement in a session that is always rolled back and print the
translated statement followed by every SQL statement it issued: the
matching id selection, the holding table statements of the table based
strategy and one statement per mapped table.`,
		Example: `  sqm explain "update Customer c set c.data = 'X' where c.region = :r" -p r=eu`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec := &recorder{}
			e, err := a.open(cmd, rec.wrap)
			if err != nil {
				return err
			}
			defer e.Close()
			ctx := cmd.Context()
			s, err := e.factory.OpenSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()
			w := cmd.OutOrStdout()
			head := color.New(color.Bold)
			if !flags.native {
				q, err := s.CreateQuery(args[0])
				if err != nil {
					return err
				}
				head.Fprintln(w, "statement:")
				fmt.Fprintf(w, "  %s\n", q.Statement())
			}
			r, err := flags.run(ctx, s, args[0])
			if err != nil {
				return err
			}
			head.Fprintln(w, "sql:")
			num := color.New(color.Faint)
			for i, l := range rec.lines {
				num.Fprintf(w, "  %2d. ", i+1)
				fmt.Fprintln(w, l)
			}
			head.Fprintln(w, "result:")
			fmt.Fprint(w, "  ")
			r.print(w)
			return s.Rollback()
		},
	}
	flags.register(cmd)
	return cmd
}
