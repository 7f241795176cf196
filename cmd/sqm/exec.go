package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/syssam/sqm"
	"github.com/syssam/sqm/query/plan"
	"github.com/syssam/sqm/query/tree"
)

// statementFlags are the flags of commands running one statement.
type statementFlags struct {
	params  []string
	filters []string
	native  bool
	lock    string
}

func (f *statementFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.params, "param", "p", nil, "bind a parameter, name=value or position=value")
	cmd.Flags().StringArrayVarP(&f.filters, "filter", "f", nil, "enable a filter, name or name:param=value,...")
	cmd.Flags().BoolVar(&f.native, "native", false, "run the statement as native SQL")
	cmd.Flags().StringVar(&f.lock, "lock", "none", "row lock of selects and id selections (none|read|write)")
}

func (f *statementFlags) lockMode() (plan.LockMode, error) {
	switch strings.ToLower(f.lock) {
	case "", "none":
		return plan.LockNone, nil
	case "read":
		return plan.LockRead, nil
	case "write":
		return plan.LockWrite, nil
	default:
		return plan.LockNone, fmt.Errorf("unknown lock mode %q", f.lock)
	}
}

// result is the outcome of one statement.
type result struct {
	rows     []plan.Row
	affected int
	query    bool
}

func (r result) print(w io.Writer) {
	if r.query {
		printRows(w, r.rows)
		return
	}
	color.New(color.FgGreen).Fprintf(w, "%d affected\n", r.affected)
}

// run executes text in s.
func (f *statementFlags) run(ctx context.Context, s *sqm.Session, text string) (result, error) {
	ps, err := parseParams(f.params)
	if err != nil {
		return result{}, err
	}
	if err := enableFilters(s, f.filters); err != nil {
		return result{}, err
	}
	if f.native {
		q, err := s.CreateNativeQuery(text)
		if err != nil {
			return result{}, err
		}
		q = bind(q, ps)
		if isNativeSelect(text) {
			rows, err := q.List(ctx)
			return result{rows: rows, query: true}, err
		}
		n, err := q.ExecuteUpdate(ctx)
		return result{affected: n}, err
	}
	lock, err := f.lockMode()
	if err != nil {
		return result{}, err
	}
	q, err := s.CreateQuery(text)
	if err != nil {
		return result{}, err
	}
	q = bind(q, ps).SetLockMode(lock)
	if q.Statement().Kind() == tree.KindSelect {
		rows, err := q.List(ctx)
		return result{rows: rows, query: true}, err
	}
	n, err := q.ExecuteUpdate(ctx)
	return result{affected: n}, err
}

func isNativeSelect(text string) bool {
	word, _, _ := strings.Cut(strings.TrimSpace(text), " ")
	switch strings.ToUpper(word) {
	case "SELECT", "WITH", "VALUES", "PRAGMA", "SHOW", "EXPLAIN":
		return true
	}
	return false
}

func newExecCmd(a *app) *cobra.Command {
	var (
		flags    statementFlags
		rollback bool
	)
	cmd := &cobra.Command{
		Use:   "exec <statement>",
		Short: "Run one statement and commit",
		Long: `Run an HQL statement, or a native one with --native, in a new session.
Selects print their rows, updates and deletes the number of affected
entities. The session is committed unless --rollback is set.`,
		Example: `  sqm exec "delete Customer c where c.name = :n" -p n=Acme
  sqm exec "from Customer c" --filter region:region=eu
  sqm exec --native "SELECT COUNT(*) AS n FROM customers"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open(cmd, nil)
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
			r, err := flags.run(ctx, s, args[0])
			if err != nil {
				return err
			}
			r.print(cmd.OutOrStdout())
			if rollback {
				return s.Rollback()
			}
			return s.Commit(ctx)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&rollback, "rollback", false, "roll the session back instead of committing")
	return cmd
}
