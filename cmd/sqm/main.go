// Command sqm runs HQL and native statements against a mapped database.
//
//	sqm exec --config sqm.yaml "delete Customer c where c.name = :n" -p n=Acme
//	sqm explain --config sqm.yaml "update Customer c set c.data = 'X' where c.region = 'eu'"
//	sqm stats --config sqm.yaml --repeat 10 --out stats.msgpack queries.hql
//	sqm validate --config sqm.yaml --database
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/syssam/sqm"
	"github.com/syssam/sqm/config"
	"github.com/syssam/sqm/dialect"
	entsql "github.com/syssam/sqm/dialect/sql"
	"github.com/syssam/sqm/dialect/sql/sqlgraph"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// Exit codes.
const (
	exitOK         = 0
	exitFailure    = 1
	exitUsage      = 2
	exitConstraint = 3
)

func main() {
	cmd := newRootCmd()
	err := cmd.Execute()
	if err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "error: ")
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(exitCode(err))
}

// exitCode maps an error to the process exit code. Configuration and
// query errors are usage errors, constraint violations reported by the
// database have their own code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case sqm.IsConfigurationError(err), errors.Is(err, sqm.ErrInvalidQuery):
		return exitUsage
	case sqlgraph.Classify(err) != "":
		return exitConstraint
	default:
		return exitFailure
	}
}

// app holds the flags shared by every command.
type app struct {
	configPath string
	debug      bool
	noColor    bool
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "sqm",
		Short: "Run object queries and bulk mutations over mapped tables",
		Long: `sqm translates HQL statements over the entities of a mapping and runs
them in one transaction. Updates and deletes of entities stored in more
than one table go through the mutation strategy of the configuration.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if a.noColor {
				color.NoColor = true
			}
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "sqm.yaml", "configuration file")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "log every statement sent to the database")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newExecCmd(a),
		newExplainCmd(a),
		newStatsCmd(a),
		newValidateCmd(a),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sqm v%s (%s)\n", version, commit)
		},
	}
}

// env is an opened configuration.
type env struct {
	config  *config.Config
	driver  *entsql.Driver
	factory *sqm.SessionFactory
	log     *slog.Logger
}

func (e *env) Close() error { return e.factory.Close() }

// wrapFunc decorates the database driver before the factory is opened.
type wrapFunc func(drv *entsql.Driver, c *config.Config, log *slog.Logger) dialect.Driver

// open loads the configuration and opens a session factory over it. The
// driver is wrapped by wrap, or by a debug or statistics driver depending
// on the flags when wrap is nil.
func (a *app) open(cmd *cobra.Command, wrap wrapFunc) (*env, error) {
	c, err := config.Load(a.configPath)
	if err != nil {
		return nil, sqm.NewConfigurationError(a.configPath, err)
	}
	lvl, err := c.Level()
	if err != nil {
		return nil, sqm.NewConfigurationError(a.configPath, err)
	}
	if a.debug {
		lvl = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: lvl}))
	g, err := c.Mapping.Schema()
	if err != nil {
		return nil, sqm.NewConfigurationError("mapping", err)
	}
	drv, err := entsql.OpenDriver(c.Dialect, c.Driver, c.DSN)
	if err != nil {
		return nil, err
	}
	if wrap == nil {
		wrap = a.defaultWrap(cmd.ErrOrStderr())
	}
	sf, err := sqm.Open(wrap(drv, c, log), g, sqm.FromConfig(c), sqm.WithLogger(log))
	if err != nil {
		drv.Close()
		return nil, err
	}
	return &env{config: c, driver: drv, factory: sf, log: log}, nil
}

func (a *app) defaultWrap(w io.Writer) wrapFunc {
	if a.debug {
		return debugWrap(w)
	}
	return func(drv *entsql.Driver, c *config.Config, log *slog.Logger) dialect.Driver {
		return newStatsDriver(drv, c, log)
	}
}

// debugWrap logs every statement to w.
func debugWrap(w io.Writer) wrapFunc {
	sql := color.New(color.FgCyan)
	return func(drv *entsql.Driver, _ *config.Config, _ *slog.Logger) dialect.Driver {
		return entsql.NewDebugDriver(drv, entsql.DebugWithLog(func(_ context.Context, v ...any) {
			sql.Fprintln(w, v...)
		}))
	}
}

// newStatsDriver counts the statements and logs those slower than the
// configured threshold.
func newStatsDriver(drv *entsql.Driver, c *config.Config, log *slog.Logger) *entsql.StatsDriver {
	opts := []entsql.StatsOption{
		entsql.WithSlowQueryHook(func(_ context.Context, query string, args []any, d time.Duration) {
			log.Warn("slow query", "duration", d, "query", query, "args", len(args))
		}),
	}
	if c.SlowQuery > 0 {
		opts = append(opts, entsql.WithSlowThreshold(c.SlowQuery))
	}
	return entsql.NewStatsDriver(drv, opts...)
}
