// pagedb is a disk-based relational query engine: tables of fixed-size
// pages, a pinning buffer pool, sort-merge joins and hash aggregation.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"pagedb/internal/cli"
	"pagedb/internal/config"
	"pagedb/pkg/loader"
	"pagedb/pkg/logging"
	"pagedb/pkg/metrics"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version   = "0.1.0"
	buildDate = "dev"
	cfgFile   string
	limit     int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pagedb",
		Short: "pagedb - a paged relational query engine",
		Long: `pagedb stores tables in fixed-size pages behind a pinning buffer pool
and answers select-from-where queries with sort-merge joins and hash
aggregation.

Start the interactive shell:
  pagedb

Start with a specific config file:
  pagedb --config /path/to/pagedb.yaml`,
		SilenceUsage: true,
		RunE:         withSession(runREPL),
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("pagedb %s (built %s)\n", version, buildDate)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "init [directory]",
		Short: "Write a default config file for a data directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "./data"
			if len(args) > 0 {
				dir = args[0]
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create data directory: %w", err)
			}
			if err := config.CreateDefaultConfig("pagedb.yaml", dir); err != nil {
				return err
			}
			fmt.Printf("Created pagedb.yaml for %s\n", dir)
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "repl",
		Short: "Start the interactive shell",
		Args:  cobra.NoArgs,
		RunE:  withSession(runREPL),
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "create <table> <column:type>...",
		Short: "Create a table",
		Args:  cobra.MinimumNArgs(2),
		RunE: withSession(func(ctx context.Context, s *cli.Session, args []string) error {
			return s.Create(args[0], args[1:])
		}),
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "load <table>=<file>...",
		Short: "Bulk-load '|'-separated text files, several tables at once",
		Args:  cobra.MinimumNArgs(1),
		RunE: withSession(func(ctx context.Context, s *cli.Session, args []string) error {
			jobs := make([]loader.Job, len(args))
			for i, arg := range args {
				name, path, ok := strings.Cut(arg, "=")
				if !ok || name == "" || path == "" {
					return fmt.Errorf("argument %q is not of the form table=file", arg)
				}
				jobs[i] = loader.Job{Table: name, Path: path}
			}
			return s.LoadAll(ctx, jobs)
		}),
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "tables",
		Short: "List the tables",
		Args:  cobra.NoArgs,
		RunE: withSession(func(ctx context.Context, s *cli.Session, args []string) error {
			return s.Tables()
		}),
	})

	showCmd := &cobra.Command{
		Use:   "show <table>",
		Short: "Print the records of a table",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(ctx context.Context, s *cli.Session, args []string) error {
			return s.Show(ctx, args[0], limit)
		}),
	}
	showCmd.Flags().IntVarP(&limit, "limit", "n", 30, "records to print, 0 for all")
	rootCmd.AddCommand(showCmd)

	queryCmd := &cobra.Command{
		Use:   "query <file.yaml>",
		Short: "Run a query document",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(ctx context.Context, s *cli.Session, args []string) error {
			return s.Query(ctx, args[0], limit)
		}),
	}
	queryCmd.Flags().IntVarP(&limit, "limit", "n", 30, "records to print, 0 for all")
	rootCmd.AddCommand(queryCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withSession loads the configuration, sets up logging and metrics, and
// runs fn against an open session.
func withSession(fn func(ctx context.Context, s *cli.Session, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		if err := logging.Init(cfg.Logging()); err != nil {
			return fmt.Errorf("error initializing logger: %w", err)
		}
		defer logging.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var m *metrics.Metrics
		if cfg.Metrics.Listen != "" {
			m = metrics.New()
			go func() {
				if err := metrics.Serve(ctx, cfg.Metrics.Listen, m); err != nil {
					logging.Error("metrics endpoint failed", "listen", cfg.Metrics.Listen, "error", err)
				}
			}()
		}

		logging.Info("opening data directory", "dir", cfg.Storage.DataDir, "version", version)
		s, err := cli.Open(cfg, m, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer func() {
			if cerr := s.Close(); cerr != nil {
				logging.Error("failed to close data directory", "error", cerr)
			}
		}()
		return fn(ctx, s, args)
	}
}

func runREPL(ctx context.Context, s *cli.Session, args []string) error {
	return cli.NewREPL(s).Run(ctx)
}
