package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/cdtdelta/backlog/internal/config"
	"github.com/cdtdelta/backlog/internal/logging"
	"github.com/cdtdelta/backlog/internal/stats"
)

var (
	// Global flags
	cfgFile string
	verbose bool

	// Set by PersistentPreRunE for every subcommand.
	logger *zap.Logger
	app    *App
)

var rootCmd = &cobra.Command{
	Use:   "backlog",
	Short: "backlog - game catalog browser",
	Long: `backlog keeps a catalog of played games and a backlog of games still
to play. It imports CSV or JSON exports, renders sortable and filterable
pages of either view, summarizes the catalog and serves it over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		cfg, err := config.Load(config.Options{File: cfgFile, Flags: cmd.Flags()})
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Log.Level, cfg.Log.Format, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		app = NewApp(cfg, logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app != nil {
			if err := app.Close(); err != nil {
				logger.Warn("closing database", zap.Error(err))
			}
		}
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the catalog JSON API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return app.Serve(ctx)
	},
}

var importCmd = &cobra.Command{
	Use:   "import [file...]",
	Short: "Import games from CSV or JSON exports",
	Long: `Reads games from each file and upserts them by id. Files ending in .csv
are read by header name; .json, .jsonl and .ndjson files are read as document
store exports, either one document per line or a single array.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, path := range args {
			res, err := app.ImportFile(cmd.Context(), path, func(phase string, count int) {
				logger.Debug("import progress", zap.String("phase", phase), zap.Int("count", count))
			})
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Fprintf(out, "%s: %d games imported (%d skipped)\n", res.Path, res.Inserted, res.Excluded)
		}
		return nil
	},
}

var (
	listView     string
	listQuery    string
	listPage     string
	listPageSize int
	listAdmin    bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Render one page of a view",
	Long: `Renders a page of the played or backlog view. --query takes the same
parameters the web view persists, e.g. "sortBy=rating&sortDesc=true&title=y:2021".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := app.QueryGames(cmd.Context(), QueryRequest{
			View:     listView,
			Query:    listQuery,
			Page:     listPage,
			PageSize: listPageSize,
			Admin:    listAdmin,
		})
		if err != nil {
			return err
		}
		renderPage(cmd.OutOrStdout(), resp)
		return nil
	},
}

var statsFormat string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := app.Stats(cmd.Context())
		if err != nil {
			return err
		}
		return writeSummary(cmd.OutOrStdout(), summary, statsFormat)
	},
}

var (
	exportAll   bool
	exportView  string
	exportQuery string
	exportAdmin bool
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export a view, or every game, to CSV",
	Long: `Without --all, writes the filtered and sorted rows of a view with its
display columns. With --all, writes every game in the import format.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			n   int
			err error
		)
		if exportAll {
			n, err = app.ExportAll(cmd.Context(), args[0])
		} else {
			n, err = app.ExportCSV(cmd.Context(), args[0], QueryRequest{
				View:  exportView,
				Query: exportQuery,
				Admin: exportAdmin,
			})
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d games written to %s\n", n, args[0])
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the configured database and its size",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := app.GetDBInfo(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d games\n", info.Driver, info.Path, info.GameCount)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		// The version command skips PersistentPreRunE, so no App exists yet.
		fmt.Fprintln(cmd.OutOrStdout(), "backlog "+NewApp(nil, nil).GetVersion())
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "YAML config file")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	pf.String("driver", "", "Store driver (sqlite or postgres)")
	pf.String("dsn", "", "SQLite file path or PostgreSQL connection string")
	pf.String("log-level", "", "Log level (debug, info, warn, error)")
	pf.String("log-format", "", "Log format (json or console)")

	serveCmd.Flags().String("addr", "", "Listen address")
	serveCmd.Flags().Duration("cache-ttl", 0, "How long a loaded catalog snapshot is served")
	serveCmd.Flags().String("admin-token", "", "Bearer token for admin endpoints")

	listCmd.Flags().StringVar(&listView, "view", "played", "View to render (played or backlog)")
	listCmd.Flags().StringVarP(&listQuery, "query", "q", "", "Persisted query parameters")
	listCmd.Flags().StringVarP(&listPage, "page", "p", "1", "Page number")
	listCmd.Flags().IntVar(&listPageSize, "page-size", 0, "Rows per page (10, 30 or 50)")
	listCmd.Flags().BoolVar(&listAdmin, "admin", false, "Include admin-only columns")

	statsCmd.Flags().StringVarP(&statsFormat, "format", "f", "text", "Output format (text, json or yaml)")

	exportCmd.Flags().BoolVar(&exportAll, "all", false, "Export every game in the import format")
	exportCmd.Flags().StringVar(&exportView, "view", "played", "View to export")
	exportCmd.Flags().StringVarP(&exportQuery, "query", "q", "", "Persisted query parameters")
	exportCmd.Flags().BoolVar(&exportAdmin, "admin", false, "Include admin-only columns")

	rootCmd.AddCommand(serveCmd, importCmd, listCmd, statsCmd, exportCmd, infoCmd, versionCmd)
}

func writeSummary(w io.Writer, s stats.Summary, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	case "text":
		renderSummary(w, s)
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
