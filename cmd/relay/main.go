// Package main provides the relay command line client.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/TFMV/relay"
	"github.com/TFMV/relay/cmd/relay/config"
	"github.com/TFMV/relay/pkg/backends/duckdb"
	"github.com/TFMV/relay/pkg/backends/flightsql"
	"github.com/TFMV/relay/pkg/backends/sqlite"
	"github.com/TFMV/relay/pkg/client"
	"github.com/TFMV/relay/pkg/compiler"
	"github.com/TFMV/relay/pkg/infrastructure/memory"
	"github.com/TFMV/relay/pkg/infrastructure/metrics"
	"github.com/TFMV/relay/pkg/options"
	"github.com/TFMV/relay/pkg/result"
)

var (
	// Version information (set by build flags)
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run SQL through relay backends",
	Long: `relay compiles and executes queries against DuckDB, SQLite or a
remote Flight SQL server and prints the materialized results.

Example:
  relay query "SELECT * FROM read_parquet('trips.parquet')" --limit 20
  relay tables --backend sqlite --dsn ./app.db --like '^user'
  relay query "SELECT 1" --backend flightsql --address localhost:32010`,
	SilenceUsage: true,
}

var queryCmd = &cobra.Command{
	Use:   "query SQL",
	Short: "Execute a statement and print the result",
	Long: `Execute a statement and print the result. Queries are limited to the
default row limit. Other statements run as written.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd.Context(), func(ctx context.Context, c *client.Client) error {
			return runStatement(ctx, cmd.OutOrStdout(), c, args[0])
		})
	},
}

// runStatement executes stmt and writes its result to w. Queries go through
// the compiler so the row limit applies. Statements that return no rows
// print their kind.
func runStatement(ctx context.Context, w io.Writer, c *client.Client, stmt string) error {
	kind := compiler.Classify(stmt)
	if kind != compiler.KindOther && !kind.ReturnsRows() {
		if err := c.RawSQL(ctx, stmt); err != nil {
			return err
		}
		_, err := fmt.Fprintln(w, kind)
		return err
	}

	var rows *result.Table
	if kind == compiler.KindQuery {
		tbl, err := c.SQL(ctx, stmt)
		if err != nil {
			return err
		}
		out, err := relay.Execute(ctx, tbl)
		if err != nil {
			return err
		}
		var ok bool
		if rows, ok = out.(*result.Table); !ok {
			return fmt.Errorf("unexpected result type %T", out)
		}
	} else {
		var err error
		if rows, err = c.RawTable(ctx, stmt); err != nil {
			return err
		}
	}
	defer rows.Release()
	return renderTable(w, rows)
}

var compileCmd = &cobra.Command{
	Use:   "compile SQL",
	Short: "Print the statements a query compiles to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd.Context(), func(ctx context.Context, c *client.Client) error {
			tbl, err := c.SQL(ctx, args[0])
			if err != nil {
				return err
			}
			stmts, err := relay.Compile(tbl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.Join(stmts, ";\n\n")+";")
			return err
		})
	},
}

var explainCmd = &cobra.Command{
	Use:   "explain SQL",
	Short: "Print the backend's plan for a query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd.Context(), func(ctx context.Context, c *client.Client) error {
			tbl, err := c.SQL(ctx, args[0])
			if err != nil {
				return err
			}
			plan, err := relay.Explain(ctx, tbl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), plan)
			return err
		})
	},
}

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List tables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		like, _ := cmd.Flags().GetString("like")
		database, _ := cmd.Flags().GetString("database")
		return withClient(cmd.Context(), func(ctx context.Context, c *client.Client) error {
			names, err := c.ListTables(ctx, like, database)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		})
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file path")
	flags.String("backend", config.BackendDuckDB, "backend (duckdb, sqlite, flightsql)")
	flags.String("dsn", ":memory:", "database path for duckdb and sqlite")
	flags.String("address", "", "Flight SQL server address")
	flags.String("token", "", "bearer token for the Flight SQL server")
	flags.String("jwt-secret", "", "HS256 secret used to sign bearer tokens for the Flight SQL server")
	flags.String("jwt-subject", "", "subject claim of signed bearer tokens")
	flags.String("dialect", "", "SQL dialect of the Flight SQL server (ansi, duckdb, sqlite)")
	flags.Int64("limit", 10000, "default row limit, 0 for none")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Bool("metrics", false, "enable Prometheus metrics")
	flags.String("metrics-address", ":9090", "metrics server address")
	flags.Duration("query-timeout", 5*time.Minute, "query timeout")
	flags.Int("schema-cache-size", 256, "number of table schemas to cache")

	// Bind flags to viper
	if err := viper.BindPFlags(flags); err != nil {
		panic(fmt.Errorf("failed to bind flags: %w", err))
	}
	viper.SetEnvPrefix("RELAY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	tablesCmd.Flags().String("like", "", "regular expression table names must match")
	tablesCmd.Flags().String("database", "", "database to list")

	rootCmd.AddCommand(queryCmd, compileCmd, explainCmd, tablesCmd)
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("relay\n")
			fmt.Printf("Version:    %s\n", version)
			fmt.Printf("Commit:     %s\n", commit)
			fmt.Printf("Build Date: %s\n", buildDate)
		},
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// withClient builds the configured client, makes it the default backend
// and runs fn under the query timeout.
func withClient(parent context.Context, fn func(context.Context, *client.Client) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogging(cfg.LogLevel)
	logger.Debug().
		Str("version", version).
		Str("backend", cfg.Backend).
		Msg("Starting relay")

	var collector metrics.Collector = metrics.NewNoOpCollector()
	if cfg.Metrics.Enabled {
		collector = metrics.NewPrometheusCollector(prometheus.DefaultRegisterer)
		srv := metrics.NewMetricsServer(cfg.Metrics.Address, prometheus.DefaultGatherer)
		go func() {
			logger.Info().Str("address", cfg.Metrics.Address).Msg("Starting metrics server")
			if err := srv.Start(); err != nil {
				logger.Error().Err(err).Msg("Failed to start metrics server")
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Stop(ctx); err != nil {
				logger.Error().Err(err).Msg("Error stopping metrics server")
			}
		}()
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, cfg.QueryTimeout)
	defer cancel()

	c, err := openClient(ctx, cfg, logger, collector)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error().Err(err).Msg("Error closing backend")
		}
	}()

	options.SetDefaultBackend(c)
	options.SetDefaultLimit(cfg.DefaultLimit)
	defer options.Reset()

	return fn(ctx, c)
}

func openClient(ctx context.Context, cfg *config.Config, logger zerolog.Logger, collector metrics.Collector) (*client.Client, error) {
	alloc := memory.NewTrackedAllocator(nil)

	var drv client.Driver
	switch cfg.Backend {
	case config.BackendDuckDB:
		d, err := duckdb.Open(ctx, cfg.DSN, logger)
		if err != nil {
			return nil, err
		}
		drv = d
	case config.BackendSQLite:
		d, err := sqlite.Open(ctx, cfg.DSN, logger)
		if err != nil {
			return nil, err
		}
		drv = d
	case config.BackendFlightSQL:
		dialect, err := compiler.DialectByName(cfg.Dialect)
		if err != nil {
			return nil, err
		}
		opts := []flightsql.Option{
			flightsql.WithDialect(dialect),
			flightsql.WithToken(cfg.Token),
			flightsql.WithAllocator(alloc),
		}
		if cfg.JWT.Secret != "" {
			opts = append(opts, flightsql.WithJWT(flightsql.JWTConfig{
				Secret:   cfg.JWT.Secret,
				Issuer:   cfg.JWT.Issuer,
				Audience: cfg.JWT.Audience,
				Subject:  cfg.JWT.Subject,
				TTL:      cfg.JWT.TTL,
			}))
		}
		d, err := flightsql.Open(cfg.Address, logger, opts...)
		if err != nil {
			return nil, err
		}
		drv = d
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Backend)
	}

	return client.New(drv,
		client.WithLogger(logger),
		client.WithMetrics(collector),
		client.WithAllocator(alloc),
		client.WithSchemaCacheSize(cfg.SchemaCacheSize),
	), nil
}

// loadConfig starts from the config file, or the defaults, and applies
// flags and RELAY_* environment variables that were set explicitly.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path := viper.GetString("config"); path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if viper.IsSet("backend") {
		cfg.Backend = viper.GetString("backend")
	}
	if viper.IsSet("dsn") {
		cfg.DSN = viper.GetString("dsn")
	}
	if viper.IsSet("address") {
		cfg.Address = viper.GetString("address")
	}
	if viper.IsSet("token") {
		cfg.Token = viper.GetString("token")
	}
	if viper.IsSet("jwt-secret") {
		cfg.JWT.Secret = viper.GetString("jwt-secret")
	}
	if viper.IsSet("jwt-subject") {
		cfg.JWT.Subject = viper.GetString("jwt-subject")
	}
	if viper.IsSet("dialect") {
		cfg.Dialect = viper.GetString("dialect")
	}
	if viper.IsSet("limit") {
		cfg.DefaultLimit = viper.GetInt64("limit")
	}
	if viper.IsSet("log-level") {
		cfg.LogLevel = viper.GetString("log-level")
	}
	if viper.IsSet("metrics") {
		cfg.Metrics.Enabled = viper.GetBool("metrics")
	}
	if viper.IsSet("metrics-address") {
		cfg.Metrics.Address = viper.GetString("metrics-address")
	}
	if viper.IsSet("query-timeout") {
		cfg.QueryTimeout = viper.GetDuration("query-timeout")
	}
	if viper.IsSet("schema-cache-size") {
		cfg.SchemaCacheSize = viper.GetInt("schema-cache-size")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setupLogging writes to stderr so results on stdout stay clean.
func setupLogging(level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond

	var logLevel zerolog.Level
	switch level {
	case "debug":
		logLevel = zerolog.DebugLevel
		zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
			short := file
			for i := len(file) - 1; i > 0; i-- {
				if file[i] == '/' {
					short = file[i+1:]
					break
				}
			}
			return fmt.Sprintf("%s:%d", short, line)
		}
	case "info":
		logLevel = zerolog.InfoLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	default:
		logLevel = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stderr).
		Level(logLevel).
		With().
		Timestamp().
		Str("service", "relay")

	if logLevel == zerolog.DebugLevel {
		logger = logger.Caller()
	}

	return logger.Logger()
}
