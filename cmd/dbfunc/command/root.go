// Package command provides the root and sub-commands of dbfunc.
// The root command starts the HTTP server exposing the stored function repository, while the
// "call" sub-command executes one stored function and prints its result.
//
//	./dbfunc [-c ./config]
//	./dbfunc call fn_get_line --schema sales --return cursor --param p_name=A [-c ./config]
//
// The -c flag is the directory holding property.yaml (property-<env>.yaml when ENVIRONMENT is
// DEV, STAGE or PROD). Every property can be overridden by environment variables, e.g. DATABASE_DSN.
package command

import (
	"context"
	"fmt"
	"os"

	"github.com/marcodd23/go-micro-dbfunc/pkg/configx"
	"github.com/marcodd23/go-micro-dbfunc/pkg/dbx"
	"github.com/marcodd23/go-micro-dbfunc/pkg/dbx/pgxdb"
	"github.com/marcodd23/go-micro-dbfunc/pkg/logx"
	"github.com/marcodd23/go-micro-dbfunc/pkg/profiling"
	"github.com/spf13/cobra"
)

const defaultConfigDir = "./config"

var (
	cfgDir     string
	cpuProfile string
	memProfile string
	stopCPU    func()
)

var rootCmd = &cobra.Command{
	Use:   "dbfunc",
	Short: "Stored function repository over HTTP",
	Long: `dbfunc exposes PostgreSQL stored functions through a transaction aware repository.
Every request acquires a pooled session, calls one function and materializes its result.
Mutating calls may be recorded in named ledger transactions, optionally published to Pub/Sub
when popped.`,
	RunE:               serve,
	PersistentPreRunE:  startProfiling,
	PersistentPostRunE: stopProfiling,
	SilenceUsage:       true,
}

// Execute runs the rootCmd, exiting with a non-zero code on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(fixConfigDir)
	rootCmd.PersistentFlags().StringVarP(&cfgDir, "config", "c", "", "directory of the property files")
	rootCmd.PersistentFlags().StringVar(&cpuProfile, "cpu-profile", "", "write a CPU profile to this file")
	rootCmd.PersistentFlags().StringVar(&memProfile, "mem-profile", "", "write a heap profile to this file on exit")
	rootCmd.AddCommand(callCmd)
}

// fixConfigDir sets cfgDir from the CLI flag, the CONFIG_DIR environment variable or its default.
func fixConfigDir() {
	if cfgDir != "" {
		return
	}

	var found bool
	if cfgDir, found = os.LookupEnv("CONFIG_DIR"); !found {
		cfgDir = defaultConfigDir
	}
}

func startProfiling(_ *cobra.Command, _ []string) error {
	if cpuProfile == "" {
		return nil
	}

	stop, err := profiling.StartCPUProfile(cpuProfile)
	if err != nil {
		return err
	}

	stopCPU = stop

	return nil
}

func stopProfiling(_ *cobra.Command, _ []string) error {
	if stopCPU != nil {
		stopCPU()
	}

	if memProfile == "" {
		return nil
	}

	return profiling.CaptureMemoryProfile(memProfile)
}

func loadConfig() (*configx.BaseConfig, error) {
	var cfg configx.BaseConfig

	if err := configx.LoadConfigFromPathForEnv(cfgDir, &cfg); err != nil {
		return nil, fmt.Errorf("loading configuration from %q: %w", cfgDir, err)
	}

	if cfg.Database == nil || cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database.dsn is not configured")
	}

	logx.SetupLogger(&cfg)

	return &cfg, nil
}

func poolConfig(cfg *configx.DatabaseConfig) dbx.PoolConfig {
	return dbx.PoolConfig{
		DSN:         cfg.DSN,
		Homogeneous: cfg.Homogeneous,
		MaxConn:     cfg.MaxConn,
		MinConn:     cfg.MinConn,
		User:        cfg.User,
		Password:    cfg.Password,
		Threaded:    cfg.Threaded,
	}
}

// newProvider creates the pool eagerly. When creation fails it is retried on the first Acquire.
func newProvider(ctx context.Context, cfg *configx.DatabaseConfig) *pgxdb.PostgresProvider {
	conf := poolConfig(cfg)
	provider := pgxdb.NewLazyPostgresProvider(conf)

	if !provider.InitializePool(ctx, conf) {
		logx.GetLogger().LogWarning(ctx, "Connection Pool not created at startup, retrying on first use")
	}

	return provider
}
