// Command hearth is the CLI for the hearth finance data layer: local
// record store maintenance, cloud sync, and schedule-engine runs.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mwaldrop/hearth/internal/config"
	"github.com/mwaldrop/hearth/internal/remote"
	"github.com/mwaldrop/hearth/internal/store"
	"github.com/mwaldrop/hearth/internal/sync"
)

var (
	configPath string
	logFile    string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "hearth",
	Short: "Local-first family finance tracker",
	Long: `hearth manages a local-first finance database and its cloud replica.

The local store is a SQLite database holding members, assets, daily
values, transactions, budgets, goals and subscriptions. Sync replicates
six of those tables against a per-user cloud document collection.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if logFile != "" {
			cfg.Log.File = logFile
		}
		return nil
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.hearth.yaml)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this rotating file")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(generateCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openStore opens and migrates the configured database.
func openStore() (*store.Store, error) {
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// newLogger builds a prefixed logger, teeing to the configured rotating
// log file when one is set.
func newLogger(prefix string) *log.Logger {
	var w io.Writer = os.Stderr
	if cfg.Log.File != "" {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
		})
	}
	return log.New(w, prefix, log.LstdFlags)
}

// newSyncEngine wires the sync engine against the configured remote.
func newSyncEngine(st *store.Store) (*sync.Engine, error) {
	if cfg.Remote.BaseURL == "" {
		return nil, fmt.Errorf("remote.base_url is not configured")
	}
	if cfg.Remote.UID == "" {
		return nil, fmt.Errorf("remote.uid is not configured")
	}
	client, err := remote.NewHTTPClient(cfg.Remote.BaseURL, cfg.Remote.UID, cfg.Remote.Token)
	if err != nil {
		return nil, err
	}
	return sync.New(st, client, newLogger("[sync] ")), nil
}
