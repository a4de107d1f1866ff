package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"chore-tracker/internal/codec"
	"chore-tracker/internal/config"
	"chore-tracker/internal/metrics"
	"chore-tracker/internal/repository"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "yaml" | "json"

	loadConfig func() (config.Config, error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"yaml", "json"}

// NewRootCommand creates the root command for the chore tracker CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(config.Load)
}

func newRootCommand(loadConfig func() (config.Config, error)) *cobra.Command {
	opts := &RootOptions{loadConfig: loadConfig}

	cmd := &cobra.Command{
		Use:           "choretracker",
		Short:         "Household chore tracker",
		Long:          "Tracks chores for households in an encrypted snapshot and serves them over a Telegram bot.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "yaml", "output format (yaml|json)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewBackupCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func newLogger(w io.Writer, cfg config.Config, verbose bool) *slog.Logger {
	level := cfg.LogLevel
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openStore builds the document store for the configured backend. db is
// only opened when the sqlite backend is selected or when the caller passes
// one in.
func openStore(cfg config.Config, db *gorm.DB, logger *slog.Logger, m *metrics.Metrics, allowFresh bool) (*repository.DocumentStore, *gorm.DB, error) {
	c, err := codec.NewCodec(cfg.EncryptionKey)
	if err != nil {
		return nil, nil, err
	}

	var backend repository.Backend
	switch cfg.StorageBackend {
	case config.BackendSQLite:
		if db == nil {
			db, err = repository.NewDB(cfg.DatabaseURL)
			if err != nil {
				return nil, nil, err
			}
		}
		backend = repository.NewSQLiteBackend(db)
	default:
		backend = repository.NewFileBackend(cfg.DataFile)
	}

	opts := []repository.StoreOption{repository.WithStoreLogger(logger), repository.WithStoreMetrics(m)}
	if allowFresh && cfg.FreshStartOnCorruption {
		opts = append(opts, repository.WithFreshStartOnCorruption())
	}
	return repository.NewDocumentStore(backend, c, opts...), db, nil
}

func closeDB(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
