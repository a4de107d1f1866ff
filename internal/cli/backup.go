package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewBackupCommand creates the backup command, which copies the encrypted
// snapshot into a directory without decrypting it.
func NewBackupCommand(rootOpts *RootOptions) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Copy the encrypted snapshot into a backup directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.BackupDir
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg, rootOpts.Verbose)
			store, db, err := openStore(cfg, nil, logger, nil, false)
			if err != nil {
				return err
			}
			defer closeDB(db)

			path, err := store.Backup(cmd.Context(), dir)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "backup directory (defaults to BACKUP_DIR)")
	return cmd
}
