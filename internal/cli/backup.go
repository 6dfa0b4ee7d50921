package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/scrypster/resonance/internal/backup"
)

var (
	backupDir  string
	backupKeep int
	backupList bool
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a verified copy of the database and prune old copies",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		dir := backupDir
		if dir == "" {
			dir = filepath.Join(a.cfg.Storage.DataPath, "backups")
		}

		if backupList {
			backups, err := backup.List(dir)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), backups)
		}

		info, err := backup.Snapshot(cmd.Context(), a.store.GetDB(), dir, time.Now(), true)
		if err != nil {
			return err
		}
		removed, err := backup.Prune(dir, backupKeep)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes), pruned %d\n", info.Path, info.Size, len(removed))
		return nil
	},
}

func init() {
	backupCmd.Flags().StringVar(&backupDir, "dir", "", "backup directory (default: <data path>/backups)")
	backupCmd.Flags().IntVar(&backupKeep, "keep", 10, "number of backups to keep")
	backupCmd.Flags().BoolVar(&backupList, "list", false, "list existing backups instead")
}
