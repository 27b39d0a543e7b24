package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/nvandessel/sampling-paradigm/internal/backup"
	"github.com/nvandessel/sampling-paradigm/internal/pathutil"
	"github.com/spf13/cobra"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up the run database to a compressed file",
		Long: `Back up every stored run (parameters, seed and trials) to a single
gzip-compressed file with a SHA-256 checksum.

Default location: <root>/.spgen/backups/spgen-backup-YYYYMMDD-HHMMSS.json.gz
Backups may only be written to .spgen/backups of the project or of ~.
The newest --keep backups in that directory are kept.

Examples:
  spgen backup                              # Backup to the default location
  spgen backup --out ~/.spgen/backups/a.json.gz
  spgen backup list                         # List all backups
  spgen backup verify <file>                # Verify backup integrity
  spgen backup restore <file>               # Add the runs of a backup`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			outPath, _ := cmd.Flags().GetString("out")
			keep, _ := cmd.Flags().GetInt("keep")
			if keep < 1 {
				return fmt.Errorf("--keep must be at least 1, got %d", keep)
			}

			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}

			if outPath == "" {
				outPath = backup.GeneratePath(filepath.Join(env.dataDir, pathutil.BackupsDir), time.Now())
			}
			outPath, err = pathutil.Confine(outPath, pathutil.BackupDirs(env.dataDir)...)
			if err != nil {
				return fmt.Errorf("backup path rejected: %w", err)
			}

			runStore, err := env.openStore()
			if err != nil {
				return err
			}
			defer runStore.Close()

			header, err := backup.Backup(context.Background(), runStore, outPath)
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}

			deleted, err := backup.Rotate(filepath.Dir(outPath), keep)
			if err != nil {
				env.logger.Warn("failed to rotate backups", "error", err)
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"path":      outPath,
					"run_count": header.RunCount,
					"checksum":  header.Checksum,
					"rotated":   len(deleted),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backup created: %d runs\n  Path: %s\n", header.RunCount, outPath)
			return nil
		},
	}

	cmd.Flags().String("out", "", "Output file (default: timestamped file in .spgen/backups/)")
	cmd.Flags().Int("keep", 10, "Number of backups to keep in the output directory")

	cmd.AddCommand(
		newBackupListCmd(),
		newBackupVerifyCmd(),
		newBackupRestoreCmd(),
	)

	return cmd
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backups in .spgen/backups, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			infos, err := backup.List(filepath.Join(env.dataDir, pathutil.BackupsDir))
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"backups": infos,
					"count":   len(infos),
				})
			}

			out := cmd.OutOrStdout()
			if len(infos) == 0 {
				fmt.Fprintln(out, "No backups found.")
				return nil
			}
			for _, info := range infos {
				fmt.Fprintf(out, "%s  %3d runs  %7d bytes  %s\n",
					info.CreatedAt.Local().Format("2006-01-02 15:04:05"), info.RunCount, info.Size, info.Path)
			}
			return nil
		},
	}
}

func newBackupVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Verify backup file integrity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			path := args[0]

			verr := backup.Verify(path)
			if jsonOut {
				result := map[string]any{"file": path, "valid": verr == nil}
				if verr != nil {
					result["error"] = verr.Error()
				}
				if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
				return verr
			}
			if verr != nil {
				return fmt.Errorf("backup invalid: %w", verr)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backup OK: %s\n", path)
			return nil
		},
	}
}

func newBackupRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <file>",
		Short: "Add the runs of a backup to the run database",
		Long: `Restore runs from a backup file. Runs whose ID is already stored are
skipped, so restoring twice is harmless.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			inPath, err := pathutil.Confine(args[0], pathutil.BackupDirs(env.dataDir)...)
			if err != nil {
				return fmt.Errorf("restore path rejected: %w", err)
			}

			runStore, err := env.openStore()
			if err != nil {
				return err
			}
			defer runStore.Close()

			result, err := backup.Restore(context.Background(), runStore, inPath)
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restore complete: %d runs restored, %d skipped\n", result.Restored, result.Skipped)
			return nil
		},
	}
}
