package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nvandessel/hybridsim/internal/backup"
	"github.com/nvandessel/hybridsim/internal/pathutil"
	"github.com/nvandessel/hybridsim/internal/store"
	"github.com/spf13/cobra"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive every stored run to a compressed file",
		Long: `Write all stored runs to a gzip-compressed archive with a checksummed
header, then prune old archives in the same directory.

Default location: ~/.hybridsim/backups/hybridsim-backup-YYYYMMDD-HHMMSS.json.gz
An explicit --output must lie under ~/.hybridsim/backups/ or
./.hybridsim/backups/.
Keeps the last 10 archives unless a retention flag is given.

Examples:
  hybridsim backup                              # Archive to default location
  hybridsim backup --output runs.json.gz        # Archive to a specific file
  hybridsim backup --keep 5 --max-age 30d       # Keep an archive if either policy does
  hybridsim backup list                         # List archives
  hybridsim backup verify <file>                # Verify archive integrity`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			outputPath, _ := cmd.Flags().GetString("output")

			policy, err := retentionFromFlags(cmd)
			if err != nil {
				return err
			}

			if outputPath == "" {
				dir, err := backup.DefaultDir()
				if err != nil {
					return fmt.Errorf("failed to get backup directory: %w", err)
				}
				outputPath = backup.GeneratePath(dir, time.Now())
			} else {
				dataDir, err := store.DataDir()
				if err != nil {
					return fmt.Errorf("failed to determine allowed backup dirs: %w", err)
				}
				cwd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("failed to determine allowed backup dirs: %w", err)
				}
				if err := pathutil.ValidatePath(outputPath, pathutil.ArchiveDirs(dataDir, cwd)); err != nil {
					return fmt.Errorf("backup path rejected: %w", err)
				}
			}

			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			archive, err := backup.Backup(cmd.Context(), s, outputPath)
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}

			deleted, err := backup.ApplyRetention(filepath.Dir(outputPath), policy)
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to apply retention: %v\n", err)
			}

			var size int64
			if info, err := os.Stat(outputPath); err == nil {
				size = info.Size()
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"path":       outputPath,
					"run_count":  len(archive.Runs),
					"size_bytes": size,
					"pruned":     len(deleted),
				})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Backup created: %d run(s), %s\n", len(archive.Runs), humanize.Bytes(uint64(size)))
			fmt.Fprintf(cmd.OutOrStdout(), "  Path: %s\n", outputPath)
			if len(deleted) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "  Pruned %d old archive(s)\n", len(deleted))
			}
			return nil
		},
	}

	cmd.Flags().String("output", "", "Output file path under ~/.hybridsim/backups/ or ./.hybridsim/backups/")
	cmd.Flags().Int("keep", 0, "Keep at most this many archives")
	cmd.Flags().String("max-age", "", "Keep archives younger than this (e.g. 72h, 30d, 2w)")
	cmd.Flags().String("max-size", "", "Keep the newest archives fitting in this total size (e.g. 500MB)")

	cmd.AddCommand(
		newBackupListCmd(),
		newBackupVerifyCmd(),
	)

	return cmd
}

// retentionFromFlags builds the retention policy from --keep, --max-age and
// --max-size. With none set, the ten newest archives are kept.
func retentionFromFlags(cmd *cobra.Command) (backup.RetentionPolicy, error) {
	var policies backup.AnyPolicy

	if keep, _ := cmd.Flags().GetInt("keep"); keep > 0 {
		policies = append(policies, backup.CountPolicy{MaxCount: keep})
	}

	if v, _ := cmd.Flags().GetString("max-age"); v != "" {
		d, err := backup.ParseDuration(v)
		if err != nil {
			return nil, err
		}
		policies = append(policies, backup.AgePolicy{MaxAge: d})
	}

	if v, _ := cmd.Flags().GetString("max-size"); v != "" {
		n, err := backup.ParseSize(v)
		if err != nil {
			return nil, err
		}
		policies = append(policies, backup.SizePolicy{MaxTotalBytes: n})
	}

	switch len(policies) {
	case 0:
		return backup.CountPolicy{MaxCount: 10}, nil
	case 1:
		return policies[0], nil
	default:
		return policies, nil
	}
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List archives in the default backup directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			dir, err := backup.DefaultDir()
			if err != nil {
				return fmt.Errorf("failed to get backup directory: %w", err)
			}
			archives, err := backup.List(dir)
			if err != nil {
				return fmt.Errorf("failed to list backups: %w", err)
			}

			if jsonOut {
				type jsonEntry struct {
					Path      string    `json:"path"`
					Size      int64     `json:"size_bytes"`
					CreatedAt time.Time `json:"created_at"`
					Runs      int       `json:"run_count"`
				}
				entries := make([]jsonEntry, 0, len(archives))
				for _, a := range archives {
					entries = append(entries, jsonEntry{Path: a.Path, Size: a.Size, CreatedAt: a.CreatedAt, Runs: a.Runs})
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"backups":     entries,
					"total_count": len(entries),
					"directory":   dir,
				})
			}

			out := cmd.OutOrStdout()
			if len(archives) == 0 {
				fmt.Fprintf(out, "No backups found in %s\n", dir)
				return nil
			}

			fmt.Fprintf(out, "Backups in %s:\n", dir)
			var total int64
			for _, a := range archives {
				total += a.Size
				fmt.Fprintf(out, "  %s  %4d run(s)  %9s  %s\n",
					filepath.Base(a.Path), a.Runs, humanize.Bytes(uint64(a.Size)), humanize.Time(a.CreatedAt))
			}
			fmt.Fprintf(out, "\nTotal: %d archive(s), %s\n", len(archives), humanize.Bytes(uint64(total)))
			return nil
		},
	}
}

func newBackupVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Verify an archive's checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			path := args[0]

			header, err := backup.ReadHeader(path)
			if err != nil {
				return fmt.Errorf("failed to read header: %w", err)
			}
			verr := backup.VerifyChecksum(path)

			if jsonOut {
				result := map[string]any{
					"path":       path,
					"valid":      verr == nil,
					"version":    header.Version,
					"created_at": header.CreatedAt,
					"run_count":  header.RunCount,
					"day_count":  header.DayCount,
				}
				if verr != nil {
					result["error"] = verr.Error()
				}
				if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
				return verr
			}

			if verr != nil {
				return fmt.Errorf("archive %s is corrupt: %w", path, verr)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %s (v%d, %d run(s), %d day(s), created %s)\n",
				filepath.Base(path), header.Version, header.RunCount, header.DayCount, humanize.Time(header.CreatedAt))
			return nil
		},
	}
}

func newRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <file>",
		Short: "Restore runs from an archive into the run store",
		Long: `Save every run in the archive into the run store. Runs whose id is
already stored are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := backup.Restore(cmd.Context(), s, args[0])
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d run(s), skipped %d already stored\n", result.RunsRestored, result.RunsSkipped)
			return nil
		},
	}
}
