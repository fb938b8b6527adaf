package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/iksnae/cs-assist/internal"
	"github.com/iksnae/cs-assist/internal/export"
	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		format    string
		outputDir string
		status    string
	)

	cmd := &cobra.Command{
		Use:   "export [session-id...]",
		Short: "Export sessions to file",
		Long: `Export sessions to various formats (jsonl, md, yaml, json).

Without session ids every session is exported, optionally filtered by --status.
Each session is written to session_<id>.<ext> in the output directory. Use
--out - to write a single session to standard output.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			exporter, err := export.NewExporter(format)
			if err != nil {
				return err
			}

			ids := args
			if len(ids) == 0 {
				if ids, err = a.exportableIDs(status); err != nil {
					return err
				}
			}
			if len(ids) == 0 {
				internal.FprintWarning(a.errOut, "No sessions to export")
				return nil
			}

			if outputDir == "-" {
				if len(ids) != 1 {
					return errors.New("--out - requires exactly one session id")
				}
				session, err := a.loadSession(ids[0])
				if err != nil {
					return err
				}
				if err := exporter.Export(session, a.out); err != nil {
					return &internal.ExportError{Format: exporter.Extension(), Path: "-", Err: err}
				}
				return nil
			}

			if err := os.MkdirAll(outputDir, 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}

			exported := 0
			err = internal.ShowProgress(cmd.Context(), fmt.Sprintf("Exporting %d session(s) to %s", len(ids), outputDir), func(context.Context) error {
				for _, id := range ids {
					session, err := a.store.LoadSession(id)
					if err != nil {
						internal.LogError("Skipping session %s: %v", id, err)
						continue
					}
					path, err := export.WriteFile(exporter, session, outputDir)
					if err != nil {
						internal.LogError("%v", err)
						continue
					}
					internal.LogDebug("Exported %s to %s", session.ID, path)
					exported++
				}
				return nil
			})
			if err != nil {
				return err
			}

			if exported < len(ids) {
				return fmt.Errorf("exported %d of %d session(s) to %s", exported, len(ids), outputDir)
			}
			internal.FprintSuccess(a.out, fmt.Sprintf("Export complete: %d session(s) exported to %s", exported, outputDir))
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "jsonl", "Export format (jsonl, md, yaml, json)")
	cmd.Flags().StringVarP(&outputDir, "out", "o", "./exports", "Output directory, or - for standard output")
	cmd.Flags().StringVarP(&status, "status", "s", "", "Only export sessions with this status (when no ids are given)")
	return cmd
}

func (a *app) exportableIDs(status string) ([]string, error) {
	var filter internal.Status
	if status != "" {
		st, err := internal.ParseStatus(status)
		if err != nil {
			return nil, err
		}
		filter = st
	}

	summaries, err := a.store.ListSessions()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(summaries))
	for _, s := range summaries {
		if filter == "" || s.Status == filter {
			ids = append(ids, s.ID)
		}
	}
	return ids, nil
}
