package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/iksnae/cs-assist/internal"
	"github.com/iksnae/cs-assist/internal/checkpoint"
	"github.com/spf13/cobra"
)

func newCheckpointCmd(a *app) *cobra.Command {
	checkpointCmd := &cobra.Command{
		Use:     "checkpoint",
		Aliases: []string{"checkpoints", "cp"},
		Short:   "Inspect the backend's conversation checkpoints",
		Long: `Inspect the checkpoint store the backend uses to keep conversation context.

Checkpoints of a session live under the thread id "project:<session-id>".
The store is configured with database.url (postgres:// or sqlite://).`,
	}

	checkpointCmd.AddCommand(
		newCheckpointListCmd(a),
		newCheckpointCountCmd(a),
		newCheckpointDeleteCmd(a),
		newCheckpointSummaryCmd(a),
	)
	return checkpointCmd
}

func newCheckpointListCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the latest checkpoint of each thread",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			infos, err := a.inspector.ListCheckpoints(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				fmt.Fprintln(a.out, headerStyle.Render("No checkpoints found"))
				return nil
			}

			fmt.Fprintln(a.out, headerStyle.Render(fmt.Sprintf("Found %d thread(s)", len(infos))))
			fmt.Fprintln(a.out)

			w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
			_, _ = fmt.Fprintln(w, "PROJECT\tCHECKPOINT\tPARENT\tCONTEXT\t")
			for _, info := range infos {
				parent := info.ParentCheckpointID
				if parent == "" {
					parent = "-"
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%t\t\n", info.ProjectID, info.CheckpointID, parent, info.HasContext)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", checkpoint.DefaultListLimit, "Maximum number of threads to list")
	return cmd
}

func newCheckpointCountCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "count <session-id>",
		Short: "Count the checkpoints of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.inspector.CheckpointCount(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s: %d checkpoint(s)\n", checkpoint.ThreadID(args[0]), n)
			return nil
		},
	}
}

func newCheckpointDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete the checkpoints of a session, keeping the session record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := a.inspector.DeleteCheckpoint(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			internal.FprintSuccess(a.out, fmt.Sprintf("Deleted %d checkpoint(s) for %s", removed, checkpoint.ThreadID(args[0])))
			return nil
		},
	}
}

func newCheckpointSummaryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show checkpoint store statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.inspector.Summary(cmd.Context())
			fmt.Fprintf(a.out, "Store:       %s\n", a.inspector.URL())
			if !s.Connected {
				fmt.Fprintln(a.out, "Connected:   no")
				fmt.Fprintf(a.out, "Error:       %s\n", s.Error)
				return nil
			}

			latest := s.LatestProjectID
			if latest == "" {
				latest = "-"
			}
			fmt.Fprintln(a.out, "Connected:   yes")
			fmt.Fprintf(a.out, "Threads:     %d\n", s.TotalThreads)
			fmt.Fprintf(a.out, "Checkpoints: %d\n", s.TotalCheckpoints)
			fmt.Fprintf(a.out, "Latest:      %s\n", latest)
			return nil
		},
	}
}
