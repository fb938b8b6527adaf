package cmd

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/cs-assist/internal"
	"github.com/iksnae/cs-assist/internal/checkpoint"
	"github.com/iksnae/cs-assist/internal/export"
	"github.com/spf13/cobra"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))
)

func newSessionCmd(a *app) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:     "session",
		Aliases: []string{"sessions"},
		Short:   "Manage support sessions",
		Long: `Create, inspect and maintain support sessions.

Sessions are stored as one JSON record per session id in the configured
storage directory, with a sessions.yaml manifest used for listing.`,
	}

	sessionCmd.AddCommand(
		newSessionCreateCmd(a),
		newSessionListCmd(a),
		newSessionShowCmd(a),
		newSessionStatusCmd(a),
		newSessionDeleteCmd(a),
		newSessionClearCmd(a),
		newSessionCleanupCmd(a),
		newSessionReindexCmd(a),
	)
	return sessionCmd
}

func newSessionCreateCmd(a *app) *cobra.Command {
	var (
		title  string
		status string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "create <session-id>",
		Short: "Create a new session",
		Long: `Create a new session for a project or ticket identifier.

An existing session with the same id is left untouched unless --force is given,
in which case it is replaced by an empty one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			st, err := internal.ParseStatus(status)
			if err != nil {
				return err
			}

			if !force {
				if existing, err := a.store.LoadSession(id); err == nil {
					internal.FprintWarning(a.errOut, fmt.Sprintf("Session %s already exists (use --force to replace it)", id))
					a.printSessionHeader(existing)
					return nil
				}
			}

			if title == "" {
				title = "Session " + id
			}
			session, err := a.store.CreateSession(id, title, st)
			if err != nil {
				return err
			}

			internal.FprintSuccess(a.out, fmt.Sprintf("Created session %s", session.ID))
			a.printSessionHeader(session)
			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Session title (default \"Session <id>\")")
	cmd.Flags().StringVarP(&status, "status", "s", string(internal.StatusOpen), "Initial status (open, pending, closed)")
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing session with the same id")
	return cmd
}

func newSessionListCmd(a *app) *cobra.Command {
	var (
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List sessions, most recently updated first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter internal.Status
			if status != "" {
				st, err := internal.ParseStatus(status)
				if err != nil {
					return err
				}
				filter = st
			}

			summaries, err := a.store.ListSessions()
			if err != nil {
				return err
			}

			if filter != "" {
				filtered := make([]internal.SessionSummary, 0, len(summaries))
				for _, s := range summaries {
					if s.Status == filter {
						filtered = append(filtered, s)
					}
				}
				summaries = filtered
			}

			if limit <= 0 {
				limit = a.cfg.UI.MaxHistoryDisplay
			}
			total := len(summaries)
			if limit > 0 && total > limit {
				summaries = summaries[:limit]
			}

			a.printSessionTable(summaries, total)
			return nil
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "Only show sessions with this status")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of sessions to show (default ui.max_history_display)")
	return cmd
}

func (a *app) printSessionTable(summaries []internal.SessionSummary, total int) {
	if len(summaries) == 0 {
		fmt.Fprintln(a.out, headerStyle.Render("No sessions found"))
		return
	}

	fmt.Fprintln(a.out, headerStyle.Render(fmt.Sprintf("Found %d session(s)", total)))
	fmt.Fprintln(a.out)

	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tMESSAGES\tUPDATED\t")
	for _, s := range summaries {
		title := s.Title
		if title == "" {
			title = "Untitled"
		}
		if len([]rune(title)) > 50 {
			title = string([]rune(title)[:47]) + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t\n", s.ID, title, s.Status, s.MessageCount, internal.FormatTime(s.UpdatedAt))
	}
	_ = w.Flush()

	if total > len(summaries) {
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, internal.Dim(fmt.Sprintf("... and %d more (use --limit to show more)", total-len(summaries))))
	}
}

func newSessionShowCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session and its conversation history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.loadSession(args[0])
			if err != nil {
				return err
			}

			if limit <= 0 {
				limit = a.cfg.UI.MaxHistoryDisplay
			}
			a.printSessionHeader(session)
			a.printCheckpointStatus(cmd.Context(), session.ID)
			a.printMessages(session.Messages, limit)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show only the last N messages (default ui.max_history_display)")
	return cmd
}

func newSessionStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <session-id> <open|pending|closed>",
		Short: "Change the status of a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := internal.ParseStatus(args[1])
			if err != nil {
				return err
			}
			session, err := a.loadSession(args[0])
			if err != nil {
				return err
			}

			previous := session.Status
			if _, err := a.store.UpdateSessionStatus(session, st); err != nil {
				return err
			}
			if !a.cfg.Session.AutoSave {
				if err := a.store.SaveSession(session); err != nil {
					return err
				}
			}

			internal.FprintSuccess(a.out, fmt.Sprintf("Session %s: %s -> %s", session.ID, previous, st))
			return nil
		},
	}
}

func newSessionDeleteCmd(a *app) *cobra.Command {
	var keepCheckpoints bool

	cmd := &cobra.Command{
		Use:     "delete <session-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a session and its backend checkpoints",
		Long: `Delete a session record. The backend's conversation checkpoints for the
same id are deleted too, unless --keep-checkpoints is given. An unreachable
checkpoint store only produces a warning.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			existed, err := a.store.DeleteSession(id)
			if err != nil {
				return err
			}
			if existed {
				internal.FprintSuccess(a.out, fmt.Sprintf("Deleted session %s", id))
			} else {
				internal.FprintWarning(a.errOut, fmt.Sprintf("No session record for %s", id))
			}

			if keepCheckpoints {
				return nil
			}

			removed, err := a.inspector.DeleteCheckpoint(cmd.Context(), id)
			if err != nil {
				internal.FprintWarning(a.errOut, fmt.Sprintf("Checkpoints for %s were not deleted: %v", id, err))
				return nil
			}
			fmt.Fprintf(a.out, "Deleted %d checkpoint(s) for %s\n", removed, checkpoint.ThreadID(id))
			return nil
		},
	}

	cmd.Flags().BoolVar(&keepCheckpoints, "keep-checkpoints", false, "Do not delete the backend checkpoints of the session")
	return cmd
}

func newSessionClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <session-id>",
		Short: "Clear the conversation history of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.loadSession(args[0])
			if err != nil {
				return err
			}
			count := len(session.Messages)
			if _, err := a.store.ClearMessages(session); err != nil {
				return err
			}
			internal.FprintSuccess(a.out, fmt.Sprintf("Cleared %d message(s) from %s", count, session.ID))
			return nil
		},
	}
}

func newSessionCleanupCmd(a *app) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete sessions not updated within the expiry window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("days") {
				days = a.cfg.Session.ExpiryDays
			}
			if days < 0 {
				return fmt.Errorf("--days must not be negative, got %d", days)
			}

			removed, err := a.store.CleanupOldSessions(days)
			if err != nil {
				return err
			}
			internal.FprintSuccess(a.out, fmt.Sprintf("Removed %d session(s) older than %d day(s)", removed, days))
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Age in days after which sessions are removed (default session.expiry_days)")
	return cmd
}

func newSessionReindexCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the session manifest from the records on disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.store.Reindex()
			if err != nil {
				return err
			}
			internal.FprintSuccess(a.out, fmt.Sprintf("Indexed %d session(s) in %s", n, a.store.ManifestPath()))
			return nil
		},
	}
}

// loadSession loads a session and turns a miss into a hint for the operator.
func (a *app) loadSession(id string) (*internal.Session, error) {
	session, err := a.store.LoadSession(id)
	if err != nil {
		if errors.Is(err, internal.ErrSessionNotFound) {
			return nil, fmt.Errorf("%w: %s (use 'cs-assist session list' to see available sessions)", internal.ErrSessionNotFound, id)
		}
		return nil, err
	}
	return session, nil
}

func (a *app) printSessionHeader(session *internal.Session) {
	title := session.Title
	if title == "" {
		title = "Untitled"
	}
	fmt.Fprintf(a.out, "%s %s\n", titleStyle.Render(title), internal.StatusBadge(session.Status))
	fmt.Fprintln(a.out, internal.Dim(fmt.Sprintf("ID: %s · Created: %s · Updated: %s · Messages: %d",
		session.ID, internal.FormatTime(session.CreatedAt), internal.FormatTime(session.UpdatedAt), len(session.Messages))))
}

// printCheckpointStatus reports whether the backend holds conversation
// context for the session. An unreachable store is shown, not returned.
func (a *app) printCheckpointStatus(ctx context.Context, id string) {
	has, err := a.inspector.HasCheckpoint(ctx, id)
	if err != nil {
		fmt.Fprintln(a.out, internal.Dim("Context: checkpoint store unavailable"))
		return
	}
	if !has {
		fmt.Fprintln(a.out, internal.Dim("Context: none"))
		return
	}

	n, err := a.inspector.CheckpointCount(ctx, id)
	if err != nil {
		fmt.Fprintln(a.out, internal.Dim("Context: checkpoint store unavailable"))
		return
	}
	fmt.Fprintln(a.out, internal.Dim(fmt.Sprintf("Context: enabled (%d checkpoint(s))", n)))
}

// printMessages prints the last limit messages; limit <= 0 prints all.
func (a *app) printMessages(messages []internal.Message, limit int) {
	if len(messages) == 0 {
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, internal.Dim("No messages yet"))
		return
	}

	start := 0
	if limit > 0 && len(messages) > limit {
		start = len(messages) - limit
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, internal.Dim(fmt.Sprintf("... %d earlier message(s) hidden", start)))
	}

	for _, msg := range messages[start:] {
		a.printMessage(msg)
	}
}

func (a *app) printMessage(msg internal.Message) {
	fmt.Fprintln(a.out)
	fmt.Fprintf(a.out, "%s %s\n", internal.RoleLabel(msg.Role), internal.Dim(internal.FormatTime(msg.Timestamp)))
	if msg.Role == internal.RoleAssistant {
		fmt.Fprintln(a.out, internal.RenderMarkdown(msg.Content))
	} else {
		fmt.Fprintln(a.out, msg.Content)
	}
	if details := export.MetadataSummary(msg.Metadata); details != "" {
		fmt.Fprintln(a.out, internal.Dim(details))
	}
}
