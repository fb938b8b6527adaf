package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/iksnae/cs-assist/internal"
	"github.com/spf13/cobra"
)

const chatHelp = `Commands:
  /status [open|pending|closed]  Show or change the session status
  /history                       Show the conversation so far
  /clear                         Clear the conversation history
  /help                          Show this help
  /quit                          Leave the chat`

func newChatCmd(a *app) *cobra.Command {
	opts := &askOptions{}

	cmd := &cobra.Command{
		Use:   "chat <session-id>",
		Short: "Chat with the backend interactively within a session",
		Long: `Start an interactive chat. Every line is sent to the backend as a question
and the answer is printed and recorded in the session, which is created if it
does not exist. Backend and storage failures are reported inline and the chat
continues.

` + chatHelp,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.openSession(args[0])
			if err != nil {
				return err
			}

			a.printSessionHeader(session)
			a.printCheckpointStatus(cmd.Context(), session.ID)
			a.printMessages(session.Messages, a.cfg.UI.MaxHistoryDisplay)
			fmt.Fprintln(a.out)
			fmt.Fprintln(a.out, internal.Dim("Type a question, or /help for commands."))

			scanner := bufio.NewScanner(a.in)
			scanner.Buffer(make([]byte, 64*1024), 1024*1024)
			for {
				fmt.Fprint(a.out, "\n> ")
				if !scanner.Scan() {
					fmt.Fprintln(a.out)
					break
				}

				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if strings.HasPrefix(line, "/") {
					if quit := a.chatCommand(session, line); quit {
						break
					}
					continue
				}

				reply, failure := a.ask(cmd.Context(), session, line, opts)
				a.printMessage(reply)
				if failure != nil {
					internal.FprintWarning(a.errOut, failure.Message)
				}

				if err := cmd.Context().Err(); err != nil {
					return err
				}
			}

			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			return nil
		},
	}

	opts.addFlags(cmd)
	return cmd
}

// chatCommand handles one slash command and reports whether the chat should end.
func (a *app) chatCommand(session *internal.Session, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit", "/q":
		return true

	case "/help":
		fmt.Fprintln(a.out, chatHelp)

	case "/history":
		a.printMessages(session.Messages, 0)

	case "/clear":
		count := len(session.Messages)
		if _, err := a.store.ClearMessages(session); err != nil {
			internal.FprintWarning(a.errOut, fmt.Sprintf("History cleared but not saved: %v", err))
			return false
		}
		internal.FprintSuccess(a.out, fmt.Sprintf("Cleared %d message(s)", count))

	case "/status":
		if len(fields) == 1 {
			fmt.Fprintf(a.out, "Status: %s\n", internal.StatusBadge(session.Status))
			return false
		}
		st, err := internal.ParseStatus(fields[1])
		if err != nil {
			internal.FprintWarning(a.errOut, err.Error())
			return false
		}
		if _, err := a.store.UpdateSessionStatus(session, st); err != nil {
			internal.FprintWarning(a.errOut, fmt.Sprintf("Status changed but not saved: %v", err))
			return false
		}
		internal.FprintSuccess(a.out, fmt.Sprintf("Status set to %s", st))

	default:
		internal.FprintWarning(a.errOut, fmt.Sprintf("Unknown command %s (try /help)", fields[0]))
	}
	return false
}
