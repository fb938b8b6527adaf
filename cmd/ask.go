package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iksnae/cs-assist/internal"
	"github.com/iksnae/cs-assist/internal/backend"
	"github.com/spf13/cobra"
)

type askOptions struct {
	reporter  string
	issueType string
}

func (o *askOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.reporter, "reporter", "", "Reporter name sent with each question (default ui.reporter)")
	cmd.Flags().StringVar(&o.issueType, "issue-type", "Question", "Issue type sent with each question")
}

func newAskCmd(a *app) *cobra.Command {
	opts := &askOptions{}

	cmd := &cobra.Command{
		Use:   "ask <session-id> <question...>",
		Short: "Ask the backend one question within a session",
		Long: `Send one question to the processing backend and record both the question
and the answer in the session. The session is created if it does not exist.

A failed request is recorded as an assistant message carrying the error, and
the command exits non-zero.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args[1:], " "))
			if question == "" {
				return errors.New("question must not be empty")
			}

			session, err := a.openSession(args[0])
			if err != nil {
				return err
			}

			reply, failure := a.ask(cmd.Context(), session, question, opts)
			a.printMessage(reply)
			if failure != nil {
				return fmt.Errorf("backend request failed: %s", failure.Message)
			}
			return nil
		},
	}

	opts.addFlags(cmd)
	return cmd
}

// openSession loads a session, creating an open one when none exists.
func (a *app) openSession(id string) (*internal.Session, error) {
	session, err := a.store.LoadSession(id)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, internal.ErrSessionNotFound) {
		return nil, err
	}

	session, err = a.store.CreateSession(id, "Session "+id, internal.StatusOpen)
	if err != nil {
		return nil, err
	}
	internal.FprintInfo(a.out, fmt.Sprintf("Created session %s", id))
	return session, nil
}

// ask records question in the session, forwards it to the backend and records
// the reply. Storage failures are logged and do not stop the exchange; a
// backend failure is recorded as the reply and returned.
func (a *app) ask(ctx context.Context, session *internal.Session, question string, opts *askOptions) (internal.Message, *backend.ProcessFailure) {
	if _, err := a.store.AddMessage(session, internal.RoleUser, question, nil); err != nil {
		internal.LogWarn("Question not saved: %v", err)
	}

	reporter := opts.reporter
	if reporter == "" {
		reporter = a.cfg.UI.Reporter
	}
	req := backend.IssueRequest{
		ProjectID: session.ID,
		Question:  question,
		Reporter:  reporter,
		IssueType: opts.issueType,
	}

	var result backend.ProcessResult
	_ = internal.ShowProgress(ctx, "Waiting for the backend", func(ctx context.Context) error {
		result = a.client.ProcessIssue(ctx, req)
		if !result.OK() {
			return result.Failure.Err
		}
		return nil
	})

	var (
		content  string
		metadata *internal.MessageMetadata
	)
	if result.OK() {
		content = result.Success.Answer
		metadata = result.Success.Metadata()
	} else {
		content = "Request failed: " + result.Failure.Message
		metadata = result.Failure.Metadata()
		internal.Logger().Warn().
			Str("session", session.ID).
			Str("kind", string(result.Failure.Kind)).
			Msg(result.Failure.Message)
	}

	if _, err := a.store.AddMessage(session, internal.RoleAssistant, content, metadata); err != nil {
		internal.LogWarn("Answer not saved: %v", err)
	}
	if !a.cfg.Session.AutoSave {
		if err := a.store.SaveSession(session); err != nil {
			internal.LogWarn("Session not saved: %v", err)
		}
	}

	return *session.LastMessage(), result.Failure
}
