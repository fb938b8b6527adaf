package cmd

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/cs-assist/internal"
	"github.com/spf13/cobra"
)

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Underline(true)
)

func newHealthCmd(a *app) *cobra.Command {
	var details bool

	cmd := &cobra.Command{
		Use:     "health",
		Aliases: []string{"healthcheck"},
		Short:   "Check the backend, the checkpoint store and local session storage",
		Long: `Check the health of everything cs-assist depends on:
  • Backend health endpoint (status and uptime)
  • Backend system information
  • Checkpoint store connectivity and statistics
  • Local session storage

The command fails only when the backend is unhealthy. An unreachable
checkpoint store is reported as a warning.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := a.out

			fmt.Fprintln(out, sectionStyle.Render("Health Check"))
			fmt.Fprintln(out)

			// Step 1: backend health
			fmt.Fprintln(out, infoStyle.Render("Step 1: Checking backend at "+a.client.BaseURL()+"..."))
			health := a.client.CheckHealth(ctx)
			if health.Healthy {
				status := health.Status
				if status == "" {
					status = "ok"
				}
				fmt.Fprintln(out, successStyle.Render("✅ Backend healthy"), fmt.Sprintf("(status: %s, uptime: %s)", status, health.Uptime.Round(time.Second)))
			} else {
				fmt.Fprintln(out, errorStyle.Render("❌ Backend unhealthy:"), health.Error)
				internal.LogDebug("Health endpoint %s failed: %s", a.client.BaseURL(), health.Error)
			}
			fmt.Fprintln(out)

			// Step 2: system info
			fmt.Fprintln(out, infoStyle.Render("Step 2: Fetching system information..."))
			info := a.client.SystemInfo(ctx)
			switch {
			case info.Error != "":
				fmt.Fprintln(out, warningStyle.Render("⚠️  System information unavailable:"), info.Error)
			case details:
				fmt.Fprintln(out, successStyle.Render("✅ System information"))
				printFields(a, info.Data)
			default:
				fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✅ System information (%d field(s), use --details to show)", len(info.Data))))
			}
			fmt.Fprintln(out)

			// Step 3: checkpoint store
			fmt.Fprintln(out, infoStyle.Render("Step 3: Checking checkpoint store at "+a.inspector.URL()+"..."))
			summary := a.inspector.Summary(ctx)
			switch {
			case !summary.Connected:
				fmt.Fprintln(out, warningStyle.Render("⚠️  Checkpoint store not connected:"), summary.Error)
				internal.LogDebug("Checkpoint store %s unreachable: %s", a.inspector.URL(), summary.Error)
			case summary.TotalCheckpoints == 0:
				fmt.Fprintln(out, successStyle.Render("✅ Checkpoint store connected (no checkpoints yet)"))
			default:
				fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✅ Checkpoint store connected: %d thread(s), %d checkpoint(s)",
					summary.TotalThreads, summary.TotalCheckpoints)))
				fmt.Fprintf(out, "   Latest project: %s\n", summary.LatestProjectID)
			}
			fmt.Fprintln(out)

			// Step 4: session storage
			fmt.Fprintln(out, infoStyle.Render("Step 4: Reading session storage at "+a.store.Dir()+"..."))
			sessions, err := a.store.ListSessions()
			storageOK := err == nil
			if storageOK {
				fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✅ Found %d session(s)", len(sessions))))
			} else {
				fmt.Fprintln(out, errorStyle.Render("❌ Session storage unreadable:"), err)
			}
			fmt.Fprintln(out)

			// Summary
			fmt.Fprintln(out, sectionStyle.Render("Summary"))
			fmt.Fprintln(out)

			if health.Healthy && summary.Connected && storageOK {
				fmt.Fprintln(out, successStyle.Render("✅ All checks passed"))
				return nil
			} else if health.Healthy {
				fmt.Fprintln(out, warningStyle.Render("⚠️  Backend available, some local checks failed"))
				return nil
			}
			fmt.Fprintln(out, errorStyle.Render("❌ Health check failed"))
			fmt.Fprintln(out, "   • The backend is not reachable or reports unhealthy")
			return errors.New("health check failed: backend unavailable")
		},
	}

	cmd.Flags().BoolVar(&details, "details", false, "Show the backend's system information")
	return cmd
}

func printFields(a *app, data map[string]interface{}) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(a.out, "   %s: %v\n", k, data[k])
	}
}
