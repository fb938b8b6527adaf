package internal

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	glamourstyles "github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"
	"github.com/muesli/termenv"
)

var (
	statusStyles = map[Status]lipgloss.Style{
		StatusOpen:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		StatusPending: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		StatusClosed:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	}

	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("170")).Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// StatusBadge renders a session status for terminal output
func StatusBadge(s Status) string {
	label := fmt.Sprintf("[%s]", s)
	if !IsTerminal() {
		return label
	}
	if style, ok := statusStyles[s]; ok {
		return style.Render(label)
	}
	return label
}

// RoleLabel renders a message author for terminal output
func RoleLabel(r Role) string {
	label := "User"
	style := userStyle
	if r == RoleAssistant {
		label = "Assistant"
		style = assistantStyle
	}
	if !IsTerminal() {
		return label
	}
	return style.Render(label)
}

// Dim renders secondary text
func Dim(s string) string {
	if !IsTerminal() {
		return s
	}
	return dimStyle.Render(s)
}

// FormatTime renders a timestamp in local time for listings
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func compactStyle() ansi.StyleConfig {
	var style ansi.StyleConfig
	if termenv.HasDarkBackground() {
		style = glamourstyles.DarkStyleConfig
	} else {
		style = glamourstyles.LightStyleConfig
	}

	zero := uint(0)
	style.Document.Margin = &zero
	style.Document.BlockPrefix = ""
	style.Document.BlockSuffix = ""
	return style
}

// RenderMarkdown renders an assistant answer for the terminal. Without a
// terminal, or when rendering fails, the text is returned unchanged.
func RenderMarkdown(text string) string {
	if !IsTerminal() {
		return text
	}

	width, _, err := term.GetSize(os.Stdout.Fd())
	if err != nil || width <= 0 {
		width = 80
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(compactStyle()),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return text
	}

	rendered, err := r.Render(text)
	if err != nil {
		LogDebug("Markdown rendering failed: %v", err)
		return text
	}
	return strings.TrimRight(rendered, "\n")
}
