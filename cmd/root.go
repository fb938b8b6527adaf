package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/iksnae/cs-assist/internal"
	"github.com/iksnae/cs-assist/internal/backend"
	"github.com/iksnae/cs-assist/internal/checkpoint"
	"github.com/spf13/cobra"
)

var (
	version string = "dev"
	commit  string = "unknown"
	date    string = "unknown"
)

type rootOptions struct {
	configPath  string
	storagePath string
	verbose     bool
}

// app holds the services shared by every command. It is filled in once by
// the root command before any subcommand runs.
type app struct {
	cfg       *internal.Config
	store     *internal.SessionStore
	client    *backend.Client
	inspector *checkpoint.Inspector

	out    io.Writer
	errOut io.Writer
	in     io.Reader
}

func (a *app) setup(cmd *cobra.Command, opts *rootOptions) error {
	internal.SetLogOutput(cmd.ErrOrStderr(), "console")
	internal.SetVerbose(opts.verbose)

	cfg, err := internal.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.storagePath != "" {
		cfg.Session.StoragePath = opts.storagePath
	}

	internal.SetLogOutput(cmd.ErrOrStderr(), cfg.Log.Format)
	internal.SetLogLevel(internal.ParseLogLevel(cfg.Log.Level))
	if opts.verbose {
		internal.SetVerbose(true)
	}

	a.cfg = cfg
	a.store = internal.NewSessionStore(cfg.Session.StoragePath, internal.WithAutoSave(cfg.Session.AutoSave))
	a.client = backend.NewClient(cfg.API)
	a.inspector = checkpoint.NewInspector(cfg.Database)
	a.out = cmd.OutOrStdout()
	a.errOut = cmd.ErrOrStderr()
	a.in = cmd.InOrStdin()

	internal.Logger().Debug().
		Str("backend", cfg.API.BaseURL).
		Str("storage", cfg.Session.StoragePath).
		Str("database", a.inspector.URL()).
		Msg("Configuration loaded")
	return nil
}

// NewRootCmd builds the command tree with a fresh set of services.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "cs-assist",
		Short: "Customer support assistant for ticket-driven troubleshooting sessions",
		Long: `A CLI client for the customer support processing backend.

Each session is tied to a project or ticket identifier. Questions asked in a
session are forwarded to the backend, and its answers are kept with the
conversation history on local disk.

Features:
  • Create, list and manage support sessions
  • Ask single questions or chat interactively
  • Inspect the backend's conversation checkpoints
  • Check backend and checkpoint store health
  • Export sessions (JSONL, Markdown, YAML, JSON)

Quick Start:
  cs-assist session create JCSC-1 --title "Login issue"
  cs-assist ask JCSC-1 "User cannot log in after password reset"
  cs-assist chat JCSC-1
  cs-assist health`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd, opts)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default ~/.config/cs-assist/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.storagePath, "storage", "", "Session storage directory (overrides session.storage_path)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(
		newSessionCmd(a),
		newAskCmd(a),
		newChatCmd(a),
		newHealthCmd(a),
		newCheckpointCmd(a),
		newExportCmd(a),
	)
	return rootCmd
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		internal.PrintError(fmt.Sprintf("Error: %v", err))
		os.Exit(1)
	}
}
