package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tmcln/pointerhub/internal/eventlog"
)

// SessionsOptions holds flags for the sessions command.
type SessionsOptions struct {
	*RootOptions
	Database string
}

// SessionsResult holds the sessions command output.
type SessionsResult struct {
	Sessions []string `json:"sessions"`
}

// NewSessionsCommand creates the sessions command.
func NewSessionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded sessions in an event log",
		Long: `List every session token in an event log, oldest first.

Examples:
  pointerhub sessions --db ./pointers.db
  pointerhub sessions --db ./pointers.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessions(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite event log (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runSessions(opts *SessionsOptions, cmd *cobra.Command) error {
	store, err := eventlog.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer store.Close()

	sessions, err := store.Sessions(context.Background())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}

	if opts.Format == "json" {
		return outputJSON(cmd, SessionsResult{Sessions: sessions})
	}

	w := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions recorded")
		return nil
	}
	for _, s := range sessions {
		fmt.Fprintln(w, s)
	}
	return nil
}
