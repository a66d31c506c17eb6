// Package cli provides the command-line interface for taskcal.
package cli

import (
	"fmt"

	"github.com/runoshun/taskcal/internal/app"
	"github.com/runoshun/taskcal/internal/domain"
	"github.com/spf13/cobra"
)

// Command group IDs.
const (
	groupSetup  = "setup"
	groupSeries = "series"
	groupServer = "server"
)

// NewRootCommand creates the root command for taskcal.
// It receives the container for dependency injection and version for display.
// The --config flag is read by main before the container is built; it is
// declared here so cobra accepts it.
func NewRootCommand(c *app.Container, version string) *cobra.Command {
	var configFile string
	var user string

	root := &cobra.Command{
		Use:   "taskcal",
		Short: "Recurring task calendar",
		Long: `taskcal keeps recurring tasks as series and materializes their
occurrences on demand. Single occurrences can be moved, renamed, cancelled or
completed without touching the series; an edit can also apply to one
occurrence and every later one, or to the whole series.`,
		Version: version,
		// SilenceUsage prevents usage from being printed on errors
		SilenceUsage: true,
		// SilenceErrors prevents Cobra from printing errors (we handle it in main)
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip if container is nil (e.g. help without config)
			if c == nil {
				return nil
			}
			if user != "" {
				c.Config.User = user
			}
			for _, w := range c.Config.Warnings {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", w)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: $XDG_CONFIG_HOME/taskcal/config.toml)")
	root.PersistentFlags().StringVar(&user, "user", "", "Act as this user (default: 'user' from config)")

	root.AddGroup(
		&cobra.Group{ID: groupSetup, Title: "Setup Commands:"},
		&cobra.Group{ID: groupSeries, Title: "Series Commands:"},
		&cobra.Group{ID: groupServer, Title: "Server Commands:"},
	)

	initCmd := newInitCommand(c)
	initCmd.GroupID = groupSetup

	configCmd := newConfigCommand(c)
	configCmd.GroupID = groupSetup

	newCmd := newNewCommand(c)
	newCmd.GroupID = groupSeries

	agendaCmd := newAgendaCommand(c)
	agendaCmd.GroupID = groupSeries

	editCmd := newEditCommand(c)
	editCmd.GroupID = groupSeries

	rmCmd := newRmCommand(c)
	rmCmd.GroupID = groupSeries

	doneCmd := newDoneCommand(c, true)
	doneCmd.GroupID = groupSeries

	undoneCmd := newDoneCommand(c, false)
	undoneCmd.GroupID = groupSeries

	archiveCmd := newArchiveCommand(c)
	archiveCmd.GroupID = groupSeries

	exportCmd := newExportCommand(c)
	exportCmd.GroupID = groupSeries

	serveCmd := newServeCommand(c)
	serveCmd.GroupID = groupServer

	tokenCmd := newTokenCommand(c)
	tokenCmd.GroupID = groupServer

	root.AddCommand(
		initCmd,
		configCmd,
		newCmd,
		agendaCmd,
		editCmd,
		rmCmd,
		doneCmd,
		undoneCmd,
		archiveCmd,
		exportCmd,
		serveCmd,
		tokenCmd,
	)

	return root
}

// actor returns the user the CLI acts as.
func actor(c *app.Container) (string, error) {
	if c.Config.User == "" {
		return "", fmt.Errorf("%w: set 'user' in the config file or pass --user", domain.ErrNoActor)
	}
	return c.Config.User, nil
}
