package cli

import (
	"fmt"

	"github.com/runoshun/taskcal/internal/app"
	"github.com/runoshun/taskcal/internal/usecase"
	"github.com/spf13/cobra"
)

// newInitCommand creates the init command.
func newInitCommand(c *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the task store",
		Long: `Initialize the configured task store.

For the json driver this creates the store file (see 'store.path').
For the postgres driver this creates the tasks and task_instance_exceptions tables.
Running it again is harmless.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			uc := c.InitStoreUseCase()
			out, err := uc.Execute(cmd.Context(), usecase.InitStoreInput{})
			if err != nil {
				return err
			}

			if out.AlreadyInitialized {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Store already initialized (%s)\n", c.Config.Store.Driver)
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s store\n", c.Config.Store.Driver)
			return nil
		},
	}
}
