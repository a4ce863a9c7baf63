package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arnold/habitgrid-api/internal/config"
)

func addSweep(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Cancel reminder registrations no alarm refers to.",
		Example: `
habitd sweep
DOC_STORE=firestore habitd sweep
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := bootstrap(ctx, config.Load())
			if err != nil {
				return err
			}
			defer rt.Close()

			n, err := rt.habits.Sweep(ctx, rt.scheduler)
			fmt.Fprintf(cmd.OutOrStdout(), "cancelled %d orphaned registration(s)\n", n)
			return err
		},
	}
	topLevel.AddCommand(cmd)
}
