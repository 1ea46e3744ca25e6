package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/partforge/partforge/internal/sequencer"
	"github.com/partforge/partforge/internal/steps"
)

type stepCommand struct {
	step  steps.Step
	short string
}

var stepCommands = []stepCommand{
	{steps.PULL, "Retrieve part sources"},
	{steps.BUILD, "Build parts from their pulled sources"},
	{steps.STAGE, "Stage built artifacts into the shared staging area"},
	{steps.PRIME, "Prime the final tree from staged artifacts"},
}

func newStepCmd(root *rootFlags, sc stepCommand) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   fmt.Sprintf("%s [parts...]", sc.step),
		Short: sc.short,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newManager(root, force)
			if err != nil {
				return err
			}

			actions, err := m.Execute(cmd.Context(), sc.step, args)
			if err != nil {
				return err
			}

			executed := 0
			for _, action := range actions {
				if action.Type != sequencer.Skip {
					executed++
				}
			}
			if executed == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to do, everything is up to date")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Rerun the requested step even when it is up to date")

	return cmd
}
