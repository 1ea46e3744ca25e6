package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/partforge/partforge/internal/sequencer"
	"github.com/partforge/partforge/internal/steps"
)

func newPlanCmd(root *rootFlags) *cobra.Command {
	var (
		stepName    string
		showSkipped bool
	)

	cmd := &cobra.Command{
		Use:   "plan [parts...]",
		Short: "Show the actions a run would execute without executing them",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := steps.Parse(stepName)
			if err != nil {
				return err
			}

			m, err := newManager(root, false)
			if err != nil {
				return err
			}

			actions, err := m.Plan(target, args)
			if err != nil {
				return err
			}

			planned := 0
			for _, action := range actions {
				if action.Type == sequencer.Skip && !showSkipped {
					continue
				}
				planned++
				fmt.Fprintln(cmd.OutOrStdout(), action)
			}
			if planned == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to do")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&stepName, "step", "s", "prime", "Target step: pull, build, stage, or prime")
	cmd.Flags().BoolVar(&showSkipped, "show-skipped", false, "Include steps that are already up to date")

	return cmd
}
