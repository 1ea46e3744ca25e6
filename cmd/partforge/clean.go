package main

import (
	"github.com/spf13/cobra"

	"github.com/partforge/partforge/internal/steps"
)

func newCleanCmd(root *rootFlags) *cobra.Command {
	var stepName string

	cmd := &cobra.Command{
		Use:   "clean [parts...]",
		Short: "Remove persisted state and outputs from a step onward",
		RunE: func(cmd *cobra.Command, args []string) error {
			step, err := steps.Parse(stepName)
			if err != nil {
				return err
			}

			m, err := newManager(root, false)
			if err != nil {
				return err
			}
			return m.Clean(step, args)
		},
	}

	cmd.Flags().StringVarP(&stepName, "step", "s", "pull", "First step to clean: pull, build, stage, or prime")

	return cmd
}
