package main

import (
	"github.com/spf13/cobra"

	"github.com/partforge/partforge/internal/lifecycle"
	"github.com/partforge/partforge/internal/logger"
)

type rootFlags struct {
	projectFile string
	workDir     string
	verbose     bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "partforge",
		Short:         "Partforge builds projects from declarative part definitions",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.projectFile, "file", "f", "partforge.yaml", "Path to the project file")
	cmd.PersistentFlags().StringVarP(&flags.workDir, "work-dir", "w", ".", "Directory for part, stage, prime, and state trees")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(newPlanCmd(flags))
	for _, step := range stepCommands {
		cmd.AddCommand(newStepCmd(flags, step))
	}
	cmd.AddCommand(newCleanCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newManager(flags *rootFlags, force bool) (*lifecycle.Manager, error) {
	level := "info"
	if flags.verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Options{Level: level, HumanReadable: true})
	if err != nil {
		return nil, err
	}

	return lifecycle.New(lifecycle.Options{
		ProjectFile: flags.projectFile,
		WorkDir:     flags.workDir,
		Force:       force,
		Logger:      log,
	})
}
