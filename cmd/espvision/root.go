package main

import (
	"github.com/spf13/cobra"

	"github.com/yoriiioff/espvision/internal/config"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var cfg config.Config

	rootCmd := &cobra.Command{
		Use:           "espvision [video]",
		Short:         "Detect objects in a video and write an annotated copy",
		Long: "espvision runs a pretrained YOLOv8 model over a video file, draws\n" +
			"boxes around recognized objects, and writes the result next to the\n" +
			"input with the original audio track remuxed in.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path := configFlag
			if path == "" {
				path = config.DefaultPath()
			}
			loaded, err := config.Load(path)
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runDetect(cmd, &cfg, args[0])
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	addDetectFlags(rootCmd)
	rootCmd.AddCommand(newServeCommand(&cfg))
	rootCmd.AddCommand(newHistoryCommand(&cfg))
	rootCmd.AddCommand(newDepsCommand(&cfg))

	return rootCmd
}
