package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yoriiioff/espvision/internal/config"
	"github.com/yoriiioff/espvision/internal/mux"
)

func newDepsCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check external dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeps(cmd, cfg)
		},
	}
}

func runDeps(cmd *cobra.Command, cfg *config.Config) error {
	requirements := []mux.Requirement{
		{
			Name:        "ffmpeg",
			Command:     cfg.Encoder.FFmpeg,
			Description: "Remuxes the original audio into the output video",
			Optional:    true,
		},
		{
			Name:        "ffprobe",
			Command:     cfg.Encoder.FFprobe,
			Description: "Inspects the input video for audio streams",
			Optional:    true,
		},
		{
			Name:        "model",
			Command:     cfg.Model.Path,
			Description: "Pretrained YOLOv8 ONNX model",
			File:        true,
		},
	}
	if cfg.Model.LibraryPath != "" {
		requirements = append(requirements, mux.Requirement{
			Name:        "onnxruntime",
			Command:     cfg.Model.LibraryPath,
			Description: "ONNX Runtime shared library",
			File:        true,
		})
	}

	statuses := mux.CheckRequirements(requirements)

	headers := []string{"Dependency", "Status", "Detail"}
	rows := make([][]string, 0, len(statuses))
	missing := false
	for _, s := range statuses {
		state := "ok"
		detail := s.Description
		if !s.Available {
			detail = s.Detail
			if s.Optional {
				state = "missing (optional)"
			} else {
				state = "missing"
				missing = true
			}
		}
		rows = append(rows, []string{s.Name, state, detail})
	}

	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))

	if missing {
		return errors.New("required dependencies are missing")
	}
	return nil
}
