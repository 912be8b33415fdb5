package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/yoriiioff/espvision/internal/config"
	"github.com/yoriiioff/espvision/internal/detect"
	"github.com/yoriiioff/espvision/internal/mux"
	"github.com/yoriiioff/espvision/internal/pipeline"
	"github.com/yoriiioff/espvision/internal/store"
)

var (
	timingsFlag bool
	quietFlag   bool
)

func addDetectFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&timingsFlag, "timings", false, "Print per-frame inference timing stats")
	cmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress the progress bar")
}

// runDetect processes a single video on the command line.
func runDetect(cmd *cobra.Command, cfg *config.Config, inputPath string) error {
	if _, err := os.Stat(inputPath); err != nil {
		return fmt.Errorf("input video: %w", err)
	}

	detector, err := detect.NewYOLO(detect.Config{
		ModelPath:           cfg.Model.Path,
		LibraryPath:         cfg.Model.LibraryPath,
		ConfidenceThreshold: float32(cfg.Model.ConfidenceThreshold),
		IoUThreshold:        float32(cfg.Model.IoUThreshold),
	})
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	defer detector.Close()

	st := openStore(cfg)
	if st != nil {
		defer st.Close()
	}

	muxer := mux.New(cfg.Encoder.FFmpeg, cfg.Encoder.FFprobe)
	muxer.Timeout = time.Duration(cfg.Encoder.TimeoutSeconds) * time.Second

	bar := newProgressBar(cmd)

	processor := pipeline.New(pipeline.Config{
		Detector:     detector,
		Muxer:        muxer,
		Store:        st,
		OutputName:   cfg.Output.Name,
		PrintTimings: timingsFlag,
		OnProgress: func(p pipeline.Progress) {
			if bar != nil {
				bar.ChangeMax(p.Total)
				bar.Set(p.Frame)
				if len(p.Seen) > 0 {
					bar.Describe("Detecting " + strings.Join(p.Seen, ", "))
				}
				return
			}
			if !quietFlag {
				fmt.Fprintln(cmd.OutOrStdout(), progressLine(p))
			}
		},
		OnLog: func(line string) {
			if bar != nil {
				bar.Clear()
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		},
	})

	result, err := processor.Process(cmd.Context(), inputPath)
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(cmd.OutOrStdout())
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.Describe())
	return nil
}

// openStore opens the job history database, or returns nil when the data
// directory cannot be prepared. History is best-effort for CLI runs.
func openStore(cfg *config.Config) *store.Store {
	if err := cfg.EnsureDataDir(); err != nil {
		return nil
	}
	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		return nil
	}
	return st
}

// newProgressBar returns a progress bar when stdout is a terminal, nil
// otherwise.
func newProgressBar(cmd *cobra.Command) *progressbar.ProgressBar {
	if quietFlag {
		return nil
	}
	f, ok := cmd.OutOrStdout().(*os.File)
	if !ok || !isTerminal(f.Fd()) {
		return nil
	}
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("Detecting"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("frames"),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// progressLine formats a progress report for plain console output,
// including the most recent detected class samples.
func progressLine(p pipeline.Progress) string {
	line := fmt.Sprintf("frame %d/%d, %d detections", p.Frame, p.Total, p.Detections)
	if len(p.Seen) > 0 {
		line += ": " + strings.Join(p.Seen, ", ")
	}
	return line
}
