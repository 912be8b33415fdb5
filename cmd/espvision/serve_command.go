package main

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/yoriiioff/espvision/internal/config"
	"github.com/yoriiioff/espvision/internal/detect"
	"github.com/yoriiioff/espvision/internal/jobs"
	"github.com/yoriiioff/espvision/internal/mux"
	"github.com/yoriiioff/espvision/internal/pipeline"
	"github.com/yoriiioff/espvision/internal/server"
	"github.com/yoriiioff/espvision/internal/store"
	"github.com/yoriiioff/espvision/internal/tray"
)

func newServeCommand(cfg *config.Config) *cobra.Command {
	var trayFlag bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web UI server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfg, trayFlag)
		},
	}
	cmd.Flags().BoolVar(&trayFlag, "tray", false, "Show a system tray icon while serving")
	return cmd
}

func runServe(cfg *config.Config, withTray bool) error {
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("prepare data directory: %w", err)
	}

	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("open job history: %w", err)
	}
	defer st.Close()

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

	muxer := mux.New(cfg.Encoder.FFmpeg, cfg.Encoder.FFprobe)
	muxer.Timeout = time.Duration(cfg.Encoder.TimeoutSeconds) * time.Second

	runner := jobs.NewRunner(pipeline.Config{
		Detector:   detector,
		Muxer:      muxer,
		Store:      st,
		OutputName: cfg.Output.Name,
	})

	staticDir := cfg.Server.StaticDir
	if staticDir == "" {
		staticDir = findWebDir(cfg.DataDir)
	}
	if staticDir != "" {
		fmt.Printf("Serving static files from: %s\n", staticDir)
	}

	srv := server.New(server.Config{
		StaticDir: staticDir,
		Store:     st,
		Runner:    runner,
	})

	addr := cfg.Server.Listen
	fmt.Printf("Starting server on %s\n", addr)

	if !withTray {
		return srv.ListenAndServe(addr)
	}

	go func() {
		if err := srv.ListenAndServe(addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	t := tray.New()
	t.OnOpenUI(func() {
		if err := openBrowser("http://" + addr); err != nil {
			log.Printf("open browser: %v", err)
		}
	})
	t.OnQuit(func() {})

	events, unsubscribe := runner.Subscribe()
	defer unsubscribe()
	go func() {
		for ev := range events {
			if line, ok := trayStatus(ev); ok {
				t.SetStatus(line)
			}
		}
	}()

	t.Run()
	return nil
}

// trayStatus maps a runner event to the tray status line, or false for
// events that do not change it.
func trayStatus(ev jobs.Event) (string, bool) {
	switch ev.Type {
	case jobs.EventProgress:
		if ev.Progress != nil && ev.Progress.Total > 0 {
			return fmt.Sprintf("processing %.0f%%", ev.Progress.Percent()), true
		}
		return "processing", true
	case jobs.EventDone:
		return "done: " + filepath.Base(ev.Output), true
	case jobs.EventFailed:
		return "failed: " + ev.Error, true
	}
	return "", false
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	dataWebDir := filepath.Join(dataDir, "web")
	if info, err := os.Stat(dataWebDir); err == nil && info.IsDir() {
		return dataWebDir
	}

	return ""
}

// openBrowser opens the given URL in the default browser.
func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
