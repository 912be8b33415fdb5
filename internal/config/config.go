// Package config loads TOML configuration for the espvision tools.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Model contains detector configuration.
type Model struct {
	Path                string  `toml:"path"`
	LibraryPath         string  `toml:"library_path"`
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
	IoUThreshold        float64 `toml:"iou_threshold"`
}

// Encoder contains external encoder configuration.
type Encoder struct {
	FFmpeg         string `toml:"ffmpeg"`
	FFprobe        string `toml:"ffprobe"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Output contains output file configuration.
type Output struct {
	// Name is the output file name written next to the input video.
	Name string `toml:"name"`
}

// Server contains web UI server configuration.
type Server struct {
	Listen    string `toml:"listen"`
	StaticDir string `toml:"static_dir"`
}

// Config is the root configuration structure.
type Config struct {
	DataDir string  `toml:"data_dir"`
	Model   Model   `toml:"model"`
	Encoder Encoder `toml:"encoder"`
	Output  Output  `toml:"output"`
	Server  Server  `toml:"server"`
}

// Default returns the configuration defaults. The data directory is a
// dot directory under the user home.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	dataDir := filepath.Join(home, ".espvision")

	return Config{
		DataDir: dataDir,
		Model: Model{
			Path:                filepath.Join(dataDir, "yolov8n.onnx"),
			ConfidenceThreshold: 0.2,
			IoUThreshold:        0.7,
		},
		Encoder: Encoder{
			FFmpeg:         "ffmpeg",
			FFprobe:        "ffprobe",
			TimeoutSeconds: 600,
		},
		Output: Output{
			Name: "out.mp4",
		},
		Server: Server{
			Listen: "127.0.0.1:8080",
		},
	}
}

// DefaultPath returns the default configuration file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".espvision", "config.toml")
}

// Load reads the configuration file at path, applying defaults for any
// missing values. A missing file is not an error; the defaults are
// returned unchanged.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Model.ConfidenceThreshold <= 0 || c.Model.ConfidenceThreshold > 1 {
		return fmt.Errorf("model.confidence_threshold must be in (0, 1], got %v", c.Model.ConfidenceThreshold)
	}
	if c.Model.IoUThreshold <= 0 || c.Model.IoUThreshold > 1 {
		return fmt.Errorf("model.iou_threshold must be in (0, 1], got %v", c.Model.IoUThreshold)
	}
	if strings.TrimSpace(c.Output.Name) == "" {
		return errors.New("output.name must not be empty")
	}
	if strings.ContainsAny(c.Output.Name, `/\`) {
		return fmt.Errorf("output.name must be a bare file name, got %q", c.Output.Name)
	}
	if strings.TrimSpace(c.Server.Listen) == "" {
		return errors.New("server.listen must not be empty")
	}
	if c.Encoder.TimeoutSeconds <= 0 {
		return fmt.Errorf("encoder.timeout_seconds must be positive, got %d", c.Encoder.TimeoutSeconds)
	}
	return nil
}

// DatabasePath returns the job history database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "espvision.db")
}

// EnsureDataDir creates the data directory if it does not exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o755)
}
