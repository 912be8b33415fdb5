package api

import (
	"fmt"
	"os/exec"
	"runtime"
)

// openCommand is swappable so tests do not launch a file manager.
var openCommand = func(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

// OpenFolder reveals the given directory in the platform file manager.
func OpenFolder(dir string) error {
	var name string
	switch runtime.GOOS {
	case "darwin":
		name = "open"
	case "windows":
		name = "explorer"
	default:
		name = "xdg-open"
	}

	if err := openCommand(name, dir); err != nil {
		return fmt.Errorf("open folder %s: %w", dir, err)
	}
	return nil
}
