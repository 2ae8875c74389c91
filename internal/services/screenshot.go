package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Screenshotter captures the screen by running an external capture command.
// The command template carries a {file} placeholder for the output path.
type Screenshotter struct {
	dir     string
	command string
	now     func() time.Time
}

func NewScreenshotter(dir, command string) *Screenshotter {
	if strings.TrimSpace(command) == "" {
		command = defaultScreenshotCommand(runtime.GOOS)
	}
	return &Screenshotter{dir: dir, command: command, now: time.Now}
}

func defaultScreenshotCommand(goos string) string {
	switch goos {
	case "darwin":
		return "screencapture -x {file}"
	case "linux":
		return "import -window root {file}"
	default:
		return ""
	}
}

// Capture writes a PNG and returns its file name.
func (s *Screenshotter) Capture(ctx context.Context) (string, error) {
	args := strings.Fields(s.command)
	if len(args) == 0 {
		return "", ErrNotConfigured
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create screenshot dir: %w", err)
	}
	name := fmt.Sprintf("screenshot_%s.png", s.now().Format("20060102_150405"))
	path := filepath.Join(s.dir, name)
	for i := range args {
		args[i] = strings.ReplaceAll(args[i], "{file}", path)
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("screenshot command failed: %w: %s", err, msg)
		}
		return "", fmt.Errorf("screenshot command failed: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("screenshot not written: %w", err)
	}
	return name, nil
}
