package services

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"go.uber.org/zap"
)

// Launcher starts known desktop applications without waiting for them.
type Launcher struct {
	logger   *zap.Logger
	binaries map[string]string
}

func NewLauncher(logger *zap.Logger) *Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	notepad := "notepad.exe"
	if runtime.GOOS != "windows" {
		notepad = "gedit"
	}
	return &Launcher{
		logger: logger,
		binaries: map[string]string{
			"code":    "code",
			"notepad": notepad,
		},
	}
}

// Launch starts app by its short name. The process outlives ctx.
func (l *Launcher) Launch(_ context.Context, app string) error {
	bin, ok := l.binaries[app]
	if !ok {
		return fmt.Errorf("unknown application %q", app)
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return fmt.Errorf("find %s: %w", bin, err)
	}
	cmd := exec.Command(path)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", bin, err)
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			l.logger.Debug("application exited", zap.String("app", app), zap.Error(err))
		}
	}()
	return nil
}
