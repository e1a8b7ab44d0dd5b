// Package executor runs gesture command templates through a shell.
package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gestured/internal/logging"
)

// DefaultShell interprets templates when none is configured.
const DefaultShell = "/bin/sh"

// Placeholders substituted into templates before they reach the shell.
const (
	PlaceholderDeltaX = "$delta_x"
	PlaceholderDeltaY = "$delta_y"
	PlaceholderScale  = "$scale"
)

// Shell runs templates as `<shell> -c <command>`. Commands are started
// without waiting for them; their exit status is only logged.
type Shell struct {
	shell  string
	logger *logging.Logger

	wg sync.WaitGroup
}

// New creates a shell executor. logger may be nil.
func New(shell string, logger *logging.Logger) *Shell {
	if shell == "" {
		shell = DefaultShell
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Shell{shell: shell, logger: logger.Named("exec")}
}

// Execute starts template with the motion parameters substituted and exported
// as GESTURE_DX, GESTURE_DY and GESTURE_SCALE. An empty template does nothing.
// Only failures to start the command are returned.
func (s *Shell) Execute(ctx context.Context, template string, dx, dy, scale float64) error {
	if strings.TrimSpace(template) == "" {
		return nil
	}

	x, y, sc := formatFloat(dx), formatFloat(dy), formatFloat(scale)
	command := Expand(template, dx, dy, scale)

	cmd := exec.Command(s.shell, "-c", command)
	cmd.Env = append(os.Environ(),
		"GESTURE_DX="+x,
		"GESTURE_DY="+y,
		"GESTURE_SCALE="+sc,
	)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", s.shell, err)
	}
	s.logger.Debug(ctx, "command started",
		zap.String("command", command),
		zap.Int("pid", cmd.Process.Pid))

	s.wg.Add(1)
	go s.reap(ctx, cmd, command)
	return nil
}

func (s *Shell) reap(ctx context.Context, cmd *exec.Cmd, command string) {
	defer s.wg.Done()
	err := cmd.Wait()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		s.logger.Trace(ctx, "command exited", zap.String("command", command))
	case errors.As(err, &exitErr):
		s.logger.Warn(ctx, "command failed",
			zap.String("command", command),
			zap.Int("exit_code", exitErr.ExitCode()))
	default:
		s.logger.Error(ctx, "command wait failed", zap.String("command", command), zap.Error(err))
	}
}

// Wait blocks until every started command has exited or ctx is done. Commands
// still running when ctx ends are left to finish on their own.
func (s *Shell) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Expand substitutes the motion placeholders in template.
func Expand(template string, dx, dy, scale float64) string {
	return strings.NewReplacer(
		PlaceholderDeltaX, formatFloat(dx),
		PlaceholderDeltaY, formatFloat(dy),
		PlaceholderScale, formatFloat(scale),
	).Replace(template)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
