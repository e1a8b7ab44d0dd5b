package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gestured/internal/config"
	"github.com/fyrsmithlabs/gestured/internal/executor"
	"github.com/fyrsmithlabs/gestured/internal/gesture"
	"github.com/fyrsmithlabs/gestured/internal/ipc"
	"github.com/fyrsmithlabs/gestured/internal/logging"
	"github.com/fyrsmithlabs/gestured/internal/metrics"
	"github.com/fyrsmithlabs/gestured/internal/pointer"
	"github.com/fyrsmithlabs/gestured/internal/touchpad"
)

// RunOptions carry process-level inputs of Run.
type RunOptions struct {
	Logger *logging.Logger
	// ConfigPath is re-read by the reload endpoint. Empty means the default
	// search path.
	ConfigPath string
	Version    string

	// Loop overrides device discovery, mainly for tests.
	Loop Options
	// NewPointer overrides the uinput pointer.
	NewPointer func(*logging.Logger) (PointerCloser, error)
}

// PointerCloser is a gesture.Pointer owning a device.
type PointerCloser interface {
	gesture.Pointer
	Close() error
}

// Run starts the daemon: it builds the bindings, opens the touchpad, serves
// the control socket in a second goroutine and runs the event loop until ctx
// is cancelled or a fatal error occurs. The control socket is joined before
// Run returns.
func Run(ctx context.Context, cfg *config.Config, opts RunOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	bindings, err := gesture.FromConfig(cfg.Gestures)
	if err != nil {
		return fmt.Errorf("invalid gesture bindings: %w", err)
	}
	logger.Info(ctx, "configuration loaded",
		zap.String("source", cfg.Source),
		zap.Int("bindings", len(bindings)))

	ptr, err := newPointer(bindings, opts, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := ptr.Close(); err != nil {
			logger.Warn(ctx, "closing pointer", zap.Error(err))
		}
	}()

	m := metrics.New()
	exec := executor.New(cfg.Executor.Shell, logger)
	dispatcher := gesture.NewDispatcher(bindings, exec, ptr, logger, m)

	loopOpts := opts.Loop
	if loopOpts.DevicePath == "" {
		loopOpts.DevicePath = cfg.Device.Path
	}
	if loopOpts.Seat == "" {
		loopOpts.Seat = cfg.Device.Seat
	}
	loopOpts.Recognizer = touchpad.RecognizerConfig{
		HoldTimeout:    cfg.Device.HoldTimeout.Duration(),
		SwipeThreshold: cfg.Device.SwipeThreshold,
		PinchThreshold: cfg.Device.PinchThreshold,
	}

	loop := NewLoop(dispatcher, loopOpts, logger)
	if err := loop.Init(ctx); err != nil {
		return err
	}
	defer loop.Close()

	var wg sync.WaitGroup
	ipcCtx, stopIPC := context.WithCancel(context.WithoutCancel(ctx))
	if !cfg.IPC.Disable {
		srv := ipc.NewServer(ipc.Config{
			Socket:          cfg.IPC.Socket,
			ShutdownTimeout: cfg.IPC.ShutdownTimeout.Duration(),
			Device:          loop.Device().Devnode,
			Version:         opts.Version,
		}, reloader(opts.ConfigPath), logger)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Start(ipcCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error(ipcCtx, "control socket failed", zap.Error(err))
			}
		}()
	}

	runErr := loop.Run(ctx)

	stopIPC()
	wg.Wait()

	reapCtx, cancelReap := context.WithTimeout(context.WithoutCancel(ctx), cfg.Executor.ReapTimeout.Duration())
	defer cancelReap()
	if err := exec.Wait(reapCtx); err != nil {
		logger.Warn(ctx, "commands still running at shutdown", zap.Error(err))
	}
	return runErr
}

// reloader re-reads the configuration file and validates its bindings. The
// running dispatcher keeps the bindings it started with.
func reloader(path string) ipc.Reloader {
	return func(ctx context.Context) (ipc.ReloadResponse, error) {
		cfg, err := config.Load(path)
		if err != nil {
			return ipc.ReloadResponse{}, err
		}
		if cfg.Fallback != nil {
			return ipc.ReloadResponse{}, cfg.Fallback
		}
		bs, err := gesture.FromConfig(cfg.Gestures)
		if err != nil {
			return ipc.ReloadResponse{}, err
		}
		return ipc.ReloadResponse{Source: cfg.Source, Bindings: len(bs)}, nil
	}
}

// newPointer creates the uinput mouse only when a binding emulates a drag, so
// /dev/uinput access is not required otherwise.
func newPointer(bindings gesture.Bindings, opts RunOptions, logger *logging.Logger) (PointerCloser, error) {
	needed := false
	for _, b := range bindings {
		if b.IsDrag() {
			needed = true
			break
		}
	}
	if !needed {
		return noPointer{}, nil
	}

	create := opts.NewPointer
	if create == nil {
		create = func(l *logging.Logger) (PointerCloser, error) {
			v, err := pointer.New(l)
			if err != nil {
				return nil, err
			}
			return v, nil
		}
	}
	p, err := create(logger)
	if err != nil {
		return nil, fmt.Errorf("drag emulation needs a virtual pointer: %w", err)
	}
	return p, nil
}

// noPointer stands in when no binding drives the pointer.
type noPointer struct{}

func (noPointer) ButtonDown(int)                   {}
func (noPointer) ButtonUpAfter(int, time.Duration) {}
func (noPointer) MoveRelative(int32, int32)        {}
func (noPointer) Close() error                     { return nil }
