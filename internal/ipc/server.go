// Package ipc provides the gestured control socket.
//
// The daemon serves a small HTTP API over a unix socket: health, a reload
// check for the configuration file and Prometheus metrics. The socket runs
// in its own goroutine and shares no mutable state with the event loop.
package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gestured/internal/logging"
)

// ErrAlreadyRunning indicates another daemon answers on the socket.
var ErrAlreadyRunning = errors.New("gestured is already running")

// Reloader re-reads the configuration and reports how many bindings it holds.
type Reloader func(ctx context.Context) (ReloadResponse, error)

// Config holds control socket settings.
type Config struct {
	Socket          string
	ShutdownTimeout time.Duration
	// Device is reported by /health.
	Device  string
	Version string
}

// Server serves the control API on a unix socket.
type Server struct {
	echo    *echo.Echo
	config  Config
	reload  Reloader
	logger  *logging.Logger
	started time.Time
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version,omitempty"`
	Device  string `json:"device,omitempty"`
	Uptime  string `json:"uptime"`
}

// ReloadResponse is the response body for POST /reload.
type ReloadResponse struct {
	Source   string `json:"source"`
	Bindings int    `json:"bindings"`
	// Applied is false: bindings of a running daemon never change.
	Applied bool `json:"applied"`
}

// ErrorResponse is the body of a failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// DefaultSocketPath returns $XDG_RUNTIME_DIR/gestured.sock, falling back to
// /tmp/gestured-<uid>.sock.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "gestured.sock")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("gestured-%d.sock", os.Getuid()))
}

// NewServer creates the control server. reload may be nil, in which case
// /reload answers 501.
func NewServer(cfg Config, reload Reloader, logger *logging.Logger) *Server {
	if cfg.Socket == "" {
		cfg.Socket = DefaultSocketPath()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 2 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		config:  cfg,
		reload:  reload,
		logger:  logger.Named("ipc"),
		started: time.Now(),
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.logRequests)

	s.registerRoutes()
	return s
}

func (s *Server) logRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		s.logger.Debug(c.Request().Context(), "ipc request",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		)
		return err
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.POST("/reload", s.handleReload)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: "gestured",
		Version: s.config.Version,
		Device:  s.config.Device,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleReload(c echo.Context) error {
	if s.reload == nil {
		return c.JSON(http.StatusNotImplemented, ErrorResponse{Error: "reload not supported"})
	}
	ctx := c.Request().Context()
	resp, err := s.reload(ctx)
	if err != nil {
		s.logger.Warn(ctx, "reload rejected", zap.Error(err))
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
	}
	resp.Applied = false
	s.logger.Info(ctx, "configuration checked",
		zap.String("source", resp.Source),
		zap.Int("bindings", resp.Bindings))
	return c.JSON(http.StatusOK, resp)
}

// Start listens on the socket and serves until ctx is cancelled, then shuts
// down gracefully. It returns http.ErrServerClosed after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := listen(s.config.Socket)
	if err != nil {
		return err
	}
	s.echo.Listener = ln
	s.logger.Info(ctx, "control socket listening", zap.String("socket", s.config.Socket))

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		_ = ln.Close()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}

// listen binds the unix socket, replacing a stale socket file left by a
// crashed daemon.
func listen(path string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating socket directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		conn, dialErr := net.DialTimeout("unix", path, 200*time.Millisecond)
		if dialErr == nil {
			_ = conn.Close()
			return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, path)
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("removing stale socket: %w", err)
		}
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("securing socket: %w", err)
	}
	return ln, nil
}
