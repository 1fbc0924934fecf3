// Package lifecycle owns the service from cold start to exit.
//
// The Controller validates configuration, connects storage, binds the HTTP
// listener, serves, and on the first termination signal drains storage and
// then the listener within a bounded time. Run returns the process exit code;
// only main calls os.Exit.
//
// The listener is bound strictly after storage is confirmed connected, so the
// service never accepts a connection without a live storage handle. A bind
// failure is fatal, the same as a storage failure. A signal that arrives
// while storage is still connecting aborts startup with a clean exit.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aleka07/onchain-agent/internal/logger"
	"github.com/aleka07/onchain-agent/pkg/api"
	"github.com/aleka07/onchain-agent/pkg/config"
	"github.com/aleka07/onchain-agent/pkg/metrics"
	"github.com/aleka07/onchain-agent/pkg/persistence"
)

// ErrNotReady is returned by Ready outside the Listening state.
var ErrNotReady = errors.New("service not ready")

// Deps are the controller's replaceable collaborators. Zero values select
// the production implementations.
type Deps struct {
	// Open connects storage. Default: persistence.Open.
	Open persistence.Opener

	// Listen binds the listener. Default: net.Listen.
	Listen func(network, address string) (net.Listener, error)

	// Handler builds the HTTP handler. Default: api.NewRouter.
	Handler func(readiness api.Readiness) http.Handler

	// Metrics may be nil.
	Metrics *metrics.Metrics
}

// Controller runs one service lifecycle. It is not reusable.
type Controller struct {
	cfg  config.Config
	deps Deps

	state atomic.Int32

	// Owned resources. Written before the transition to Listening and only
	// read afterwards.
	store    persistence.Store
	listener net.Listener
	server   *http.Server

	shutdownOnce sync.Once
	exitCode     int
}

// New creates a controller in the Initializing state.
func New(cfg config.Config, deps Deps) *Controller {
	if deps.Open == nil {
		deps.Open = persistence.Open
	}
	if deps.Listen == nil {
		deps.Listen = net.Listen
	}
	if deps.Handler == nil {
		m := deps.Metrics
		deps.Handler = func(readiness api.Readiness) http.Handler {
			return api.NewRouter(api.RouterConfig{Readiness: readiness, Metrics: m})
		}
	}

	c := &Controller{cfg: cfg, deps: deps}
	c.setState(Initializing)
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// IsReady reports whether the controller is serving.
func (c *Controller) IsReady() bool {
	return c.State() == Listening
}

// Ready implements api.Readiness: serving and storage answers a ping.
func (c *Controller) Ready(ctx context.Context) error {
	if !c.IsReady() {
		return ErrNotReady
	}
	return c.store.Ping(ctx)
}

// Addr returns the bound listener address, or nil before Listening.
func (c *Controller) Addr() net.Addr {
	if c.State() < Listening || c.listener == nil {
		return nil
	}
	return c.listener.Addr()
}

func (c *Controller) url() string {
	if addr, ok := c.Addr().(*net.TCPAddr); ok {
		return fmt.Sprintf("http://localhost:%d", addr.Port)
	}
	return fmt.Sprintf("http://localhost:%d", c.cfg.Port)
}

func (c *Controller) setState(s State) {
	prev := State(c.state.Swap(int32(s)))
	c.deps.Metrics.SetLifecycleState(s.String())
	if prev != s {
		logger.Debug("Lifecycle state changed", "from", prev.String(), "to", s.String())
	}
}

// Run executes the lifecycle and returns the exit code. It returns once the
// process should exit: after a startup failure, or after the drain that
// follows a signal, cancellation of ctx, or a serve failure.
func (c *Controller) Run(ctx context.Context, signals <-chan os.Signal) int {
	// Initializing: nothing is allocated until the configuration is valid.
	if err := c.cfg.Validate(); err != nil {
		logger.Error("Fatal configuration error", "error", err)
		c.setState(Terminated)
		return ExitFailure
	}

	c.setState(ConnectingStorage)
	aborted, err := c.connectStorage(ctx, signals)
	if aborted != "" {
		// A termination request during startup is a clean exit, not a failure.
		logger.Info("Startup aborted before serving", "reason", aborted)
		if c.store != nil {
			c.closeStorageAfterFailedStart()
		}
		c.setState(Terminated)
		return ExitOK
	}
	if err != nil {
		logger.Error("Storage connection error", "error", err)
		c.setState(Terminated)
		return ExitFailure
	}

	if err := c.bind(); err != nil {
		logger.Error("Listener bind error", "addr", c.cfg.Addr(), "error", err)
		c.closeStorageAfterFailedStart()
		c.setState(Terminated)
		return ExitFailure
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- c.server.Serve(c.listener)
	}()

	c.setState(Listening)
	logger.Info("Server is running", "url", c.url())

	var reason string
	failed := false
	select {
	case sig, ok := <-signals:
		reason = "signal channel closed"
		if ok {
			reason = sig.String()
		}
	case <-ctx.Done():
		reason = "context cancelled"
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			reason = "server closed"
			break
		}
		logger.Error("HTTP server failed", "error", err)
		reason = "serve failure"
		failed = true
	}

	// Further signals during the drain are acknowledged and dropped.
	stopIgnoring := c.ignoreSignals(signals)
	defer stopIgnoring()

	code := c.Shutdown(reason)
	if failed {
		return ExitFailure
	}
	return code
}

// Shutdown runs the drain at most once and returns its exit code. Concurrent
// and later callers block until the first drain finishes and get the same code.
// It is meant to be called once Run has reached Listening.
func (c *Controller) Shutdown(reason string) int {
	c.shutdownOnce.Do(func() {
		c.exitCode = c.drain(reason)
	})
	return c.exitCode
}

// connectStorage opens storage within ConnectTimeout. A signal or the
// cancellation of ctx while connecting aborts the attempt; the reason is
// returned and any store that still got opened is kept in c.store so the
// caller can release it.
func (c *Controller) connectStorage(ctx context.Context, signals <-chan os.Signal) (string, error) {
	uri := strings.TrimSpace(c.cfg.StorageURI)
	opts := persistence.DefaultOptions()

	connectCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()
	stopWatching := abortOnSignal(signals, cancel)

	logger.Info("Connecting to storage",
		"uri", c.cfg.RedactedStorageURI(),
		"strict_query", opts.StrictQuery,
		"timeout", c.cfg.ConnectTimeout.String(),
	)

	start := time.Now()
	store, err := c.deps.Open(connectCtx, uri, opts)
	aborted := stopWatching()
	if aborted == "" && ctx.Err() != nil {
		aborted = "context cancelled"
	}
	if err == nil {
		c.store = store
	}
	if aborted != "" {
		return aborted, nil
	}

	c.deps.Metrics.ObserveStorageConnect(time.Since(start), err)
	if err != nil {
		return "", err
	}

	logger.Info("Storage connected", "backend", store.Backend(), "duration", time.Since(start).String())
	return "", nil
}

// abortOnSignal calls cancel on the first signal. The returned func stops
// watching and reports what arrived ("" if nothing did). Signals arriving
// after it returns are left in the channel.
func abortOnSignal(signals <-chan os.Signal, cancel context.CancelFunc) func() string {
	stop := make(chan struct{})
	result := make(chan string, 1)
	go func() {
		select {
		case sig, ok := <-signals:
			reason := "signal channel closed"
			if ok {
				reason = sig.String()
			}
			cancel()
			result <- reason
		case <-stop:
			result <- ""
		}
	}()
	return func() string {
		close(stop)
		return <-result
	}
}

func (c *Controller) bind() error {
	ln, err := c.deps.Listen("tcp", c.cfg.Addr())
	if err != nil {
		return err
	}

	c.listener = ln
	c.server = &http.Server{
		Handler:      c.deps.Handler(c),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return nil
}

// drain closes storage, then the HTTP server, within ShutdownTimeout.
// A storage close error is logged and does not stop the drain. If the server
// cannot drain in time it is force-closed and the exit code is ExitFailure.
func (c *Controller) drain(reason string) int {
	c.setState(ShuttingDown)
	logger.Info("Shutting down gracefully", "reason", reason, "timeout", c.cfg.ShutdownTimeout.String())

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ShutdownTimeout)
	defer cancel()

	// --- 1. Storage ---
	if c.store != nil {
		if err := closeStore(ctx, c.store); err != nil {
			c.deps.Metrics.IncStorageCloseErrors()
			logger.Error("Error closing storage connection", "error", err)
		} else {
			logger.Info("Storage connection closed")
		}
	}

	// --- 2. Listener ---
	code := ExitOK
	if c.server != nil {
		if err := c.server.Shutdown(ctx); err != nil {
			logger.Error("Graceful server shutdown failed", "error", err)
			if closeErr := c.server.Close(); closeErr != nil {
				logger.Error("Server Close() failed", "error", closeErr)
			}
			code = ExitFailure
		} else {
			logger.Info("HTTP server closed")
		}
	}

	c.setState(Terminated)
	return code
}

func (c *Controller) closeStorageAfterFailedStart() {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ShutdownTimeout)
	defer cancel()

	if err := closeStore(ctx, c.store); err != nil {
		c.deps.Metrics.IncStorageCloseErrors()
		logger.Error("Error closing storage connection", "error", err)
	}
}

// closeStore bounds s.Close by ctx even for a backend that keeps running past it.
func closeStore(ctx context.Context, s persistence.Store) error {
	errc := make(chan error, 1)
	go func() { errc <- s.Close(ctx) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return fmt.Errorf("storage close abandoned: %w", ctx.Err())
	}
}

// ignoreSignals consumes signals until the returned func is called.
func (c *Controller) ignoreSignals(signals <-chan os.Signal) func() {
	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig, ok := <-signals:
				if !ok {
					signals = nil
					continue
				}
				logger.Warn("Shutdown already in progress, ignoring signal", "signal", sig.String())
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}
