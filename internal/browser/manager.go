// Package browser runs the shared Chrome process and hands out isolated
// pages over the DevTools protocol.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/autoform/api/schemas"
	"github.com/xkilldash9x/autoform/internal/config"
)

// ErrManagerClosed is returned by NewPage after Shutdown has begun.
var ErrManagerClosed = errors.New("browser manager is shut down")

var _ schemas.BrowserManager = (*Manager)(nil)

// Manager owns the browser process. Each page lives in its own browser
// context so cookies and storage never cross requests.
type Manager struct {
	logger *zap.Logger
	cfg    config.Interface

	// allocCtx manages the browser process; browserCtx is its first tab and
	// the parent of every session.
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	slots *semaphore.Weighted

	mu     sync.Mutex
	closed bool
	// wg tracks open sessions for a graceful shutdown.
	wg sync.WaitGroup
}

// NewManager launches the browser and verifies it responds.
func NewManager(ctx context.Context, logger *zap.Logger, cfg config.Interface) (*Manager, error) {
	concurrency := cfg.Browser().Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	m := &Manager{
		logger: logger.Named("browser_manager"),
		cfg:    cfg,
		slots:  semaphore.NewWeighted(int64(concurrency)),
	}
	if err := m.launchBrowser(ctx); err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	return m, nil
}

func (m *Manager) launchBrowser(ctx context.Context) error {
	m.logger.Info("Initializing browser allocator...")
	browserCfg := m.cfg.Browser()

	// The process outlives the caller's context; Shutdown ends it.
	m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(context.WithoutCancel(ctx), DefaultAllocatorOptions(browserCfg)...)
	m.browserCtx, m.browserCancel = chromedp.NewContext(m.allocCtx,
		chromedp.WithErrorf(m.logger.Sugar().Debugf),
	)

	// The first Run on browserCtx starts the process and must not carry a
	// deadline, or the process would die with it.
	if err := chromedp.Run(m.browserCtx); err != nil {
		m.browserCancel()
		m.allocCancel()
		return fmt.Errorf("browser failed to start: %w", err)
	}

	timeout := browserCfg.StartupTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(m.browserCtx, timeout)
	defer cancel()
	if err := chromedp.Run(pingCtx, chromedp.Navigate("about:blank")); err != nil {
		m.browserCancel()
		m.allocCancel()
		return fmt.Errorf("browser failed to respond: %w", err)
	}

	m.logger.Info("Browser launched successfully and is responsive.",
		zap.Bool("headless", browserCfg.Headless),
		zap.Int("concurrency", browserCfg.Concurrency))
	return nil
}

// DefaultAllocatorOptions assembles the launch options for cfg on top of
// chromedp's defaults.
func DefaultAllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	flags := launchFlags(cfg)
	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		opts = append(opts, chromedp.Flag(name, flags[name]))
	}

	if cfg.ExecutablePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecutablePath))
	}
	width, height := viewport(cfg)
	opts = append(opts, chromedp.WindowSize(width, height))
	return opts
}

// launchFlags maps the configuration to Chrome command line flags. A false
// value removes a flag set by the chromedp defaults.
func launchFlags(cfg config.BrowserConfig) map[string]interface{} {
	flags := map[string]interface{}{
		"headless":                  cfg.Headless,
		"ignore-certificate-errors": cfg.IgnoreTLSErrors,
		"disable-gpu":               cfg.DisableGPU,
		"enable-automation":         false,
		"disable-extensions":        true,
	}

	// Custom arguments from config.yaml, "--name" or "--name=value".
	for _, arg := range cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(strings.TrimSpace(parts[0]), "--")
		if name == "" {
			continue
		}
		if len(parts) == 2 {
			flags[name] = parts[1]
		} else {
			flags[name] = true
		}
	}
	return flags
}

func viewport(cfg config.BrowserConfig) (width, height int) {
	width, height = cfg.Viewport["width"], cfg.Viewport["height"]
	if width <= 0 {
		width = 1366
	}
	if height <= 0 {
		height = 900
	}
	return width, height
}

// NewPage opens an isolated page. It waits for a free slot when the
// configured concurrency is reached, honoring ctx while waiting.
func (m *Manager) NewPage(ctx context.Context) (schemas.Page, error) {
	if err := m.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for a browser slot: %w", err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.slots.Release(1)
		return nil, ErrManagerClosed
	}
	m.wg.Add(1)
	m.mu.Unlock()

	release := func() {
		m.slots.Release(1)
		m.wg.Done()
	}

	tabCtx, cancel := chromedp.NewContext(m.browserCtx, chromedp.WithNewBrowserContext())
	s := newSession(tabCtx, cancel, m.cfg, m.logger, release)
	if err := s.start(); err != nil {
		_ = s.Close(context.Background())
		return nil, fmt.Errorf("failed to initialize page session: %w", err)
	}
	return s, nil
}

// Shutdown stops handing out pages, waits for open sessions until ctx is
// done, then terminates the browser process.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.logger.Info("Browser manager shutdown initiated. Waiting for active sessions to complete...")
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		m.logger.Info("All sessions have completed.")
	case <-ctx.Done():
		err = ctx.Err()
		m.logger.Warn("Shutdown deadline exceeded. Forcing browser termination.", zap.Error(err))
	}

	m.logger.Info("Shutting down main browser process...")
	m.browserCancel()
	m.allocCancel()
	<-m.allocCtx.Done()
	return err
}
