package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/autoform/api/schemas"
	"github.com/xkilldash9x/autoform/internal/browser/persona"
	"github.com/xkilldash9x/autoform/internal/browser/scripts"
	"github.com/xkilldash9x/autoform/internal/config"
)

var _ schemas.Page = (*Session)(nil)

// Session is one isolated tab. Element addresses are XPath expressions
// evaluated against the live document on every call.
type Session struct {
	id        string
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *zap.Logger
	cfg       config.Interface
	monitor   *NetworkMonitor
	opTimeout time.Duration

	onClose   func()
	closeOnce sync.Once
	closeErr  error
}

func newSession(tabCtx context.Context, cancel context.CancelFunc, cfg config.Interface, logger *zap.Logger, onClose func()) *Session {
	id := uuid.NewString()
	l := logger.Named("session").With(zap.String("session_id", id[:8]))
	return &Session{
		id:        id,
		ctx:       tabCtx,
		cancel:    cancel,
		logger:    l,
		cfg:       cfg,
		monitor:   NewNetworkMonitor(l),
		opTimeout: cfg.Network().OperationTimeout,
		onClose:   onClose,
	}
}

// start creates the target, enables the network domain for the monitor and
// installs the persona.
// It runs on the tab context itself so the target's lifetime is the
// session's, not an operation's.
func (s *Session) start() error {
	s.monitor.Start(s.ctx)
	width, height := viewport(s.cfg.Browser())
	if err := chromedp.Run(s.ctx,
		network.Enable(),
		chromedp.EmulateViewport(int64(width), int64(height)),
		persona.Apply(persona.FromConfig(s.cfg.Browser()), s.logger),
	); err != nil {
		return err
	}
	s.logger.Debug("Page session initialized.")
	return nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// run executes actions on the tab under ctx's lifetime, bounded by the
// operation timeout when ctx has no deadline.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	combined, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	opCtx, cancelOp := withOperationTimeout(combined, s.opTimeout)
	defer cancelOp()
	return chromedp.Run(opCtx, actions...)
}

// Navigate loads url and waits for the document body.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating", zap.String("url", url))
	return s.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// WaitNetworkIdle waits up to timeout for quiet without in-flight requests.
func (s *Session) WaitNetworkIdle(ctx context.Context, quiet, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.monitor.WaitNetworkIdle(waitCtx, quiet)
}

// Snapshot serializes the current document.
func (s *Session) Snapshot(ctx context.Context) (string, error) {
	var source string
	if err := s.run(ctx, chromedp.OuterHTML("html", &source, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return source, nil
}

// Resolve reports whether address currently matches a connected element.
func (s *Session) Resolve(ctx context.Context, address string) (bool, error) {
	expr, err := scripts.Resolve(address)
	if err != nil {
		return false, err
	}
	var found bool
	if err := s.run(ctx, chromedp.Evaluate(expr, &found)); err != nil {
		return false, err
	}
	return found, nil
}

func (s *Session) Focus(ctx context.Context, address string) error {
	return s.run(ctx, chromedp.Focus(address, chromedp.BySearch))
}

func (s *Session) Clear(ctx context.Context, address string) error {
	return s.run(ctx, chromedp.Clear(address, chromedp.BySearch))
}

// TypeText focuses address and sends text one character at a time.
func (s *Session) TypeText(ctx context.Context, address, text string, delay time.Duration) error {
	actions := []chromedp.Action{chromedp.Focus(address, chromedp.BySearch)}
	for _, r := range text {
		actions = append(actions, chromedp.KeyEvent(string(r)))
		if delay > 0 {
			actions = append(actions, chromedp.Sleep(delay))
		}
	}
	return s.run(ctx, actions...)
}

// SelectOption picks the option matching value by value, then by text.
func (s *Session) SelectOption(ctx context.Context, address, value string) error {
	expr, err := scripts.SelectOption(address, value)
	if err != nil {
		return err
	}
	var selected bool
	if err := s.run(ctx, chromedp.Evaluate(expr, &selected)); err != nil {
		return err
	}
	if !selected {
		return fmt.Errorf("no option matching %q", value)
	}
	return nil
}

func (s *Session) Click(ctx context.Context, address string) error {
	return s.run(ctx, chromedp.Click(address, chromedp.BySearch))
}

// Screenshot captures the full page as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	// Quality 100 selects PNG encoding.
	if err := s.run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, err
	}
	return buf, nil
}

// FetchBytes downloads url from inside the page so its cookies apply.
func (s *Session) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	expr, err := scripts.FetchBytes(url)
	if err != nil {
		return nil, err
	}
	var encoded string
	awaitPromise := func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}
	if err := s.run(ctx, chromedp.Evaluate(expr, &encoded, awaitPromise)); err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode fetched body: %w", err)
	}
	return data, nil
}

func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	err := s.run(ctx, chromedp.Title(&title))
	return title, err
}

func (s *Session) URL(ctx context.Context) (string, error) {
	var location string
	err := s.run(ctx, chromedp.Location(&location))
	return location, err
}

// Close closes the tab and disposes its browser context. It is safe to call
// more than once; only the first call has an effect.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.monitor.Stop()

		done := make(chan error, 1)
		go func() { done <- chromedp.Cancel(s.ctx) }()
		select {
		case s.closeErr = <-done:
		case <-ctx.Done():
			s.closeErr = ctx.Err()
		}
		s.cancel()

		if s.onClose != nil {
			s.onClose()
		}
		s.logger.Debug("Page session closed.")
	})
	return s.closeErr
}
