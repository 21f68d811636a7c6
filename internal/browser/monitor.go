package browser

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const networkIdleCheckFrequency = 100 * time.Millisecond

// NetworkMonitor tracks in-flight requests of one tab from CDP network
// events so callers can wait for the page to go quiet.
type NetworkMonitor struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	mu       sync.Mutex
	inflight map[network.RequestID]struct{}
}

// NewNetworkMonitor creates a monitor. Start attaches it to a tab.
func NewNetworkMonitor(logger *zap.Logger) *NetworkMonitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &NetworkMonitor{
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.Named("network_monitor"),
		inflight: make(map[network.RequestID]struct{}),
	}
}

// Start listens to network events on the tab bound to tabCtx. The network
// domain must be enabled for events to arrive.
func (m *NetworkMonitor) Start(tabCtx context.Context) {
	chromedp.ListenTarget(tabCtx, m.handleEvent)
}

// Stop ends monitoring; pending waits return.
func (m *NetworkMonitor) Stop() {
	m.cancel()
}

func (m *NetworkMonitor) handleEvent(ev interface{}) {
	select {
	case <-m.ctx.Done():
		return
	default:
	}

	switch ev := ev.(type) {
	case *network.EventRequestWillBeSent:
		// Redirects reuse the request id, so the set absorbs them.
		m.mu.Lock()
		m.inflight[ev.RequestID] = struct{}{}
		m.mu.Unlock()
	case *network.EventLoadingFinished:
		m.done(ev.RequestID)
	case *network.EventLoadingFailed:
		m.done(ev.RequestID)
	}
}

func (m *NetworkMonitor) done(id network.RequestID) {
	m.mu.Lock()
	delete(m.inflight, id)
	m.mu.Unlock()
}

// Inflight returns the number of requests currently outstanding.
func (m *NetworkMonitor) Inflight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inflight)
}

// WaitNetworkIdle blocks until no request has been in flight for quiet, or
// until ctx is done.
func (m *NetworkMonitor) WaitNetworkIdle(ctx context.Context, quiet time.Duration) error {
	timer := time.NewTimer(quiet)
	timer.Stop()
	defer timer.Stop()
	idle := false

	ticker := time.NewTicker(networkIdleCheckFrequency)
	defer ticker.Stop()

	check := func() {
		busy := m.Inflight() > 0
		switch {
		case busy && idle:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			idle = false
		case !busy && !idle:
			timer.Reset(quiet)
			idle = true
		}
	}
	check()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.ctx.Done():
			return m.ctx.Err()
		case <-ticker.C:
			check()
		case <-timer.C:
			m.logger.Debug("Network is idle.")
			return nil
		}
	}
}
