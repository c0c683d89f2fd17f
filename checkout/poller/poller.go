// Polls the payment gateway for the status of an asynchronous charge until
// a terminal state is observed, then persists the outcome once and stops.

package poller

import (
	"sync"
	"time"

	"parts-shop/checkout/gateway"

	"go.uber.org/zap"
)

// DefaultInterval is how often the charge resource is fetched.
const DefaultInterval = 5 * time.Second

// ChargeFetcher is the slice of the gateway client the poller needs.
type ChargeFetcher interface {
	GetCharge(chargeID string) (*gateway.Charge, error)
}

// PersistFunc marks the order's payment status once a terminal charge
// status is known. Best effort: a failure is logged and swallowed, it never
// alters the terminal status already surfaced.
type PersistFunc func(orderID, status string) error

type Poller struct {
	ChargeID string
	OrderID  string // optional; persistence is skipped when empty
	Interval time.Duration
	Fetcher  ChargeFetcher
	Persist  PersistFunc

	// OnTerminal receives the terminal status exactly once. Never invoked
	// after Stop, even for a tick already in flight.
	OnTerminal func(status string)

	Logger *zap.Logger
}

// Handle owns a running poll loop. Stop is the only way to cancel it.
type Handle struct {
	mu      sync.Mutex
	stopped bool
	fired   bool
	quit    chan struct{}
	done    chan struct{}
}

// Stop cancels the loop. Safe to call more than once and after the loop
// already terminated on its own.
func (h *Handle) Stop() {
	h.mu.Lock()
	if !h.stopped {
		h.stopped = true
		close(h.quit)
	}
	h.mu.Unlock()
}

// Done is closed when the loop has fully exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// claim marks the terminal callback as taken. Returns false when the
// handle was stopped first, so a racing in-flight tick stays silent.
func (h *Handle) claim() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped || h.fired {
		return false
	}
	h.fired = true
	return true
}

// Start launches the polling loop and returns its handle.
func (p *Poller) Start() *Handle {
	if p.Interval <= 0 {
		p.Interval = DefaultInterval
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}

	h := &Handle{quit: make(chan struct{}), done: make(chan struct{})}
	go p.run(h)
	return h
}

func (p *Poller) run(h *Handle) {
	defer close(h.done)

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.quit:
			return
		case <-ticker.C:
		}

		charge, err := p.Fetcher.GetCharge(p.ChargeID)
		if err != nil {
			// transient transport failure: no state change, retry next tick
			p.Logger.Warn("charge status fetch failed",
				zap.String("charge_id", p.ChargeID), zap.Error(err))
			continue
		}

		status, terminal := ResolveStatus(charge)
		if !terminal {
			continue
		}

		if !h.claim() {
			return
		}

		p.Logger.Info("charge reached terminal status",
			zap.String("charge_id", p.ChargeID),
			zap.String("order_id", p.OrderID),
			zap.String("status", status))

		if p.OnTerminal != nil {
			p.OnTerminal(status)
		}

		if p.OrderID != "" && p.Persist != nil {
			if err := p.Persist(p.OrderID, status); err != nil {
				p.Logger.Warn("order payment status update failed",
					zap.String("order_id", p.OrderID), zap.Error(err))
			}
		}
		return
	}
}
