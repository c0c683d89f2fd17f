package poller

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"parts-shop/checkout/gateway"

	"go.uber.org/zap/zaptest"
)

// scriptedFetcher returns one charge per call, repeating the last entry.
type scriptedFetcher struct {
	mu      sync.Mutex
	charges []gateway.Charge
	errs    []error
	calls   int
}

func (f *scriptedFetcher) GetCharge(chargeID string) (*gateway.Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i >= len(f.charges) {
		i = len(f.charges) - 1
	}
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	c := f.charges[i]
	return &c, nil
}

func (f *scriptedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestPollerTerminatesAndPersistsOnce(t *testing.T) {
	pending := gateway.Charge{Status: "pending"}
	settled := gateway.Charge{Status: "pending", Source: &gateway.Source{ChargeStatus: "successful"}}

	fetcher := &scriptedFetcher{
		charges: []gateway.Charge{pending, pending, pending, settled},
	}

	var persists int32
	var reported atomic.Value

	p := &Poller{
		ChargeID: "chrg_1",
		OrderID:  "7",
		Interval: 5 * time.Millisecond,
		Fetcher:  fetcher,
		Persist: func(orderID, status string) error {
			if orderID != "7" {
				t.Errorf("persist called with order %q", orderID)
			}
			atomic.AddInt32(&persists, 1)
			return nil
		},
		Logger: zaptest.NewLogger(t),
	}
	p.OnTerminal = func(status string) { reported.Store(status) }

	h := p.Start()

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not terminate")
	}

	if got := reported.Load(); got != "successful" {
		t.Errorf("reported status = %v, want successful", got)
	}
	if n := atomic.LoadInt32(&persists); n != 1 {
		t.Errorf("persistence call fired %d times, want exactly 1", n)
	}

	// no further polling requests after the terminal tick
	calls := fetcher.callCount()
	time.Sleep(50 * time.Millisecond)
	if fetcher.callCount() != calls {
		t.Errorf("poller kept fetching after terminal status: %d → %d", calls, fetcher.callCount())
	}
	if calls != 4 {
		t.Errorf("expected 4 fetches (3 pending + 1 terminal), got %d", calls)
	}
}

func TestPollerRetriesOnTransportError(t *testing.T) {
	fetcher := &scriptedFetcher{
		charges: []gateway.Charge{{}, {}, {Paid: true}},
		errs:    []error{errors.New("connection reset"), nil, nil},
	}

	done := make(chan string, 1)
	p := &Poller{
		ChargeID:   "chrg_2",
		Interval:   5 * time.Millisecond,
		Fetcher:    fetcher,
		OnTerminal: func(status string) { done <- status },
		Logger:     zaptest.NewLogger(t),
	}
	h := p.Start()
	defer h.Stop()

	select {
	case status := <-done:
		if status != "paid" {
			t.Errorf("reported status = %q, want paid", status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not recover from transport error")
	}
}

func TestPollerSkipsPersistWithoutOrderID(t *testing.T) {
	fetcher := &scriptedFetcher{charges: []gateway.Charge{{Status: "failed"}}}

	var persists int32
	p := &Poller{
		ChargeID: "chrg_3",
		Interval: 5 * time.Millisecond,
		Fetcher:  fetcher,
		Persist: func(orderID, status string) error {
			atomic.AddInt32(&persists, 1)
			return nil
		},
		Logger: zaptest.NewLogger(t),
	}
	h := p.Start()

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not terminate")
	}
	if atomic.LoadInt32(&persists) != 0 {
		t.Error("persistence must be skipped when no order id is known")
	}
}

func TestPollerPersistFailureStaysTerminal(t *testing.T) {
	fetcher := &scriptedFetcher{charges: []gateway.Charge{{Status: "successful"}}}

	done := make(chan string, 1)
	p := &Poller{
		ChargeID:   "chrg_4",
		OrderID:    "9",
		Interval:   5 * time.Millisecond,
		Fetcher:    fetcher,
		Persist:    func(orderID, status string) error { return errors.New("backend down") },
		OnTerminal: func(status string) { done <- status },
		Logger:     zaptest.NewLogger(t),
	}
	h := p.Start()

	select {
	case status := <-done:
		if status != "successful" {
			t.Errorf("terminal status masked by persistence failure: %q", status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not surface terminal status")
	}
	<-h.Done()
}

// blockingFetcher parks a tick in flight until released.
type blockingFetcher struct {
	release chan struct{}
	started chan struct{}
	once    sync.Once
}

func (f *blockingFetcher) GetCharge(chargeID string) (*gateway.Charge, error) {
	f.once.Do(func() { close(f.started) })
	<-f.release
	return &gateway.Charge{Status: "successful"}, nil
}

func TestPollerNoCallbackAfterStop(t *testing.T) {
	fetcher := &blockingFetcher{
		release: make(chan struct{}),
		started: make(chan struct{}),
	}

	var fired int32
	p := &Poller{
		ChargeID:   "chrg_5",
		OrderID:    "11",
		Interval:   time.Millisecond,
		Fetcher:    fetcher,
		Persist:    func(orderID, status string) error { atomic.AddInt32(&fired, 1); return nil },
		OnTerminal: func(status string) { atomic.AddInt32(&fired, 1) },
		Logger:     zaptest.NewLogger(t),
	}
	h := p.Start()

	// stop while the fetch is mid-flight, then let it return a terminal status
	<-fetcher.started
	h.Stop()
	close(fetcher.release)

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not exit after stop")
	}
	if atomic.LoadInt32(&fired) != 0 {
		t.Error("terminal callback fired after cancellation")
	}
}
