// Gates irreversible payment submission behind a timed, cancelable
// confirmation prompt. Auto-expiry and a manual confirm converge on the
// same guarded submit path, so at most one submission can happen per
// session no matter how the two race.

package confirm

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"parts-shop/checkout/gateway"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PromptDuration is the confirmation countdown window.
const PromptDuration = 10 * time.Second

// TaxRate is the VAT applied on top of the cart subtotal.
const TaxRate = 0.07

type State string

const (
	StatePrompting  State = "prompting"
	StateSubmitting State = "submitting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

var (
	ErrSessionNotFound = errors.New("confirmation session not found")
	ErrNotPrompting    = errors.New("confirmation already submitted or canceled")
)

type CartItem struct {
	ItemCode  string  `json:"item_code"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Phone      string `json:"phone"`
}

type CheckoutRequest struct {
	Items           []CartItem   `json:"items"`
	ShippingAddress Address      `json:"shipping_address"`
	PaymentMethod   string       `json:"payment_method"` // "card" | "promptpay"
	Currency        string       `json:"currency"`
	Card            *gateway.Card `json:"card,omitempty"`
}

// Total returns the charge amount for the cart: subtotal plus VAT.
func (r CheckoutRequest) Total() float64 {
	var subtotal float64
	for _, it := range r.Items {
		subtotal += it.UnitPrice * float64(it.Quantity)
	}
	return subtotal * (1 + TaxRate)
}

// Outcome is what a finished session resolved to.
type Outcome struct {
	OrderID    string             `json:"order_id,omitempty"`
	Kind       gateway.ResultKind `json:"kind"`
	ChargeID   string             `json:"charge_id,omitempty"`
	QRImageURL string             `json:"qr_image_url,omitempty"`
	Message    string             `json:"message,omitempty"`
}

// OrderCreator is the order backend collaborator.
type OrderCreator interface {
	CreateOrder(req CheckoutRequest, total float64) (orderID string, err error)
}

// PaymentStarter is the gateway adapter collaborator.
type PaymentStarter interface {
	ChargeCard(orderID string, amount float64, currency string, card gateway.Card) gateway.Result
	ChargePromptPay(orderID string, amount float64, currency string) gateway.Result
}

type Session struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration

	state      State
	submitting bool // submission guard; set before any blocking call
	timer      *time.Timer
	req        CheckoutRequest
	outcome    *Outcome
	done       chan struct{} // closed when the session reaches a terminal state
}

type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	orders   OrderCreator
	payments PaymentStarter
	logger   *zap.Logger
	now      func() time.Time

	// AfterSubmit runs once per session after the outcome is recorded,
	// outside the manager lock. Used to start the charge poller for
	// pending-scan outcomes.
	AfterSubmit func(s *Session, o *Outcome)
}

func NewManager(orders OrderCreator, payments PaymentStarter, logger *zap.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		orders:   orders,
		payments: payments,
		logger:   logger,
		now:      time.Now,
	}
}

// Open starts a confirmation prompt. The returned session owns its
// countdown timer; Cancel or a submit are the only ways to retire it.
func (m *Manager) Open(req CheckoutRequest) (*Session, error) {
	if req.PaymentMethod != "card" && req.PaymentMethod != "promptpay" {
		return nil, fmt.Errorf("unsupported payment method %q", req.PaymentMethod)
	}
	if len(req.Items) == 0 {
		return nil, errors.New("cart is empty")
	}
	if req.Currency == "" {
		req.Currency = "thb"
	}

	s := &Session{
		ID:        uuid.New().String(),
		StartedAt: m.now(),
		Duration:  PromptDuration,
		state:     StatePrompting,
		req:       req,
		done:      make(chan struct{}),
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	// The timer callback recomputes nothing from tick counts; whenever it
	// fires the guard decides whether the submission still applies.
	s.timer = time.AfterFunc(s.Duration, func() {
		m.submit(s.ID, "auto")
	})

	m.logger.Info("confirmation prompt opened",
		zap.String("session_id", s.ID),
		zap.String("payment_method", req.PaymentMethod))
	return s, nil
}

// Remaining reports the countdown derived from the stored start timestamp.
// A stalled host that resumes past expiry sees zero, never a negative or
// repeated value.
func (m *Manager) Remaining(id string) (time.Duration, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return 0, ErrSessionNotFound
	}
	left := s.Duration - m.now().Sub(s.StartedAt)
	if left < 0 {
		left = 0
	}
	return left, nil
}

// Confirm is the manual confirmation path. It blocks until the submission
// attempt completes and returns the recorded outcome. If the auto-confirm
// timer won the race, the manual call is a no-op that waits for the same
// outcome.
func (m *Manager) Confirm(id string) (*Outcome, error) {
	return m.submit(id, "manual")
}

// Cancel stops the countdown and discards the session. No effect once
// submission has started.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	if s.state != StatePrompting || s.submitting {
		m.mu.Unlock()
		return ErrNotPrompting
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	s.timer.Stop()
	m.logger.Info("confirmation canceled", zap.String("session_id", id))
	return nil
}

// Status reports the session state and outcome, for clients polling after
// an auto-confirm fired without a request in flight.
func (m *Manager) Status(id string) (State, *Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return "", nil, ErrSessionNotFound
	}
	return s.state, s.outcome, nil
}

// submit is the single convergence point for the timer and the manual
// confirm. The check-and-set on the guard happens under the lock, before
// any blocking work, so a second caller can never interleave.
func (m *Manager) submit(id, cause string) (*Outcome, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	if s.submitting || s.state != StatePrompting {
		// the other path already holds the guard; wait for its result
		m.mu.Unlock()
		<-s.done
		return s.outcome, nil
	}
	s.submitting = true
	s.state = StateSubmitting
	m.mu.Unlock()

	s.timer.Stop()
	m.logger.Info("submitting order",
		zap.String("session_id", id),
		zap.String("cause", cause))

	outcome := m.doSubmit(s)

	m.mu.Lock()
	s.outcome = outcome
	if outcome.Kind == gateway.KindError {
		s.state = StateFailed
	} else {
		s.state = StateSucceeded
	}
	close(s.done)
	m.mu.Unlock()

	if m.AfterSubmit != nil {
		m.AfterSubmit(s, outcome)
	}
	return outcome, nil
}

func (m *Manager) doSubmit(s *Session) *Outcome {
	total := s.req.Total()

	orderID, err := m.orders.CreateOrder(s.req, total)
	if err != nil {
		m.logger.Warn("order creation rejected", zap.String("session_id", s.ID), zap.Error(err))
		return &Outcome{Kind: gateway.KindError, Message: err.Error()}
	}

	var res gateway.Result
	switch s.req.PaymentMethod {
	case "card":
		var card gateway.Card
		if s.req.Card != nil {
			card = *s.req.Card
		}
		res = m.payments.ChargeCard(orderID, total, s.req.Currency, card)
	case "promptpay":
		res = m.payments.ChargePromptPay(orderID, total, s.req.Currency)
	}

	return &Outcome{
		OrderID:    orderID,
		Kind:       res.Kind,
		ChargeID:   res.ChargeID,
		QRImageURL: res.QRImageURL,
		Message:    res.Message,
	}
}

// Sweep drops finished sessions older than ttl. Run it periodically so
// re-entrant opens of the prompt never pile up orphaned sessions.
func (m *Manager) Sweep(ttl time.Duration) {
	cutoff := m.now().Add(-ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.state != StatePrompting && s.state != StateSubmitting && s.StartedAt.Before(cutoff) {
			delete(m.sessions, id)
		}
	}
}
