package controllers

import (
	"strconv"
	"sync"
	"time"

	"parts-shop/checkout/confirm"
	"parts-shop/checkout/gateway"
	"parts-shop/checkout/poller"
	"parts-shop/web/db"
	"parts-shop/web/middleware"

	"go.uber.org/zap"
)

// QRWindow is the outer TTL for the QR-display path: when it expires the
// poller is canceled regardless of charge outcome.
const QRWindow = 10 * time.Minute

var (
	Mgr      *confirm.Manager
	Gateway  *gateway.Client
	eventURL string
	logger   *zap.Logger

	pollers      = make(map[string]*poller.Handle) // charge ID → running poller
	pollersMutex sync.Mutex
)

// Setup wires the package-level collaborators and hooks the confirmation
// manager's submit hand-off into the poller.
func Setup(mgr *confirm.Manager, gw *gateway.Client, eventServiceURL string, log *zap.Logger) {
	Mgr = mgr
	Gateway = gw
	eventURL = eventServiceURL
	logger = log

	mgr.AfterSubmit = func(s *confirm.Session, o *confirm.Outcome) {
		middleware.RecordPayment(paymentMethodOf(o), string(o.Kind))
		if o.ChargeID != "" {
			if id, err := strconv.ParseUint(o.OrderID, 10, 64); err == nil {
				if err := db.AttachCharge(uint(id), o.ChargeID); err != nil {
					log.Warn("failed to record charge on order",
						zap.String("order_id", o.OrderID), zap.Error(err))
				}
			}
		}
		if o.Kind == gateway.KindPendingScan {
			StartChargePoller(o.OrderID, o.ChargeID)
		}
	}
}

func paymentMethodOf(o *confirm.Outcome) string {
	if o.Kind == gateway.KindPendingScan {
		return "promptpay"
	}
	return "card"
}

// OrderStore adapts the gorm store to the confirmation controller's order
// backend collaborator.
type OrderStore struct{}

func (OrderStore) CreateOrder(req confirm.CheckoutRequest, total float64) (string, error) {
	order := db.Order{
		Status:        "pending",
		Total:         total,
		Currency:      req.Currency,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: "unpaid",
		ShipName:      req.ShippingAddress.Name,
		ShipLine1:     req.ShippingAddress.Line1,
		ShipCity:      req.ShippingAddress.City,
		ShipPostal:    req.ShippingAddress.PostalCode,
		ShipPhone:     req.ShippingAddress.Phone,
	}
	for _, it := range req.Items {
		order.Items = append(order.Items, db.OrderItem{
			ItemCode:  it.ItemCode,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	if err := db.CreateOrder(&order); err != nil {
		return "", err
	}
	return strconv.FormatUint(uint64(order.ID), 10), nil
}

// StartChargePoller begins polling an asynchronous charge. The QR window
// caps how long the poller may run.
func StartChargePoller(orderID, chargeID string) {
	p := &poller.Poller{
		ChargeID: chargeID,
		OrderID:  orderID,
		Fetcher:  Gateway,
		Persist:  persistPaymentStatus,
		Logger:   logger,
	}
	h := p.Start()

	pollersMutex.Lock()
	if old, ok := pollers[chargeID]; ok {
		old.Stop()
	}
	pollers[chargeID] = h
	pollersMutex.Unlock()

	time.AfterFunc(QRWindow, h.Stop)

	go func() {
		<-h.Done()
		pollersMutex.Lock()
		if pollers[chargeID] == h {
			delete(pollers, chargeID)
		}
		pollersMutex.Unlock()
	}()
}

// StopChargePoller cancels the poller for a charge, e.g. when the QR modal
// is closed.
func StopChargePoller(chargeID string) {
	pollersMutex.Lock()
	h, ok := pollers[chargeID]
	pollersMutex.Unlock()
	if ok {
		h.Stop()
	}
}

// persistPaymentStatus is the poller's single best-effort persistence call.
// The order event publish rides along; both failures are logged only.
func persistPaymentStatus(orderID, status string) error {
	id, err := strconv.ParseUint(orderID, 10, 64)
	if err != nil {
		return err
	}

	paymentStatus := status
	if status == "successful" {
		paymentStatus = "paid"
	}

	if err := db.MarkPaymentStatus(uint(id), paymentStatus); err != nil {
		return err
	}

	if err := PublishOrderEvent(uint(id), paymentStatus); err != nil {
		logger.Warn("order event publish failed",
			zap.String("order_id", orderID), zap.Error(err))
	}
	return nil
}
