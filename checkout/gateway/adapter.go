package gateway

import (
	"go.uber.org/zap"
)

// Card carries raw card input as submitted by the checkout form. The
// expiration year is kept as the raw token so 2-digit years can be
// normalized at tokenization time.
type Card struct {
	Name            string `json:"name"`
	Number          string `json:"number"`
	ExpirationMonth int    `json:"expiration_month"`
	ExpirationYear  string `json:"expiration_year"`
	SecurityCode    string `json:"security_code"`
}

// Validate catches missing fields before any network call is made.
func (c Card) Validate() string {
	switch {
	case c.Number == "":
		return "card number is required"
	case c.Name == "":
		return "card holder name is required"
	case c.ExpirationMonth < 1 || c.ExpirationMonth > 12:
		return "card expiration month is invalid"
	case c.ExpirationYear == "":
		return "card expiration year is required"
	case c.SecurityCode == "":
		return "card security code is required"
	}
	return ""
}

type ResultKind string

const (
	KindSettled     ResultKind = "settled"
	KindPendingScan ResultKind = "pending_scan"
	KindError       ResultKind = "error"
)

// Result is the single shape both payment protocols normalize into.
type Result struct {
	Kind       ResultKind `json:"kind"`
	ChargeID   string     `json:"charge_id,omitempty"`
	QRImageURL string     `json:"qr_image_url,omitempty"`
	Message    string     `json:"message,omitempty"`
}

// Adapter translates an order + payment method selection into exactly one
// gateway call sequence. Gateway rejections are surfaced as error results;
// the adapter never retries on its own.
type Adapter struct {
	client *Client
	logger *zap.Logger
}

func NewAdapter(client *Client, logger *zap.Logger) *Adapter {
	return &Adapter{client: client, logger: logger}
}

// ChargeCard tokenizes the card and exchanges the token for a charge. The
// gateway call blocks until charge creation completes, so this path
// resolves synchronously with no polling.
func (a *Adapter) ChargeCard(orderID string, amount float64, currency string, card Card) Result {
	if msg := card.Validate(); msg != "" {
		return Result{Kind: KindError, Message: msg}
	}

	token, err := a.client.CreateToken(card)
	if err != nil {
		a.logger.Warn("card tokenization rejected", zap.String("order_id", orderID), zap.Error(err))
		return Result{Kind: KindError, Message: err.Error()}
	}

	charge, err := a.client.CreateCharge(token.ID, orderID, ToMinorUnits(amount), currency)
	if err != nil {
		a.logger.Warn("charge creation rejected", zap.String("order_id", orderID), zap.Error(err))
		return Result{Kind: KindError, Message: err.Error()}
	}

	if charge.Status == "failed" || charge.FailureMessage != "" {
		msg := charge.FailureMessage
		if msg == "" {
			msg = "payment failed"
		}
		return Result{Kind: KindError, ChargeID: charge.ID, Message: msg}
	}

	a.logger.Info("card charge settled",
		zap.String("order_id", orderID),
		zap.String("charge_id", charge.ID))
	return Result{Kind: KindSettled, ChargeID: charge.ID}
}

// ChargePromptPay creates a scannable source and a charge that settles out
// of band. The caller is expected to hand the charge id to the status
// poller.
func (a *Adapter) ChargePromptPay(orderID string, amount float64, currency string) Result {
	minor := ToMinorUnits(amount)

	source, err := a.client.CreateSource(minor, currency, "promptpay")
	if err != nil {
		a.logger.Warn("source creation rejected", zap.String("order_id", orderID), zap.Error(err))
		return Result{Kind: KindError, Message: err.Error()}
	}

	charge, err := a.client.CreateSourceCharge(source.ID, orderID, minor, currency)
	if err != nil {
		a.logger.Warn("source charge rejected", zap.String("order_id", orderID), zap.Error(err))
		return Result{Kind: KindError, Message: err.Error()}
	}

	qr := ""
	if charge.Source != nil && charge.Source.ScannableCode != nil {
		qr = charge.Source.ScannableCode.Image.DownloadURI
	} else if source.ScannableCode != nil {
		qr = source.ScannableCode.Image.DownloadURI
	}
	if qr == "" {
		return Result{Kind: KindError, ChargeID: charge.ID, Message: "gateway returned no scannable code"}
	}

	a.logger.Info("promptpay charge pending scan",
		zap.String("order_id", orderID),
		zap.String("charge_id", charge.ID))
	return Result{Kind: KindPendingScan, ChargeID: charge.ID, QRImageURL: qr}
}
