package controllers

import (
	"errors"
	"net/http"

	"parts-shop/checkout/confirm"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"
)

// OpenConfirmation starts the "are you sure" prompt for a checkout
// request. The prompt auto-confirms when the countdown expires.
func OpenConfirmation(c *gin.Context) {
	var req confirm.CheckoutRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	s, err := Mgr.Open(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"confirmation_id": s.ID,
		"duration_ms":     s.Duration.Milliseconds(),
	})
}

// ConfirmationStatus reports the session state, its remaining countdown,
// and the outcome once one exists.
func ConfirmationStatus(c *gin.Context) {
	id := c.Param("id")

	state, outcome, err := Mgr.Status(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Confirmation not found"})
		return
	}

	resp := gin.H{"state": state}
	if remaining, err := Mgr.Remaining(id); err == nil {
		resp["remaining_ms"] = remaining.Milliseconds()
	}
	if outcome != nil {
		resp["outcome"] = outcome
	}
	c.JSON(http.StatusOK, resp)
}

// SubmitConfirmation is the manual confirm click. If the auto-confirm
// timer won the race this still returns the single recorded outcome.
func SubmitConfirmation(c *gin.Context) {
	id := c.Param("id")

	outcome, err := Mgr.Confirm(id)
	if err != nil {
		if errors.Is(err, confirm.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Confirmation not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// CancelConfirmation stops the countdown. It has no effect once
// submission has started.
func CancelConfirmation(c *gin.Context) {
	id := c.Param("id")

	if err := Mgr.Cancel(id); err != nil {
		if errors.Is(err, confirm.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Confirmation not found"})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": "Submission already in progress"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "canceled"})
}

// ChargeStatus is the same-origin proxy in front of the gateway's charge
// resource, consumed by the QR modal's polling loop.
func ChargeStatus(c *gin.Context) {
	chargeID := c.Query("charge_id")
	if chargeID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Missing charge_id"})
		return
	}

	charge, err := Gateway.GetCharge(chargeID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": charge})
}

// CloseScan is called when the QR modal closes; it cancels the charge
// poller regardless of charge outcome.
func CloseScan(c *gin.Context) {
	StopChargePoller(c.Param("charge_id"))
	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}

// ScanQR renders the charge's scannable payload as a same-origin PNG so
// the modal does not depend on the gateway's image host. Falls back to a
// redirect when the gateway supplied only an image URL.
func ScanQR(c *gin.Context) {
	charge, err := Gateway.GetCharge(c.Param("charge_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Charge not found"})
		return
	}
	if charge.Source == nil || charge.Source.ScannableCode == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Charge has no scannable code"})
		return
	}

	code := charge.Source.ScannableCode
	if code.Payload == "" {
		if code.Image.DownloadURI == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "Charge has no scannable code"})
			return
		}
		c.Redirect(http.StatusFound, code.Image.DownloadURI)
		return
	}

	png, err := qrcode.Encode(code.Payload, qrcode.Medium, 256)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render QR code"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
