package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"parts-shop/utils"
	"parts-shop/web/middleware"

	"github.com/google/uuid"
)

// PublishOrderEvent tells the event service that an order's payment status
// changed, so connected administrative clients hear about it.
func PublishOrderEvent(orderID uint, paymentStatus string) error {
	eventType := "info"
	if paymentStatus == "failed" || paymentStatus == "expired" {
		eventType = "warning"
	}

	body, err := json.Marshal(map[string]interface{}{
		"id":   uuid.New().String(),
		"type": eventType,
		"payload": map[string]interface{}{
			"order_id":       orderID,
			"payment_status": paymentStatus,
		},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequest("POST", eventURL+"/events", bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+utils.EventToken())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("event service responded with status %s", resp.Status)
	}

	middleware.RecordEventPublished()
	return nil
}
