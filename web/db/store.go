package db

import (
	"fmt"
)

// CreateOrder persists a new order with its line items.
func CreateOrder(order *Order) error {
	if order.Status == "" {
		order.Status = "pending"
	}
	if order.PaymentStatus == "" {
		order.PaymentStatus = "unpaid"
	}
	return DB.Create(order).Error
}

// AttachCharge records the gateway charge backing the order.
func AttachCharge(orderID uint, chargeID string) error {
	return DB.Model(&Order{}).Where("id = ?", orderID).Update("charge_id", chargeID).Error
}

// MarkPaymentStatus records the terminal charge outcome on the order.
// Idempotent by construction: writing the same status twice is a no-op at
// the row level, which is what makes concurrent duplicate pollers safe.
func MarkPaymentStatus(orderID uint, status string) error {
	res := DB.Model(&Order{}).Where("id = ?", orderID).Update("payment_status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order %d not found", orderID)
	}
	return nil
}

// GetOrder loads one order with its items.
func GetOrder(orderID uint) (*Order, error) {
	var order Order
	if err := DB.Preload("Items").First(&order, orderID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders returns orders newest first, optionally filtered by status.
func ListOrders(status string) ([]Order, error) {
	var orders []Order
	q := DB.Preload("Items").Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
