package db

import (
	"gorm.io/gorm"
)

// Order status transitions only; orders are never deleted.
// Status: pending, shipping, shipped, canceled.
// PaymentStatus: unpaid, paid, failed, expired.
type Order struct {
	gorm.Model
	Status        string  `json:"status"`
	Total         float64 `json:"total"`
	Currency      string  `json:"currency"`
	PaymentMethod string  `json:"payment_method"` // card | promptpay
	PaymentStatus string  `json:"payment_status"`
	ChargeID      string  `json:"charge_id"`

	// shipping address snapshot, frozen at checkout submission
	ShipName   string `json:"ship_name"`
	ShipLine1  string `json:"ship_line1"`
	ShipCity   string `json:"ship_city"`
	ShipPostal string `json:"ship_postal"`
	ShipPhone  string `json:"ship_phone"`

	Items []OrderItem `json:"items" gorm:"foreignKey:OrderID"`
}

type OrderItem struct {
	gorm.Model
	OrderID   uint    `json:"-" gorm:"index"`
	ItemCode  string  `json:"item_code"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}
