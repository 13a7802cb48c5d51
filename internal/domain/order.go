package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "Pending"
	OrderProcessing OrderStatus = "Processing"
	OrderShipped    OrderStatus = "Shipped"
	OrderDelivered  OrderStatus = "Delivered"
	OrderCancelled  OrderStatus = "Cancelled"
)

// OrderStatuses lists the statuses an admin may assign, in workflow order.
var OrderStatuses = []OrderStatus{OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled}

func (s OrderStatus) Valid() bool {
	for _, v := range OrderStatuses {
		if v == s {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentPendingCOD  PaymentStatus = "Pending (COD)"
	PaymentVerifyTrxID PaymentStatus = "Verify TrxID"
	PaymentPaid        PaymentStatus = "Paid"
)

// PaymentMethodCOD is the payment label stored on cash orders.
const PaymentMethodCOD = "Cash on Delivery"

// Order is immutable once created apart from Status and PaymentStatus.
// TotalAmount is fixed at creation and never derived from Items again.
type Order struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId"`
	UserEmail      string          `json:"userEmail"`
	UserPhone      string          `json:"userPhone"`
	Items          []CartLine      `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	ShippingFee    decimal.Decimal `json:"shippingFee"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	Address        string          `json:"address"`
	Status         OrderStatus     `json:"status"`
	PaymentStatus  PaymentStatus   `json:"paymentStatus"`
	PaymentMethod  string          `json:"paymentMethod"`
	TransactionRef string          `json:"transactionRef,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// IsWallet reports whether the order was paid through a mobile wallet.
func (o Order) IsWallet() bool {
	return o.TransactionRef != "" || strings.Contains(o.PaymentMethod, "TrxID")
}

// PendingPaymentStatus is the unpaid status matching the payment method.
func (o Order) PendingPaymentStatus() PaymentStatus {
	if o.IsWallet() {
		return PaymentVerifyTrxID
	}
	return PaymentPendingCOD
}
