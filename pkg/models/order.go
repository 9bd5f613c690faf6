package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PaymentMethod string

const (
	PaymentCOD     PaymentMethod = "COD"
	PaymentBanking PaymentMethod = "Banking"
	PaymentVNPay   PaymentMethod = "VNPay"
	PaymentMoMo    PaymentMethod = "MoMo"

	// PaymentStripe is the label bank-transfer orders were stored under before
	// "Banking" existed. It is never written for new orders.
	PaymentStripe PaymentMethod = "Stripe"
)

// PayableMethods are the methods that need an external payment confirmation
// and therefore carry an expiry.
var PayableMethods = []PaymentMethod{PaymentBanking, PaymentVNPay, PaymentMoMo, PaymentStripe}

// ParsePaymentMethod accepts the lowercase labels the storefront sends.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cod":
		return PaymentCOD, true
	case "banking", "stripe":
		return PaymentBanking, true
	case "vnpay":
		return PaymentVNPay, true
	case "momo":
		return PaymentMoMo, true
	}
	return "", false
}

func (m PaymentMethod) Payable() bool {
	for _, p := range PayableMethods {
		if m == p {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "UNPAID"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentExpired PaymentStatus = "EXPIRED"
)

func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	st := PaymentStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case PaymentUnpaid, PaymentPaid, PaymentExpired:
		return st, true
	}
	return "", false
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderShipping  OrderStatus = "SHIPPING"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderCancelled OrderStatus = "CANCELLED"
)

func ParseOrderStatus(s string) (OrderStatus, bool) {
	st := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case OrderPending, OrderConfirmed, OrderShipping, OrderCompleted, OrderCancelled:
		return st, true
	}
	return "", false
}

// SystemActor is recorded in history entries written by the expiry sweep.
const SystemActor = "system"

type OrderItem struct {
	ProductID string `bson:"productId,omitempty" json:"productId,omitempty"`
	Name      string `bson:"name" json:"name"`
	Price     int64  `bson:"price" json:"price"`
	Quantity  int    `bson:"quantity" json:"quantity"`
	Image     string `bson:"image,omitempty" json:"image,omitempty"`
}

type HistoryEntry struct {
	From      OrderStatus `bson:"from" json:"from"`
	To        OrderStatus `bson:"to" json:"to"`
	By        string      `bson:"by" json:"by"`
	Note      string      `bson:"note,omitempty" json:"note,omitempty"`
	CreatedAt time.Time   `bson:"createdAt" json:"createdAt"`
}

type Order struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderCode       string             `bson:"orderCode" json:"orderCode"`
	CustomerID      string             `bson:"customerId" json:"customerId"`
	CustomerName    string             `bson:"customerName" json:"customerName"`
	CustomerEmail   string             `bson:"customerEmail" json:"customerEmail"`
	CustomerPhone   string             `bson:"customerPhone" json:"customerPhone"`
	Items           []OrderItem        `bson:"items" json:"items"`
	TotalAmount     int64              `bson:"totalAmount" json:"totalAmount"`
	PaymentMethod   PaymentMethod      `bson:"paymentMethod" json:"paymentMethod"`
	PaymentStatus   PaymentStatus      `bson:"paymentStatus" json:"paymentStatus"`
	OrderStatus     OrderStatus        `bson:"orderStatus" json:"orderStatus"`
	ShippingAddress string             `bson:"shippingAddress" json:"shippingAddress"`
	Note            string             `bson:"note,omitempty" json:"note,omitempty"`
	ExpiresAt       *time.Time         `bson:"expiresAt,omitempty" json:"expiresAt,omitempty"`
	History         []HistoryEntry     `bson:"history" json:"history"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// AwaitingPayment reports whether the order is a pending, unpaid order on a
// payable method: the kind that blocks new orders and can expire.
func (o *Order) AwaitingPayment() bool {
	return o.OrderStatus == OrderPending &&
		o.PaymentStatus == PaymentUnpaid &&
		o.PaymentMethod.Payable()
}

// Expired reports whether the payment window has lapsed at now.
func (o *Order) Expired(now time.Time) bool {
	return o.AwaitingPayment() && o.ExpiresAt != nil && !o.ExpiresAt.After(now)
}

// Clone returns a copy that shares no slices or pointers with o.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = append([]OrderItem(nil), o.Items...)
	c.History = append([]HistoryEntry(nil), o.History...)
	if o.ExpiresAt != nil {
		t := *o.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}

// StatusUpdate describes a guarded orderStatus write. The store applies it only
// while the order is still in From.
type StatusUpdate struct {
	From    OrderStatus
	To      OrderStatus
	SetPaid bool
	Entry   HistoryEntry
}

type OrderFilter struct {
	CustomerID    string
	OrderStatus   OrderStatus
	PaymentStatus PaymentStatus
	Query         string
	Page          int64
	Limit         int64
}

type RevenuePoint struct {
	Day     string `bson:"_id" json:"day"`
	Revenue int64  `bson:"revenue" json:"revenue"`
	Orders  int64  `bson:"orders" json:"orders"`
}

type Dashboard struct {
	Days         int                   `json:"days"`
	StatusCounts map[OrderStatus]int64 `json:"statusCounts"`
	Revenue      []RevenuePoint        `json:"revenue"`
	TotalRevenue int64                 `json:"totalRevenue"`
}
