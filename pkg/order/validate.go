package order

import (
	"fmt"
	"math"
	"strings"

	"github.com/example/flowershop/pkg/models"
)

// CreateInput is the body of a checkout request.
type CreateInput struct {
	PaymentMethod string        `json:"paymentMethod"`
	Items         []ItemInput   `json:"items"`
	Customer      CustomerInput `json:"customer"`
	Note          string        `json:"note"`
}

// ItemInput keeps price and quantity as pointers so that a missing field can
// be told apart from zero.
type ItemInput struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Price     *int64 `json:"price"`
	Quantity  *int   `json:"quantity"`
	Image     string `json:"image"`
}

type CustomerInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type validated struct {
	method   models.PaymentMethod
	items    []models.OrderItem
	total    int64
	customer CustomerInput
	note     string
}

func validate(in CreateInput) (*validated, error) {
	if len(in.Items) == 0 {
		return nil, invalid(msgEmptyCart)
	}

	method, ok := models.ParsePaymentMethod(in.PaymentMethod)
	if !ok {
		return nil, invalid(msgInvalidPayment)
	}

	c := CustomerInput{
		Name:    strings.TrimSpace(in.Customer.Name),
		Email:   strings.TrimSpace(in.Customer.Email),
		Phone:   strings.TrimSpace(in.Customer.Phone),
		Address: strings.TrimSpace(in.Customer.Address),
	}
	if c.Name == "" || c.Email == "" || c.Phone == "" || c.Address == "" {
		return nil, invalid(msgMissingCustomer)
	}

	var total int64
	items := make([]models.OrderItem, 0, len(in.Items))
	for i, it := range in.Items {
		name := strings.TrimSpace(it.Name)
		if name == "" || it.Price == nil || it.Quantity == nil || *it.Price < 0 || *it.Quantity <= 0 {
			return nil, invalid(fmt.Sprintf("Sản phẩm thứ %d không hợp lệ", i+1))
		}
		line, ok := lineTotal(*it.Price, *it.Quantity)
		if !ok || total > math.MaxInt64-line {
			return nil, invalid(fmt.Sprintf("Sản phẩm thứ %d không hợp lệ", i+1))
		}
		total += line
		items = append(items, models.OrderItem{
			ProductID: it.ProductID,
			Name:      name,
			Price:     *it.Price,
			Quantity:  *it.Quantity,
			Image:     it.Image,
		})
	}

	return &validated{
		method:   method,
		items:    items,
		total:    total,
		customer: c,
		note:     strings.TrimSpace(in.Note),
	}, nil
}

// lineTotal is price × qty, or false when the product does not fit in an int64.
func lineTotal(price int64, qty int) (int64, bool) {
	if price > 0 && int64(qty) > math.MaxInt64/price {
		return 0, false
	}
	return price * int64(qty), true
}

// Total is the sum of price × quantity over items.
func Total(items []models.OrderItem) int64 {
	var total int64
	for _, it := range items {
		total += it.Price * int64(it.Quantity)
	}
	return total
}
