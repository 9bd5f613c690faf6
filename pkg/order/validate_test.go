package order

import (
	"math"
	"testing"

	"github.com/example/flowershop/pkg/apperror"
	"github.com/example/flowershop/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func i64(v int64) *int64 { return &v }
func intp(v int) *int    { return &v }

func validInput() CreateInput {
	return CreateInput{
		PaymentMethod: "momo",
		Items: []ItemInput{
			{ProductID: "p1", Name: "Rose Bouquet", Price: i64(200000), Quantity: intp(2)},
		},
		Customer: CustomerInput{
			Name:    "Nguyễn Văn A",
			Email:   "a@example.com",
			Phone:   "0901234567",
			Address: "12 Lê Lợi, Quận 1",
		},
	}
}

func TestValidateAccepts(t *testing.T) {
	v, err := validate(validInput())
	require.NoError(t, err)

	assert.Equal(t, models.PaymentMoMo, v.method)
	assert.Equal(t, int64(400000), v.total)
	require.Len(t, v.items, 1)
	assert.Equal(t, "Rose Bouquet", v.items[0].Name)
}

func TestValidatePaymentMethods(t *testing.T) {
	tests := map[string]models.PaymentMethod{
		"cod":     models.PaymentCOD,
		"COD":     models.PaymentCOD,
		"banking": models.PaymentBanking,
		"stripe":  models.PaymentBanking,
		"vnpay":   models.PaymentVNPay,
		" MoMo ":  models.PaymentMoMo,
	}
	for label, want := range tests {
		in := validInput()
		in.PaymentMethod = label

		v, err := validate(in)
		require.NoError(t, err, label)
		assert.Equal(t, want, v.method, label)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CreateInput)
		message string
	}{
		{"empty cart", func(in *CreateInput) { in.Items = nil }, msgEmptyCart},
		{"unknown payment", func(in *CreateInput) { in.PaymentMethod = "paypal" }, msgInvalidPayment},
		{"missing payment", func(in *CreateInput) { in.PaymentMethod = "" }, msgInvalidPayment},
		{"missing phone", func(in *CreateInput) { in.Customer.Phone = "  " }, msgMissingCustomer},
		{"missing address", func(in *CreateInput) { in.Customer.Address = "" }, msgMissingCustomer},
		{"item without name", func(in *CreateInput) { in.Items[0].Name = "" }, "Sản phẩm thứ 1 không hợp lệ"},
		{"item without price", func(in *CreateInput) { in.Items[0].Price = nil }, "Sản phẩm thứ 1 không hợp lệ"},
		{"item without quantity", func(in *CreateInput) { in.Items[0].Quantity = nil }, "Sản phẩm thứ 1 không hợp lệ"},
		{"zero quantity", func(in *CreateInput) { in.Items[0].Quantity = intp(0) }, "Sản phẩm thứ 1 không hợp lệ"},
		{"negative price", func(in *CreateInput) { in.Items[0].Price = i64(-1) }, "Sản phẩm thứ 1 không hợp lệ"},
		{"line total overflows", func(in *CreateInput) {
			in.Items[0].Price = i64(math.MaxInt64/2 + 1)
			in.Items[0].Quantity = intp(2)
		}, "Sản phẩm thứ 1 không hợp lệ"},
		{"cart total overflows", func(in *CreateInput) {
			in.Items[0].Quantity = intp(1)
			in.Items = append(in.Items, ItemInput{Name: "Orchid", Price: i64(math.MaxInt64), Quantity: intp(1)})
		}, "Sản phẩm thứ 2 không hợp lệ"},
		{"second item broken", func(in *CreateInput) {
			in.Items = append(in.Items, ItemInput{Name: "Tulip", Price: i64(1000)})
		}, "Sản phẩm thứ 2 không hợp lệ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)

			_, err := validate(in)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Equal(t, 400, apperror.StatusOf(err))
			assert.Equal(t, tt.message, apperror.MessageOf(err))
		})
	}
}

func TestTotal(t *testing.T) {
	items := []models.OrderItem{
		{Name: "Rose", Price: 200000, Quantity: 2},
		{Name: "Lily", Price: 150000, Quantity: 1},
		{Name: "Card", Price: 0, Quantity: 3},
	}
	assert.Equal(t, int64(550000), Total(items))
	assert.Zero(t, Total(nil))
}

func TestValidateAcceptsTotalAtLimit(t *testing.T) {
	in := validInput()
	in.Items = []ItemInput{
		{Name: "Orchid", Price: i64(math.MaxInt64 - 1), Quantity: intp(1)},
		{Name: "Card", Price: i64(1), Quantity: intp(1)},
	}

	v, err := validate(in)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), v.total)
}
