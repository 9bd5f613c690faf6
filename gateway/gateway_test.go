package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/flowershop/pkg/apperror"
	"github.com/example/flowershop/pkg/config"
	"github.com/example/flowershop/pkg/models"
	"github.com/example/flowershop/pkg/order"
	"github.com/example/flowershop/pkg/order/ordertest"
	"github.com/example/flowershop/pkg/user"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	customerToken = "customer-token"
	otherToken    = "other-token"
	adminToken    = "admin-token"
)

type fakeUsers struct {
	sessions map[string]*models.Session
	banking  *models.BankingSetting
	loggedOut []string
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{sessions: map[string]*models.Session{
		customerToken: {Token: customerToken, UserID: "user-1", Role: models.RoleCustomer},
		otherToken:    {Token: otherToken, UserID: "user-2", Role: models.RoleCustomer},
		adminToken:    {Token: adminToken, UserID: "admin-1", Role: models.RoleAdmin},
	}}
}

func (f *fakeUsers) Register(_ context.Context, in user.RegisterInput) (*models.User, error) {
	if in.Email == "taken@example.com" {
		return nil, apperror.Conflict("Email đã được sử dụng")
	}
	return &models.User{ID: "new-user", Name: in.Name, Email: in.Email, PasswordHash: "hash"}, nil
}

func (f *fakeUsers) Login(_ context.Context, in user.LoginInput) (*user.LoginResult, error) {
	if in.Password != "secret1" {
		return nil, apperror.Unauthorized("Email hoặc mật khẩu không đúng")
	}
	return &user.LoginResult{Token: "fresh", User: &models.User{ID: "user-1", Email: in.Email}}, nil
}

func (f *fakeUsers) Logout(_ context.Context, token string) error {
	f.loggedOut = append(f.loggedOut, token)
	delete(f.sessions, token)
	return nil
}

func (f *fakeUsers) Authenticate(_ context.Context, token string) (*models.Session, error) {
	s, ok := f.sessions[token]
	if !ok {
		return nil, apperror.Unauthorized("Vui lòng đăng nhập")
	}
	return s, nil
}

func (f *fakeUsers) Profile(_ context.Context, userID string) (*models.User, error) {
	return &models.User{ID: userID, Name: "Nguyễn Văn A"}, nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, userID string, in user.ProfileInput) (*models.User, error) {
	u := &models.User{ID: userID, Name: "Nguyễn Văn A"}
	if in.Phone != nil {
		u.Phone = *in.Phone
	}
	return u, nil
}

func (f *fakeUsers) Banking(context.Context) (*models.BankingSetting, error) {
	if f.banking == nil {
		return nil, apperror.NotFound("Chưa cấu hình thông tin chuyển khoản")
	}
	return f.banking, nil
}

func (f *fakeUsers) SaveBanking(_ context.Context, b *models.BankingSetting) (*models.BankingSetting, error) {
	f.banking = b
	return b, nil
}

type fakeInbox struct {
	items []*models.Notification
}

func (f *fakeInbox) List(context.Context, int64) ([]*models.Notification, int64, error) {
	return f.items, int64(len(f.items)), nil
}

func (f *fakeInbox) MarkRead(_ context.Context, id string) error {
	for _, n := range f.items {
		if n.ID.Hex() == id {
			n.Read = true
			return nil
		}
	}
	return apperror.NotFound("Không tìm thấy thông báo")
}

type GatewaySuite struct {
	suite.Suite

	gw    *Gateway
	store *ordertest.MemStore
	clock *ordertest.Clock
	users *fakeUsers
	inbox *fakeInbox
}

func (s *GatewaySuite) SetupTest() {
	s.store = ordertest.NewMemStore()
	s.clock = ordertest.NewClock(time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC))
	svc, err := order.NewService(config.OrderConfig{
		PaymentWindow: 10 * time.Minute,
		CheckoutLock:  time.Second,
		Timezone:      "UTC",
	}, s.store, ordertest.NewMemCache(), ordertest.NewMemLocker(), &ordertest.Notifier{}, zap.NewNop())
	s.Require().NoError(err)
	svc.WithClock(s.clock.Now)

	s.users = newFakeUsers()
	s.inbox = &fakeInbox{}
	cfg := &config.Config{CORS: config.CORSConfig{AllowOrigins: []string{"http://localhost:3000"}}}
	s.gw = NewGateway(cfg, zap.NewNop(), svc, s.users, s.inbox)
}

func (s *GatewaySuite) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		s.Require().NoError(json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.gw.Handler().ServeHTTP(w, req)
	return w
}

func (s *GatewaySuite) decode(w *httptest.ResponseRecorder, v interface{}) {
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func (s *GatewaySuite) message(w *httptest.ResponseRecorder) string {
	var body map[string]string
	s.decode(w, &body)
	return body["message"]
}

func checkout(method string) map[string]interface{} {
	return map[string]interface{}{
		"paymentMethod": method,
		"items": []map[string]interface{}{
			{"name": "Rose Bouquet", "price": 200000, "quantity": 2},
		},
		"customer": map[string]string{
			"name":    "Nguyễn Văn A",
			"email":   "a@example.com",
			"phone":   "0901234567",
			"address": "12 Lê Lợi",
		},
	}
}

func (s *GatewaySuite) placeOrder(token, method string) models.Order {
	w := s.do(http.MethodPost, "/api/orders", token, checkout(method))
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var o models.Order
	s.decode(w, &o)
	return o
}

func (s *GatewaySuite) TestHealth() {
	w := s.do(http.MethodGet, "/health", "", nil)
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"status":"ok"}`, w.Body.String())
}

func (s *GatewaySuite) TestOrdersRequireAuth() {
	w := s.do(http.MethodGet, "/api/orders", "", nil)
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("Vui lòng đăng nhập", s.message(w))

	w = s.do(http.MethodPost, "/api/orders", "unknown", checkout("cod"))
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *GatewaySuite) TestPayableOrderExpires() {
	created := s.placeOrder(customerToken, "momo")
	s.Equal(int64(400000), created.TotalAmount)
	s.Equal(models.PaymentMoMo, created.PaymentMethod)
	s.Require().NotNil(created.ExpiresAt)
	s.WithinDuration(s.clock.Now().Add(10*time.Minute), *created.ExpiresAt, time.Second)

	s.clock.Advance(10*time.Minute + time.Second)

	w := s.do(http.MethodGet, "/api/orders", customerToken, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var orders []models.Order
	s.decode(w, &orders)
	s.Require().Len(orders, 1)
	s.Equal(models.OrderCancelled, orders[0].OrderStatus)
	s.Equal(models.PaymentExpired, orders[0].PaymentStatus)
	last := orders[0].History[len(orders[0].History)-1]
	s.Equal("Hết hạn thanh toán", last.Note)
	s.Equal(models.SystemActor, last.By)
}

func (s *GatewaySuite) TestSecondOrderConflicts() {
	s.placeOrder(customerToken, "banking")

	w := s.do(http.MethodPost, "/api/orders", customerToken, checkout("cod"))
	s.Equal(http.StatusConflict, w.Code)
	s.NotEmpty(s.message(w))

	s.placeOrder(otherToken, "banking")
}

func (s *GatewaySuite) TestCreateOrderValidation() {
	body := checkout("cod")
	body["items"] = []interface{}{}
	w := s.do(http.MethodPost, "/api/orders", customerToken, body)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("Giỏ hàng trống", s.message(w))

	w = s.do(http.MethodPost, "/api/orders", customerToken, "{not json")
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal(msgInvalidBody, s.message(w))
}

func (s *GatewaySuite) TestCreateOrderServerError() {
	s.store.FailWith = errors.New("socket closed")

	w := s.do(http.MethodPost, "/api/orders", customerToken, checkout("cod"))

	s.Equal(http.StatusInternalServerError, w.Code)
	s.Equal("Lỗi máy chủ", s.message(w))
}

func (s *GatewaySuite) TestGetOwnOrderOnly() {
	o := s.placeOrder(customerToken, "cod")

	w := s.do(http.MethodGet, "/api/orders/"+o.ID.Hex(), customerToken, nil)
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/orders/"+o.ID.Hex(), otherToken, nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *GatewaySuite) TestAdminRoutesRequireAdmin() {
	w := s.do(http.MethodGet, "/api/admin/orders", customerToken, nil)
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal(msgForbidden, s.message(w))

	w = s.do(http.MethodGet, "/api/admin/orders", "", nil)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *GatewaySuite) TestAdminOrderLifecycle() {
	o := s.placeOrder(customerToken, "cod")
	path := "/api/admin/orders/" + o.ID.Hex()

	w := s.do(http.MethodGet, path, adminToken, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var detail struct {
		Order       models.Order         `json:"order"`
		AllowedNext []models.OrderStatus `json:"allowedNext"`
	}
	s.decode(w, &detail)
	s.Equal([]models.OrderStatus{models.OrderConfirmed, models.OrderCancelled}, detail.AllowedNext)

	w = s.do(http.MethodPatch, path+"/status", adminToken, map[string]string{"orderStatus": "COMPLETED"})
	s.Equal(http.StatusBadRequest, w.Code)

	for _, st := range []string{"CONFIRMED", "SHIPPING", "COMPLETED"} {
		w = s.do(http.MethodPatch, path+"/status", adminToken, map[string]string{"orderStatus": st, "note": "ok"})
		s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	}
	var done models.Order
	s.decode(w, &done)
	s.Equal(models.OrderCompleted, done.OrderStatus)
	s.Equal(models.PaymentPaid, done.PaymentStatus)
	s.Equal("admin-1", done.History[len(done.History)-1].By)

	w = s.do(http.MethodGet, path, adminToken, nil)
	s.decode(w, &detail)
	s.Empty(detail.AllowedNext)
}

func (s *GatewaySuite) TestAdminMarkPaid() {
	o := s.placeOrder(customerToken, "vnpay")
	path := "/api/admin/orders/" + o.ID.Hex() + "/payment"

	w := s.do(http.MethodPatch, path, adminToken, map[string]string{"paymentStatus": "EXPIRED"})
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPatch, path, adminToken, map[string]string{"paymentStatus": "PAID"})
	s.Require().Equal(http.StatusOK, w.Code)
	var paid models.Order
	s.decode(w, &paid)
	s.Equal(models.PaymentPaid, paid.PaymentStatus)

	w = s.do(http.MethodPatch, path, adminToken, map[string]string{"paymentStatus": "PAID"})
	s.Equal(http.StatusBadRequest, w.Code)

	// paid orders no longer block checkout
	s.placeOrder(customerToken, "vnpay")
}

func (s *GatewaySuite) TestAdminListOrders() {
	s.placeOrder(customerToken, "cod")
	s.placeOrder(otherToken, "momo")
	s.clock.Advance(time.Hour)

	w := s.do(http.MethodGet, "/api/admin/orders?paymentStatus=EXPIRED", adminToken, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var res struct {
		Orders []models.Order `json:"orders"`
		Total  int64          `json:"total"`
		Page   int64          `json:"page"`
		Limit  int64          `json:"limit"`
	}
	s.decode(w, &res)
	s.Equal(int64(1), res.Total)
	s.Equal(int64(1), res.Page)
	s.Equal(int64(20), res.Limit)
	s.Require().Len(res.Orders, 1)
	s.Equal("user-2", res.Orders[0].CustomerID)

	w = s.do(http.MethodGet, "/api/admin/orders?limit=500&page=0", adminToken, nil)
	s.decode(w, &res)
	s.Equal(int64(2), res.Total)
	s.Equal(int64(100), res.Limit)
}

func (s *GatewaySuite) TestAdminStatusIsCaseInsensitive() {
	o := s.placeOrder(customerToken, "cod")

	w := s.do(http.MethodGet, "/api/admin/orders?status=pending", adminToken, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var res struct {
		Total int64 `json:"total"`
	}
	s.decode(w, &res)
	s.Equal(int64(1), res.Total)

	w = s.do(http.MethodPatch, "/api/admin/orders/"+o.ID.Hex()+"/status", adminToken, map[string]string{"orderStatus": "confirmed"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var updated models.Order
	s.decode(w, &updated)
	s.Equal(models.OrderConfirmed, updated.OrderStatus)

	w = s.do(http.MethodPatch, "/api/admin/orders/"+o.ID.Hex()+"/payment", adminToken, map[string]string{"paymentStatus": "paid"})
	s.Equal(http.StatusOK, w.Code, w.Body.String())
}

func (s *GatewaySuite) TestDashboard() {
	o := s.placeOrder(customerToken, "momo")
	s.do(http.MethodPatch, "/api/admin/orders/"+o.ID.Hex()+"/payment", adminToken, map[string]string{"paymentStatus": "PAID"})

	w := s.do(http.MethodGet, "/api/admin/dashboard?days=3", adminToken, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var d models.Dashboard
	s.decode(w, &d)
	s.Equal(3, d.Days)
	s.Equal(int64(400000), d.TotalRevenue)
}

func (s *GatewaySuite) TestNotifications() {
	n := &models.Notification{ID: primitive.NewObjectID(), Title: "Đơn hàng mới"}
	s.inbox.items = []*models.Notification{n}

	w := s.do(http.MethodGet, "/api/admin/notifications", adminToken, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var res struct {
		Notifications []models.Notification `json:"notifications"`
		Unread        int64                 `json:"unread"`
	}
	s.decode(w, &res)
	s.Len(res.Notifications, 1)

	w = s.do(http.MethodPatch, "/api/admin/notifications/"+n.ID.Hex()+"/read", adminToken, nil)
	s.Equal(http.StatusNoContent, w.Code)
	s.True(n.Read)

	w = s.do(http.MethodPatch, "/api/admin/notifications/nope/read", adminToken, nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *GatewaySuite) TestBanking() {
	w := s.do(http.MethodGet, "/api/banking", "", nil)
	s.Equal(http.StatusNotFound, w.Code)

	setting := map[string]string{"bankName": "Vietcombank", "accountNumber": "0123", "accountName": "FLOWER SHOP"}
	w = s.do(http.MethodPut, "/api/admin/banking", customerToken, setting)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodPut, "/api/admin/banking", adminToken, setting)
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/banking", "", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "Vietcombank")
}

func (s *GatewaySuite) TestAccountFlow() {
	w := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{"name": "B", "email": "b@example.com", "password": "secret1"})
	s.Equal(http.StatusCreated, w.Code)
	s.NotContains(w.Body.String(), "hash")

	w = s.do(http.MethodPost, "/api/auth/register", "", map[string]string{"name": "B", "email": "taken@example.com", "password": "secret1"})
	s.Equal(http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "b@example.com", "password": "nope"})
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "b@example.com", "password": "secret1"})
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"token":"fresh"`)

	w = s.do(http.MethodPut, "/api/profile", customerToken, map[string]string{"phone": "0999"})
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "0999")

	w = s.do(http.MethodPost, "/api/auth/logout", customerToken, nil)
	s.Equal(http.StatusNoContent, w.Code)
	s.Equal([]string{customerToken}, s.users.loggedOut)

	w = s.do(http.MethodGet, "/api/profile", customerToken, nil)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func TestGatewaySuite(t *testing.T) {
	suite.Run(t, new(GatewaySuite))
}
