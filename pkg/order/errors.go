package order

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/example/flowershop/pkg/apperror"
	"github.com/example/flowershop/pkg/models"
)

var (
	ErrBlockingOrder        = errors.New("order: customer has a pending payable order")
	ErrCheckoutInProgress   = errors.New("order: checkout already in progress")
	ErrOrderNotFound        = errors.New("order: not found")
	ErrTransitionNotAllowed = errors.New("order: transition not allowed")
	ErrConcurrentUpdate     = errors.New("order: changed concurrently")
	ErrPaymentNotAllowed    = errors.New("order: payment cannot be confirmed")
	ErrInvalidInput         = errors.New("order: invalid input")
)

const (
	msgEmptyCart            = "Giỏ hàng trống"
	msgInvalidPayment       = "Phương thức thanh toán không hợp lệ"
	msgMissingCustomer      = "Vui lòng nhập đầy đủ thông tin khách hàng"
	msgBlockingOrder        = "Bạn đang có đơn hàng chờ thanh toán. Vui lòng thanh toán hoặc chờ đơn hết hạn trước khi đặt đơn mới"
	msgCheckoutBusy         = "Đơn hàng của bạn đang được xử lý, vui lòng thử lại sau giây lát"
	msgOrderNotFound        = "Không tìm thấy đơn hàng"
	msgInvalidStatus        = "Trạng thái đơn hàng không hợp lệ"
	msgInvalidPaymentStatus = "Trạng thái thanh toán không hợp lệ"
	msgConcurrent           = "Đơn hàng vừa được cập nhật, vui lòng tải lại"
	msgPaymentDenied        = "Không thể xác nhận thanh toán cho đơn hàng này"

	// NoteCreated and NoteExpired are the history notes written by the service.
	NoteCreated     = "Đặt hàng"
	NoteExpired     = "Hết hạn thanh toán"
	NotePaymentPaid = "Đã xác nhận thanh toán"
)

func invalid(msg string) error {
	return apperror.Wrap(http.StatusBadRequest, msg, ErrInvalidInput)
}

func notFound() error {
	return apperror.Wrap(http.StatusNotFound, msgOrderNotFound, ErrOrderNotFound)
}

func transitionNotAllowed(from, to models.OrderStatus) error {
	msg := fmt.Sprintf("Không thể chuyển trạng thái đơn hàng từ %s sang %s", from, to)
	return apperror.Wrap(http.StatusBadRequest, msg, ErrTransitionNotAllowed)
}
