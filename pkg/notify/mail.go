package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/example/flowershop/pkg/config"
	"github.com/example/flowershop/pkg/models"
)

// Message is one HTML email.
type Message struct {
	To      []string
	Subject string
	HTML    string
}

var statusLabels = map[models.OrderStatus]string{
	models.OrderPending:   "Chờ xác nhận",
	models.OrderConfirmed: "Đã xác nhận",
	models.OrderShipping:  "Đang giao hàng",
	models.OrderCompleted: "Hoàn thành",
	models.OrderCancelled: "Đã hủy",
}

var paymentLabels = map[models.PaymentMethod]string{
	models.PaymentCOD:     "Thanh toán khi nhận hàng",
	models.PaymentBanking: "Chuyển khoản ngân hàng",
	models.PaymentStripe:  "Chuyển khoản ngân hàng",
	models.PaymentVNPay:   "VNPay",
	models.PaymentMoMo:    "MoMo",
}

func statusLabel(s models.OrderStatus) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

func paymentLabel(m models.PaymentMethod) string {
	if l, ok := paymentLabels[m]; ok {
		return l
	}
	return string(m)
}

// formatVND renders 400000 as "400.000 ₫".
func formatVND(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + " ₫"
}

var templates = template.Must(template.New("mail").Funcs(template.FuncMap{
	"vnd":     formatVND,
	"status":  statusLabel,
	"payment": paymentLabel,
	"lineTotal": func(it models.OrderItem) int64 {
		return it.Price * int64(it.Quantity)
	},
	"localTime": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("15:04 02/01/2006")
	},
}).Parse(`
{{define "items"}}
<table cellpadding="6" style="border-collapse:collapse">
  <tr><th align="left">Sản phẩm</th><th>SL</th><th align="right">Thành tiền</th></tr>
  {{range .Items}}<tr><td>{{.Name}}</td><td align="center">{{.Quantity}}</td><td align="right">{{vnd (lineTotal .)}}</td></tr>{{end}}
  <tr><td colspan="2"><b>Tổng cộng</b></td><td align="right"><b>{{vnd .TotalAmount}}</b></td></tr>
</table>
{{end}}

{{define "placed"}}
<p>Xin chào {{.CustomerName}},</p>
<p>Cảm ơn bạn đã đặt hàng. Mã đơn hàng của bạn là <b>{{.OrderCode}}</b>.</p>
{{template "items" .}}
<p>Phương thức thanh toán: {{payment .PaymentMethod}}</p>
{{if .ExpiresAt}}<p>Vui lòng hoàn tất thanh toán trước {{localTime .ExpiresAt}}, sau thời điểm này đơn hàng sẽ tự động bị hủy.</p>{{end}}
<p>Địa chỉ giao hàng: {{.ShippingAddress}}</p>
{{end}}

{{define "admin"}}
<p>Đơn hàng mới <b>{{.OrderCode}}</b> từ {{.CustomerName}} ({{.CustomerPhone}}, {{.CustomerEmail}}).</p>
{{template "items" .}}
<p>Phương thức thanh toán: {{payment .PaymentMethod}}</p>
<p>Địa chỉ giao hàng: {{.ShippingAddress}}</p>
{{if .Note}}<p>Ghi chú: {{.Note}}</p>{{end}}
{{end}}

{{define "status"}}
<p>Xin chào {{.Order.CustomerName}},</p>
<p>Đơn hàng <b>{{.Order.OrderCode}}</b> đã chuyển từ "{{status .From}}" sang "<b>{{status .Order.OrderStatus}}</b>".</p>
{{template "items" .Order}}
{{end}}
`))

func render(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s mail: %w", name, err)
	}
	return buf.String(), nil
}

func orderPlacedMail(o *models.Order) (Message, error) {
	body, err := render("placed", o)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      []string{o.CustomerEmail},
		Subject: fmt.Sprintf("Xác nhận đơn hàng %s", o.OrderCode),
		HTML:    body,
	}, nil
}

func adminOrderMail(o *models.Order, admins []string) (Message, error) {
	body, err := render("admin", o)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      admins,
		Subject: fmt.Sprintf("Đơn hàng mới %s - %s", o.OrderCode, formatVND(o.TotalAmount)),
		HTML:    body,
	}, nil
}

func statusChangedMail(o *models.Order, from models.OrderStatus) (Message, error) {
	body, err := render("status", struct {
		Order *models.Order
		From  models.OrderStatus
	}{o, from})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      []string{o.CustomerEmail},
		Subject: fmt.Sprintf("Đơn hàng %s: %s", o.OrderCode, statusLabel(o.OrderStatus)),
		HTML:    body,
	}, nil
}

// SMTPMailer sends mail through a single SMTP relay, upgrading to TLS when
// the server offers STARTTLS.
type SMTPMailer struct {
	cfg config.MailConfig
}

func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return nil
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	dialer := &net.Dialer{Timeout: m.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if m.cfg.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := c.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, to := range msg.To {
		if err := c.Rcpt(to); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", to, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(buildMIME(m.cfg.From, msg)); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	return c.Quit()
}

func buildMIME(from string, msg Message) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)
	return b.Bytes()
}
