// Package user handles accounts, bearer sessions and the shop's banking
// settings.
package user

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/example/flowershop/pkg/apperror"
	"github.com/example/flowershop/pkg/config"
	"github.com/example/flowershop/pkg/models"
	"github.com/example/flowershop/pkg/repository"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 6

var validate = validator.New()

var (
	ErrInvalidCredentials = errors.New("user: invalid credentials")
	ErrEmailTaken         = errors.New("user: email already registered")
	ErrNoSession          = errors.New("user: no session")
)

const (
	msgMissingFields  = "Vui lòng nhập đầy đủ thông tin"
	msgInvalidEmail   = "Email không hợp lệ"
	msgShortPassword  = "Mật khẩu phải có ít nhất 6 ký tự"
	msgEmailTaken     = "Email đã được sử dụng"
	msgBadCredentials = "Email hoặc mật khẩu không đúng"
	msgUnauthorized   = "Vui lòng đăng nhập"
	msgUserNotFound   = "Không tìm thấy người dùng"
	msgNoBanking      = "Chưa cấu hình thông tin chuyển khoản"
	msgBankingFields  = "Vui lòng nhập đầy đủ thông tin ngân hàng"
)

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) (*models.User, error)
}

// SessionStore returns (nil, nil) for unknown or expired tokens.
type SessionStore interface {
	SaveSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, token string) (*models.Session, error)
	DeleteSession(ctx context.Context, token string) error
}

type BankingStore interface {
	Get(ctx context.Context) (*models.BankingSetting, error)
	Save(ctx context.Context, b *models.BankingSetting) error
}

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Password string `json:"password"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileInput leaves a field unchanged when it is nil.
type ProfileInput struct {
	Name    *string `json:"name"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

type Service struct {
	users      UserStore
	sessions   SessionStore
	banking    BankingStore
	logger     *zap.Logger
	sessionTTL time.Duration
	now        func() time.Time
}

func NewService(cfg config.AuthConfig, users UserStore, sessions SessionStore, banking BankingStore, logger *zap.Logger) *Service {
	return &Service{
		users:      users,
		sessions:   sessions,
		banking:    banking,
		logger:     logger,
		sessionTTL: cfg.SessionTTL,
		now:        time.Now,
	}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	u, err := s.newUser(in, models.RoleCustomer)
	if err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, apperror.Wrap(http.StatusConflict, msgEmailTaken, ErrEmailTaken)
		}
		return nil, apperror.Internal(err)
	}

	s.logger.Info("User registered", zap.String("user_id", u.ID), zap.String("email", u.Email))
	return u, nil
}

func (s *Service) newUser(in RegisterInput, role models.Role) (*models.User, error) {
	u := &models.User{
		ID:      uuid.NewString(),
		Name:    strings.TrimSpace(in.Name),
		Email:   normalizeEmail(in.Email),
		Phone:   strings.TrimSpace(in.Phone),
		Address: strings.TrimSpace(in.Address),
		Role:    role,
	}
	if u.Name == "" || u.Email == "" || in.Password == "" {
		return nil, apperror.BadRequest(msgMissingFields)
	}
	if err := validate.Var(u.Email, "email"); err != nil {
		return nil, apperror.BadRequest(msgInvalidEmail)
	}
	if len(in.Password) < minPasswordLen {
		return nil, apperror.BadRequest(msgShortPassword)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	u.PasswordHash = string(hash)
	return u, nil
}

// Login checks the password and opens a session keyed by a random token.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	u, err := s.users.FindByEmail(ctx, normalizeEmail(in.Email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.Wrap(http.StatusUnauthorized, msgBadCredentials, ErrInvalidCredentials)
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		return nil, apperror.Wrap(http.StatusUnauthorized, msgBadCredentials, ErrInvalidCredentials)
	}

	session := &models.Session{
		Token:     uuid.NewString(),
		UserID:    u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		Role:      u.Role,
		ExpiresAt: s.now().Add(s.sessionTTL),
	}
	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, apperror.Internal(err)
	}

	s.logger.Info("User logged in", zap.String("user_id", u.ID))
	return &LoginResult{Token: session.Token, ExpiresAt: session.ExpiresAt, User: u}, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.sessions.DeleteSession(ctx, token); err != nil {
		return apperror.Internal(err)
	}
	return nil
}

// Authenticate resolves a bearer token to its session.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, apperror.Wrap(http.StatusUnauthorized, msgUnauthorized, ErrNoSession)
	}
	session, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if session == nil || !session.ExpiresAt.After(s.now()) {
		return nil, apperror.Wrap(http.StatusUnauthorized, msgUnauthorized, ErrNoSession)
	}
	return session, nil
}

func (s *Service) Profile(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound(msgUserNotFound)
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return u, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*models.User, error) {
	fields := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperror.BadRequest(msgMissingFields)
		}
		fields["name"] = name
	}
	if in.Phone != nil {
		fields["phone"] = strings.TrimSpace(*in.Phone)
	}
	if in.Address != nil {
		fields["address"] = strings.TrimSpace(*in.Address)
	}
	if len(fields) == 0 {
		return s.Profile(ctx, userID)
	}

	u, err := s.users.Update(ctx, userID, fields)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound(msgUserNotFound)
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return u, nil
}

func (s *Service) Banking(ctx context.Context) (*models.BankingSetting, error) {
	b, err := s.banking.Get(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound(msgNoBanking)
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return b, nil
}

func (s *Service) SaveBanking(ctx context.Context, b *models.BankingSetting) (*models.BankingSetting, error) {
	b.BankName = strings.TrimSpace(b.BankName)
	b.AccountNumber = strings.TrimSpace(b.AccountNumber)
	b.AccountName = strings.TrimSpace(b.AccountName)
	if b.BankName == "" || b.AccountNumber == "" || b.AccountName == "" {
		return nil, apperror.BadRequest(msgBankingFields)
	}
	b.UpdatedAt = s.now()

	if err := s.banking.Save(ctx, b); err != nil {
		return nil, apperror.Internal(err)
	}
	s.logger.Info("Banking settings updated", zap.String("bank", b.BankName))
	return b, nil
}

// EnsureAdmin creates the bootstrap admin account when it does not exist yet.
func (s *Service) EnsureAdmin(ctx context.Context, cfg config.AuthConfig) error {
	if cfg.AdminEmail == "" {
		return nil
	}
	_, err := s.users.FindByEmail(ctx, normalizeEmail(cfg.AdminEmail))
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	u, err := s.newUser(RegisterInput{
		Name:     "Administrator",
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
	}, models.RoleAdmin)
	if err != nil {
		return err
	}
	if err := s.users.Create(ctx, u); err != nil && !errors.Is(err, repository.ErrDuplicateKey) {
		return err
	}
	s.logger.Info("Admin account created", zap.String("email", u.Email))
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
