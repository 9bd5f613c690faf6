package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/flowershop/pkg/config"
	"github.com/example/flowershop/pkg/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NewMySQL opens the account database and migrates its tables.
func NewMySQL(cfg *config.MySQLConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)

	if err := db.AutoMigrate(&models.User{}, &models.BankingSetting{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return db, nil
}

type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	err := s.db.WithContext(ctx).Create(u).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateKey
	}
	return err
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.first(ctx, "email = ?", email)
}

func (s *UserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *UserStore) Update(ctx context.Context, id string, fields map[string]interface{}) (*models.User, error) {
	// MySQL reports zero affected rows for no-op updates, so existence is checked first
	if _, err := s.FindByID(ctx, id); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return nil, err
	}
	return s.FindByID(ctx, id)
}

func (s *UserStore) first(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where(query, args...).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

type BankingStore struct {
	db *gorm.DB
}

func NewBankingStore(db *gorm.DB) *BankingStore {
	return &BankingStore{db: db}
}

func (s *BankingStore) Get(ctx context.Context) (*models.BankingSetting, error) {
	var b models.BankingSetting
	err := s.db.WithContext(ctx).First(&b, models.BankingSettingID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Save upserts the single settings row.
func (s *BankingStore) Save(ctx context.Context, b *models.BankingSetting) error {
	b.ID = models.BankingSettingID
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(b).Error
}
