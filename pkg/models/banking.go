package models

import "time"

// BankingSettingID is the primary key of the only banking_settings row.
const BankingSettingID = 1

// BankingSetting is the transfer destination shown to customers who pay by bank transfer.
type BankingSetting struct {
	ID                 uint      `gorm:"primaryKey" json:"-"`
	BankName           string    `gorm:"type:varchar(100);not null" json:"bankName"`
	AccountNumber      string    `gorm:"type:varchar(50);not null" json:"accountNumber"`
	AccountName        string    `gorm:"type:varchar(100);not null" json:"accountName"`
	Branch             string    `gorm:"type:varchar(100)" json:"branch"`
	TransferNotePrefix string    `gorm:"type:varchar(50)" json:"transferNotePrefix"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func (BankingSetting) TableName() string {
	return "banking_settings"
}
