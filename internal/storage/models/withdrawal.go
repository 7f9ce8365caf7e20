// internal/storage/models/withdrawal.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Withdrawal struct {
	ID        string          `gorm:"primaryKey;type:varchar(36)"`
	Mint      string          `gorm:"index;not null;type:varchar(44)"`
	Creator   string          `gorm:"not null;type:varchar(44)"`
	Amount    decimal.Decimal `gorm:"type:numeric(20,0);not null"`
	Remaining decimal.Decimal `gorm:"type:numeric(20,0);not null"`
	CreatedAt time.Time       `gorm:"index;not null"`
}

func (Withdrawal) TableName() string { return "withdrawals" }
