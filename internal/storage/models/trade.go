// internal/storage/models/trade.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade - примененная сделка, только вставка
type Trade struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement"`
	Mint        string          `gorm:"uniqueIndex:idx_trades_mint_version;not null;type:varchar(44)"`
	Version     int64           `gorm:"uniqueIndex:idx_trades_mint_version;not null"`
	Trader      string          `gorm:"index;not null;type:varchar(44)"`
	Side        string          `gorm:"not null;type:varchar(4)"`
	SolAmount   decimal.Decimal `gorm:"type:numeric(20,0);not null"`
	TokenAmount decimal.Decimal `gorm:"type:numeric(20,0);not null"`
	PlatformFee decimal.Decimal `gorm:"type:numeric(20,0);not null"`
	Signature   string          `gorm:"not null;type:varchar(88)"`
	ExecutedAt  time.Time       `gorm:"index;not null"`
}

func (Trade) TableName() string { return "trades" }
