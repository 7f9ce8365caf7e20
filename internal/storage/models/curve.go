// internal/storage/models/curve.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Curve - строка таблицы curves. Суммы в lamports и базовых единицах
// хранятся как numeric(20,0), чтобы не терять старший бит uint64.
type Curve struct {
	Mint    string `gorm:"primaryKey;type:varchar(44)"`
	Creator string `gorm:"index;not null;type:varchar(44)"`
	Name    string `gorm:"type:varchar(100)"`
	Symbol  string `gorm:"type:varchar(20)"`

	VirtualSolReserves   decimal.Decimal `gorm:"type:numeric(20,0);not null"`
	VirtualTokenReserves decimal.Decimal `gorm:"type:numeric(20,0);not null"`
	TotalSupply          decimal.Decimal `gorm:"type:numeric(20,0);not null"`
	PlatformFeePercent   decimal.Decimal `gorm:"type:numeric(8,4);not null"`
	MaxMarketCap         decimal.Decimal `gorm:"type:numeric(30,9);not null"`

	RealSolReserves   decimal.Decimal `gorm:"type:numeric(20,0);not null;default:0"`
	RealTokenReserves decimal.Decimal `gorm:"type:numeric(20,0);not null;default:0"`
	Version           int64           `gorm:"not null;default:0"`
	Graduated         bool            `gorm:"not null;default:false;index"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time
}

// TableName задает имя таблицы
func (Curve) TableName() string { return "curves" }
