// internal/storage/models/graduation.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GraduationEvent is the insert-only record of a completed graduation.
// Строки никогда не обновляются, поэтому UpdatedAt нет.
type GraduationEvent struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement"`
	Mint           string `gorm:"uniqueIndex;not null;type:varchar(44)"`
	IdempotencyKey string `gorm:"uniqueIndex;not null;type:varchar(120)"`
	PoolID         string `gorm:"not null;type:varchar(44)"`
	Signature      string `gorm:"not null;type:varchar(88)"`

	PreRealSol    decimal.Decimal `gorm:"type:numeric(20,0);not null"`
	PreRealToken  decimal.Decimal `gorm:"type:numeric(20,0);not null"`
	PreVersion    int64           `gorm:"not null"`
	PostRealSol   decimal.Decimal `gorm:"type:numeric(20,0);not null"`
	PostRealToken decimal.Decimal `gorm:"type:numeric(20,0);not null"`
	PostVersion   int64           `gorm:"not null"`
	PostGraduated bool            `gorm:"not null"`

	SolForLiquidity    decimal.Decimal `gorm:"type:numeric(20,0);not null"`
	TokensForLiquidity decimal.Decimal `gorm:"type:numeric(20,0);not null"`
	RemainingSol       decimal.Decimal `gorm:"type:numeric(20,0);not null"`
	RemainingTokens    decimal.Decimal `gorm:"type:numeric(20,0);not null"`
	GraduationFee      decimal.Decimal `gorm:"type:numeric(20,0);not null"`

	LiquidityLockedUntil *time.Time
	GraduatedAt          time.Time `gorm:"index;not null"`
	RecordedAt           time.Time `gorm:"autoCreateTime;not null"`
}

// TableName задает имя таблицы
func (GraduationEvent) TableName() string { return "graduation_events" }
