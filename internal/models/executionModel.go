package models

import "time"

// Execution is one row of the closed-trade ledger: entry and exit facts
// plus realized P&L, written when a trade reaches Closed.
type Execution struct {
	ID      uint   `gorm:"primaryKey"`
	TradeID string `gorm:"index;not null"`
	Symbol  string `gorm:"index;not null"`
	Side    string `gorm:"not null"`

	EntryPrice float64 `gorm:"type:decimal(20,8);not null"`
	ExitPrice  float64 `gorm:"type:decimal(20,8);not null"`
	Qty        int     `gorm:"not null"`
	PnL        float64 `gorm:"type:decimal(20,8)"`

	ClosedAt  time.Time `gorm:"index;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName sets the table name for Execution.
func (Execution) TableName() string {
	return "executions"
}
