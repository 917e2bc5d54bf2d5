package model

import "time"

// StockGlobal is the warehouse ledger for one container type.
// Invariant: Total == Lleno + Vacio.
type StockGlobal struct {
	Tipo      string `gorm:"type:varchar(40);primaryKey"`
	Lleno     int    `gorm:"not null;default:0"`
	Vacio     int    `gorm:"not null;default:0"`
	Total     int    `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

// TableName keeps the ledger table singular, as it is keyed by type.
func (StockGlobal) TableName() string { return "stock_global" }
