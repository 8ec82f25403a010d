package models

import "time"

type CashMethod string

const (
	CashMethodCash        CashMethod = "cash"        // nakit, kasaya girer
	CashMethodPOS         CashMethod = "pos"         // pos, kasaya girmez
	CashMethodYemekSepeti CashMethod = "yemeksepeti" // yemek sepeti, kasaya girmez
)

type CashDirection string

const (
	DirectionIn  CashDirection = "in"  // satış
	DirectionOut CashDirection = "out" // kasadan nakit çıkış
)

// CashMovement ciro defteri. Kasa mutabakatı sadece okur: nakit girişler
// satış, nakit çıkışlar gider sayılır.
type CashMovement struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	BranchID    uint          `gorm:"index:idx_cash_movements_branch_created;not null" json:"branch_id"`
	Branch      Branch        `json:"-"`
	Date        time.Time     `gorm:"index;not null" json:"date"` // gün bazlı
	Method      CashMethod    `gorm:"size:20;not null" json:"method"`
	Direction   CashDirection `gorm:"size:10;not null" json:"direction"`
	Amount      float64       `gorm:"not null" json:"amount"`
	Description string        `gorm:"size:255" json:"description"`
	CreatedAt   time.Time     `gorm:"index:idx_cash_movements_branch_created" json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
