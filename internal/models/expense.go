package models

import "time"

type ExpenseCategory struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BranchID  uint      `gorm:"index;not null" json:"branch_id"`
	Branch    Branch    `json:"-"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Expense gider defteri; kasa kapanışında açılıştan bu yana girilenler düşülür.
type Expense struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	BranchID    uint            `gorm:"index:idx_expenses_branch_created;not null" json:"branch_id"`
	Branch      Branch          `json:"-"`
	CategoryID  uint            `gorm:"index;not null" json:"category_id"`
	Category    ExpenseCategory `json:"-"`
	Date        time.Time       `gorm:"index;not null" json:"date"`
	Amount      float64         `gorm:"not null" json:"amount"`
	Description string          `gorm:"size:255" json:"description"`
	CreatedAt   time.Time       `gorm:"index:idx_expenses_branch_created" json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
