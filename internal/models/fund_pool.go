package models

import (
	"time"

	"github.com/google/uuid"
)

type FundPoolStatus string

const (
	FundPoolActive   FundPoolStatus = "active"
	FundPoolInactive FundPoolStatus = "inactive"
)

// FundPool kasa fonu: şubeye ait, kasa açılışlarında kullanılan nakit havuzu.
// AvailableAmount sadece tahsiste azalır, iade (release) ile geri gelir.
type FundPool struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	BranchID        uint           `gorm:"index;not null;uniqueIndex:idx_fund_pools_branch_name" json:"branch_id"`
	Name            string         `gorm:"size:100;not null;uniqueIndex:idx_fund_pools_branch_name" json:"name"`
	Currency        string         `gorm:"size:3;not null" json:"currency"`
	AvailableAmount int64          `gorm:"not null;default:0" json:"available_amount"`
	Status          FundPoolStatus `gorm:"size:10;not null" json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

type FundAllocationStatus string

const (
	FundAllocationAllocated FundAllocationStatus = "allocated"
	FundAllocationReleased  FundAllocationStatus = "released"
)

// FundAllocation fondan yapılan bir tahsis. Token, kasa açılışına bağlanır;
// açılış başarısız olursa aynı token ile iade edilir.
type FundAllocation struct {
	ID            uint                 `gorm:"primaryKey" json:"id"`
	Token         uuid.UUID            `gorm:"type:uuid;uniqueIndex;not null" json:"token"`
	FundPoolID    uint                 `gorm:"index;not null" json:"fund_pool_id"`
	BranchID      uint                 `gorm:"index;not null" json:"branch_id"`
	Amount        int64                `gorm:"not null" json:"amount"`
	Status        FundAllocationStatus `gorm:"size:10;not null" json:"status"`
	CashSessionID *uint                `gorm:"index" json:"cash_session_id,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	ReleasedAt    *time.Time           `json:"released_at,omitempty"`
}
