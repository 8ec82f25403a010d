package models

import (
	"time"

	"github.com/google/uuid"

	"kasa-backend/internal/cashcount"
	"kasa-backend/internal/reconcile"
)

type CashSessionStatus string

const (
	CashSessionOpen   CashSessionStatus = "open"   // kasa açık
	CashSessionClosed CashSessionStatus = "closed" // kasa kapandı, sadece okunur
)

// CashSession bir şubenin kasa oturumu. Açık oturum şube başına en fazla bir
// tane olabilir (uniq_cash_sessions_open_branch). Kapanan kayıt bir daha
// güncellenmez.
//
// Tüm tutarlar minor birim (kuruş).
type CashSession struct {
	ID       uint              `gorm:"primaryKey" json:"id"`
	BranchID uint              `gorm:"index;not null" json:"branch_id"`
	Status   CashSessionStatus `gorm:"size:10;index;not null" json:"status"`
	Currency string            `gorm:"size:3;not null" json:"currency"`

	// Açılış
	OpeningCount        *cashcount.Count `gorm:"type:jsonb;serializer:json" json:"opening_count,omitempty"`
	OpeningTotal        int64            `gorm:"not null" json:"opening_total"`
	FundPoolID          *uint            `gorm:"index" json:"fund_pool_id,omitempty"`
	FundAllocationToken *uuid.UUID       `gorm:"type:uuid" json:"fund_allocation_token,omitempty"`
	OpenedAt            time.Time        `gorm:"not null" json:"opened_at"`
	OpenedBy            uint             `gorm:"not null" json:"opened_by"`

	// Kapanış (mutabakat kaydı)
	ClosingCount  *cashcount.Count `gorm:"type:jsonb;serializer:json" json:"closing_count,omitempty"`
	SalesTotal    int64            `json:"sales_total"`
	ExpensesTotal int64            `json:"expenses_total"`
	ExpectedTotal int64            `json:"expected_total"`
	ActualTotal   int64            `json:"actual_total"`
	Variance      int64            `json:"variance"`
	VarianceClass reconcile.Class  `gorm:"size:20" json:"variance_class,omitempty"`
	ClosedAt      *time.Time       `gorm:"index" json:"closed_at,omitempty"`
	ClosedBy      *uint            `json:"closed_by,omitempty"`
	Notes         string           `gorm:"size:500" json:"notes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *CashSession) IsOpen() bool { return s.Status == CashSessionOpen }

// Reconciliation kapanmış oturumun mutabakat sonucunu döner; açık oturum için false.
func (s *CashSession) Reconciliation() (reconcile.Result, bool) {
	if s.Status != CashSessionClosed {
		return reconcile.Result{}, false
	}
	return reconcile.Result{
		Expected: s.ExpectedTotal,
		Actual:   s.ActualTotal,
		Variance: s.Variance,
		Class:    s.VarianceClass,
	}, true
}

// Clone returns a deep copy so callers never share counts with the store.
func (s *CashSession) Clone() *CashSession {
	cp := *s
	if s.OpeningCount != nil {
		cp.OpeningCount = s.OpeningCount.Clone()
	}
	if s.ClosingCount != nil {
		cp.ClosingCount = s.ClosingCount.Clone()
	}
	if s.FundPoolID != nil {
		v := *s.FundPoolID
		cp.FundPoolID = &v
	}
	if s.FundAllocationToken != nil {
		v := *s.FundAllocationToken
		cp.FundAllocationToken = &v
	}
	if s.ClosedAt != nil {
		v := *s.ClosedAt
		cp.ClosedAt = &v
	}
	if s.ClosedBy != nil {
		v := *s.ClosedBy
		cp.ClosedBy = &v
	}
	return &cp
}
