package models

import "time"

type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionOpen   AuditAction = "open"  // kasa açılışı
	AuditActionClose  AuditAction = "close" // kasa kapanışı
)

// Audit entity tipleri
const (
	AuditEntityCashSession = "cash_session"
	AuditEntityFundPool    = "fund_pool"
)

// AuditLog append-only; kasa kayıtları geri alınamaz, sadece izlenir.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	BranchID *uint  `gorm:"index" json:"branch_id"`
	UserID   uint   `json:"user_id"`
	UserName string `gorm:"size:100" json:"user_name"` // denormalize

	EntityType string      `gorm:"size:50;index" json:"entity_type"`
	EntityID   uint        `gorm:"index" json:"entity_id"`
	Action     AuditAction `gorm:"size:20" json:"action"`

	Description string `gorm:"size:255" json:"description"`

	// Önceki ve sonraki hal (JSON, jsonb)
	BeforeData string `gorm:"type:jsonb" json:"before_data"`
	AfterData  string `gorm:"type:jsonb" json:"after_data"`
}
