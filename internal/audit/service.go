package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"kasa-backend/internal/models"
)

type Entry struct {
	BranchID    *uint
	UserID      uint
	UserName    string
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

type Writer interface {
	Write(ctx context.Context, e Entry) error
}

type GormWriter struct {
	db *gorm.DB
}

func NewGormWriter(db *gorm.DB) *GormWriter {
	return &GormWriter{db: db}
}

func (w *GormWriter) Write(ctx context.Context, e Entry) error {
	row, err := e.toLog()
	if err != nil {
		return err
	}
	if err := w.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("audit log kaydedilemedi: %w", err)
	}
	return nil
}

// jsonb kolonları için boş string yerine "null"
func toJSON(v any) (string, error) {
	if v == nil {
		return "null", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (e Entry) toLog() (models.AuditLog, error) {
	before, err := toJSON(e.Before)
	if err != nil {
		return models.AuditLog{}, fmt.Errorf("audit before verisi serileştirilemedi: %w", err)
	}
	after, err := toJSON(e.After)
	if err != nil {
		return models.AuditLog{}, fmt.Errorf("audit after verisi serileştirilemedi: %w", err)
	}
	return models.AuditLog{
		BranchID:    e.BranchID,
		UserID:      e.UserID,
		UserName:    e.UserName,
		EntityType:  e.EntityType,
		EntityID:    e.EntityID,
		Action:      e.Action,
		Description: e.Description,
		BeforeData:  before,
		AfterData:   after,
	}, nil
}

// Record writes e after the business change has committed. A failure is
// logged and swallowed: the audit trail never undoes a kasa operation.
func Record(ctx context.Context, w Writer, log *zap.Logger, e Entry) {
	if w == nil {
		return
	}
	if err := w.Write(context.WithoutCancel(ctx), e); err != nil {
		log.Error("audit log yazılamadı",
			zap.String("entity_type", e.EntityType),
			zap.Uint("entity_id", e.EntityID),
			zap.String("action", string(e.Action)),
			zap.Error(err),
		)
	}
}

// Recorder keeps entries in memory; handlers use it in tests.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
	Err     error
}

func (r *Recorder) Write(_ context.Context, e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.entries = append(r.entries, e)
	return nil
}

func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}
