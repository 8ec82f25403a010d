package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"kasa-backend/internal/models"
)

// advisoryLockNamespace pg_advisory_xact_lock(bigint) anahtarının üst 32 biti ("kasa").
const advisoryLockNamespace uint64 = 0x6B617361

// branchLockKey puts the namespace in the high half and the branch id in the
// low half. Ids below 2^32 map one to one; the high half of larger ids is
// folded in instead of dropped, so a shared key only over-serializes.
func branchLockKey(branchID uint) int64 {
	id := uint64(branchID)
	low := uint32(id) ^ uint32(id>>32)
	return int64(advisoryLockNamespace<<32 | uint64(low))
}

// Gorm is the Postgres-backed Store. The *gorm.DB must be opened with
// TranslateError so duplicate keys surface as gorm.ErrDuplicatedKey.
type Gorm struct {
	db   *gorm.DB
	inTx bool
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (g *Gorm) Sessions() SessionRepository { return gormSessions{db: g.db} }
func (g *Gorm) Funds() FundRepository       { return gormFunds{db: g.db} }
func (g *Gorm) Transactional() bool         { return true }

func (g *Gorm) Atomic(ctx context.Context, fn func(tx Store) error) error {
	if g.inTx {
		return fn(g)
	}
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Gorm{db: tx, inTx: true})
	})
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return err
	}
}

// -------------------------------------------------
// Kasa oturumları
// -------------------------------------------------

type gormSessions struct {
	db *gorm.DB
}

func (r gormSessions) LockBranch(ctx context.Context, branchID uint) error {
	return r.db.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(?)", branchLockKey(branchID)).Error
}

func (r gormSessions) Create(ctx context.Context, s *models.CashSession) error {
	return translate(r.db.WithContext(ctx).Create(s).Error)
}

func (r gormSessions) Get(ctx context.Context, id uint) (*models.CashSession, error) {
	var s models.CashSession
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r gormSessions) GetForUpdate(ctx context.Context, id uint) (*models.CashSession, error) {
	var s models.CashSession
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&s, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r gormSessions) FindOpenByBranch(ctx context.Context, branchID uint) (*models.CashSession, error) {
	var s models.CashSession
	err := r.db.WithContext(ctx).
		Where("branch_id = ? AND status = ?", branchID, models.CashSessionOpen).
		First(&s).Error
	if err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r gormSessions) CloseOpen(ctx context.Context, s *models.CashSession) error {
	res := r.db.WithContext(ctx).
		Model(&models.CashSession{ID: s.ID}).
		Where("status = ?", models.CashSessionOpen).
		Select(
			"status", "closing_count", "sales_total", "expenses_total",
			"expected_total", "actual_total", "variance", "variance_class",
			"closed_at", "closed_by", "notes", "updated_at",
		).
		Updates(s)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: oturum %d açık değil", ErrConflict, s.ID)
	}
	return nil
}

func (r gormSessions) List(ctx context.Context, f SessionFilter) ([]models.CashSession, error) {
	q := r.db.WithContext(ctx).Model(&models.CashSession{}).Where("branch_id = ?", f.BranchID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.From != nil {
		q = q.Where("opened_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("opened_at <= ?", *f.To)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var out []models.CashSession
	if err := q.Order("opened_at desc, id desc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// -------------------------------------------------
// Kasa fonları
// -------------------------------------------------

type gormFunds struct {
	db *gorm.DB
}

func (r gormFunds) Create(ctx context.Context, f *models.FundPool) error {
	return translate(r.db.WithContext(ctx).Create(f).Error)
}

func (r gormFunds) Get(ctx context.Context, id uint) (*models.FundPool, error) {
	var f models.FundPool
	if err := r.db.WithContext(ctx).First(&f, id).Error; err != nil {
		return nil, translate(err)
	}
	return &f, nil
}

func (r gormFunds) GetForUpdate(ctx context.Context, id uint) (*models.FundPool, error) {
	var f models.FundPool
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&f, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &f, nil
}

func (r gormFunds) ListAvailable(ctx context.Context, branchID uint) ([]models.FundPool, error) {
	var out []models.FundPool
	err := r.db.WithContext(ctx).
		Where("branch_id = ? AND status = ? AND available_amount > 0", branchID, models.FundPoolActive).
		Order("name asc").
		Find(&out).Error
	return out, err
}

func (r gormFunds) UpdateAvailable(ctx context.Context, id uint, amount int64) error {
	res := r.db.WithContext(ctx).
		Model(&models.FundPool{}).
		Where("id = ?", id).
		Update("available_amount", amount)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r gormFunds) SetStatus(ctx context.Context, id uint, status models.FundPoolStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.FundPool{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r gormFunds) CreateAllocation(ctx context.Context, a *models.FundAllocation) error {
	return translate(r.db.WithContext(ctx).Create(a).Error)
}

func (r gormFunds) GetAllocationForUpdate(ctx context.Context, token uuid.UUID) (*models.FundAllocation, error) {
	var a models.FundAllocation
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("token = ?", token).
		First(&a).Error
	if err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (r gormFunds) AttachAllocation(ctx context.Context, token uuid.UUID, sessionID uint) error {
	res := r.db.WithContext(ctx).
		Model(&models.FundAllocation{}).
		Where("token = ?", token).
		Update("cash_session_id", sessionID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r gormFunds) MarkAllocationReleased(ctx context.Context, token uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.FundAllocation{}).
		Where("token = ? AND status = ?", token, models.FundAllocationAllocated).
		Updates(map[string]any{
			"status":      models.FundAllocationReleased,
			"released_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: tahsis zaten iade edilmiş", ErrConflict)
	}
	return nil
}
