// Package fund manages kasa fonları: branch-scoped cash pools that seed a
// session opening. The allocator only moves money out (Allocate) and back in
// as compensation (Release); topping a fund up is somebody else's job.
package fund

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kasa-backend/internal/models"
	"kasa-backend/internal/store"
)

var (
	ErrFundNotFound       = errors.New("kasa fonu bulunamadı")
	ErrFundInactive       = errors.New("kasa fonu aktif değil")
	ErrInsufficientFunds  = errors.New("kasa fonunda yeterli bakiye yok")
	ErrInvalidAmount      = errors.New("geçersiz tutar")
	ErrInvalidName        = errors.New("fon adı zorunlu")
	ErrDuplicateName      = errors.New("bu şubede aynı isimde fon var")
	ErrAllocationNotFound = errors.New("fon tahsisi bulunamadı")
	ErrAllocationReleased = errors.New("fon tahsisi zaten iade edilmiş")
)

// Allocation is the token handed to the session opening.
type Allocation struct {
	Token    uuid.UUID
	FundID   uint
	BranchID uint
	Amount   int64
}

type Allocator struct {
	store  store.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewAllocator(st store.Store, logger *zap.Logger) *Allocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Allocator{store: st, logger: logger, now: time.Now}
}

// within runs fn on tx when the caller already holds a transaction, or opens
// a new one.
func (a *Allocator) within(ctx context.Context, tx store.Store, fn func(store.Store) error) error {
	if tx != nil {
		return tx.Atomic(ctx, fn)
	}
	return a.store.Atomic(ctx, fn)
}

// ListAvailable returns the branch's active funds that still hold money, by name.
func (a *Allocator) ListAvailable(ctx context.Context, branchID uint) ([]models.FundPool, error) {
	funds, err := a.store.Funds().ListAvailable(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("kasa fonları listelenemedi: %w", err)
	}
	return funds, nil
}

func (a *Allocator) Get(ctx context.Context, id uint) (*models.FundPool, error) {
	f, err := a.store.Funds().Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrFundNotFound
	}
	return f, err
}

// Allocate takes amount out of the fund. Pass the caller's transaction so the
// decrement commits or rolls back together with the session it seeds.
func (a *Allocator) Allocate(ctx context.Context, tx store.Store, fundID, branchID uint, amount int64) (Allocation, error) {
	if amount <= 0 {
		return Allocation{}, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}

	var out Allocation
	err := a.within(ctx, tx, func(tx store.Store) error {
		f, err := a.lockFund(ctx, tx, fundID, branchID)
		if err != nil {
			return err
		}
		alloc, err := a.take(ctx, tx, f, amount)
		out = alloc
		return err
	})
	return out, err
}

// AllocateAll empties the fund into one allocation.
func (a *Allocator) AllocateAll(ctx context.Context, tx store.Store, fundID, branchID uint) (Allocation, error) {
	var out Allocation
	err := a.within(ctx, tx, func(tx store.Store) error {
		f, err := a.lockFund(ctx, tx, fundID, branchID)
		if err != nil {
			return err
		}
		if f.AvailableAmount <= 0 && f.Status == models.FundPoolActive {
			return fmt.Errorf("%w: fon %d boş", ErrInsufficientFunds, f.ID)
		}
		alloc, err := a.take(ctx, tx, f, f.AvailableAmount)
		out = alloc
		return err
	})
	return out, err
}

func (a *Allocator) lockFund(ctx context.Context, tx store.Store, fundID, branchID uint) (*models.FundPool, error) {
	f, err := tx.Funds().GetForUpdate(ctx, fundID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrFundNotFound, fundID)
	}
	if err != nil {
		return nil, err
	}
	// başka şubenin fonu bu şubeye görünmez
	if f.BranchID != branchID {
		return nil, fmt.Errorf("%w: %d", ErrFundNotFound, fundID)
	}
	return f, nil
}

func (a *Allocator) take(ctx context.Context, tx store.Store, f *models.FundPool, amount int64) (Allocation, error) {
	if f.Status != models.FundPoolActive {
		return Allocation{}, fmt.Errorf("%w: %s", ErrFundInactive, f.Name)
	}
	if amount > f.AvailableAmount {
		return Allocation{}, fmt.Errorf("%w: istenen %d, mevcut %d", ErrInsufficientFunds, amount, f.AvailableAmount)
	}

	if err := tx.Funds().UpdateAvailable(ctx, f.ID, f.AvailableAmount-amount); err != nil {
		return Allocation{}, fmt.Errorf("fon bakiyesi güncellenemedi: %w", err)
	}

	row := &models.FundAllocation{
		Token:      uuid.New(),
		FundPoolID: f.ID,
		BranchID:   f.BranchID,
		Amount:     amount,
		Status:     models.FundAllocationAllocated,
	}
	if err := tx.Funds().CreateAllocation(ctx, row); err != nil {
		return Allocation{}, fmt.Errorf("fon tahsisi kaydedilemedi: %w", err)
	}

	return Allocation{Token: row.Token, FundID: f.ID, BranchID: f.BranchID, Amount: amount}, nil
}

// Release gives an allocation back to its fund. It is the compensating step
// for an opening that failed after the allocation had already been applied.
func (a *Allocator) Release(ctx context.Context, tx store.Store, token uuid.UUID, amount int64) error {
	return a.within(ctx, tx, func(tx store.Store) error {
		alloc, err := tx.Funds().GetAllocationForUpdate(ctx, token)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrAllocationNotFound, token)
		}
		if err != nil {
			return err
		}
		if alloc.Status == models.FundAllocationReleased {
			return fmt.Errorf("%w: %s", ErrAllocationReleased, token)
		}
		if amount != alloc.Amount {
			return fmt.Errorf("%w: tahsis %d, iade %d", ErrInvalidAmount, alloc.Amount, amount)
		}

		f, err := tx.Funds().GetForUpdate(ctx, alloc.FundPoolID)
		if err != nil {
			return fmt.Errorf("fon okunamadı: %w", err)
		}
		if err := tx.Funds().UpdateAvailable(ctx, f.ID, f.AvailableAmount+amount); err != nil {
			return fmt.Errorf("fon bakiyesi geri yüklenemedi: %w", err)
		}
		if err := tx.Funds().MarkAllocationReleased(ctx, token, a.now()); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return fmt.Errorf("%w: %s", ErrAllocationReleased, token)
			}
			return err
		}

		a.logger.Info("fon tahsisi iade edildi",
			zap.String("token", token.String()),
			zap.Uint("fund_pool_id", f.ID),
			zap.Int64("amount", amount),
		)
		return nil
	})
}

// -------------------------------------------------
// Yönetim (super_admin)
// -------------------------------------------------

type CreateRequest struct {
	BranchID        uint
	Name            string
	Currency        string
	AvailableAmount int64
}

func (a *Allocator) Create(ctx context.Context, req CreateRequest) (*models.FundPool, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrInvalidName
	}
	if req.AvailableAmount < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAmount, req.AvailableAmount)
	}

	f := &models.FundPool{
		BranchID:        req.BranchID,
		Name:            name,
		Currency:        req.Currency,
		AvailableAmount: req.AvailableAmount,
		Status:          models.FundPoolActive,
	}
	if err := a.store.Funds().Create(ctx, f); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, name)
		}
		return nil, fmt.Errorf("kasa fonu oluşturulamadı: %w", err)
	}
	return f, nil
}

// SetStatus toggles a fund active/inactive and returns (before, after).
func (a *Allocator) SetStatus(ctx context.Context, id uint, status models.FundPoolStatus) (*models.FundPool, *models.FundPool, error) {
	if status != models.FundPoolActive && status != models.FundPoolInactive {
		return nil, nil, fmt.Errorf("geçersiz fon durumu: %q", status)
	}

	var before, after *models.FundPool
	err := a.store.Atomic(ctx, func(tx store.Store) error {
		f, err := tx.Funds().GetForUpdate(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %d", ErrFundNotFound, id)
		}
		if err != nil {
			return err
		}
		before = f
		if err := tx.Funds().SetStatus(ctx, id, status); err != nil {
			return err
		}
		cp := *f
		cp.Status = status
		after = &cp
		return nil
	})
	return before, after, err
}
