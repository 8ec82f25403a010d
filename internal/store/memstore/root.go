package memstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"kasa-backend/internal/models"
	"kasa-backend/internal/store"
)

// Calls made outside Atomic run as their own single-statement transaction.

type rootSessions struct{ s *Store }

func (r rootSessions) do(ctx context.Context, fn func(store.SessionRepository) error) error {
	return r.s.Atomic(ctx, func(tx store.Store) error { return fn(tx.Sessions()) })
}

func (r rootSessions) LockBranch(ctx context.Context, branchID uint) error {
	return r.do(ctx, func(repo store.SessionRepository) error { return repo.LockBranch(ctx, branchID) })
}

func (r rootSessions) Create(ctx context.Context, sess *models.CashSession) error {
	return r.do(ctx, func(repo store.SessionRepository) error { return repo.Create(ctx, sess) })
}

func (r rootSessions) Get(ctx context.Context, id uint) (out *models.CashSession, err error) {
	err = r.do(ctx, func(repo store.SessionRepository) error {
		out, err = repo.Get(ctx, id)
		return err
	})
	return out, err
}

func (r rootSessions) GetForUpdate(ctx context.Context, id uint) (*models.CashSession, error) {
	return r.Get(ctx, id)
}

func (r rootSessions) FindOpenByBranch(ctx context.Context, branchID uint) (out *models.CashSession, err error) {
	err = r.do(ctx, func(repo store.SessionRepository) error {
		out, err = repo.FindOpenByBranch(ctx, branchID)
		return err
	})
	return out, err
}

func (r rootSessions) CloseOpen(ctx context.Context, sess *models.CashSession) error {
	return r.do(ctx, func(repo store.SessionRepository) error { return repo.CloseOpen(ctx, sess) })
}

func (r rootSessions) List(ctx context.Context, f store.SessionFilter) (out []models.CashSession, err error) {
	err = r.do(ctx, func(repo store.SessionRepository) error {
		out, err = repo.List(ctx, f)
		return err
	})
	return out, err
}

type rootFunds struct{ s *Store }

func (r rootFunds) do(ctx context.Context, fn func(store.FundRepository) error) error {
	return r.s.Atomic(ctx, func(tx store.Store) error { return fn(tx.Funds()) })
}

func (r rootFunds) Create(ctx context.Context, f *models.FundPool) error {
	return r.do(ctx, func(repo store.FundRepository) error { return repo.Create(ctx, f) })
}

func (r rootFunds) Get(ctx context.Context, id uint) (out *models.FundPool, err error) {
	err = r.do(ctx, func(repo store.FundRepository) error {
		out, err = repo.Get(ctx, id)
		return err
	})
	return out, err
}

func (r rootFunds) GetForUpdate(ctx context.Context, id uint) (*models.FundPool, error) {
	return r.Get(ctx, id)
}

func (r rootFunds) ListAvailable(ctx context.Context, branchID uint) (out []models.FundPool, err error) {
	err = r.do(ctx, func(repo store.FundRepository) error {
		out, err = repo.ListAvailable(ctx, branchID)
		return err
	})
	return out, err
}

func (r rootFunds) UpdateAvailable(ctx context.Context, id uint, amount int64) error {
	return r.do(ctx, func(repo store.FundRepository) error { return repo.UpdateAvailable(ctx, id, amount) })
}

func (r rootFunds) SetStatus(ctx context.Context, id uint, status models.FundPoolStatus) error {
	return r.do(ctx, func(repo store.FundRepository) error { return repo.SetStatus(ctx, id, status) })
}

func (r rootFunds) CreateAllocation(ctx context.Context, a *models.FundAllocation) error {
	return r.do(ctx, func(repo store.FundRepository) error { return repo.CreateAllocation(ctx, a) })
}

func (r rootFunds) GetAllocationForUpdate(ctx context.Context, token uuid.UUID) (out *models.FundAllocation, err error) {
	err = r.do(ctx, func(repo store.FundRepository) error {
		out, err = repo.GetAllocationForUpdate(ctx, token)
		return err
	})
	return out, err
}

func (r rootFunds) AttachAllocation(ctx context.Context, token uuid.UUID, sessionID uint) error {
	return r.do(ctx, func(repo store.FundRepository) error { return repo.AttachAllocation(ctx, token, sessionID) })
}

func (r rootFunds) MarkAllocationReleased(ctx context.Context, token uuid.UUID, at time.Time) error {
	return r.do(ctx, func(repo store.FundRepository) error { return repo.MarkAllocationReleased(ctx, token, at) })
}

var (
	_ store.Store = (*Store)(nil)
	_ store.Store = (*view)(nil)
)
