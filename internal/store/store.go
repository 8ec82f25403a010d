// Package store is the persistence boundary for cash sessions and fund pools.
//
// Every write that has to respect the one-open-session-per-branch rule runs
// inside Atomic, which hands the callback a Store bound to a single
// transaction.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"kasa-backend/internal/models"
)

var (
	ErrNotFound = errors.New("kayıt bulunamadı")
	ErrConflict = errors.New("kayıt çakışması")
)

type Store interface {
	Sessions() SessionRepository
	Funds() FundRepository

	// Atomic runs fn in one transaction. Returning an error rolls back every
	// write made through tx. Calling Atomic on a tx-bound store reuses it.
	Atomic(ctx context.Context, fn func(tx Store) error) error

	// Transactional reports whether Atomic really rolls back. When false the
	// caller has to compensate for partial writes itself.
	Transactional() bool
}

type SessionFilter struct {
	BranchID uint
	Status   models.CashSessionStatus // boşsa hepsi
	From     *time.Time               // opened_at >= From
	To       *time.Time               // opened_at <= To
	Limit    int
}

type SessionRepository interface {
	// LockBranch serializes writers for one branch until the surrounding
	// transaction ends. Outside Atomic it only guards the single call.
	LockBranch(ctx context.Context, branchID uint) error

	// Create fails with ErrConflict when the branch already has an open session.
	Create(ctx context.Context, s *models.CashSession) error
	Get(ctx context.Context, id uint) (*models.CashSession, error)
	GetForUpdate(ctx context.Context, id uint) (*models.CashSession, error)
	FindOpenByBranch(ctx context.Context, branchID uint) (*models.CashSession, error)

	// CloseOpen writes the closing fields of s, but only if the stored row is
	// still open. ErrConflict otherwise.
	CloseOpen(ctx context.Context, s *models.CashSession) error

	// List returns sessions newest first.
	List(ctx context.Context, f SessionFilter) ([]models.CashSession, error)
}

type FundRepository interface {
	// Create fails with ErrConflict on a duplicate (branch, name).
	Create(ctx context.Context, f *models.FundPool) error
	Get(ctx context.Context, id uint) (*models.FundPool, error)
	GetForUpdate(ctx context.Context, id uint) (*models.FundPool, error)

	// ListAvailable returns active funds with money left, ordered by name.
	ListAvailable(ctx context.Context, branchID uint) ([]models.FundPool, error)
	UpdateAvailable(ctx context.Context, id uint, amount int64) error
	SetStatus(ctx context.Context, id uint, status models.FundPoolStatus) error

	CreateAllocation(ctx context.Context, a *models.FundAllocation) error
	GetAllocationForUpdate(ctx context.Context, token uuid.UUID) (*models.FundAllocation, error)
	AttachAllocation(ctx context.Context, token uuid.UUID, sessionID uint) error
	// MarkAllocationReleased fails with ErrConflict if the allocation was already released.
	MarkAllocationReleased(ctx context.Context, token uuid.UUID, at time.Time) error
}
