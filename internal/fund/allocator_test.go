package fund

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kasa-backend/internal/models"
	"kasa-backend/internal/store/memstore"
)

func setupAllocator(t *testing.T) (*Allocator, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	return NewAllocator(st, nil), st
}

func createFund(t *testing.T, a *Allocator, branchID uint, name string, amount int64) *models.FundPool {
	t.Helper()
	f, err := a.Create(context.Background(), CreateRequest{
		BranchID:        branchID,
		Name:            name,
		Currency:        "TRY",
		AvailableAmount: amount,
	})
	require.NoError(t, err)
	return f
}

func available(t *testing.T, a *Allocator, id uint) int64 {
	t.Helper()
	f, err := a.Get(context.Background(), id)
	require.NoError(t, err)
	return f.AvailableAmount
}

func TestAllocator_ListAvailable(t *testing.T) {
	ctx := context.Background()
	a, _ := setupAllocator(t)

	createFund(t, a, 1, "Yedek Kasa", 50000)
	createFund(t, a, 1, "Caja Principal", 200000)
	createFund(t, a, 1, "Boş Fon", 0)
	inactive := createFund(t, a, 1, "Eski Fon", 10000)
	createFund(t, a, 2, "Başka Şube", 10000)

	_, _, err := a.SetStatus(ctx, inactive.ID, models.FundPoolInactive)
	require.NoError(t, err)

	funds, err := a.ListAvailable(ctx, 1)
	require.NoError(t, err)
	require.Len(t, funds, 2)
	assert.Equal(t, "Caja Principal", funds[0].Name)
	assert.Equal(t, "Yedek Kasa", funds[1].Name)
}

func TestAllocator_Allocate(t *testing.T) {
	ctx := context.Background()

	t.Run("decrements available amount", func(t *testing.T) {
		a, _ := setupAllocator(t)
		f := createFund(t, a, 1, "Caja Principal", 200000)

		alloc, err := a.Allocate(ctx, nil, f.ID, 1, 150000)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, alloc.Token)
		assert.Equal(t, int64(150000), alloc.Amount)
		assert.Equal(t, f.ID, alloc.FundID)
		assert.Equal(t, int64(50000), available(t, a, f.ID))
	})

	t.Run("insufficient funds leaves balance unchanged", func(t *testing.T) {
		a, _ := setupAllocator(t)
		f := createFund(t, a, 1, "Küçük Fon", 30000)

		_, err := a.Allocate(ctx, nil, f.ID, 1, 50000)
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.Equal(t, int64(30000), available(t, a, f.ID))
	})

	t.Run("inactive fund", func(t *testing.T) {
		a, _ := setupAllocator(t)
		f := createFund(t, a, 1, "Kapalı Fon", 30000)
		_, _, err := a.SetStatus(ctx, f.ID, models.FundPoolInactive)
		require.NoError(t, err)

		_, err = a.Allocate(ctx, nil, f.ID, 1, 100)
		assert.ErrorIs(t, err, ErrFundInactive)
		assert.Equal(t, int64(30000), available(t, a, f.ID))
	})

	t.Run("other branch cannot see the fund", func(t *testing.T) {
		a, _ := setupAllocator(t)
		f := createFund(t, a, 1, "Caja Principal", 30000)

		_, err := a.Allocate(ctx, nil, f.ID, 2, 100)
		assert.ErrorIs(t, err, ErrFundNotFound)
	})

	t.Run("unknown fund", func(t *testing.T) {
		a, _ := setupAllocator(t)
		_, err := a.Allocate(ctx, nil, 42, 1, 100)
		assert.ErrorIs(t, err, ErrFundNotFound)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		a, _ := setupAllocator(t)
		f := createFund(t, a, 1, "Caja Principal", 30000)
		_, err := a.Allocate(ctx, nil, f.ID, 1, 0)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestAllocator_AllocateAll(t *testing.T) {
	ctx := context.Background()
	a, _ := setupAllocator(t)
	f := createFund(t, a, 1, "Caja Principal", 200000)

	alloc, err := a.AllocateAll(ctx, nil, f.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(200000), alloc.Amount)
	assert.Zero(t, available(t, a, f.ID))

	_, err = a.AllocateAll(ctx, nil, f.ID, 1)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestAllocator_Release(t *testing.T) {
	ctx := context.Background()

	t.Run("restores the pre-allocation amount", func(t *testing.T) {
		a, _ := setupAllocator(t)
		f := createFund(t, a, 1, "Caja Principal", 200000)

		alloc, err := a.Allocate(ctx, nil, f.ID, 1, 120000)
		require.NoError(t, err)
		require.NoError(t, a.Release(ctx, nil, alloc.Token, alloc.Amount))
		assert.Equal(t, int64(200000), available(t, a, f.ID))
	})

	t.Run("second release is rejected", func(t *testing.T) {
		a, _ := setupAllocator(t)
		f := createFund(t, a, 1, "Caja Principal", 200000)

		alloc, err := a.Allocate(ctx, nil, f.ID, 1, 120000)
		require.NoError(t, err)
		require.NoError(t, a.Release(ctx, nil, alloc.Token, alloc.Amount))

		err = a.Release(ctx, nil, alloc.Token, alloc.Amount)
		assert.ErrorIs(t, err, ErrAllocationReleased)
		assert.Equal(t, int64(200000), available(t, a, f.ID))
	})

	t.Run("amount must match the allocation", func(t *testing.T) {
		a, _ := setupAllocator(t)
		f := createFund(t, a, 1, "Caja Principal", 200000)

		alloc, err := a.Allocate(ctx, nil, f.ID, 1, 120000)
		require.NoError(t, err)

		err = a.Release(ctx, nil, alloc.Token, 999)
		assert.ErrorIs(t, err, ErrInvalidAmount)
		assert.Equal(t, int64(80000), available(t, a, f.ID))
	})

	t.Run("unknown token", func(t *testing.T) {
		a, _ := setupAllocator(t)
		err := a.Release(ctx, nil, uuid.New(), 100)
		assert.ErrorIs(t, err, ErrAllocationNotFound)
	})
}

func TestAllocator_Create(t *testing.T) {
	ctx := context.Background()
	a, _ := setupAllocator(t)

	createFund(t, a, 1, "Caja Principal", 100)

	_, err := a.Create(ctx, CreateRequest{BranchID: 1, Name: "Caja Principal", Currency: "TRY"})
	assert.ErrorIs(t, err, ErrDuplicateName)

	_, err = a.Create(ctx, CreateRequest{BranchID: 1, Name: "  ", Currency: "TRY"})
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = a.Create(ctx, CreateRequest{BranchID: 1, Name: "Eksi", Currency: "TRY", AvailableAmount: -1})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestAllocator_SetStatus(t *testing.T) {
	ctx := context.Background()
	a, _ := setupAllocator(t)
	f := createFund(t, a, 1, "Caja Principal", 100)

	before, after, err := a.SetStatus(ctx, f.ID, models.FundPoolInactive)
	require.NoError(t, err)
	assert.Equal(t, models.FundPoolActive, before.Status)
	assert.Equal(t, models.FundPoolInactive, after.Status)

	_, _, err = a.SetStatus(ctx, f.ID, "paused")
	assert.Error(t, err)

	_, _, err = a.SetStatus(ctx, 99, models.FundPoolActive)
	assert.ErrorIs(t, err, ErrFundNotFound)
}
