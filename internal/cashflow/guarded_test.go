package cashflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockReader struct {
	mock.Mock
}

func (m *MockReader) Aggregates(ctx context.Context, branchID uint, since, until time.Time) (Aggregates, error) {
	args := m.Called(ctx, branchID, since, until)
	return args.Get(0).(Aggregates), args.Error(1)
}

type slowReader struct{}

func (slowReader) Aggregates(ctx context.Context, _ uint, _, _ time.Time) (Aggregates, error) {
	<-ctx.Done()
	return Aggregates{}, ctx.Err()
}

func TestAggregates_Net(t *testing.T) {
	assert.Equal(t, int64(480000), Aggregates{SalesTotal: 500000, ExpensesTotal: 20000}.Net())
}

func TestGuarded_PassesThrough(t *testing.T) {
	since := time.Date(2025, 12, 9, 8, 0, 0, 0, time.UTC)
	until := since.Add(10 * time.Hour)

	r := new(MockReader)
	r.On("Aggregates", mock.Anything, uint(1), since, until).
		Return(Aggregates{SalesTotal: 500000, ExpensesTotal: 20000}, nil).Once()

	g := NewGuarded(r, DefaultGuardConfig(), nil)
	got, err := g.Aggregates(context.Background(), 1, since, until)

	require.NoError(t, err)
	assert.Equal(t, int64(500000), got.SalesTotal)
	assert.Equal(t, int64(20000), got.ExpensesTotal)
	r.AssertExpectations(t)
}

func TestGuarded_WrapsFailures(t *testing.T) {
	r := new(MockReader)
	r.On("Aggregates", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(Aggregates{}, errors.New("connection refused")).Once()

	g := NewGuarded(r, DefaultGuardConfig(), nil)
	_, err := g.Aggregates(context.Background(), 1, time.Now(), time.Now())

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestGuarded_Timeout(t *testing.T) {
	cfg := DefaultGuardConfig()
	cfg.Timeout = 20 * time.Millisecond
	g := NewGuarded(slowReader{}, cfg, nil)

	start := time.Now()
	_, err := g.Aggregates(context.Background(), 1, time.Now(), time.Now())

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Less(t, time.Since(start), time.Second)
}

func TestGuarded_OpensAfterConsecutiveFailures(t *testing.T) {
	r := new(MockReader)
	r.On("Aggregates", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(Aggregates{}, errors.New("db down")).Times(2)

	cfg := GuardConfig{Timeout: time.Second, MaxFailures: 2, OpenTimeout: time.Minute}
	g := NewGuarded(r, cfg, nil)

	for i := 0; i < 2; i++ {
		_, err := g.Aggregates(context.Background(), 1, time.Now(), time.Now())
		require.ErrorIs(t, err, ErrUnavailable)
	}
	assert.Equal(t, gobreaker.StateOpen, g.State())

	// açık devre alttaki okuyucuyu çağırmaz
	_, err := g.Aggregates(context.Background(), 1, time.Now(), time.Now())
	assert.ErrorIs(t, err, ErrUnavailable)
	r.AssertNumberOfCalls(t, "Aggregates", 2)
}
