// Package cashflow reads the sales and expense ledgers a cash session is
// reconciled against. It only sums; it never writes ciro or gider rows.
package cashflow

import (
	"context"
	"errors"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"kasa-backend/internal/models"
)

var ErrUnavailable = errors.New("satış/gider özeti alınamadı")

// Aggregates are minor-unit totals for one branch over a time window.
type Aggregates struct {
	SalesTotal    int64
	ExpensesTotal int64
}

// Net is what the drawer gained over the window.
func (a Aggregates) Net() int64 { return a.SalesTotal - a.ExpensesTotal }

type Reader interface {
	Aggregates(ctx context.Context, branchID uint, since, until time.Time) (Aggregates, error)
}

// GormReader sums the existing ledgers:
//   - satış: nakit ciro girişleri (cash_movements, method=cash, direction=in)
//   - gider: expenses + kasadan nakit çıkışlar (cash_movements, method=cash, direction=out)
//
// Only cash counts; POS and yemeksepeti money never reaches the drawer. The
// window is [since, until): a row stamped exactly at a close belongs to the
// next session.
type GormReader struct {
	db    *gorm.DB
	scale int64
}

func NewGormReader(db *gorm.DB, minorUnits int32) *GormReader {
	return &GormReader{db: db, scale: int64(math.Pow10(int(minorUnits)))}
}

func (r *GormReader) Aggregates(ctx context.Context, branchID uint, since, until time.Time) (Aggregates, error) {
	var sales, cashOut, expenses int64

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.sumMovements(ctx, branchID, models.DirectionIn, since, until, &sales)
	})
	g.Go(func() error {
		return r.sumMovements(ctx, branchID, models.DirectionOut, since, until, &cashOut)
	})
	g.Go(func() error {
		return r.db.WithContext(ctx).
			Model(&models.Expense{}).
			Select("COALESCE(SUM(ROUND(amount::numeric * ?)), 0)::bigint", r.scale).
			Where("branch_id = ? AND created_at >= ? AND created_at < ?", branchID, since, until).
			Scan(&expenses).Error
	})
	if err := g.Wait(); err != nil {
		return Aggregates{}, err
	}

	return Aggregates{SalesTotal: sales, ExpensesTotal: expenses + cashOut}, nil
}

func (r *GormReader) sumMovements(ctx context.Context, branchID uint, direction models.CashDirection, since, until time.Time, dst *int64) error {
	return r.db.WithContext(ctx).
		Model(&models.CashMovement{}).
		Select("COALESCE(SUM(ROUND(amount::numeric * ?)), 0)::bigint", r.scale).
		Where("branch_id = ? AND method = ? AND direction = ? AND created_at >= ? AND created_at < ?",
			branchID, models.CashMethodCash, direction, since, until).
		Scan(dst).Error
}
