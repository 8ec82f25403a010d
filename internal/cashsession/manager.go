// Package cashsession runs the open → closed lifecycle of a branch's cash
// drawer. A branch has at most one open session; closing one counts the
// drawer, pulls the day's sales and expenses once, and freezes the
// reconciliation on the session row.
package cashsession

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"kasa-backend/internal/cashcount"
	"kasa-backend/internal/cashflow"
	"kasa-backend/internal/fund"
	"kasa-backend/internal/lock"
	"kasa-backend/internal/models"
	"kasa-backend/internal/reconcile"
	"kasa-backend/internal/store"
)

const (
	maxNotesLength      = 500
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type Manager struct {
	store    store.Store
	funds    *fund.Allocator
	ledger   cashflow.Reader
	locker   lock.Locker
	policy   reconcile.Policy
	currency cashcount.Currency
	logger   *zap.Logger
	now      func() time.Time
}

type Option func(*Manager)

func WithLocker(l lock.Locker) Option { return func(m *Manager) { m.locker = l } }

func WithLogger(l *zap.Logger) Option { return func(m *Manager) { m.logger = l } }

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func NewManager(
	st store.Store,
	funds *fund.Allocator,
	ledger cashflow.Reader,
	policy reconcile.Policy,
	currency cashcount.Currency,
	opts ...Option,
) *Manager {
	m := &Manager{
		store:    st,
		funds:    funds,
		ledger:   ledger,
		locker:   lock.NewLocal(),
		policy:   policy,
		currency: currency,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Currency() cashcount.Currency { return m.currency }

// OpenRequest seeds a session either with a counted float (OpeningCount) or
// with money taken from a fund pool (FundPoolID), never both.
type OpenRequest struct {
	BranchID     uint
	OpeningCount *cashcount.Count
	FundPoolID   *uint
	FundAmount   *int64 // nil: fonun tamamı
	OpenedBy     uint
}

func (m *Manager) validateOpen(req OpenRequest) error {
	switch {
	case req.BranchID == 0:
		return fmt.Errorf("%w: şube zorunlu", ErrInvalidOpening)
	case req.OpenedBy == 0:
		return fmt.Errorf("%w: açan kullanıcı zorunlu", ErrInvalidOpening)
	case req.OpeningCount == nil && req.FundPoolID == nil:
		return fmt.Errorf("%w: açılış sayımı veya kasa fonu gerekli", ErrInvalidOpening)
	case req.OpeningCount != nil && req.FundPoolID != nil:
		return fmt.Errorf("%w: açılış sayımı ve kasa fonu birlikte verilemez", ErrInvalidOpening)
	case req.FundAmount != nil && req.FundPoolID == nil:
		return fmt.Errorf("%w: fon tutarı fon olmadan verilemez", ErrInvalidOpening)
	}
	if req.OpeningCount != nil && req.OpeningCount.Currency().Code != m.currency.Code {
		return fmt.Errorf("%w: açılış %s, kasa %s", cashcount.ErrCurrencyMismatch,
			req.OpeningCount.Currency().Code, m.currency.Code)
	}
	return nil
}

// Open creates the branch's open session. The fund allocation, the "no other
// open session" check and the insert share one transaction; on a store that
// cannot roll back, a failed opening gives the allocation back.
func (m *Manager) Open(ctx context.Context, req OpenRequest) (*models.CashSession, error) {
	if err := m.validateOpen(req); err != nil {
		return nil, err
	}

	var (
		created *models.CashSession
		alloc   *fund.Allocation
	)
	err := m.locker.WithLock(ctx, lock.BranchKey(req.BranchID), func(ctx context.Context) error {
		return m.store.Atomic(ctx, func(tx store.Store) error {
			alloc = nil

			if err := tx.Sessions().LockBranch(ctx, req.BranchID); err != nil {
				return fmt.Errorf("şube kilitlenemedi: %w", err)
			}
			existing, err := tx.Sessions().FindOpenByBranch(ctx, req.BranchID)
			switch {
			case err == nil:
				return fmt.Errorf("%w: oturum %d", ErrSessionAlreadyOpen, existing.ID)
			case !errors.Is(err, store.ErrNotFound):
				return fmt.Errorf("açık kasa kontrol edilemedi: %w", err)
			}

			sess := &models.CashSession{
				BranchID: req.BranchID,
				Status:   models.CashSessionOpen,
				Currency: m.currency.Code,
				OpenedAt: m.now(),
				OpenedBy: req.OpenedBy,
			}

			if req.FundPoolID != nil {
				var a fund.Allocation
				if req.FundAmount != nil {
					a, err = m.funds.Allocate(ctx, tx, *req.FundPoolID, req.BranchID, *req.FundAmount)
				} else {
					a, err = m.funds.AllocateAll(ctx, tx, *req.FundPoolID, req.BranchID)
				}
				if err != nil {
					return err
				}
				alloc = &a
				sess.FundPoolID = &a.FundID
				sess.FundAllocationToken = &a.Token
				sess.OpeningTotal = a.Amount
			} else {
				sess.OpeningCount = req.OpeningCount.Clone()
				sess.OpeningTotal = sess.OpeningCount.Total()
			}

			if err := tx.Sessions().Create(ctx, sess); err != nil {
				if errors.Is(err, store.ErrConflict) {
					return fmt.Errorf("%w: %v", ErrSessionAlreadyOpen, err)
				}
				return fmt.Errorf("kasa oturumu kaydedilemedi: %w", err)
			}
			if alloc != nil {
				if err := tx.Funds().AttachAllocation(ctx, alloc.Token, sess.ID); err != nil {
					return fmt.Errorf("fon tahsisi oturuma bağlanamadı: %w", err)
				}
			}

			created = sess
			return nil
		})
	})
	if err != nil {
		if alloc != nil && !m.store.Transactional() {
			m.compensate(ctx, *alloc, err)
		}
		return nil, err
	}

	m.logger.Info("kasa açıldı",
		zap.Uint("session_id", created.ID),
		zap.Uint("branch_id", created.BranchID),
		zap.Int64("opening_total", created.OpeningTotal),
		zap.Bool("from_fund", created.FundPoolID != nil),
		zap.Uint("opened_by", created.OpenedBy),
	)
	return created.Clone(), nil
}

func (m *Manager) compensate(ctx context.Context, alloc fund.Allocation, cause error) {
	err := m.funds.Release(context.WithoutCancel(ctx), nil, alloc.Token, alloc.Amount)
	if err != nil {
		m.logger.Error("fon tahsisi geri alınamadı",
			zap.String("token", alloc.Token.String()),
			zap.Uint("fund_pool_id", alloc.FundID),
			zap.Int64("amount", alloc.Amount),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
		return
	}
	m.logger.Warn("kasa açılamadı, fon tahsisi iade edildi",
		zap.String("token", alloc.Token.String()),
		zap.Uint("fund_pool_id", alloc.FundID),
		zap.NamedError("cause", cause),
	)
}

type CloseRequest struct {
	SessionID    uint
	ClosingCount *cashcount.Count
	ClosedBy     uint
	Notes        string
}

func (m *Manager) validateClose(req CloseRequest) error {
	switch {
	case req.SessionID == 0:
		return fmt.Errorf("%w: oturum zorunlu", ErrInvalidClosing)
	case req.ClosedBy == 0:
		return fmt.Errorf("%w: kapatan kullanıcı zorunlu", ErrInvalidClosing)
	case req.ClosingCount == nil:
		return fmt.Errorf("%w: kapanış sayımı zorunlu", ErrInvalidClosing)
	case len([]rune(req.Notes)) > maxNotesLength:
		return fmt.Errorf("%w: not en fazla %d karakter olabilir", ErrInvalidClosing, maxNotesLength)
	}
	if req.ClosingCount.Currency().Code != m.currency.Code {
		return fmt.Errorf("%w: kapanış %s, kasa %s", cashcount.ErrCurrencyMismatch,
			req.ClosingCount.Currency().Code, m.currency.Code)
	}
	return nil
}

// Close reconciles and closes an open session. The sales/expense snapshot is
// taken once, under the branch lock but outside the transaction; if it cannot
// be read the session stays open and ErrAggregateUnavailable is returned. Of
// several concurrent closes exactly one wins, the rest get
// ErrSessionAlreadyClosed.
//
// The window end is sampled after the branch lock is held, so the next Open on
// the branch (which waits for the same lock) always starts at or after it.
func (m *Manager) Close(ctx context.Context, req CloseRequest) (*models.CashSession, error) {
	if err := m.validateClose(req); err != nil {
		return nil, err
	}

	sess, err := m.Get(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if !sess.IsOpen() {
		return nil, ErrSessionAlreadyClosed
	}

	var closed *models.CashSession
	err = m.locker.WithLock(ctx, lock.BranchKey(sess.BranchID), func(ctx context.Context) error {
		// kilidi beklerken başka bir istek kapatmış olabilir
		latest, err := m.Get(ctx, req.SessionID)
		if err != nil {
			return err
		}
		if !latest.IsOpen() {
			return ErrSessionAlreadyClosed
		}

		closedAt := m.now()
		agg, err := m.ledger.Aggregates(ctx, sess.BranchID, sess.OpenedAt, closedAt)
		if err != nil {
			m.logger.Warn("kasa kapatılamadı, özet alınamadı",
				zap.Uint("session_id", sess.ID),
				zap.Uint("branch_id", sess.BranchID),
				zap.Error(err),
			)
			return fmt.Errorf("%w: %w", ErrAggregateUnavailable, err)
		}

		return m.store.Atomic(ctx, func(tx store.Store) error {
			if err := tx.Sessions().LockBranch(ctx, sess.BranchID); err != nil {
				return fmt.Errorf("şube kilitlenemedi: %w", err)
			}
			cur, err := tx.Sessions().GetForUpdate(ctx, req.SessionID)
			if errors.Is(err, store.ErrNotFound) {
				return ErrSessionNotFound
			}
			if err != nil {
				return fmt.Errorf("kasa oturumu okunamadı: %w", err)
			}
			if !cur.IsOpen() {
				return ErrSessionAlreadyClosed
			}

			expected := cur.OpeningTotal + agg.SalesTotal - agg.ExpensesTotal
			result := m.policy.Reconcile(expected, req.ClosingCount.Total())

			cur.Status = models.CashSessionClosed
			cur.ClosingCount = req.ClosingCount.Clone()
			cur.SalesTotal = agg.SalesTotal
			cur.ExpensesTotal = agg.ExpensesTotal
			cur.ExpectedTotal = result.Expected
			cur.ActualTotal = result.Actual
			cur.Variance = result.Variance
			cur.VarianceClass = result.Class
			cur.ClosedAt = &closedAt
			closedBy := req.ClosedBy
			cur.ClosedBy = &closedBy
			cur.Notes = req.Notes

			if err := tx.Sessions().CloseOpen(ctx, cur); err != nil {
				if errors.Is(err, store.ErrConflict) {
					return ErrSessionAlreadyClosed
				}
				return fmt.Errorf("kasa kapanışı kaydedilemedi: %w", err)
			}
			closed = cur
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("kasa kapandı",
		zap.Uint("session_id", closed.ID),
		zap.Uint("branch_id", closed.BranchID),
		zap.Int64("expected_total", closed.ExpectedTotal),
		zap.Int64("actual_total", closed.ActualTotal),
		zap.Int64("variance", closed.Variance),
		zap.String("variance_class", string(closed.VarianceClass)),
	)
	return closed.Clone(), nil
}

// -------------------------------------------------
// Okuma (rapor) tarafı
// -------------------------------------------------

func (m *Manager) Get(ctx context.Context, id uint) (*models.CashSession, error) {
	sess, err := m.store.Sessions().Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kasa oturumu okunamadı: %w", err)
	}
	return sess, nil
}

// Current returns the branch's open session, or ErrSessionNotFound.
func (m *Manager) Current(ctx context.Context, branchID uint) (*models.CashSession, error) {
	sess, err := m.store.Sessions().FindOpenByBranch(ctx, branchID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("açık kasa okunamadı: %w", err)
	}
	return sess, nil
}

type HistoryQuery struct {
	BranchID uint
	From     *time.Time
	To       *time.Time
	Limit    int
}

// History lists closed sessions, newest first.
func (m *Manager) History(ctx context.Context, q HistoryQuery) ([]models.CashSession, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	out, err := m.store.Sessions().List(ctx, store.SessionFilter{
		BranchID: q.BranchID,
		Status:   models.CashSessionClosed,
		From:     q.From,
		To:       q.To,
		Limit:    limit,
	})
	if err != nil {
		return nil, fmt.Errorf("kasa geçmişi okunamadı: %w", err)
	}
	return out, nil
}
