// Package memstore is an in-memory store.Store. Transactions are serialized
// and applied by snapshot-and-swap, so a failed Atomic leaves no trace. It is
// the store used by the service and handler tests.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"kasa-backend/internal/models"
	"kasa-backend/internal/store"
)

// Option configures a Store.
type Option func(*Store)

// WithoutTransactions makes Atomic apply writes immediately and keep them on
// error, like a store with no multi-row transactions.
func WithoutTransactions() Option {
	return func(s *Store) { s.nonTx = true }
}

// WithClock overrides time.Now for CreatedAt/UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

type Store struct {
	mu    sync.Mutex
	data  *state
	nonTx bool
	now   func() time.Time

	hookMu              sync.Mutex
	failSessionCreate   error
	failCloseOpen       error
	beforeSessionCreate func()
}

func New(opts ...Option) *Store {
	s := &Store{data: newState(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FailNextSessionCreate makes the next session insert fail with err.
func (s *Store) FailNextSessionCreate(err error) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.failSessionCreate = err
}

// FailNextClose makes the next CloseOpen fail with err.
func (s *Store) FailNextClose(err error) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.failCloseOpen = err
}

// BeforeSessionCreate registers fn to run inside the transaction just before
// a session insert.
func (s *Store) BeforeSessionCreate(fn func()) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.beforeSessionCreate = fn
}

func (s *Store) takeSessionCreateFailure() error {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	err := s.failSessionCreate
	s.failSessionCreate = nil
	if s.beforeSessionCreate != nil {
		s.beforeSessionCreate()
	}
	return err
}

func (s *Store) takeCloseFailure() error {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	err := s.failCloseOpen
	s.failCloseOpen = nil
	return err
}

func (s *Store) Transactional() bool { return !s.nonTx }

func (s *Store) Sessions() store.SessionRepository { return rootSessions{s} }
func (s *Store) Funds() store.FundRepository       { return rootFunds{s} }

func (s *Store) Atomic(ctx context.Context, fn func(tx store.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nonTx {
		return fn(&view{root: s, st: s.data})
	}

	working := s.data.clone()
	if err := fn(&view{root: s, st: working}); err != nil {
		return err
	}
	s.data = working
	return nil
}

// -------------------------------------------------
// state
// -------------------------------------------------

type state struct {
	sessions    map[uint]*models.CashSession
	funds       map[uint]*models.FundPool
	allocations map[uuid.UUID]*models.FundAllocation

	nextSessionID    uint
	nextFundID       uint
	nextAllocationID uint
}

func newState() *state {
	return &state{
		sessions:    make(map[uint]*models.CashSession),
		funds:       make(map[uint]*models.FundPool),
		allocations: make(map[uuid.UUID]*models.FundAllocation),
	}
}

func (st *state) clone() *state {
	cp := &state{
		sessions:         make(map[uint]*models.CashSession, len(st.sessions)),
		funds:            make(map[uint]*models.FundPool, len(st.funds)),
		allocations:      make(map[uuid.UUID]*models.FundAllocation, len(st.allocations)),
		nextSessionID:    st.nextSessionID,
		nextFundID:       st.nextFundID,
		nextAllocationID: st.nextAllocationID,
	}
	for id, sess := range st.sessions {
		cp.sessions[id] = sess.Clone()
	}
	for id, f := range st.funds {
		v := *f
		cp.funds[id] = &v
	}
	for tok, a := range st.allocations {
		cp.allocations[tok] = cloneAllocation(a)
	}
	return cp
}

func cloneAllocation(a *models.FundAllocation) *models.FundAllocation {
	v := *a
	if a.CashSessionID != nil {
		id := *a.CashSessionID
		v.CashSessionID = &id
	}
	if a.ReleasedAt != nil {
		at := *a.ReleasedAt
		v.ReleasedAt = &at
	}
	return &v
}

// view is a Store bound to one transaction's working state.
type view struct {
	root *Store
	st   *state
}

func (v *view) Sessions() store.SessionRepository { return txSessions{v} }
func (v *view) Funds() store.FundRepository       { return txFunds{v} }
func (v *view) Transactional() bool               { return v.root.Transactional() }

func (v *view) Atomic(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(v)
}

// -------------------------------------------------
// sessions (transaction view)
// -------------------------------------------------

type txSessions struct{ v *view }

func (r txSessions) LockBranch(ctx context.Context, branchID uint) error {
	// Atomic zaten tüm yazmaları sıraya koyuyor.
	return ctx.Err()
}

func (r txSessions) Create(ctx context.Context, s *models.CashSession) error {
	if err := r.v.root.takeSessionCreateFailure(); err != nil {
		return err
	}
	if s.Status == models.CashSessionOpen {
		for _, existing := range r.v.st.sessions {
			if existing.BranchID == s.BranchID && existing.Status == models.CashSessionOpen {
				return fmt.Errorf("%w: şube %d için açık oturum var", store.ErrConflict, s.BranchID)
			}
		}
	}
	r.v.st.nextSessionID++
	now := r.v.root.now()
	s.ID = r.v.st.nextSessionID
	s.CreatedAt = now
	s.UpdatedAt = now
	r.v.st.sessions[s.ID] = s.Clone()
	return nil
}

func (r txSessions) Get(ctx context.Context, id uint) (*models.CashSession, error) {
	s, ok := r.v.st.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.Clone(), nil
}

func (r txSessions) GetForUpdate(ctx context.Context, id uint) (*models.CashSession, error) {
	return r.Get(ctx, id)
}

func (r txSessions) FindOpenByBranch(ctx context.Context, branchID uint) (*models.CashSession, error) {
	for _, s := range r.v.st.sessions {
		if s.BranchID == branchID && s.Status == models.CashSessionOpen {
			return s.Clone(), nil
		}
	}
	return nil, store.ErrNotFound
}

func (r txSessions) CloseOpen(ctx context.Context, s *models.CashSession) error {
	if err := r.v.root.takeCloseFailure(); err != nil {
		return err
	}
	cur, ok := r.v.st.sessions[s.ID]
	if !ok {
		return store.ErrNotFound
	}
	if cur.Status != models.CashSessionOpen {
		return fmt.Errorf("%w: oturum %d açık değil", store.ErrConflict, s.ID)
	}
	next := cur.Clone()
	next.Status = s.Status
	if s.ClosingCount != nil {
		next.ClosingCount = s.ClosingCount.Clone()
	}
	next.SalesTotal = s.SalesTotal
	next.ExpensesTotal = s.ExpensesTotal
	next.ExpectedTotal = s.ExpectedTotal
	next.ActualTotal = s.ActualTotal
	next.Variance = s.Variance
	next.VarianceClass = s.VarianceClass
	next.ClosedAt = s.ClosedAt
	next.ClosedBy = s.ClosedBy
	next.Notes = s.Notes
	next.UpdatedAt = r.v.root.now()
	r.v.st.sessions[s.ID] = next.Clone()
	return nil
}

func (r txSessions) List(ctx context.Context, f store.SessionFilter) ([]models.CashSession, error) {
	out := make([]models.CashSession, 0)
	for _, s := range r.v.st.sessions {
		if s.BranchID != f.BranchID {
			continue
		}
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		if f.From != nil && s.OpenedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && s.OpenedAt.After(*f.To) {
			continue
		}
		out = append(out, *s.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].OpenedAt.After(out[j].OpenedAt)
		}
		return out[i].ID > out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// -------------------------------------------------
// funds (transaction view)
// -------------------------------------------------

type txFunds struct{ v *view }

func (r txFunds) Create(ctx context.Context, f *models.FundPool) error {
	for _, existing := range r.v.st.funds {
		if existing.BranchID == f.BranchID && existing.Name == f.Name {
			return fmt.Errorf("%w: fon adı %q kullanılıyor", store.ErrConflict, f.Name)
		}
	}
	r.v.st.nextFundID++
	now := r.v.root.now()
	f.ID = r.v.st.nextFundID
	f.CreatedAt = now
	f.UpdatedAt = now
	v := *f
	r.v.st.funds[f.ID] = &v
	return nil
}

func (r txFunds) Get(ctx context.Context, id uint) (*models.FundPool, error) {
	f, ok := r.v.st.funds[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	v := *f
	return &v, nil
}

func (r txFunds) GetForUpdate(ctx context.Context, id uint) (*models.FundPool, error) {
	return r.Get(ctx, id)
}

func (r txFunds) ListAvailable(ctx context.Context, branchID uint) ([]models.FundPool, error) {
	out := make([]models.FundPool, 0)
	for _, f := range r.v.st.funds {
		if f.BranchID == branchID && f.Status == models.FundPoolActive && f.AvailableAmount > 0 {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r txFunds) UpdateAvailable(ctx context.Context, id uint, amount int64) error {
	f, ok := r.v.st.funds[id]
	if !ok {
		return store.ErrNotFound
	}
	if amount < 0 {
		// chk_fund_pools_available_non_negative karşılığı
		return errors.New("memstore: available_amount negatif olamaz")
	}
	f.AvailableAmount = amount
	f.UpdatedAt = r.v.root.now()
	return nil
}

func (r txFunds) SetStatus(ctx context.Context, id uint, status models.FundPoolStatus) error {
	f, ok := r.v.st.funds[id]
	if !ok {
		return store.ErrNotFound
	}
	f.Status = status
	f.UpdatedAt = r.v.root.now()
	return nil
}

func (r txFunds) CreateAllocation(ctx context.Context, a *models.FundAllocation) error {
	if _, exists := r.v.st.allocations[a.Token]; exists {
		return fmt.Errorf("%w: token %s", store.ErrConflict, a.Token)
	}
	r.v.st.nextAllocationID++
	a.ID = r.v.st.nextAllocationID
	a.CreatedAt = r.v.root.now()
	r.v.st.allocations[a.Token] = cloneAllocation(a)
	return nil
}

func (r txFunds) GetAllocationForUpdate(ctx context.Context, token uuid.UUID) (*models.FundAllocation, error) {
	a, ok := r.v.st.allocations[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneAllocation(a), nil
}

func (r txFunds) AttachAllocation(ctx context.Context, token uuid.UUID, sessionID uint) error {
	a, ok := r.v.st.allocations[token]
	if !ok {
		return store.ErrNotFound
	}
	a.CashSessionID = &sessionID
	return nil
}

func (r txFunds) MarkAllocationReleased(ctx context.Context, token uuid.UUID, at time.Time) error {
	a, ok := r.v.st.allocations[token]
	if !ok {
		return store.ErrNotFound
	}
	if a.Status != models.FundAllocationAllocated {
		return fmt.Errorf("%w: tahsis zaten iade edilmiş", store.ErrConflict)
	}
	a.Status = models.FundAllocationReleased
	a.ReleasedAt = &at
	return nil
}
