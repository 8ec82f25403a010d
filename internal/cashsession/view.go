package cashsession

import (
	"context"
	"time"

	"kasa-backend/internal/cashcount"
	"kasa-backend/internal/models"
	"kasa-backend/internal/money"
	"kasa-backend/internal/reconcile"
)

// SessionView is the API shape of a session: amounts as fixed-point strings.
type SessionView struct {
	ID         uint                     `json:"id"`
	BranchID   uint                     `json:"branch_id"`
	Status     models.CashSessionStatus `json:"status"`
	Currency   string                   `json:"currency"`
	FundPoolID *uint                    `json:"fund_pool_id,omitempty"`

	OpenedAt     time.Time        `json:"opened_at"`
	OpenedBy     uint             `json:"opened_by"`
	OpeningCount *cashcount.Count `json:"opening_count,omitempty"`
	OpeningTotal string           `json:"opening_total"`

	ClosedAt       *time.Time          `json:"closed_at,omitempty"`
	ClosedBy       *uint               `json:"closed_by,omitempty"`
	ClosingCount   *cashcount.Count    `json:"closing_count,omitempty"`
	Reconciliation *ReconciliationView `json:"reconciliation,omitempty"`
	Notes          string              `json:"notes,omitempty"`
}

type ReconciliationView struct {
	SalesTotal    string          `json:"sales_total"`
	ExpensesTotal string          `json:"expenses_total"`
	ExpectedTotal string          `json:"expected_total"`
	ActualTotal   string          `json:"actual_total"`
	Variance      string          `json:"variance"`
	VarianceClass reconcile.Class `json:"variance_class"`
}

func NewSessionView(s *models.CashSession, places int32) SessionView {
	v := SessionView{
		ID:           s.ID,
		BranchID:     s.BranchID,
		Status:       s.Status,
		Currency:     s.Currency,
		FundPoolID:   s.FundPoolID,
		OpenedAt:     s.OpenedAt,
		OpenedBy:     s.OpenedBy,
		OpeningCount: s.OpeningCount,
		OpeningTotal: money.String(s.OpeningTotal, places),
		ClosedAt:     s.ClosedAt,
		ClosedBy:     s.ClosedBy,
		ClosingCount: s.ClosingCount,
		Notes:        s.Notes,
	}
	if r, ok := s.Reconciliation(); ok {
		v.Reconciliation = &ReconciliationView{
			SalesTotal:    money.String(s.SalesTotal, places),
			ExpensesTotal: money.String(s.ExpensesTotal, places),
			ExpectedTotal: money.String(r.Expected, places),
			ActualTotal:   money.String(r.Actual, places),
			Variance:      money.String(r.Variance, places),
			VarianceClass: r.Class,
		}
	}
	return v
}

// Summary is the printable closing report: the session plus per-denomination
// lines for both counts.
type Summary struct {
	SessionView
	OpeningLines []LineView `json:"opening_lines"`
	ClosingLines []LineView `json:"closing_lines"`
}

type LineView struct {
	Denomination string `json:"denomination"`
	Quantity     int64  `json:"quantity"`
	Subtotal     string `json:"subtotal"`
}

func lineViews(cur cashcount.Currency, c *cashcount.Count) []LineView {
	out := make([]LineView, 0)
	if c == nil {
		return out
	}
	for _, l := range c.Lines() {
		out = append(out, LineView{
			Denomination: cur.Format(l.Denomination),
			Quantity:     l.Quantity,
			Subtotal:     money.String(l.Subtotal, cur.MinorUnits),
		})
	}
	return out
}

// Summary works for open sessions too; the reconciliation part is then empty.
func (m *Manager) Summary(ctx context.Context, id uint) (*Summary, error) {
	sess, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Summary{
		SessionView:  NewSessionView(sess, m.currency.MinorUnits),
		OpeningLines: lineViews(m.currency, sess.OpeningCount),
		ClosingLines: lineViews(m.currency, sess.ClosingCount),
	}, nil
}
