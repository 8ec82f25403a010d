package cashsession

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"kasa-backend/internal/audit"
	"kasa-backend/internal/auth"
	"kasa-backend/internal/cashcount"
	"kasa-backend/internal/models"
	"kasa-backend/internal/money"
)

type OpenSessionRequest struct {
	BranchID     *uint            `json:"branch_id"` // sadece super_admin için
	OpeningCount map[string]int64 `json:"opening_count"`
	FundPoolID   *uint            `json:"fund_pool_id"`
	FundAmount   *string          `json:"fund_amount"` // boşsa fonun tamamı
}

type CloseSessionRequest struct {
	ClosingCount map[string]int64 `json:"closing_count"`
	Notes        string           `json:"notes"`
}

// -------------------------------------------------
// POST /api/cash-sessions/open
// -------------------------------------------------

func OpenSessionHandler(mgr *Manager, aud audit.Writer, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body OpenSessionRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		branchID, err := auth.ResolveBranch(c, body.BranchID)
		if err != nil {
			return err
		}

		req := OpenRequest{
			BranchID:   branchID,
			FundPoolID: body.FundPoolID,
			OpenedBy:   id.UserID,
		}
		if body.OpeningCount != nil {
			cnt, err := cashcount.FromMap(mgr.Currency(), body.OpeningCount)
			if err != nil {
				return HTTPError(log, err)
			}
			req.OpeningCount = cnt
		}
		if body.FundAmount != nil && strings.TrimSpace(*body.FundAmount) != "" {
			amount, err := money.ParseNonNegative(*body.FundAmount, mgr.Currency().MinorUnits)
			if err != nil {
				return HTTPError(log, err)
			}
			req.FundAmount = &amount
		}

		sess, err := mgr.Open(c.UserContext(), req)
		if err != nil {
			return HTTPError(log, err)
		}

		view := NewSessionView(sess, mgr.Currency().MinorUnits)
		audit.Record(c.UserContext(), aud, log, audit.Entry{
			BranchID:    &sess.BranchID,
			UserID:      id.UserID,
			UserName:    id.Name,
			EntityType:  models.AuditEntityCashSession,
			EntityID:    sess.ID,
			Action:      models.AuditActionOpen,
			Description: fmt.Sprintf("Kasa açıldı: %s %s", view.OpeningTotal, sess.Currency),
			After:       view,
		})

		return c.Status(fiber.StatusCreated).JSON(view)
	}
}

// -------------------------------------------------
// POST /api/cash-sessions/:id/close
// -------------------------------------------------

func CloseSessionHandler(mgr *Manager, aud audit.Writer, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID, err := sessionIDParam(c)
		if err != nil {
			return err
		}

		var body CloseSessionRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}
		if body.ClosingCount == nil {
			return fiber.NewError(fiber.StatusBadRequest, "closing_count zorunlu")
		}

		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}

		// Başka şubenin kasası yokmuş gibi davran
		before, err := mgr.Get(c.UserContext(), sessionID)
		if err != nil {
			return HTTPError(log, err)
		}
		if !auth.CanAccessBranch(c, before.BranchID) {
			return HTTPError(log, ErrSessionNotFound)
		}

		cnt, err := cashcount.FromMap(mgr.Currency(), body.ClosingCount)
		if err != nil {
			return HTTPError(log, err)
		}

		closed, err := mgr.Close(c.UserContext(), CloseRequest{
			SessionID:    sessionID,
			ClosingCount: cnt,
			ClosedBy:     id.UserID,
			Notes:        strings.TrimSpace(body.Notes),
		})
		if err != nil {
			return HTTPError(log, err)
		}

		places := mgr.Currency().MinorUnits
		view := NewSessionView(closed, places)
		audit.Record(c.UserContext(), aud, log, audit.Entry{
			BranchID:   &closed.BranchID,
			UserID:     id.UserID,
			UserName:   id.Name,
			EntityType: models.AuditEntityCashSession,
			EntityID:   closed.ID,
			Action:     models.AuditActionClose,
			Description: fmt.Sprintf("Kasa kapandı: beklenen %s, sayılan %s, fark %s (%s)",
				view.Reconciliation.ExpectedTotal, view.Reconciliation.ActualTotal,
				view.Reconciliation.Variance, closed.VarianceClass),
			Before: NewSessionView(before, places),
			After:  view,
		})

		return c.JSON(view)
	}
}

// -------------------------------------------------
// GET /api/cash-sessions/current
// -------------------------------------------------

func CurrentSessionHandler(mgr *Manager, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		branchID, err := auth.ResolveBranch(c, nil)
		if err != nil {
			return err
		}
		sess, err := mgr.Current(c.UserContext(), branchID)
		if err != nil {
			return HTTPError(log, err)
		}
		return c.JSON(NewSessionView(sess, mgr.Currency().MinorUnits))
	}
}

// -------------------------------------------------
// GET /api/cash-sessions?from=2025-01-01&to=2025-01-31&limit=50
// -------------------------------------------------

func ListSessionsHandler(mgr *Manager, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		branchID, err := auth.ResolveBranch(c, nil)
		if err != nil {
			return err
		}

		q := HistoryQuery{BranchID: branchID, Limit: c.QueryInt("limit", 0)}
		if s := c.Query("from"); s != "" {
			from, err := time.Parse("2006-01-02", s)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Geçersiz from tarihi (YYYY-MM-DD)")
			}
			q.From = &from
		}
		if s := c.Query("to"); s != "" {
			to, err := time.Parse("2006-01-02", s)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Geçersiz to tarihi (YYYY-MM-DD)")
			}
			// gün sonuna kadar dahil
			end := to.AddDate(0, 0, 1).Add(-time.Nanosecond)
			q.To = &end
		}

		sessions, err := mgr.History(c.UserContext(), q)
		if err != nil {
			return HTTPError(log, err)
		}

		resp := make([]SessionView, 0, len(sessions))
		for i := range sessions {
			resp = append(resp, NewSessionView(&sessions[i], mgr.Currency().MinorUnits))
		}
		return c.JSON(resp)
	}
}

// -------------------------------------------------
// GET /api/cash-sessions/:id
// -------------------------------------------------

func GetSessionHandler(mgr *Manager, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID, err := sessionIDParam(c)
		if err != nil {
			return err
		}
		sess, err := mgr.Get(c.UserContext(), sessionID)
		if err != nil {
			return HTTPError(log, err)
		}
		if !auth.CanAccessBranch(c, sess.BranchID) {
			return HTTPError(log, ErrSessionNotFound)
		}
		return c.JSON(NewSessionView(sess, mgr.Currency().MinorUnits))
	}
}

// -------------------------------------------------
// GET /api/cash-sessions/:id/summary
// -------------------------------------------------

func SessionSummaryHandler(mgr *Manager, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID, err := sessionIDParam(c)
		if err != nil {
			return err
		}
		sum, err := mgr.Summary(c.UserContext(), sessionID)
		if err != nil {
			return HTTPError(log, err)
		}
		if !auth.CanAccessBranch(c, sum.BranchID) {
			return HTTPError(log, ErrSessionNotFound)
		}
		return c.JSON(sum)
	}
}

// -------------------------------------------------
// GET /api/denominations
// -------------------------------------------------

type DenominationsResponse struct {
	Currency      string   `json:"currency"`
	MinorUnits    int32    `json:"minor_units"`
	Denominations []string `json:"denominations"`
}

func DenominationsHandler(cur cashcount.Currency) fiber.Handler {
	resp := DenominationsResponse{
		Currency:      cur.Code,
		MinorUnits:    cur.MinorUnits,
		Denominations: make([]string, 0, len(cur.Denominations)),
	}
	for _, d := range cur.Denominations {
		resp.Denominations = append(resp.Denominations, cur.Format(d))
	}
	return func(c *fiber.Ctx) error {
		return c.JSON(resp)
	}
}

func sessionIDParam(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Geçersiz kasa oturumu id")
	}
	return uint(id), nil
}
