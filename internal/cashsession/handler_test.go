package cashsession

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kasa-backend/internal/audit"
	"kasa-backend/internal/auth"
	"kasa-backend/internal/cashflow"
	"kasa-backend/internal/config"
	"kasa-backend/internal/models"
	"kasa-backend/internal/reconcile"
)

const testSecret = "test-secret-that-is-at-least-32-bytes-long"

type api struct {
	*fixture
	app *fiber.App
	aud *audit.Recorder
}

func newAPI(t *testing.T) *api {
	t.Helper()
	f := newFixture(t, "TRY")
	aud := &audit.Recorder{}
	log := zap.NewNop()

	app := fiber.New()
	r := app.Group("/api", auth.JWTMiddleware(&config.Config{JWTSecret: testSecret}))
	r.Get("/denominations", DenominationsHandler(f.cur))
	r.Post("/cash-sessions/open", OpenSessionHandler(f.mgr, aud, log))
	r.Get("/cash-sessions/current", CurrentSessionHandler(f.mgr, log))
	r.Get("/cash-sessions", ListSessionsHandler(f.mgr, log))
	r.Get("/cash-sessions/:id", GetSessionHandler(f.mgr, log))
	r.Get("/cash-sessions/:id/summary", SessionSummaryHandler(f.mgr, log))
	r.Post("/cash-sessions/:id/close", CloseSessionHandler(f.mgr, aud, log))

	return &api{fixture: f, app: app, aud: aud}
}

var (
	branchOneAdmin = &models.User{ID: 10, Name: "Şube 1", Role: models.RoleBranchAdmin, BranchID: uintPtr(1)}
	branchTwoAdmin = &models.User{ID: 20, Name: "Şube 2", Role: models.RoleBranchAdmin, BranchID: uintPtr(2)}
	superAdmin     = &models.User{ID: 1, Name: "Merkez", Role: models.RoleSuperAdmin}
)

func (a *api) call(t *testing.T, user *models.User, method, path, body string, out any) int {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	tok, err := auth.GenerateToken(testSecret, user)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.Unmarshal(raw, out), string(raw))
	}
	return resp.StatusCode
}

func TestHandler_OpenAndClose(t *testing.T) {
	a := newAPI(t)

	var opened SessionView
	code := a.call(t, branchOneAdmin, http.MethodPost, "/api/cash-sessions/open",
		`{"opening_count":{"100":10}}`, &opened)
	require.Equal(t, fiber.StatusCreated, code)
	assert.Equal(t, uint(1), opened.BranchID)
	assert.Equal(t, "1000.00", opened.OpeningTotal)
	assert.Equal(t, uint(10), opened.OpenedBy)

	var current SessionView
	require.Equal(t, fiber.StatusOK, a.call(t, branchOneAdmin, http.MethodGet, "/api/cash-sessions/current", "", &current))
	assert.Equal(t, opened.ID, current.ID)

	a.ledger.set(cashflow.Aggregates{SalesTotal: 50000, ExpensesTotal: 2000}, nil)

	var closed SessionView
	code = a.call(t, branchOneAdmin, http.MethodPost, fmt.Sprintf("/api/cash-sessions/%d/close", opened.ID),
		`{"closing_count":{"200":7,"50":1,"5":1,"1":3},"notes":"  akşam  "}`, &closed)
	require.Equal(t, fiber.StatusOK, code)
	require.NotNil(t, closed.Reconciliation)
	assert.Equal(t, "1480.00", closed.Reconciliation.ExpectedTotal)
	assert.Equal(t, "1458.00", closed.Reconciliation.ActualTotal)
	assert.Equal(t, "-22.00", closed.Reconciliation.Variance)
	assert.Equal(t, reconcile.ClassSignificant, closed.Reconciliation.VarianceClass)
	assert.Equal(t, "akşam", closed.Notes)

	entries := a.aud.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, models.AuditActionOpen, entries[0].Action)
	assert.Equal(t, models.AuditActionClose, entries[1].Action)
	assert.Equal(t, "Şube 1", entries[1].UserName)
	assert.Equal(t, opened.ID, entries[1].EntityID)
	assert.NotNil(t, entries[1].Before)

	code = a.call(t, branchOneAdmin, http.MethodPost, fmt.Sprintf("/api/cash-sessions/%d/close", opened.ID),
		`{"closing_count":{"200":7}}`, nil)
	assert.Equal(t, fiber.StatusConflict, code)

	require.Equal(t, fiber.StatusNotFound, a.call(t, branchOneAdmin, http.MethodGet, "/api/cash-sessions/current", "", nil))

	var history []SessionView
	require.Equal(t, fiber.StatusOK, a.call(t, branchOneAdmin, http.MethodGet, "/api/cash-sessions", "", &history))
	require.Len(t, history, 1)
	assert.Equal(t, opened.ID, history[0].ID)

	var sum Summary
	require.Equal(t, fiber.StatusOK, a.call(t, branchOneAdmin, http.MethodGet, fmt.Sprintf("/api/cash-sessions/%d/summary", opened.ID), "", &sum))
	assert.Len(t, sum.ClosingLines, 4)
}

func TestHandler_OpenErrors(t *testing.T) {
	a := newAPI(t)
	pool := a.fund(t, 1, "Ana Kasa", 30000)

	tests := []struct {
		name string
		user *models.User
		body string
		want int
	}{
		{"bad json", branchOneAdmin, `{`, fiber.StatusBadRequest},
		{"unknown denomination", branchOneAdmin, `{"opening_count":{"3":1}}`, fiber.StatusBadRequest},
		{"negative quantity", branchOneAdmin, `{"opening_count":{"100":-1}}`, fiber.StatusBadRequest},
		{"no source", branchOneAdmin, `{}`, fiber.StatusBadRequest},
		{"bad fund amount", branchOneAdmin, fmt.Sprintf(`{"fund_pool_id":%d,"fund_amount":"abc"}`, pool.ID), fiber.StatusBadRequest},
		{"too precise fund amount", branchOneAdmin, fmt.Sprintf(`{"fund_pool_id":%d,"fund_amount":"1.001"}`, pool.ID), fiber.StatusBadRequest},
		{"insufficient", branchOneAdmin, fmt.Sprintf(`{"fund_pool_id":%d,"fund_amount":"500"}`, pool.ID), fiber.StatusConflict},
		{"fund of other branch", branchTwoAdmin, fmt.Sprintf(`{"fund_pool_id":%d}`, pool.ID), fiber.StatusNotFound},
		{"unknown fund", branchOneAdmin, `{"fund_pool_id":999}`, fiber.StatusNotFound},
		{"super admin without branch", superAdmin, `{"opening_count":{"100":1}}`, fiber.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.call(t, tt.user, http.MethodPost, "/api/cash-sessions/open", tt.body, nil))
		})
	}
	assert.Empty(t, a.aud.Entries())
	assert.Equal(t, int64(30000), a.available(t, pool.ID))
}

func TestHandler_OpenFromFundAndConflict(t *testing.T) {
	a := newAPI(t)
	pool := a.fund(t, 1, "Ana Kasa", 30000)

	var opened SessionView
	code := a.call(t, superAdmin, http.MethodPost, "/api/cash-sessions/open",
		fmt.Sprintf(`{"branch_id":1,"fund_pool_id":%d,"fund_amount":"120.50"}`, pool.ID), &opened)
	require.Equal(t, fiber.StatusCreated, code)
	assert.Equal(t, "120.50", opened.OpeningTotal)
	assert.Equal(t, int64(30000-12050), a.available(t, pool.ID))

	code = a.call(t, branchOneAdmin, http.MethodPost, "/api/cash-sessions/open", `{"opening_count":{"100":1}}`, nil)
	assert.Equal(t, fiber.StatusConflict, code)
}

func TestHandler_BranchIsolation(t *testing.T) {
	a := newAPI(t)
	sess := a.openWithCount(t, 1, map[string]int64{"100": 1})
	path := fmt.Sprintf("/api/cash-sessions/%d", sess.ID)

	assert.Equal(t, fiber.StatusOK, a.call(t, branchOneAdmin, http.MethodGet, path, "", nil))
	assert.Equal(t, fiber.StatusOK, a.call(t, superAdmin, http.MethodGet, path, "", nil))
	assert.Equal(t, fiber.StatusNotFound, a.call(t, branchTwoAdmin, http.MethodGet, path, "", nil))
	assert.Equal(t, fiber.StatusNotFound, a.call(t, branchTwoAdmin, http.MethodGet, path+"/summary", "", nil))
	assert.Equal(t, fiber.StatusNotFound, a.call(t, branchTwoAdmin, http.MethodPost, path+"/close", `{"closing_count":{"100":1}}`, nil))

	got, err := a.mgr.Get(t.Context(), sess.ID)
	require.NoError(t, err)
	assert.True(t, got.IsOpen())
}

func TestHandler_CloseErrors(t *testing.T) {
	a := newAPI(t)
	sess := a.openWithCount(t, 1, map[string]int64{"100": 1})
	path := fmt.Sprintf("/api/cash-sessions/%d/close", sess.ID)

	assert.Equal(t, fiber.StatusBadRequest, a.call(t, branchOneAdmin, http.MethodPost, "/api/cash-sessions/abc/close", `{"closing_count":{}}`, nil))
	assert.Equal(t, fiber.StatusBadRequest, a.call(t, branchOneAdmin, http.MethodPost, path, `{}`, nil))
	assert.Equal(t, fiber.StatusBadRequest, a.call(t, branchOneAdmin, http.MethodPost, path, `{"closing_count":{"7":1}}`, nil))
	assert.Equal(t, fiber.StatusNotFound, a.call(t, branchOneAdmin, http.MethodPost, "/api/cash-sessions/999/close", `{"closing_count":{}}`, nil))

	a.ledger.set(cashflow.Aggregates{}, cashflow.ErrUnavailable)
	assert.Equal(t, fiber.StatusServiceUnavailable, a.call(t, branchOneAdmin, http.MethodPost, path, `{"closing_count":{"100":1}}`, nil))

	var cur SessionView
	require.Equal(t, fiber.StatusOK, a.call(t, branchOneAdmin, http.MethodGet, "/api/cash-sessions/current", "", &cur))
	assert.Equal(t, models.CashSessionOpen, cur.Status)
}

func TestHandler_ListValidation(t *testing.T) {
	a := newAPI(t)
	assert.Equal(t, fiber.StatusBadRequest, a.call(t, branchOneAdmin, http.MethodGet, "/api/cash-sessions?from=14-03-2025", "", nil))
	assert.Equal(t, fiber.StatusBadRequest, a.call(t, superAdmin, http.MethodGet, "/api/cash-sessions", "", nil))

	var out []SessionView
	require.Equal(t, fiber.StatusOK, a.call(t, superAdmin, http.MethodGet, "/api/cash-sessions?branch_id=1&from=2025-01-01&to=2025-12-31", "", &out))
	assert.Empty(t, out)
}

func TestHandler_Denominations(t *testing.T) {
	a := newAPI(t)
	var resp DenominationsResponse
	require.Equal(t, fiber.StatusOK, a.call(t, branchOneAdmin, http.MethodGet, "/api/denominations", "", &resp))
	assert.Equal(t, "TRY", resp.Currency)
	assert.Equal(t, int32(2), resp.MinorUnits)
	require.NotEmpty(t, resp.Denominations)
	assert.Equal(t, "200.00", resp.Denominations[0])
	assert.Equal(t, "0.05", resp.Denominations[len(resp.Denominations)-1])
}
