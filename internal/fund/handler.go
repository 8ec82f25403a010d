package fund

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"kasa-backend/internal/audit"
	"kasa-backend/internal/auth"
	"kasa-backend/internal/cashcount"
	"kasa-backend/internal/models"
	"kasa-backend/internal/money"
)

type FundPoolResponse struct {
	ID              uint                  `json:"id"`
	BranchID        uint                  `json:"branch_id"`
	Name            string                `json:"name"`
	Currency        string                `json:"currency"`
	AvailableAmount string                `json:"available_amount"`
	Status          models.FundPoolStatus `json:"status"`
}

func toResponse(f *models.FundPool, places int32) FundPoolResponse {
	return FundPoolResponse{
		ID:              f.ID,
		BranchID:        f.BranchID,
		Name:            f.Name,
		Currency:        f.Currency,
		AvailableAmount: money.String(f.AvailableAmount, places),
		Status:          f.Status,
	}
}

type CreateFundPoolRequest struct {
	BranchID        uint   `json:"branch_id"`
	Name            string `json:"name"`
	AvailableAmount string `json:"available_amount"`
}

type UpdateFundPoolStatusRequest struct {
	Status models.FundPoolStatus `json:"status"`
}

func httpError(log *zap.Logger, err error) error {
	switch {
	case errors.Is(err, ErrFundNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicateName):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidName),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, money.ErrInvalid),
		errors.Is(err, money.ErrNegative),
		errors.Is(err, money.ErrPrecision),
		errors.Is(err, money.ErrOverflow):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	log.Error("kasa fonu işlemi başarısız", zap.Error(err))
	return fiber.NewError(fiber.StatusInternalServerError, "Beklenmeyen bir hata oluştu")
}

// -------------------------------------------------
// GET /api/fund-pools
// -------------------------------------------------

func ListFundPoolsHandler(a *Allocator, cur cashcount.Currency, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		branchID, err := auth.ResolveBranch(c, nil)
		if err != nil {
			return err
		}
		funds, err := a.ListAvailable(c.UserContext(), branchID)
		if err != nil {
			return httpError(log, err)
		}
		resp := make([]FundPoolResponse, 0, len(funds))
		for i := range funds {
			resp = append(resp, toResponse(&funds[i], cur.MinorUnits))
		}
		return c.JSON(resp)
	}
}

// -------------------------------------------------
// POST /api/admin/fund-pools (super_admin)
// -------------------------------------------------

func CreateFundPoolHandler(a *Allocator, cur cashcount.Currency, aud audit.Writer, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateFundPoolRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}
		if body.BranchID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "branch_id zorunlu")
		}

		amount := int64(0)
		if body.AvailableAmount != "" {
			v, err := money.ParseNonNegative(body.AvailableAmount, cur.MinorUnits)
			if err != nil {
				return httpError(log, err)
			}
			amount = v
		}

		f, err := a.Create(c.UserContext(), CreateRequest{
			BranchID:        body.BranchID,
			Name:            body.Name,
			Currency:        cur.Code,
			AvailableAmount: amount,
		})
		if err != nil {
			return httpError(log, err)
		}

		resp := toResponse(f, cur.MinorUnits)
		if id, err := auth.CurrentIdentity(c); err == nil {
			audit.Record(c.UserContext(), aud, log, audit.Entry{
				BranchID:    &f.BranchID,
				UserID:      id.UserID,
				UserName:    id.Name,
				EntityType:  models.AuditEntityFundPool,
				EntityID:    f.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Kasa fonu oluşturuldu: %s (%s %s)", f.Name, resp.AvailableAmount, f.Currency),
				After:       resp,
			})
		}

		return c.Status(fiber.StatusCreated).JSON(resp)
	}
}

// -------------------------------------------------
// PUT /api/admin/fund-pools/:id/status (super_admin)
// -------------------------------------------------

func UpdateFundPoolStatusHandler(a *Allocator, cur cashcount.Currency, aud audit.Writer, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.ParseUint(c.Params("id"), 10, 64)
		if err != nil || id == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz fon id")
		}

		var body UpdateFundPoolStatusRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}
		if body.Status != models.FundPoolActive && body.Status != models.FundPoolInactive {
			return fiber.NewError(fiber.StatusBadRequest, "status 'active' veya 'inactive' olmalı")
		}

		before, after, err := a.SetStatus(c.UserContext(), uint(id), body.Status)
		if err != nil {
			return httpError(log, err)
		}

		resp := toResponse(after, cur.MinorUnits)
		if ident, err := auth.CurrentIdentity(c); err == nil {
			audit.Record(c.UserContext(), aud, log, audit.Entry{
				BranchID:    &after.BranchID,
				UserID:      ident.UserID,
				UserName:    ident.Name,
				EntityType:  models.AuditEntityFundPool,
				EntityID:    after.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Kasa fonu durumu: %s -> %s", before.Status, after.Status),
				Before:      toResponse(before, cur.MinorUnits),
				After:       resp,
			})
		}

		return c.JSON(resp)
	}
}
