package audit

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"kasa-backend/internal/auth"
	"kasa-backend/internal/models"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

type AuditLogResponse struct {
	ID          uint               `json:"id"`
	CreatedAt   string             `json:"created_at"`
	BranchID    *uint              `json:"branch_id"`
	UserID      uint               `json:"user_id"`
	UserName    string             `json:"user_name"`
	EntityType  string             `json:"entity_type"`
	EntityID    uint               `json:"entity_id"`
	Action      models.AuditAction `json:"action"`
	Description string             `json:"description"`
	BeforeData  string             `json:"before_data"`
	AfterData   string             `json:"after_data"`
}

type listQuery struct {
	EntityType string `query:"entity_type"`
	EntityID   uint   `query:"entity_id"`
	UserID     uint   `query:"user_id"`
	From       string `query:"from"` // YYYY-MM-DD
	To         string `query:"to"`   // YYYY-MM-DD, dahil
	Limit      int    `query:"limit"`
}

// GET /api/audit-logs?entity_type=cash_session&entity_id=1&branch_id=1&from=2025-01-01&to=2025-01-31
func ListAuditLogsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var q listQuery
		if err := c.QueryParser(&q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz sorgu parametresi")
		}

		id, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}

		dbq := db.WithContext(c.UserContext()).Model(&models.AuditLog{})

		// branch_admin sadece kendi şubesini, super_admin istenen şubeyi (ya da hepsini) görür
		if !id.IsSuperAdmin() || c.Query("branch_id") != "" {
			branchID, err := auth.ResolveBranch(c, nil)
			if err != nil {
				return err
			}
			dbq = dbq.Where("branch_id = ?", branchID)
		}

		if q.UserID > 0 {
			dbq = dbq.Where("user_id = ?", q.UserID)
		}
		if q.EntityType != "" {
			dbq = dbq.Where("entity_type = ?", q.EntityType)
		}
		if q.EntityID > 0 {
			dbq = dbq.Where("entity_id = ?", q.EntityID)
		}
		if q.From != "" {
			from, err := time.Parse("2006-01-02", q.From)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Geçersiz from tarihi (YYYY-MM-DD)")
			}
			dbq = dbq.Where("created_at >= ?", from)
		}
		if q.To != "" {
			to, err := time.Parse("2006-01-02", q.To)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Geçersiz to tarihi (YYYY-MM-DD)")
			}
			dbq = dbq.Where("created_at < ?", to.AddDate(0, 0, 1))
		}

		limit := q.Limit
		if limit <= 0 {
			limit = defaultListLimit
		}
		if limit > maxListLimit {
			limit = maxListLimit
		}

		var logs []models.AuditLog
		if err := dbq.Order("created_at DESC, id DESC").Limit(limit).Find(&logs).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Loglar listelenemedi")
		}

		resp := make([]AuditLogResponse, 0, len(logs))
		for _, log := range logs {
			resp = append(resp, AuditLogResponse{
				ID:          log.ID,
				CreatedAt:   log.CreatedAt.Format("2006-01-02 15:04:05"),
				BranchID:    log.BranchID,
				UserID:      log.UserID,
				UserName:    log.UserName,
				EntityType:  log.EntityType,
				EntityID:    log.EntityID,
				Action:      log.Action,
				Description: log.Description,
				BeforeData:  log.BeforeData,
				AfterData:   log.AfterData,
			})
		}

		return c.JSON(resp)
	}
}
