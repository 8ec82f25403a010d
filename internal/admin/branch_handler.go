// Package admin holds the super_admin setup endpoints: branches and the
// branch admins who open and close their branch's kasa.
package admin

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"kasa-backend/internal/auth"
	"kasa-backend/internal/models"
)

const minPasswordLength = 8

type BranchResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Address   string `json:"address"`
	Phone     string `json:"phone"`
	CreatedAt string `json:"created_at"`
}

func toBranchResponse(b models.Branch) BranchResponse {
	return BranchResponse{
		ID:        b.ID,
		Name:      b.Name,
		Address:   b.Address,
		Phone:     b.Phone,
		CreatedAt: b.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

type CreateBranchRequest struct {
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Phone   *string `json:"phone"` // opsiyonel
}

type CreateBranchAdminRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ----------------------------------------
// ŞUBE
// ----------------------------------------

func CreateBranchHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateBranchRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri gönderildi")
		}

		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Şube adı boş olamaz")
		}

		branch := models.Branch{Name: body.Name, Address: strings.TrimSpace(body.Address)}
		if body.Phone != nil {
			branch.Phone = strings.TrimSpace(*body.Phone)
		}

		if err := db.WithContext(c.UserContext()).Create(&branch).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fiber.NewError(fiber.StatusConflict, "Bu isimde bir şube zaten var")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Şube oluşturulamadı")
		}

		return c.Status(fiber.StatusCreated).JSON(toBranchResponse(branch))
	}
}

func ListBranchesHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var branches []models.Branch
		if err := db.WithContext(c.UserContext()).Order("name").Find(&branches).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Şubeler listelenemedi")
		}

		res := make([]BranchResponse, 0, len(branches))
		for _, b := range branches {
			res = append(res, toBranchResponse(b))
		}
		return c.JSON(res)
	}
}

// ----------------------------------------
// ŞUBE ADMİNİ
// POST /api/admin/branches/:id/admin
// ----------------------------------------

func CreateBranchAdminHandler(db *gorm.DB, users auth.UserRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		branchID, err := c.ParamsInt("id")
		if err != nil || branchID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz şube id")
		}

		var branch models.Branch
		if err := db.WithContext(c.UserContext()).First(&branch, branchID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "Şube bulunamadı")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Şube okunamadı")
		}

		var body CreateBranchAdminRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri gönderildi")
		}

		body.Email = strings.ToLower(strings.TrimSpace(body.Email))
		body.Name = strings.TrimSpace(body.Name)

		if body.Name == "" || body.Email == "" || body.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "İsim, email ve şifre zorunlu")
		}
		if len(body.Password) < minPasswordLength {
			return fiber.NewError(fiber.StatusBadRequest, "Şifre en az 8 karakter olmalı")
		}

		if _, err := users.FindByEmail(c.UserContext(), body.Email); err == nil {
			return fiber.NewError(fiber.StatusConflict, "Bu email zaten kayıtlı")
		} else if !errors.Is(err, auth.ErrUserNotFound) {
			return fiber.NewError(fiber.StatusInternalServerError, "Kullanıcı okunamadı")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Şifre hashlenemedi")
		}

		user := models.User{
			Name:         body.Name,
			Email:        body.Email,
			PasswordHash: string(hash),
			Role:         models.RoleBranchAdmin,
			BranchID:     &branch.ID,
		}
		if err := users.Create(c.UserContext(), &user); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Şube admini oluşturulamadı")
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"id":        user.ID,
			"name":      user.Name,
			"email":     user.Email,
			"role":      user.Role,
			"branch_id": user.BranchID,
		})
	}
}
