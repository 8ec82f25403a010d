package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"kasa-backend/internal/config"
	"kasa-backend/internal/models"
)

const minPasswordLength = 8

type RegisterSuperAdminRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func RegisterSuperAdminHandler(users UserRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterSuperAdminRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		body.Email = strings.TrimSpace(strings.ToLower(body.Email))
		body.Name = strings.TrimSpace(body.Name)

		if body.Email == "" || body.Password == "" || body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "İsim, email ve şifre zorunlu")
		}
		if len(body.Password) < minPasswordLength {
			return fiber.NewError(fiber.StatusBadRequest, "Şifre en az 8 karakter olmalı")
		}

		// Sadece ilk kurulumda: ikinci super admin bu yoldan açılamaz
		count, err := users.CountByRole(c.UserContext(), models.RoleSuperAdmin)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kullanıcılar okunamadı")
		}
		if count > 0 {
			return fiber.NewError(fiber.StatusForbidden, "Zaten bir super admin var")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Şifre hashlenemedi")
		}

		user := models.User{
			Name:         body.Name,
			Email:        body.Email,
			PasswordHash: string(hash),
			Role:         models.RoleSuperAdmin,
		}
		if err := users.Create(c.UserContext(), &user); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kullanıcı oluşturulamadı")
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"id":    user.ID,
			"email": user.Email,
			"role":  user.Role,
		})
	}
}

func LoginHandler(cfg *config.Config, users UserRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		body.Email = strings.TrimSpace(strings.ToLower(body.Email))

		user, err := users.FindByEmail(c.UserContext(), body.Email)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				return fiber.NewError(fiber.StatusUnauthorized, "Email veya şifre hatalı")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Kullanıcı okunamadı")
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Email veya şifre hatalı")
		}

		token, err := GenerateToken(cfg.JWTSecret, user)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Token oluşturulamadı")
		}

		return c.JSON(fiber.Map{
			"token": token,
			"user": fiber.Map{
				"id":        user.ID,
				"name":      user.Name,
				"email":     user.Email,
				"role":      user.Role,
				"branch_id": user.BranchID,
			},
		})
	}
}

func MeHandler(users UserRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := CurrentIdentity(c)
		if err != nil {
			return err
		}

		user, err := users.FindByID(c.UserContext(), id.UserID)
		if err != nil {
			// Kullanıcı okunamazsa token'daki bilgiyle dön
			return c.JSON(fiber.Map{
				"user_id":   id.UserID,
				"name":      id.Name,
				"role":      id.Role,
				"branch_id": id.BranchID,
			})
		}

		response := fiber.Map{
			"user_id":   user.ID,
			"name":      user.Name,
			"email":     user.Email,
			"role":      user.Role,
			"branch_id": user.BranchID,
		}
		if user.Branch != nil {
			response["branch"] = fiber.Map{
				"id":      user.Branch.ID,
				"name":    user.Branch.Name,
				"address": user.Branch.Address,
				"phone":   user.Branch.Phone,
			}
		}
		return c.JSON(response)
	}
}
