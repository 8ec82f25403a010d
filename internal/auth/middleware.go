package auth

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"kasa-backend/internal/config"
	"kasa-backend/internal/models"
)

const (
	CtxUserIDKey   = "user_id"
	CtxUserNameKey = "user_name"
	CtxUserRoleKey = "user_role"
	CtxBranchIDKey = "branch_id"
)

func JWTMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Authorization header eksik")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return fiber.NewError(fiber.StatusUnauthorized, "Authorization formatı 'Bearer <token>' olmalı")
		}

		claims, err := ParseToken(cfg.JWTSecret, parts[1])
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Geçersiz veya süresi dolmuş token")
		}

		c.Locals(CtxUserIDKey, claims.UserID)
		c.Locals(CtxUserNameKey, claims.Name)
		c.Locals(CtxUserRoleKey, claims.Role)
		c.Locals(CtxBranchIDKey, claims.BranchID)

		return c.Next()
	}
}

func RequireRole(allowedRoles ...models.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		roleVal := c.Locals(CtxUserRoleKey)
		role, ok := roleVal.(models.UserRole)
		if !ok {
			return fiber.NewError(fiber.StatusForbidden, "Rol bilgisi alınamadı")
		}

		for _, r := range allowedRoles {
			if r == role {
				return c.Next()
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "Bu işlem için yetkiniz yok")
	}
}

// -------------------------------------------------
// İstek sahibinin kimliği ve şube kapsamı
// -------------------------------------------------

type Identity struct {
	UserID   uint
	Name     string
	Role     models.UserRole
	BranchID *uint
}

func (i Identity) IsSuperAdmin() bool { return i.Role == models.RoleSuperAdmin }

// CurrentIdentity reads what JWTMiddleware stored on the request.
func CurrentIdentity(c *fiber.Ctx) (Identity, error) {
	userID, ok := c.Locals(CtxUserIDKey).(uint)
	if !ok || userID == 0 {
		return Identity{}, fiber.NewError(fiber.StatusUnauthorized, "Kullanıcı bilgisi alınamadı")
	}
	role, ok := c.Locals(CtxUserRoleKey).(models.UserRole)
	if !ok {
		return Identity{}, fiber.NewError(fiber.StatusForbidden, "Rol bilgisi alınamadı")
	}
	name, _ := c.Locals(CtxUserNameKey).(string)
	branchID, _ := c.Locals(CtxBranchIDKey).(*uint)

	return Identity{UserID: userID, Name: name, Role: role, BranchID: branchID}, nil
}

// ResolveBranch picks the branch a request works on: branch_admin always gets
// its own branch, super_admin has to name one (body or ?branch_id=).
func ResolveBranch(c *fiber.Ctx, requested *uint) (uint, error) {
	id, err := CurrentIdentity(c)
	if err != nil {
		return 0, err
	}

	switch id.Role {
	case models.RoleBranchAdmin:
		if id.BranchID == nil || *id.BranchID == 0 {
			return 0, fiber.NewError(fiber.StatusForbidden, "Şube bilgisi bulunamadı")
		}
		return *id.BranchID, nil

	case models.RoleSuperAdmin:
		if requested != nil && *requested > 0 {
			return *requested, nil
		}
		if q := c.Query("branch_id"); q != "" {
			bid, err := strconv.ParseUint(q, 10, 64)
			if err != nil || bid == 0 {
				return 0, fiber.NewError(fiber.StatusBadRequest, "Geçersiz branch_id")
			}
			return uint(bid), nil
		}
		return 0, fiber.NewError(fiber.StatusBadRequest, "super_admin için branch_id zorunlu")
	}

	return 0, fiber.NewError(fiber.StatusForbidden, "Bu işlem için yetkiniz yok")
}

// CanAccessBranch reports whether the caller may see records of branchID.
func CanAccessBranch(c *fiber.Ctx, branchID uint) bool {
	id, err := CurrentIdentity(c)
	if err != nil {
		return false
	}
	if id.IsSuperAdmin() {
		return true
	}
	return id.BranchID != nil && *id.BranchID == branchID
}
