package auth

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"kasa-backend/internal/models"
)

var ErrUserNotFound = errors.New("kullanıcı bulunamadı")

type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uint) (*models.User, error)
	CountByRole(ctx context.Context, role models.UserRole) (int64, error)
	Create(ctx context.Context, u *models.User) error
}

type GormUsers struct {
	db *gorm.DB
}

func NewGormUsers(db *gorm.DB) *GormUsers {
	return &GormUsers{db: db}
}

func (r *GormUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *GormUsers) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Preload("Branch").First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *GormUsers) CountByRole(ctx context.Context, role models.UserRole) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("role = ?", role).Count(&count).Error
	return count, err
}

func (r *GormUsers) Create(ctx context.Context, u *models.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}
