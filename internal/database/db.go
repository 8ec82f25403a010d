package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"kasa-backend/internal/config"
	"kasa-backend/internal/models"
)

// Open connects to Postgres and runs the migrations. Duplicate key errors are
// translated to gorm.ErrDuplicatedKey so the store can map them to conflicts.
func Open(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("veritabanına bağlanılamadı: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("veritabanı bağlantı havuzu alınamadı: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := Migrate(db, log); err != nil {
		return nil, err
	}

	log.Info("Veritabanı bağlantısı başarılı. Migration tamamlandı.")
	return db, nil
}

// Migrate creates the tables, then the constraints AutoMigrate cannot express.
func Migrate(db *gorm.DB, log *zap.Logger) error {
	err := db.AutoMigrate(
		&models.Branch{},
		&models.User{},
		&models.CashMovement{},
		&models.ExpenseCategory{},
		&models.Expense{},
		&models.FundPool{},
		&models.FundAllocation{},
		&models.CashSession{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("AutoMigrate hatası: %w", err)
	}

	// Şube başına tek açık kasa: advisory lock'a ek olarak veritabanı da korur.
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS uniq_cash_sessions_open_branch
		ON cash_sessions (branch_id) WHERE status = 'open'
	`).Error; err != nil {
		return fmt.Errorf("açık kasa indexi oluşturulamadı: %w", err)
	}

	var constraintExists bool
	db.Raw(`
		SELECT EXISTS (
			SELECT 1
			FROM information_schema.table_constraints
			WHERE table_name = 'fund_pools'
			AND constraint_name = 'chk_fund_pools_available_non_negative'
		)
	`).Scan(&constraintExists)

	if !constraintExists {
		log.Info("fund_pools için bakiye kontrolü ekleniyor...")
		if err := db.Exec(`
			ALTER TABLE fund_pools
			ADD CONSTRAINT chk_fund_pools_available_non_negative
			CHECK (available_amount >= 0)
		`).Error; err != nil {
			return fmt.Errorf("fon bakiye kontrolü eklenemedi: %w", err)
		}
	}

	return nil
}

// Ping is used by /healthz.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
