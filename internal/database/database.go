package database

import (
	"fmt"
	"strings"

	"github.com/ayasync/backend/internal/config"
	"github.com/ayasync/backend/internal/models"
	"github.com/ayasync/backend/pkg/logger"
	"github.com/ayasync/backend/pkg/utils"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open dials the configured driver without touching the schema.
func Open(cfg config.DBConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Driver) {
	case "", "postgres", "postgresql":
		dsn := fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host,
			cfg.Port,
			cfg.User,
			cfg.Password,
			cfg.Name,
			cfg.SSLMode,
		)
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	return db, nil
}

func Connect(cfg config.DBConfig, admin config.AdminConfig) (*gorm.DB, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	if err := Migrate(db, admin); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate brings the schema up to date and seeds the first admin account.
func Migrate(db *gorm.DB, admin config.AdminConfig) error {
	if err := migrate(db); err != nil {
		return err
	}
	return seedAdminUser(db, admin)
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Team{},
		&models.TeamMember{},
		&models.Task{},
		&models.Message{},
		&models.Connection{},
		&models.Board{},
		&models.BoardMember{},
		&models.Activity{},
		&models.AuditLog{},
		&models.AuditExportCursor{},
	); err != nil {
		return err
	}

	if db.Dialector.Name() != "postgres" {
		return nil
	}

	constraints := map[string]string{
		"tasks_status_check": `ALTER TABLE tasks ADD CONSTRAINT tasks_status_check
    CHECK (status IN ('todo', 'in-progress', 'completed'))`,
		"tasks_priority_check": `ALTER TABLE tasks ADD CONSTRAINT tasks_priority_check
    CHECK (priority IN ('low', 'medium', 'high'))`,
		"connections_distinct_users_check": `ALTER TABLE connections ADD CONSTRAINT connections_distinct_users_check
    CHECK (requester_id <> target_id)`,
	}

	for name, statement := range constraints {
		sql := fmt.Sprintf(`
DO $$
BEGIN
  IF NOT EXISTS (
    SELECT 1
    FROM pg_constraint
    WHERE conname = '%s'
  ) THEN
    %s;
  END IF;
END $$;`, name, statement)
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("adding constraint %s: %w", name, err)
		}
	}

	return nil
}

func seedAdminUser(db *gorm.DB, admin config.AdminConfig) error {
	if admin.Email == "" || admin.Password == "" {
		return nil
	}

	var count int64
	if err := db.Model(&models.User{}).Where("role = ?", models.UserRoleAdmin).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		return nil
	}

	hash, err := utils.HashPassword(admin.Password)
	if err != nil {
		return err
	}

	user := models.User{
		Email:        strings.ToLower(strings.TrimSpace(admin.Email)),
		PasswordHash: hash,
		Name:         "Administrator",
		Role:         models.UserRoleAdmin,
		IsActive:     true,
	}

	if err := db.Create(&user).Error; err != nil {
		return err
	}

	logger.Info("admin_user_seeded", map[string]interface{}{
		"email": user.Email,
	})
	return nil
}
