package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ayasync/backend/internal/models"
	"github.com/ayasync/backend/pkg/logger"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	logger.Init()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite: %v", err)
	}

	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(
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
	)
	if err != nil {
		t.Fatalf("failed automigrating: %v", err)
	}

	return db
}

var userSeq int

func createUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	userSeq++
	user := &models.User{
		Email:        fmt.Sprintf("%s-%d@example.com", name, userSeq),
		PasswordHash: "hash",
		Name:         name,
		Role:         models.UserRoleUser,
		IsActive:     true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating user: %v", err)
	}
	return user
}

func assertKind(t *testing.T, err error, kind error, message string) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
	if message != "" && err.Error() != message {
		t.Fatalf("expected message %q, got %q", message, err.Error())
	}
}

var ctx = context.Background()
