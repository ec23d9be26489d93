package testutil

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bacopilot/internal/model"
)

// NewTestDB opens an in-memory SQLite database with every model migrated.
// A single connection is kept so all queries share the same memory database.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(model.All()...); err != nil {
		sqlDB.Close()
		t.Fatalf("failed to migrate schema: %v", err)
	}

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

// SeedUser inserts a user with a placeholder password hash.
func SeedUser(t testing.TB, db *gorm.DB, email string) *model.User {
	t.Helper()
	user := &model.User{Name: email, Email: email, PasswordHash: "x"}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

// SeedProject inserts an active project owned by userID.
func SeedProject(t testing.TB, db *gorm.DB, userID uint, name string) *model.Project {
	t.Helper()
	project := &model.Project{UserID: userID, Name: name, Status: model.ProjectStatusActive}
	if err := db.Create(project).Error; err != nil {
		t.Fatalf("failed to seed project: %v", err)
	}
	return project
}

// SeedFolder inserts an active folder. parentID may be nil for a root folder.
func SeedFolder(t testing.TB, db *gorm.DB, projectID uint, parentID *uint, name string) *model.Folder {
	t.Helper()
	folder := &model.Folder{ProjectID: projectID, ParentID: parentID, Name: name}
	if err := db.Create(folder).Error; err != nil {
		t.Fatalf("failed to seed folder: %v", err)
	}
	return folder
}
