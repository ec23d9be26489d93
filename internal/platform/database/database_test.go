package database

import (
	"context"
	"path/filepath"
	"testing"

	"bacopilot/internal/config"
	"bacopilot/internal/model"
)

func TestDialectorFor(t *testing.T) {
	tests := []struct {
		driver  string
		name    string
		wantErr bool
	}{
		{driver: "mysql", name: "mysql"},
		{driver: "postgres", name: "postgres"},
		{driver: "sqlite", name: "sqlite"},
		{driver: "oracle", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := dialectorFor(tt.driver, "dsn")
			if (err != nil) != tt.wantErr {
				t.Fatalf("dialectorFor(%q) error = %v, wantErr %v", tt.driver, err, tt.wantErr)
			}
			if err == nil && d.Name() != tt.name {
				t.Errorf("dialector name = %q, want %q", d.Name(), tt.name)
			}
		})
	}
}

func TestNewSQLiteAndMigrate(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{
		Driver: "sqlite",
		Name:   filepath.Join(t.TempDir(), "bacopilot.db"),
	}}

	db, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	for _, m := range model.All() {
		if !db.Migrator().HasTable(m) {
			t.Errorf("table for %T was not created", m)
		}
	}
}
