// Package database opens the cookbook SQLite store and brings its schema and
// seed data up to date.
package database

import (
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/cookbook/internal/labels"
	"github.com/MarcoPoloResearchLab/cookbook/internal/recipes"
	"github.com/MarcoPoloResearchLab/cookbook/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpenSQLite establishes a SQLite connection, migrates the schema and applies
// the named seed migrations. adminUsername names the seeded administrator.
func OpenSQLite(path, adminUsername string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if strings.TrimSpace(adminUsername) == "" {
		return nil, fmt.Errorf("admin username is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	if err := applyMigrations(db, seedMigrations(adminUsername), logger); err != nil {
		return nil, err
	}

	logger.Info("database initialized", zap.String("path", path))
	return db, nil
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&users.User{},
		&users.Follow{},
		&labels.Tag{},
		&labels.Meal{},
		&recipes.Recipe{},
		&recipes.Favourite{},
		&recipes.ForkRef{},
		&recipes.CommentRecord{},
		&migrationRecord{},
	)
}
