package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/cookbook/internal/labels"
	"github.com/MarcoPoloResearchLab/cookbook/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	migrationSeedAdministrator = "2024-01-01_seed_administrator"
	migrationSeedTags          = "2024-01-01_seed_tags"
	migrationSeedMeals         = "2024-01-01_seed_meals"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func seedMigrations(adminUsername string) []migrationDefinition {
	return []migrationDefinition{
		{name: migrationSeedAdministrator, apply: func(db *gorm.DB) error {
			return seedAdministrator(db, adminUsername)
		}},
		{name: migrationSeedTags, apply: func(db *gorm.DB) error {
			return seedLabels(db, labels.DefaultTags, func(name string) any { return &labels.Tag{Name: name} })
		}},
		{name: migrationSeedMeals, apply: func(db *gorm.DB) error {
			return seedLabels(db, labels.DefaultMeals, func(name string) any { return &labels.Meal{Name: name} })
		}},
	}
}

func applyMigrations(db *gorm.DB, migrations []migrationDefinition, logger *zap.Logger) error {
	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		applyErr := db.Transaction(func(tx *gorm.DB) error {
			if err := migration.apply(tx); err != nil {
				return err
			}
			appliedAt := time.Now().UTC().Unix()
			return tx.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error
		})
		if applyErr != nil {
			return applyErr
		}
		logger.Info("database migration applied", zap.String("migration", migration.name))
	}
	return nil
}

func seedAdministrator(db *gorm.DB, username string) error {
	admin := users.User{
		Username: username,
		JoinedAt: time.Unix(0, 0).UTC(),
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&admin).Error
}

func seedLabels(db *gorm.DB, names []string, record func(string) any) error {
	for _, name := range names {
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(record(name)).Error; err != nil {
			return err
		}
	}
	return nil
}
