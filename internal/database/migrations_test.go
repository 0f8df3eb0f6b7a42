package database

import (
	"path/filepath"
	"testing"

	"github.com/MarcoPoloResearchLab/cookbook/internal/labels"
	"github.com/MarcoPoloResearchLab/cookbook/internal/users"
	"go.uber.org/zap"
)

func TestOpenSQLiteSeedsAdministratorAndLabels(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "cookbook.db")

	database, err := OpenSQLite(databasePath, "Admin", zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}

	var admin users.User
	if err := database.Where("username = ?", "Admin").Take(&admin).Error; err != nil {
		testContext.Fatalf("expected administrator to be seeded: %v", err)
	}
	if admin.JoinedAt.Unix() != 0 {
		testContext.Fatalf("expected administrator joined at the epoch, got %v", admin.JoinedAt)
	}

	var tagCount, mealCount int64
	database.Model(&labels.Tag{}).Count(&tagCount)
	database.Model(&labels.Meal{}).Count(&mealCount)
	if tagCount != int64(len(labels.DefaultTags)) || mealCount != int64(len(labels.DefaultMeals)) {
		testContext.Fatalf("unexpected seeded label counts: %d tags, %d meals", tagCount, mealCount)
	}

	for _, name := range []string{migrationSeedAdministrator, migrationSeedTags, migrationSeedMeals} {
		var record migrationRecord
		if err := database.Where("name = ?", name).Take(&record).Error; err != nil {
			testContext.Fatalf("expected migration record %s: %v", name, err)
		}
		if record.AppliedAtSeconds == 0 {
			testContext.Fatalf("expected migration timestamp to be set for %s", name)
		}
	}
}

func TestSeedMigrationsRunOnce(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "cookbook.db")

	database, err := OpenSQLite(databasePath, "Admin", zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}
	if err := database.Where("name = ?", "Vegan").Delete(&labels.Tag{}).Error; err != nil {
		testContext.Fatalf("failed to delete tag: %v", err)
	}
	sqlDB, _ := database.DB()
	_ = sqlDB.Close()

	reopened, err := OpenSQLite(databasePath, "Admin", zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to reopen database: %v", err)
	}
	var count int64
	reopened.Model(&labels.Tag{}).Where("name = ?", "Vegan").Count(&count)
	if count != 0 {
		testContext.Fatalf("expected deleted label to stay deleted after reopening")
	}
}

func TestOpenSQLiteRequiresArguments(testContext *testing.T) {
	if _, err := OpenSQLite("", "Admin", nil); err == nil {
		testContext.Fatalf("expected missing path to fail")
	}
	if _, err := OpenSQLite(filepath.Join(testContext.TempDir(), "x.db"), " ", nil); err == nil {
		testContext.Fatalf("expected missing admin username to fail")
	}
}
