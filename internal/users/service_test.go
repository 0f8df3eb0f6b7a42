package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/cookbook/internal/domainerr"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&User{}, &Follow{}); err != nil {
		t.Fatalf("failed to migrate user schema: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Database: db,
		Clock: func() time.Time {
			return time.Unix(1700000000, 0)
		},
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service, db
}

func mustRegister(t *testing.T, service *Service, username string) User {
	t.Helper()
	user, err := service.Register(context.Background(), username)
	if err != nil {
		t.Fatalf("failed to register %s: %v", username, err)
	}
	return user
}

func TestRegisterCreatesUser(t *testing.T) {
	service, db := newTestService(t)
	user := mustRegister(t, service, "TestUser")

	if !user.JoinedAt.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("unexpected joined timestamp %v", user.JoinedAt)
	}
	var count int64
	db.Model(&User{}).Where("username = ?", "TestUser").Count(&count)
	if count != 1 {
		t.Fatalf("expected one stored user, got %d", count)
	}
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	service, db := newTestService(t)
	mustRegister(t, service, "TestUser")

	_, err := service.Register(context.Background(), "TestUser")
	if !errors.Is(err, domainerr.ErrValidation) {
		t.Fatalf("expected validation failure, got %v", err)
	}
	var count int64
	db.Model(&User{}).Where("username = ?", "TestUser").Count(&count)
	if count != 1 {
		t.Fatalf("expected duplicate to be rejected, found %d users", count)
	}
}

func TestRegisterRejectsInvalidUsernames(t *testing.T) {
	service, _ := newTestService(t)
	for _, username := range []string{"", "   ", ":D 8p >/", "white space"} {
		if _, err := service.Register(context.Background(), username); !errors.Is(err, domainerr.ErrValidation) {
			t.Fatalf("expected %q to be rejected, got %v", username, err)
		}
	}
}

func TestLoginPopulatesSessionContext(t *testing.T) {
	service, db := newTestService(t)
	mustRegister(t, service, "cook")
	db.Model(&User{}).Where("username = ?", "cook").Updates(map[string]any{
		"preferences": "Vegan",
		"exclusions":  "Nuts",
	})

	_, session, err := service.Login(context.Background(), "cook")
	if err != nil {
		t.Fatalf("unexpected login error: %v", err)
	}
	if session.Preferences != "Vegan" || session.Exclusions != "Nuts" {
		t.Fatalf("unexpected session context %#v", session)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	service, _ := newTestService(t)
	if _, _, err := service.Login(context.Background(), "NotARealUser"); !errors.Is(err, domainerr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSavePreferencesDropsConflictingExclusions(t *testing.T) {
	service, _ := newTestService(t)
	mustRegister(t, service, "cook")

	session, err := service.SavePreferences(context.Background(), Actor{Username: "cook"}, "Nuts Vegan", "Nuts Soya Soya")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.Preferences != "Nuts Vegan" {
		t.Fatalf("unexpected preferences %q", session.Preferences)
	}
	if session.Exclusions != "Soya" {
		t.Fatalf("expected Nuts removed from exclusions, got %q", session.Exclusions)
	}

	stored, err := service.Get(context.Background(), "cook")
	if err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}
	if stored.Exclusions != "Soya" {
		t.Fatalf("unexpected stored exclusions %q", stored.Exclusions)
	}
}

func TestSavePreferencesRequiresLogin(t *testing.T) {
	service, _ := newTestService(t)
	if _, err := service.SavePreferences(context.Background(), Actor{}, "Vegan", ""); !errors.Is(err, domainerr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestToggleFollowIsSymmetricAndSelfInverse(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	mustRegister(t, service, "alice")
	mustRegister(t, service, "bob")

	following, err := service.ToggleFollow(ctx, "bob", Actor{Username: "alice"})
	if err != nil {
		t.Fatalf("unexpected follow error: %v", err)
	}
	if !following {
		t.Fatalf("expected alice to follow bob")
	}

	alice, _ := service.Profile(ctx, "alice")
	bob, _ := service.Profile(ctx, "bob")
	if len(alice.Following) != 1 || alice.Following[0] != "bob" {
		t.Fatalf("expected alice.following to contain bob, got %v", alice.Following)
	}
	if len(bob.Followers) != 1 || bob.Followers[0] != "alice" {
		t.Fatalf("expected bob.followers to contain alice, got %v", bob.Followers)
	}
	if alice.User.FollowingCount != int64(len(alice.Following)) {
		t.Fatalf("following count drifted: %d vs %d", alice.User.FollowingCount, len(alice.Following))
	}
	if bob.User.FollowerCount != int64(len(bob.Followers)) {
		t.Fatalf("follower count drifted: %d vs %d", bob.User.FollowerCount, len(bob.Followers))
	}

	following, err = service.ToggleFollow(ctx, "bob", Actor{Username: "alice"})
	if err != nil {
		t.Fatalf("unexpected unfollow error: %v", err)
	}
	if following {
		t.Fatalf("expected second toggle to unfollow")
	}

	alice, _ = service.Profile(ctx, "alice")
	bob, _ = service.Profile(ctx, "bob")
	if len(alice.Following) != 0 || alice.User.FollowingCount != 0 {
		t.Fatalf("expected alice to follow nobody, got %v (%d)", alice.Following, alice.User.FollowingCount)
	}
	if len(bob.Followers) != 0 || bob.User.FollowerCount != 0 {
		t.Fatalf("expected bob to have no followers, got %v (%d)", bob.Followers, bob.User.FollowerCount)
	}
}

func TestToggleFollowRejections(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	mustRegister(t, service, "alice")

	if _, err := service.ToggleFollow(ctx, "alice", Actor{Username: "alice"}); !errors.Is(err, domainerr.ErrForbidden) {
		t.Fatalf("expected self follow to be forbidden, got %v", err)
	}
	if _, err := service.ToggleFollow(ctx, "alice", Actor{}); !errors.Is(err, domainerr.ErrForbidden) {
		t.Fatalf("expected anonymous follow to be forbidden, got %v", err)
	}
	if _, err := service.ToggleFollow(ctx, "ghost", Actor{Username: "alice"}); !errors.Is(err, domainerr.ErrNotFound) {
		t.Fatalf("expected unknown followee to be not found, got %v", err)
	}
}
