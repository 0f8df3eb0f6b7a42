package recipes

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/cookbook/internal/activity"
	"github.com/MarcoPoloResearchLab/cookbook/internal/labels"
	"github.com/MarcoPoloResearchLab/cookbook/internal/search"
	"github.com/MarcoPoloResearchLab/cookbook/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	admin = users.Actor{Username: "Admin", Admin: true}
	alice = users.Actor{Username: "alice"}
	bob   = users.Actor{Username: "bob"}
	carol = users.Actor{Username: "carol"}
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []activity.Event
}

func (p *recordingPublisher) Publish(event activity.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) snapshot() []activity.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]activity.Event(nil), p.events...)
}

type testEnv struct {
	service   *Service
	users     *users.Service
	db        *gorm.DB
	index     *search.Index
	published *recordingPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&users.User{}, &users.Follow{},
		&labels.Tag{}, &labels.Meal{},
		&Recipe{}, &Favourite{}, &ForkRef{}, &CommentRecord{},
	))
	for _, name := range labels.DefaultTags {
		require.NoError(t, db.Create(&labels.Tag{Name: name}).Error)
	}
	for _, name := range labels.DefaultMeals {
		require.NoError(t, db.Create(&labels.Meal{Name: name}).Error)
	}

	var (
		clockMu sync.Mutex
		tick    int64
	)
	clock := func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		tick++
		return time.Unix(1700000000+tick, 0)
	}

	published := &recordingPublisher{}
	userService, err := users.NewService(users.ServiceConfig{Database: db, Clock: clock, Activity: published})
	require.NoError(t, err)
	labelService, err := labels.NewService(labels.ServiceConfig{Database: db})
	require.NoError(t, err)
	index, err := search.Open(search.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	service, err := NewService(ServiceConfig{
		Database: db,
		Index:    index,
		Labels:   labelService,
		Follows:  userService,
		Activity: published,
		Clock:    clock,
	})
	require.NoError(t, err)

	for _, actor := range []users.Actor{admin, alice, bob, carol} {
		_, err := userService.Register(context.Background(), actor.Username)
		require.NoError(t, err)
	}
	return &testEnv{service: service, users: userService, db: db, index: index, published: published}
}

func recipeInput(title string) Input {
	return Input{
		Title:       title,
		Ingredients: []string{"1 egg"},
		Methods:     []string{"Cook it."},
		PrepMinutes: 5,
		CookMinutes: 10,
	}
}

func (e *testEnv) create(t *testing.T, author users.Actor, input Input) Recipe {
	t.Helper()
	created, err := e.service.Create(context.Background(), author, input)
	require.NoError(t, err)
	return created.Recipe
}

func (e *testEnv) reload(t *testing.T, slug string) Recipe {
	t.Helper()
	var recipe Recipe
	require.NoError(t, e.db.Where("slug = ?", slug).Take(&recipe).Error)
	return recipe
}

func (e *testEnv) recipeCount(t *testing.T, username string) int64 {
	t.Helper()
	user, err := e.users.Get(context.Background(), username)
	require.NoError(t, err)
	return user.RecipeCount
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceConfig{})
	require.Error(t, err)
}
