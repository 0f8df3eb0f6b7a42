package users

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/MarcoPoloResearchLab/cookbook/internal/activity"
	"github.com/MarcoPoloResearchLab/cookbook/internal/domainerr"
	"github.com/MarcoPoloResearchLab/cookbook/internal/labels"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opServiceNew      = "users.service.new"
	opRegister        = "users.register"
	opLogin           = "users.login"
	opProfile         = "users.profile"
	opSavePreferences = "users.save_preferences"
	opToggleFollow    = "users.toggle_follow"
	opFollowing       = "users.following"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	usernamePattern    = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	noOpLogger         = zap.NewNop()
)

const maxUsernameLength = 64

// ServiceConfig describes the dependencies required for user management.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
	Activity activity.Publisher
}

// Service manages user documents and the follow graph.
type Service struct {
	db       *gorm.DB
	now      func() time.Time
	logger   *zap.Logger
	activity activity.Publisher
}

// NewService constructs the user service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, domainerr.NewServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	publisher := cfg.Activity
	if publisher == nil {
		publisher = activity.Discard{}
	}
	return &Service{
		db:       cfg.Database,
		now:      clock,
		logger:   logger,
		activity: publisher,
	}, nil
}

// Register creates a user with an empty profile.
func (s *Service) Register(ctx context.Context, username string) (User, error) {
	username = normalize(username)
	if username == "" || len(username) > maxUsernameLength || !usernamePattern.MatchString(username) {
		return User{}, domainerr.Validation("users.invalid_username",
			"usernames may only contain letters, digits, dashes and underscores", username)
	}

	user := User{
		Username: username,
		JoinedAt: s.now().UTC(),
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&user)
	if result.Error != nil {
		s.logError(opRegister, "insert_failed", result.Error, zap.String("username", username))
		return User{}, domainerr.NewServiceError(opRegister, "insert_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return User{}, domainerr.Validation("users.username_taken", "that username is already taken", username)
	}
	s.logger.Info("user registered", zap.String("username", username))
	return user, nil
}

// Login resolves the user and returns the session context to install.
func (s *Service) Login(ctx context.Context, username string) (User, SessionContext, error) {
	user, err := s.find(ctx, s.db, opLogin, normalize(username))
	if err != nil {
		return User{}, SessionContext{}, err
	}
	return user, NewSessionContext(user), nil
}

// Get returns the stored user.
func (s *Service) Get(ctx context.Context, username string) (User, error) {
	return s.find(ctx, s.db, opProfile, normalize(username))
}

// Profile returns the user together with both sides of the follow graph.
func (s *Service) Profile(ctx context.Context, username string) (Profile, error) {
	user, err := s.find(ctx, s.db, opProfile, normalize(username))
	if err != nil {
		return Profile{}, err
	}

	var followers []string
	if err := s.db.WithContext(ctx).Model(&Follow{}).
		Where("followee = ?", user.Username).
		Order("created_at ASC").
		Pluck("follower", &followers).Error; err != nil {
		s.logError(opProfile, "followers_query_failed", err, zap.String("username", user.Username))
		return Profile{}, domainerr.NewServiceError(opProfile, "followers_query_failed", err)
	}

	following, err := s.Following(ctx, user.Username)
	if err != nil {
		return Profile{}, err
	}

	return Profile{User: user, Followers: followers, Following: following}, nil
}

// Following returns the usernames the user follows.
func (s *Service) Following(ctx context.Context, username string) ([]string, error) {
	var following []string
	if err := s.db.WithContext(ctx).Model(&Follow{}).
		Where("follower = ?", username).
		Order("created_at ASC").
		Pluck("followee", &following).Error; err != nil {
		s.logError(opFollowing, "query_failed", err, zap.String("username", username))
		return nil, domainerr.NewServiceError(opFollowing, "query_failed", err)
	}
	return following, nil
}

// SavePreferences stores the standing filters. A label present in both sets is
// kept only as a preference. The returned context replaces the caller's session.
func (s *Service) SavePreferences(ctx context.Context, actor Actor, preferences, exclusions string) (SessionContext, error) {
	if !actor.Authenticated() {
		return SessionContext{}, domainerr.Forbidden("users.unauthenticated", "log in to save preferences")
	}

	included := labels.Split(preferences)
	includedSet := make(map[string]struct{}, len(included))
	for _, label := range included {
		includedSet[label] = struct{}{}
	}
	excluded := make([]string, 0)
	for _, label := range labels.Split(exclusions) {
		if _, ok := includedSet[label]; !ok {
			excluded = append(excluded, label)
		}
	}

	session := SessionContext{
		Preferences: labels.Join(included),
		Exclusions:  labels.Join(excluded),
	}
	result := s.db.WithContext(ctx).Model(&User{}).
		Where("username = ?", actor.Username).
		Updates(map[string]any{
			"preferences": session.Preferences,
			"exclusions":  session.Exclusions,
		})
	if result.Error != nil {
		s.logError(opSavePreferences, "update_failed", result.Error, zap.String("username", actor.Username))
		return SessionContext{}, domainerr.NewServiceError(opSavePreferences, "update_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return SessionContext{}, domainerr.NotFound("users.not_found", "user does not exist")
	}
	return session, nil
}

// AdjustRecipeCount shifts the user's recipe counter inside the caller's transaction.
func AdjustRecipeCount(tx *gorm.DB, username string, delta int) error {
	return tx.Model(&User{}).
		Where("username = ?", username).
		UpdateColumn("recipe_count", gorm.Expr("recipe_count + ?", delta)).Error
}

func (s *Service) find(ctx context.Context, db *gorm.DB, operation, username string) (User, error) {
	if username == "" {
		return User{}, domainerr.NotFound("users.not_found", "user does not exist")
	}
	var user User
	err := db.WithContext(ctx).Where("username = ?", username).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, domainerr.NotFound("users.not_found", "user does not exist")
	}
	if err != nil {
		s.logError(operation, "user_select_failed", err, zap.String("username", username))
		return User{}, domainerr.NewServiceError(operation, "user_select_failed", err)
	}
	return user, nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("users service error", attrs...)
}
