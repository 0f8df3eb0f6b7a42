// Package recipes implements recipe discovery and the relationship bookkeeping
// around recipes: slugs, forks, favourites, features and the comment ledger.
package recipes

import (
	"context"
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/cookbook/internal/activity"
	"github.com/MarcoPoloResearchLab/cookbook/internal/domainerr"
	"github.com/MarcoPoloResearchLab/cookbook/internal/labels"
	"github.com/MarcoPoloResearchLab/cookbook/internal/search"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opServiceNew      = "recipes.service.new"
	opGenerateSlug    = "recipes.generate_slug"
	opCreate          = "recipes.create"
	opEdit            = "recipes.edit"
	opGet             = "recipes.get"
	opView            = "recipes.view"
	opDelete          = "recipes.delete"
	opSearch          = "recipes.search"
	opToggleFavourite = "recipes.toggle_favourite"
	opToggleFeature   = "recipes.toggle_feature"
	opAddComment      = "recipes.add_comment"
	opDeleteComment   = "recipes.delete_comment"
	opListComments    = "recipes.list_comments"
	opReindex         = "recipes.reindex"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	errMissingIndex    = errors.New("text index is required")
	errMissingLabels   = errors.New("label catalog is required")
	errMissingFollows  = errors.New("follow graph is required")
	noOpLogger         = zap.NewNop()
)

// TextIndex is the free-text index kept in step with active recipes.
type TextIndex interface {
	Put(doc search.Document) error
	Remove(slug string) error
	Rebuild(docs []search.Document) error
	Match(ctx context.Context, predicate search.Predicate) ([]string, error)
}

// LabelCatalog reports labels a recipe may not carry.
type LabelCatalog interface {
	Unknown(ctx context.Context, kind labels.Kind, names []string) ([]string, error)
}

// FollowGraph resolves the usernames a user follows.
type FollowGraph interface {
	Following(ctx context.Context, username string) ([]string, error)
}

// ServiceConfig describes the dependencies of the recipe service.
type ServiceConfig struct {
	Database *gorm.DB
	Index    TextIndex
	Labels   LabelCatalog
	Follows  FollowGraph
	Activity activity.Publisher
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service owns recipe documents and the relationships hanging off them.
type Service struct {
	db       *gorm.DB
	index    TextIndex
	labels   LabelCatalog
	follows  FollowGraph
	activity activity.Publisher
	validate *validator.Validate
	now      func() time.Time
	logger   *zap.Logger
}

// NewService constructs the recipe service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, domainerr.NewServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.Index == nil {
		return nil, domainerr.NewServiceError(opServiceNew, "missing_index", errMissingIndex)
	}
	if cfg.Labels == nil {
		return nil, domainerr.NewServiceError(opServiceNew, "missing_labels", errMissingLabels)
	}
	if cfg.Follows == nil {
		return nil, domainerr.NewServiceError(opServiceNew, "missing_follows", errMissingFollows)
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
	validate, err := newValidator()
	if err != nil {
		return nil, domainerr.NewServiceError(opServiceNew, "validator_setup_failed", err)
	}
	return &Service{
		db:       cfg.Database,
		index:    cfg.Index,
		labels:   cfg.Labels,
		follows:  cfg.Follows,
		activity: publisher,
		validate: validate,
		now:      clock,
		logger:   logger,
	}, nil
}

// Reindex rebuilds the text index from every active recipe.
func (s *Service) Reindex(ctx context.Context) error {
	var rows []Recipe
	if err := active(s.db.WithContext(ctx)).
		Select("slug", "title", "ingredients").
		Find(&rows).Error; err != nil {
		s.logError(opReindex, "recipe_select_failed", err)
		return domainerr.NewServiceError(opReindex, "recipe_select_failed", err)
	}
	docs := make([]search.Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, documentFor(row))
	}
	if err := s.index.Rebuild(docs); err != nil {
		s.logError(opReindex, "rebuild_failed", err)
		return domainerr.NewServiceError(opReindex, "rebuild_failed", err)
	}
	return nil
}

func documentFor(recipe Recipe) search.Document {
	return search.Document{
		Slug:        recipe.Slug,
		Title:       recipe.Title,
		Ingredients: recipe.Ingredients,
	}
}

func active(db *gorm.DB) *gorm.DB {
	return db.Where("recipes.state = ?", StateActive)
}

// findActive loads a recipe, treating soft-deleted recipes as absent.
func (s *Service) findActive(ctx context.Context, db *gorm.DB, operation, slug string) (Recipe, error) {
	var recipe Recipe
	err := active(db.WithContext(ctx)).Where("slug = ?", slug).Take(&recipe).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Recipe{}, domainerr.NotFound("recipes.not_found", "recipe does not exist")
	}
	if err != nil {
		s.logError(operation, "recipe_select_failed", err, zap.String("slug", slug))
		return Recipe{}, domainerr.NewServiceError(operation, "recipe_select_failed", err)
	}
	return recipe, nil
}

func (s *Service) failure(operation, reason string, err error, fields ...zap.Field) error {
	s.logError(operation, reason, err, fields...)
	return domainerr.NewServiceError(operation, reason, err)
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
	s.logger.Error("recipes service error", attrs...)
}
