package labels

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/cookbook/internal/domainerr"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opList     = "labels.list"
	opCreate   = "labels.create"
	opDelete   = "labels.delete"
	opValidate = "labels.validate"
)

var errMissingDatabase = errors.New("labels: database handle is required")

// ServiceConfig describes the dependencies of the label service.
type ServiceConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Service manages the tag and meal vocabularies.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService constructs the label service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, logger: logger}, nil
}

// List returns every label of the given kind ordered by name.
func (s *Service) List(ctx context.Context, kind Kind) ([]string, error) {
	model, err := modelFor(kind)
	if err != nil {
		return nil, err
	}
	var names []string
	if err := s.db.WithContext(ctx).Model(model).Order("name ASC").Pluck("name", &names).Error; err != nil {
		return nil, s.failure(opList, "select_failed", err, kind)
	}
	return names, nil
}

// Caller is the identity performing a label mutation.
type Caller interface {
	IsAdmin() bool
}

// Create adds a label; duplicates and malformed names are validation failures.
func (s *Service) Create(ctx context.Context, caller Caller, kind Kind, name string) error {
	if caller == nil || !caller.IsAdmin() {
		return domainerr.Forbidden("labels.admin_only", "only administrators manage labels")
	}
	name = strings.TrimSpace(name)
	if !ValidName(name) {
		return domainerr.Validation("labels.invalid_name", "label names may only contain letters and dashes", name)
	}
	if _, err := modelFor(kind); err != nil {
		return err
	}
	record := recordFor(kind, name)
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(record)
	if result.Error != nil {
		return s.failure(opCreate, "insert_failed", result.Error, kind)
	}
	if result.RowsAffected == 0 {
		return domainerr.Validation("labels.duplicate", fmt.Sprintf("%s %q already exists", kind, name), name)
	}
	return nil
}

// Delete removes a label. Recipes keep any labels they already carry.
func (s *Service) Delete(ctx context.Context, caller Caller, kind Kind, name string) error {
	if caller == nil || !caller.IsAdmin() {
		return domainerr.Forbidden("labels.admin_only", "only administrators manage labels")
	}
	model, err := modelFor(kind)
	if err != nil {
		return err
	}
	result := s.db.WithContext(ctx).Where("name = ?", name).Delete(model)
	if result.Error != nil {
		return s.failure(opDelete, "delete_failed", result.Error, kind)
	}
	if result.RowsAffected == 0 {
		return domainerr.NotFound("labels.not_found", fmt.Sprintf("%s %q does not exist", kind, name))
	}
	return nil
}

// Unknown returns the members of names that are not registered labels of kind.
func (s *Service) Unknown(ctx context.Context, kind Kind, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	model, err := modelFor(kind)
	if err != nil {
		return nil, err
	}
	var known []string
	if err := s.db.WithContext(ctx).Model(model).Where("name IN ?", names).Pluck("name", &known).Error; err != nil {
		return nil, s.failure(opValidate, "select_failed", err, kind)
	}
	knownSet := make(map[string]struct{}, len(known))
	for _, name := range known {
		knownSet[name] = struct{}{}
	}
	var unknown []string
	for _, name := range names {
		if _, ok := knownSet[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown, nil
}

func modelFor(kind Kind) (any, error) {
	switch kind {
	case KindTag:
		return &Tag{}, nil
	case KindMeal:
		return &Meal{}, nil
	default:
		return nil, fmt.Errorf("labels: unknown kind %q", kind)
	}
}

func recordFor(kind Kind, name string) any {
	if kind == KindMeal {
		return &Meal{Name: name}
	}
	return &Tag{Name: name}
}

func (s *Service) failure(operation, reason string, err error, kind Kind) error {
	s.logger.Error("labels service error",
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.String("kind", string(kind)),
		zap.Error(err))
	return domainerr.NewServiceError(operation, reason, err)
}
