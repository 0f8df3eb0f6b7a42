package recipes

import (
	"context"

	"github.com/MarcoPoloResearchLab/cookbook/internal/activity"
	"github.com/MarcoPoloResearchLab/cookbook/internal/domainerr"
	"github.com/MarcoPoloResearchLab/cookbook/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ToggleFavourite adds the caller to the recipe's favouriting users or removes
// them, moving the favourite counter with the set. It returns the new state.
func (s *Service) ToggleFavourite(ctx context.Context, slug string, caller users.Actor) (bool, error) {
	if !caller.Authenticated() {
		return false, domainerr.Forbidden("recipes.unauthenticated", "log in to favourite recipes")
	}

	var (
		favourited bool
		author     string
	)
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recipe, err := s.findActive(ctx, tx, opToggleFavourite, slug)
		if err != nil {
			return err
		}
		if caller.Is(recipe.Author) {
			return domainerr.Forbidden("recipes.own_recipe", "you cannot favourite your own recipe")
		}
		author = recipe.Author

		membership := Favourite{RecipeSlug: slug, Username: caller.Username, CreatedAt: s.now().UTC()}
		inserted := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&membership)
		if inserted.Error != nil {
			return s.failure(opToggleFavourite, "favourite_insert_failed", inserted.Error, zap.String("slug", slug))
		}
		delta := 1
		if inserted.RowsAffected == 0 {
			removed := tx.Where("recipe_slug = ? AND username = ?", slug, caller.Username).Delete(&Favourite{})
			if removed.Error != nil {
				return s.failure(opToggleFavourite, "favourite_delete_failed", removed.Error, zap.String("slug", slug))
			}
			delta = -1
		}
		if err := tx.Model(&Recipe{}).Where("slug = ?", slug).
			UpdateColumn("favourite_count", gorm.Expr("favourite_count + ?", delta)).Error; err != nil {
			return s.failure(opToggleFavourite, "favourite_count_failed", err, zap.String("slug", slug))
		}
		favourited = delta > 0
		return nil
	})
	if txErr != nil {
		return false, txErr
	}

	if favourited {
		s.activity.Publish(activity.Event{
			Recipient: author,
			Type:      activity.TypeRecipeFavourited,
			Actor:     caller.Username,
			Recipe:    slug,
			Timestamp: s.now().UTC(),
		})
	}
	return favourited, nil
}

// ToggleFeature sets or clears the featured marker of a recipe. Admin only.
func (s *Service) ToggleFeature(ctx context.Context, slug string, caller users.Actor) (bool, error) {
	if !caller.IsAdmin() {
		return false, domainerr.Forbidden("recipes.admin_only", "only administrators can feature recipes")
	}

	var featured bool
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := active(tx.Model(&Recipe{})).Where("slug = ?", slug).
			UpdateColumn("featured_since", gorm.Expr("CASE WHEN featured_since IS NULL THEN ? ELSE NULL END", s.now().UTC()))
		if result.Error != nil {
			return s.failure(opToggleFeature, "feature_update_failed", result.Error, zap.String("slug", slug))
		}
		if result.RowsAffected == 0 {
			return domainerr.NotFound("recipes.not_found", "recipe does not exist")
		}
		recipe, err := s.findActive(ctx, tx, opToggleFeature, slug)
		if err != nil {
			return err
		}
		featured = recipe.Featured()
		return nil
	})
	if txErr != nil {
		return false, txErr
	}
	s.logger.Info("recipe feature toggled", zap.String("slug", slug), zap.Bool("featured", featured))
	return featured, nil
}
