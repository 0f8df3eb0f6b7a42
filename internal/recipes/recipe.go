package recipes

import (
	"context"
	"errors"

	"github.com/MarcoPoloResearchLab/cookbook/internal/activity"
	"github.com/MarcoPoloResearchLab/cookbook/internal/domainerr"
	"github.com/MarcoPoloResearchLab/cookbook/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Create stores a new recipe authored by the caller. When input.Parent names an
// active recipe the new recipe is linked as its fork; a fork may not reuse its
// parent's title. A missing parent is reported through Created.ParentMissing.
func (s *Service) Create(ctx context.Context, author users.Actor, input Input) (Created, error) {
	if !author.Authenticated() {
		return Created{}, domainerr.Forbidden("recipes.unauthenticated", "log in to add recipes")
	}
	original := input
	input = normalizeInput(input)
	if err := s.validateInput(ctx, opCreate, input, original); err != nil {
		return Created{}, err
	}

	var (
		created Created
		parent  *Recipe
	)
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		parent = nil
		created = Created{}
		if input.Parent != "" {
			found, err := s.findActive(ctx, tx, opCreate, input.Parent)
			switch {
			case errors.Is(err, domainerr.ErrNotFound):
				created.ParentMissing = true
			case err != nil:
				return err
			case found.Title == input.Title:
				return domainerr.Validation("recipes.duplicate_title",
					"a fork must not have the same title as the recipe it was forked from", original)
			default:
				parent = &found
			}
		}

		slug, err := s.nextSlug(ctx, tx, input.Title)
		if err != nil {
			return err
		}
		recipe := Recipe{
			Slug:         slug,
			Title:        input.Title,
			Author:       author.Username,
			Ingredients:  StringList(input.Ingredients),
			Methods:      StringList(input.Methods),
			Tags:         StringList(input.Tags),
			Meals:        StringList(input.Meals),
			PrepMinutes:  input.PrepMinutes,
			CookMinutes:  input.CookMinutes,
			TotalMinutes: input.PrepMinutes + input.CookMinutes,
			CreatedAt:    s.now().UTC(),
			State:        StateActive,
		}
		if parent != nil {
			parentSlug := parent.Slug
			recipe.ParentSlug = &parentSlug
		}
		if err := tx.Create(&recipe).Error; err != nil {
			return s.failure(opCreate, "recipe_insert_failed", err, zap.String("slug", slug))
		}
		if parent != nil {
			ref := ForkRef{
				ChildSlug:  recipe.Slug,
				ParentSlug: parent.Slug,
				ChildTitle: recipe.Title,
				CreatedAt:  recipe.CreatedAt,
			}
			if err := tx.Create(&ref).Error; err != nil {
				return s.failure(opCreate, "fork_ref_insert_failed", err, zap.String("slug", slug))
			}
		}
		if err := users.AdjustRecipeCount(tx, author.Username, 1); err != nil {
			return s.failure(opCreate, "recipe_count_failed", err, zap.String("author", author.Username))
		}
		created.Recipe = recipe
		return nil
	})
	if txErr != nil {
		return Created{}, txErr
	}

	s.indexRecipe(opCreate, created.Recipe)
	if parent != nil && parent.Author != author.Username {
		s.activity.Publish(activity.Event{
			Recipient: parent.Author,
			Type:      activity.TypeRecipeForked,
			Actor:     author.Username,
			Recipe:    parent.Slug,
			Timestamp: created.Recipe.CreatedAt,
		})
	}
	s.logger.Info("recipe created",
		zap.String("slug", created.Recipe.Slug),
		zap.String("author", author.Username),
		zap.Bool("fork", parent != nil))
	return created, nil
}

// CreateFork creates a recipe forked from parentSlug.
func (s *Service) CreateFork(ctx context.Context, author users.Actor, parentSlug string, input Input) (Created, error) {
	input.Parent = parentSlug
	return s.Create(ctx, author, input)
}

// Edit replaces the editable fields of a recipe. The slug and parent never change.
func (s *Service) Edit(ctx context.Context, editor users.Actor, slug string, input Input) (Recipe, error) {
	if !editor.Authenticated() {
		return Recipe{}, domainerr.Forbidden("recipes.unauthenticated", "log in to edit recipes")
	}
	original := input
	input = normalizeInput(input)
	input.Parent = ""
	if err := s.validateInput(ctx, opEdit, input, original); err != nil {
		return Recipe{}, err
	}

	var updated Recipe
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recipe, err := s.findActive(ctx, tx, opEdit, slug)
		if err != nil {
			return err
		}
		if !editor.Is(recipe.Author) && !editor.IsAdmin() {
			return domainerr.Forbidden("recipes.not_author", "only the author can edit this recipe")
		}
		if parentSlug, ok := recipe.Parent(); ok {
			parent, err := s.findActive(ctx, tx, opEdit, parentSlug)
			if err != nil && !errors.Is(err, domainerr.ErrNotFound) {
				return err
			}
			if err == nil && parent.Title == input.Title {
				return domainerr.Validation("recipes.duplicate_title",
					"a fork must not have the same title as the recipe it was forked from", original)
			}
		}

		recipe.Title = input.Title
		recipe.Ingredients = StringList(input.Ingredients)
		recipe.Methods = StringList(input.Methods)
		recipe.Tags = StringList(input.Tags)
		recipe.Meals = StringList(input.Meals)
		recipe.PrepMinutes = input.PrepMinutes
		recipe.CookMinutes = input.CookMinutes
		recipe.TotalMinutes = input.PrepMinutes + input.CookMinutes
		if err := tx.Model(&Recipe{}).Where("slug = ?", slug).Updates(map[string]any{
			"title":         recipe.Title,
			"ingredients":   recipe.Ingredients,
			"methods":       recipe.Methods,
			"tags":          recipe.Tags,
			"meals":         recipe.Meals,
			"prep_minutes":  recipe.PrepMinutes,
			"cook_minutes":  recipe.CookMinutes,
			"total_minutes": recipe.TotalMinutes,
		}).Error; err != nil {
			return s.failure(opEdit, "recipe_update_failed", err, zap.String("slug", slug))
		}
		if err := tx.Model(&ForkRef{}).Where("child_slug = ?", slug).
			Update("child_title", recipe.Title).Error; err != nil {
			return s.failure(opEdit, "fork_ref_update_failed", err, zap.String("slug", slug))
		}
		updated = recipe
		return nil
	})
	if txErr != nil {
		return Recipe{}, txErr
	}
	s.indexRecipe(opEdit, updated)
	return updated, nil
}

// Get returns an active recipe with its favourites and forks.
func (s *Service) Get(ctx context.Context, slug string) (Details, error) {
	recipe, err := s.findActive(ctx, s.db, opGet, slug)
	if err != nil {
		return Details{}, err
	}

	favouritedBy := make([]string, 0)
	if err := s.db.WithContext(ctx).Model(&Favourite{}).
		Where("recipe_slug = ?", slug).
		Order("created_at ASC").
		Pluck("username", &favouritedBy).Error; err != nil {
		return Details{}, s.failure(opGet, "favourites_query_failed", err, zap.String("slug", slug))
	}

	children := make([]ForkRef, 0)
	if err := s.db.WithContext(ctx).
		Where("parent_slug = ?", slug).
		Order("created_at ASC").Order("child_slug ASC").
		Find(&children).Error; err != nil {
		return Details{}, s.failure(opGet, "forks_query_failed", err, zap.String("slug", slug))
	}

	return Details{Recipe: recipe, FavouritedBy: favouritedBy, Children: children}, nil
}

// View counts a page view and returns the recipe.
func (s *Service) View(ctx context.Context, slug string) (Details, error) {
	result := active(s.db.WithContext(ctx).Model(&Recipe{})).
		Where("slug = ?", slug).
		UpdateColumn("views", gorm.Expr("views + ?", 1))
	if result.Error != nil {
		return Details{}, s.failure(opView, "views_update_failed", result.Error, zap.String("slug", slug))
	}
	if result.RowsAffected == 0 {
		return Details{}, domainerr.NotFound("recipes.not_found", "recipe does not exist")
	}
	return s.Get(ctx, slug)
}

// Delete soft-deletes a recipe. Its forks are orphaned and its entry in its
// parent's fork list is removed.
func (s *Service) Delete(ctx context.Context, requester users.Actor, slug string) error {
	if !requester.Authenticated() {
		return domainerr.Forbidden("recipes.unauthenticated", "log in to delete recipes")
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recipe, err := s.findActive(ctx, tx, opDelete, slug)
		if err != nil {
			return err
		}
		if !requester.Is(recipe.Author) && !requester.IsAdmin() {
			return domainerr.Forbidden("recipes.not_author", "only the author can delete this recipe")
		}

		result := active(tx.Model(&Recipe{})).Where("slug = ?", slug).Update("state", StateDeleted)
		if result.Error != nil {
			return s.failure(opDelete, "recipe_update_failed", result.Error, zap.String("slug", slug))
		}
		if result.RowsAffected == 0 {
			return domainerr.NotFound("recipes.not_found", "recipe does not exist")
		}
		if err := tx.Model(&Recipe{}).Where("parent_slug = ?", slug).
			Update("parent_slug", gorm.Expr("NULL")).Error; err != nil {
			return s.failure(opDelete, "orphan_children_failed", err, zap.String("slug", slug))
		}
		if err := tx.Where("child_slug = ? OR parent_slug = ?", slug, slug).Delete(&ForkRef{}).Error; err != nil {
			return s.failure(opDelete, "fork_ref_delete_failed", err, zap.String("slug", slug))
		}
		if err := users.AdjustRecipeCount(tx, recipe.Author, -1); err != nil {
			return s.failure(opDelete, "recipe_count_failed", err, zap.String("author", recipe.Author))
		}
		return nil
	})
	if txErr != nil {
		return txErr
	}

	if err := s.index.Remove(slug); err != nil {
		s.logError(opDelete, "index_remove_failed", err, zap.String("slug", slug))
	}
	s.logger.Info("recipe deleted", zap.String("slug", slug), zap.String("requested_by", requester.Username))
	return nil
}

// indexRecipe keeps the text index current. Failures are logged; the index is
// rebuilt from the table at startup.
func (s *Service) indexRecipe(operation string, recipe Recipe) {
	if err := s.index.Put(documentFor(recipe)); err != nil {
		s.logError(operation, "index_put_failed", err, zap.String("slug", recipe.Slug))
	}
}
