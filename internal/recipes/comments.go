package recipes

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/cookbook/internal/activity"
	"github.com/MarcoPoloResearchLab/cookbook/internal/domainerr"
	"github.com/MarcoPoloResearchLab/cookbook/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AddComment appends a comment to the recipe's ledger and returns its index.
func (s *Service) AddComment(ctx context.Context, slug string, author users.Actor, body string) (int, error) {
	if !author.Authenticated() {
		return 0, domainerr.Forbidden("recipes.unauthenticated", "log in to comment")
	}
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return 0, domainerr.Validation("recipes.empty_comment", "comments must not be empty", body)
	}

	var (
		index       int
		recipeOwner string
		createdAt   = s.now().UTC()
	)
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recipe, err := s.findActive(ctx, tx, opAddComment, slug)
		if err != nil {
			return err
		}
		recipeOwner = recipe.Author

		var length int64
		if err := tx.Model(&CommentRecord{}).Where("recipe_slug = ?", slug).Count(&length).Error; err != nil {
			return s.failure(opAddComment, "ledger_count_failed", err, zap.String("slug", slug))
		}
		record := CommentRecord{
			RecipeSlug: slug,
			Position:   int(length),
			Author:     author.Username,
			Body:       trimmed,
			CreatedAt:  &createdAt,
		}
		if err := tx.Create(&record).Error; err != nil {
			return s.failure(opAddComment, "comment_insert_failed", err, zap.String("slug", slug))
		}
		if err := tx.Model(&Recipe{}).Where("slug = ?", slug).
			UpdateColumn("comment_count", gorm.Expr("comment_count + ?", 1)).Error; err != nil {
			return s.failure(opAddComment, "comment_count_failed", err, zap.String("slug", slug))
		}
		index = record.Position
		return nil
	})
	if txErr != nil {
		return 0, txErr
	}

	if recipeOwner != author.Username {
		s.activity.Publish(activity.Event{
			Recipient: recipeOwner,
			Type:      activity.TypeRecipeCommented,
			Actor:     author.Username,
			Recipe:    slug,
			Timestamp: createdAt,
		})
	}
	return index, nil
}

// DeleteComment tombstones the comment at rawIndex. The position stays in the
// ledger so later indices keep their meaning. Unparseable, out of range and
// already deleted indices are forbidden, as is anyone but the comment's author
// or an administrator.
func (s *Service) DeleteComment(ctx context.Context, slug, rawIndex string, requester users.Actor) error {
	if !requester.Authenticated() {
		return domainerr.Forbidden("recipes.unauthenticated", "log in to delete comments")
	}
	index, err := strconv.Atoi(strings.TrimSpace(rawIndex))
	if err != nil || index < 0 {
		return domainerr.Forbidden("recipes.comment_index_invalid", "no such comment")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.findActive(ctx, tx, opDeleteComment, slug); err != nil {
			return err
		}

		var record CommentRecord
		err := tx.Where("recipe_slug = ? AND position = ?", slug, index).Take(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && record.Deleted) {
			return domainerr.Forbidden("recipes.comment_index_invalid", "no such comment")
		}
		if err != nil {
			return s.failure(opDeleteComment, "comment_select_failed", err, zap.String("slug", slug))
		}
		if !requester.Is(record.Author) && !requester.IsAdmin() {
			return domainerr.Forbidden("recipes.not_comment_author", "only the author can delete this comment")
		}

		result := tx.Model(&CommentRecord{}).
			Where("recipe_slug = ? AND position = ? AND deleted = ?", slug, index, false).
			Updates(map[string]any{
				"deleted":    true,
				"author":     "",
				"body":       "",
				"created_at": gorm.Expr("NULL"),
			})
		if result.Error != nil {
			return s.failure(opDeleteComment, "comment_update_failed", result.Error, zap.String("slug", slug))
		}
		if result.RowsAffected == 0 {
			return domainerr.Forbidden("recipes.comment_index_invalid", "no such comment")
		}
		if err := tx.Model(&Recipe{}).Where("slug = ?", slug).
			UpdateColumn("comment_count", gorm.Expr("comment_count - ?", 1)).Error; err != nil {
			return s.failure(opDeleteComment, "comment_count_failed", err, zap.String("slug", slug))
		}
		return nil
	})
}

// ListComments returns the whole ledger in position order, tombstones included.
func (s *Service) ListComments(ctx context.Context, slug string, viewer users.Actor) ([]LedgerEntry, error) {
	if _, err := s.findActive(ctx, s.db, opListComments, slug); err != nil {
		return nil, err
	}
	var records []CommentRecord
	if err := s.db.WithContext(ctx).
		Where("recipe_slug = ?", slug).
		Order("position ASC").
		Find(&records).Error; err != nil {
		return nil, s.failure(opListComments, "ledger_select_failed", err, zap.String("slug", slug))
	}
	entries := make([]LedgerEntry, 0, len(records))
	for _, record := range records {
		entry := record.entry()
		entry.CanDelete = !entry.Deleted() && (viewer.Is(record.Author) || viewer.IsAdmin())
		entries = append(entries, entry)
	}
	return entries, nil
}
