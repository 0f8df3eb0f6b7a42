package users

import (
	"context"

	"github.com/MarcoPoloResearchLab/cookbook/internal/activity"
	"github.com/MarcoPoloResearchLab/cookbook/internal/domainerr"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ToggleFollow adds follower to followee's followers (and followee to follower's
// following) or removes both, keeping the two counters equal to the set sizes.
// It returns the new state: true when follower now follows followee.
func (s *Service) ToggleFollow(ctx context.Context, followee string, follower Actor) (bool, error) {
	if !follower.Authenticated() {
		return false, domainerr.Forbidden("users.unauthenticated", "log in to follow users")
	}
	followee = normalize(followee)
	if follower.Is(followee) {
		return false, domainerr.Forbidden("users.self_follow", "you cannot follow yourself")
	}

	following := false
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.find(ctx, tx, opToggleFollow, followee); err != nil {
			return err
		}
		if _, err := s.find(ctx, tx, opToggleFollow, follower.Username); err != nil {
			return err
		}

		edge := Follow{Follower: follower.Username, Followee: followee, CreatedAt: s.now().UTC()}
		inserted := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&edge)
		if inserted.Error != nil {
			return s.followFailure("edge_insert_failed", inserted.Error, followee, follower.Username)
		}

		delta := 1
		if inserted.RowsAffected == 0 {
			removed := tx.Where("follower = ? AND followee = ?", follower.Username, followee).Delete(&Follow{})
			if removed.Error != nil {
				return s.followFailure("edge_delete_failed", removed.Error, followee, follower.Username)
			}
			delta = -1
		}

		if err := tx.Model(&User{}).Where("username = ?", followee).
			UpdateColumn("follower_count", gorm.Expr("follower_count + ?", delta)).Error; err != nil {
			return s.followFailure("follower_count_failed", err, followee, follower.Username)
		}
		if err := tx.Model(&User{}).Where("username = ?", follower.Username).
			UpdateColumn("following_count", gorm.Expr("following_count + ?", delta)).Error; err != nil {
			return s.followFailure("following_count_failed", err, followee, follower.Username)
		}
		following = delta > 0
		return nil
	})
	if txErr != nil {
		return false, txErr
	}

	s.logger.Debug("follow toggled",
		zap.String("followee", followee),
		zap.String("follower", follower.Username),
		zap.Bool("following", following))
	if following {
		s.activity.Publish(activity.Event{
			Recipient: followee,
			Type:      activity.TypeNewFollower,
			Actor:     follower.Username,
			Timestamp: s.now().UTC(),
		})
	}
	return following, nil
}

func (s *Service) followFailure(reason string, err error, followee, follower string) error {
	s.logError(opToggleFollow, reason, err,
		zap.String("followee", followee),
		zap.String("follower", follower))
	return domainerr.NewServiceError(opToggleFollow, reason, err)
}
