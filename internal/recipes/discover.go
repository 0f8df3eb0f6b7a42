package recipes

import (
	"context"

	"github.com/MarcoPoloResearchLab/cookbook/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Search resolves criteria against the caller's session and returns one page
// of matching active recipes. The total is counted before the page is fetched.
func (s *Service) Search(ctx context.Context, criteria Criteria, session users.SessionContext, caller users.Actor) (Page, error) {
	query := BuildQuery(Resolve(criteria, session))
	page := ParsePage(criteria.Page)

	var followed []string
	if query.Following {
		if caller.Authenticated() {
			var err error
			followed, err = s.follows.Following(ctx, caller.Username)
			if err != nil {
				return Page{}, err
			}
		}
		if len(followed) == 0 {
			if _, err := Offset(page, 0); err != nil {
				return Page{}, err
			}
			return Page{Items: []Recipe{}, TotalCount: 0, Page: page}, nil
		}
	}

	var textMatches []string
	if !query.Text.IsEmpty() {
		var err error
		textMatches, err = s.index.Match(ctx, query.Text)
		if err != nil {
			return Page{}, s.failure(opSearch, "text_match_failed", err, zap.String("search", query.Text.String()))
		}
	}

	// Match sets are bound as one JSON array so their size is not capped by
	// the driver's parameter limit.
	filtered := func() *gorm.DB {
		db := query.scope(s.db.WithContext(ctx).Model(&Recipe{}), caller.Username)
		if query.Following {
			db = db.Where("recipes.author IN (SELECT value FROM json_each(?))", StringList(followed))
		}
		if !query.Text.IsEmpty() {
			db = db.Where("recipes.slug IN (SELECT value FROM json_each(?))", StringList(textMatches))
		}
		return db
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return Page{}, s.failure(opSearch, "count_failed", err)
	}
	offset, err := Offset(page, total)
	if err != nil {
		return Page{}, err
	}

	items := make([]Recipe, 0, PageSize)
	if total > 0 {
		if err := filtered().Clauses(query.orderBy()).Offset(offset).Limit(PageSize).Find(&items).Error; err != nil {
			return Page{}, s.failure(opSearch, "fetch_failed", err)
		}
	}
	return Page{Items: items, TotalCount: total, Page: page}, nil
}
