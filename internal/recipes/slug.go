package recipes

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

const (
	emptySlugBase = "recipe"
	maxSlugBase   = 160
)

var nonSlugRun = regexp.MustCompile(`[^a-z0-9]+`)

// SlugBase derives the URL-safe base of a title.
// "Apple Pie" -> "apple-pie", "Crème brûlée!" -> "creme-brulee".
func SlugBase(title string) string {
	s := norm.NFKD.String(title)
	s = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)
	s = strings.ToLower(s)
	s = nonSlugRun.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > maxSlugBase {
		s = strings.TrimRight(s[:maxSlugBase], "-")
	}
	if s == "" {
		return emptySlugBase
	}
	return s
}

// GenerateSlug returns the slug the next recipe titled title would receive.
func (s *Service) GenerateSlug(ctx context.Context, title string) (string, error) {
	return s.nextSlug(ctx, s.db, title)
}

// nextSlug counts every recipe, deleted ones included, whose slug is the base
// followed only by digits, and appends that count when it is nonzero. Suffixes
// are therefore never handed out twice.
func (s *Service) nextSlug(ctx context.Context, db *gorm.DB, title string) (string, error) {
	base := SlugBase(title)
	n := len(base)

	var count int64
	if err := db.WithContext(ctx).Model(&Recipe{}).
		Where("slug = ? OR (substr(slug, 1, ?) = ? AND length(slug) > ? AND ltrim(substr(slug, ?), '0123456789') = '')",
			base, n, base, n, n+1).
		Count(&count).Error; err != nil {
		return "", s.failure(opGenerateSlug, "count_failed", err)
	}
	if count == 0 {
		return base, nil
	}

	// A title ending in digits can already own base+count.
	for suffix := count; ; suffix++ {
		candidate := base + strconv.FormatInt(suffix, 10)
		var taken int64
		if err := db.WithContext(ctx).Model(&Recipe{}).Where("slug = ?", candidate).Count(&taken).Error; err != nil {
			return "", s.failure(opGenerateSlug, "lookup_failed", err)
		}
		if taken == 0 {
			return candidate, nil
		}
	}
}
