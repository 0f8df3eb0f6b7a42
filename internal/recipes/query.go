package recipes

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/MarcoPoloResearchLab/cookbook/internal/search"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultSort = "created_at"
	// OrderAscending and OrderDescending are the only accepted sort orders.
	OrderAscending  = 1
	OrderDescending = -1
)

var quotedPhrase = regexp.MustCompile(`"([^"]*)"`)

// sortColumns maps accepted sort names, lowercased with separators removed,
// onto recipe columns. JSON names, the hyphenated form names and the column
// names all resolve here.
var sortColumns = map[string]string{
	"slug":           "slug",
	"title":          "title",
	"author":         "author",
	"preptime":       "prep_minutes",
	"prepminutes":    "prep_minutes",
	"cooktime":       "cook_minutes",
	"cookminutes":    "cook_minutes",
	"totaltime":      "total_minutes",
	"totalminutes":   "total_minutes",
	"date":           "created_at",
	"created":        "created_at",
	"createdat":      "created_at",
	"views":          "views",
	"favourites":     "favourite_count",
	"favouritecount": "favourite_count",
	"favorites":      "favourite_count",
	"favoritecount":  "favourite_count",
	"comments":       "comment_count",
	"commentcount":   "comment_count",
	"featured":       "featured_since",
	"featuredsince":  "featured_since",
}

// SortColumn resolves a requested sort name to a recipe column. Unknown names
// fall back to the creation time.
func SortColumn(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.TrimPrefix(key, "recipes.")
	key = strings.NewReplacer("-", "", "_", "", " ", "").Replace(key)
	if column, ok := sortColumns[key]; ok {
		return column
	}
	return defaultSort
}

// Query is the plan derived from resolved criteria.
type Query struct {
	Include    []string
	Exclude    []string
	Meals      []string
	Author     string
	ForkOf     string
	Featured   bool
	Following  bool
	Favourites bool
	Text       search.Predicate
	Sort       string
	Order      int
}

// BuildQuery translates resolved criteria into a query plan.
func BuildQuery(resolved Resolved) Query {
	return Query{
		Include:    resolved.Include,
		Exclude:    resolved.Exclude,
		Meals:      resolved.Meals,
		Author:     strings.TrimSpace(resolved.Author),
		ForkOf:     strings.TrimSpace(resolved.ForkOf),
		Featured:   resolved.Featured,
		Following:  resolved.Following,
		Favourites: resolved.Favourites,
		Text:       ParseFreeText(resolved.Search),
		Sort:       SortColumn(resolved.Sort),
		Order:      ParseOrder(resolved.Order),
	}
}

// ParseOrder accepts "1" or "-1"; anything else is descending.
func ParseOrder(raw string) int {
	order, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || (order != OrderAscending && order != OrderDescending) {
		return OrderDescending
	}
	return order
}

// ParseFreeText extracts double-quoted substrings verbatim as exact phrases and splits
// what remains into exact tokens. Tokens without letters or digits are dropped
// since they cannot match anything.
func ParseFreeText(raw string) search.Predicate {
	var predicate search.Predicate
	for _, match := range quotedPhrase.FindAllStringSubmatch(raw, -1) {
		phrase := strings.TrimSpace(match[1])
		if searchable(phrase) {
			predicate.Phrases = append(predicate.Phrases, phrase)
		}
	}
	remainder := quotedPhrase.ReplaceAllString(raw, " ")
	for _, token := range strings.Fields(strings.ReplaceAll(remainder, `"`, " ")) {
		if searchable(token) {
			predicate.Tokens = append(predicate.Tokens, token)
		}
	}
	return predicate
}

func searchable(value string) bool {
	return strings.IndexFunc(value, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) >= 0
}

// scope applies every predicate except free text and the follow set, which the
// caller resolves first. Deleted recipes are always excluded.
func (q Query) scope(db *gorm.DB, caller string) *gorm.DB {
	db = active(db)
	if len(q.Include) > 0 {
		db = db.Where("(SELECT COUNT(DISTINCT value) FROM json_each(recipes.tags) WHERE value IN ?) = ?", q.Include, len(q.Include))
	}
	if len(q.Exclude) > 0 {
		db = db.Where("NOT EXISTS (SELECT 1 FROM json_each(recipes.tags) WHERE value IN ?)", q.Exclude)
	}
	if len(q.Meals) > 0 {
		db = db.Where("(SELECT COUNT(DISTINCT value) FROM json_each(recipes.meals) WHERE value IN ?) = ?", q.Meals, len(q.Meals))
	}
	if !q.Following && q.Author != "" {
		db = db.Where("recipes.author = ?", q.Author)
	}
	if q.ForkOf != "" {
		db = db.Where("recipes.parent_slug = ?", q.ForkOf)
	}
	if q.Featured {
		db = db.Where("recipes.featured_since IS NOT NULL")
	}
	if q.Favourites {
		db = db.Where("recipes.slug IN (SELECT recipe_slug FROM recipe_favourites WHERE username = ?)", caller)
	}
	return db
}

func (q Query) orderBy() clause.OrderBy {
	return clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Table: "recipes", Name: q.Sort}, Desc: q.Order == OrderDescending},
		{Column: clause.Column{Table: "recipes", Name: "slug"}},
	}}
}
