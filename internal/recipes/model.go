package recipes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StringList is an ordered list of strings persisted as a JSON array column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	encoded, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot scan %T into StringList", value)
	}
}

// GormDataType returns the data type for GORM.
func (StringList) GormDataType() string {
	return "json"
}

// RecipeState is the lifecycle variant of a recipe. Deleted recipes stay in the
// table so forks, slugs and comments keep resolving.
type RecipeState string

const (
	StateActive  RecipeState = "active"
	StateDeleted RecipeState = "deleted"
)

// Recipe is the persisted recipe document.
type Recipe struct {
	Slug           string      `gorm:"column:slug;primaryKey;size:191;not null" json:"slug"`
	Title          string      `gorm:"column:title;not null" json:"title"`
	Author         string      `gorm:"column:author;size:64;not null;index" json:"author"`
	Ingredients    StringList  `gorm:"column:ingredients;not null" json:"ingredients"`
	Methods        StringList  `gorm:"column:methods;not null" json:"methods"`
	Tags           StringList  `gorm:"column:tags;not null" json:"tags"`
	Meals          StringList  `gorm:"column:meals;not null" json:"meals"`
	PrepMinutes    int         `gorm:"column:prep_minutes;not null;default:0" json:"prepMinutes"`
	CookMinutes    int         `gorm:"column:cook_minutes;not null;default:0" json:"cookMinutes"`
	TotalMinutes   int         `gorm:"column:total_minutes;not null;default:0" json:"totalMinutes"`
	CreatedAt      time.Time   `gorm:"column:created_at;not null;index" json:"createdAt"`
	Views          int64       `gorm:"column:views;not null;default:0" json:"views"`
	FavouriteCount int64       `gorm:"column:favourite_count;not null;default:0" json:"favouriteCount"`
	FeaturedSince  *time.Time  `gorm:"column:featured_since" json:"featuredSince,omitempty"`
	ParentSlug     *string     `gorm:"column:parent_slug;size:191;index" json:"parent,omitempty"`
	CommentCount   int64       `gorm:"column:comment_count;not null;default:0" json:"commentCount"`
	State          RecipeState `gorm:"column:state;size:16;not null;default:'active';index" json:"-"`
}

// TableName provides the explicit table binding for GORM.
func (Recipe) TableName() string {
	return "recipes"
}

// Featured reports whether the recipe currently carries a featured marker.
func (r Recipe) Featured() bool {
	return r.FeaturedSince != nil
}

// Parent returns the slug the recipe was forked from, if any.
func (r Recipe) Parent() (string, bool) {
	if r.ParentSlug == nil {
		return "", false
	}
	return *r.ParentSlug, true
}

// Favourite is one member of a recipe's favouriting-users set.
type Favourite struct {
	RecipeSlug string    `gorm:"column:recipe_slug;primaryKey;size:191;not null"`
	Username   string    `gorm:"column:username;primaryKey;size:64;not null;index"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Favourite) TableName() string {
	return "recipe_favourites"
}

// ForkRef is a parent's back-reference to one of its forks.
type ForkRef struct {
	ChildSlug  string    `gorm:"column:child_slug;primaryKey;size:191;not null" json:"slug"`
	ParentSlug string    `gorm:"column:parent_slug;size:191;not null;index" json:"-"`
	ChildTitle string    `gorm:"column:child_title;not null" json:"title"`
	CreatedAt  time.Time `gorm:"column:created_at;not null" json:"-"`
}

// TableName provides the explicit table binding for GORM.
func (ForkRef) TableName() string {
	return "recipe_forks"
}

// CommentRecord is one stored ledger slot. Tombstoned slots keep their position
// and lose their author and body.
type CommentRecord struct {
	RecipeSlug string     `gorm:"column:recipe_slug;primaryKey;size:191;not null"`
	Position   int        `gorm:"column:position;primaryKey;not null"`
	Author     string     `gorm:"column:author;size:64;not null;default:''"`
	Body       string     `gorm:"column:body;not null;default:''"`
	CreatedAt  *time.Time `gorm:"column:created_at"`
	Deleted    bool       `gorm:"column:deleted;not null;default:false"`
}

// TableName provides the explicit table binding for GORM.
func (CommentRecord) TableName() string {
	return "recipe_comments"
}

// Comment is a live comment.
type Comment struct {
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
	Body      string    `json:"body"`
}

// LedgerEntry is one position of the comment ledger: either a live Comment or a
// tombstone (Comment == nil).
type LedgerEntry struct {
	Index     int      `json:"index"`
	Comment   *Comment `json:"comment,omitempty"`
	CanDelete bool     `json:"canDelete"`
}

// Deleted reports whether the entry is a tombstone.
func (e LedgerEntry) Deleted() bool {
	return e.Comment == nil
}

func (r CommentRecord) entry() LedgerEntry {
	if r.Deleted {
		return LedgerEntry{Index: r.Position}
	}
	var created time.Time
	if r.CreatedAt != nil {
		created = *r.CreatedAt
	}
	return LedgerEntry{
		Index:   r.Position,
		Comment: &Comment{Author: r.Author, CreatedAt: created, Body: r.Body},
	}
}

// Details is the read model of a single recipe.
type Details struct {
	Recipe       Recipe    `json:"recipe"`
	FavouritedBy []string  `json:"favouritedBy"`
	Children     []ForkRef `json:"children"`
}

// Input carries the caller-editable fields of a recipe.
type Input struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Ingredients []string `json:"ingredients" validate:"required,min=1,dive,required"`
	Methods     []string `json:"methods" validate:"required,min=1,dive,required"`
	Tags        []string `json:"tags" validate:"dive,label"`
	Meals       []string `json:"meals" validate:"dive,label"`
	PrepMinutes int      `json:"prepMinutes" validate:"gte=0"`
	CookMinutes int      `json:"cookMinutes" validate:"gte=0"`
	Parent      string   `json:"parent,omitempty"`
}

// Created reports the outcome of recipe creation.
type Created struct {
	Recipe Recipe
	// ParentMissing is set when a fork named a parent that does not exist; the
	// recipe was created without a parent reference.
	ParentMissing bool
}

// Page is one page of a discovery result.
type Page struct {
	Items      []Recipe `json:"items"`
	TotalCount int64    `json:"totalCount"`
	Page       int      `json:"page"`
}
