package labels

import (
	"regexp"
	"strings"
)

// Kind distinguishes the two admin-managed label vocabularies.
type Kind string

const (
	// KindTag labels dietary and allergen properties of a recipe.
	KindTag Kind = "tag"
	// KindMeal labels the meals a recipe is suited to.
	KindMeal Kind = "meal"
)

var labelNamePattern = regexp.MustCompile(`^[A-Za-z-]+$`)

// Tag is a dietary label such as "Gluten-Free".
type Tag struct {
	Name string `gorm:"column:name;primaryKey;size:64;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Tag) TableName() string {
	return "tags"
}

// Meal is a meal label such as "Breakfast".
type Meal struct {
	Name string `gorm:"column:name;primaryKey;size:64;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Meal) TableName() string {
	return "meals"
}

// DefaultTags seeds the tag vocabulary of a fresh database.
var DefaultTags = []string{"Vegan", "Vegetarian", "Dairy-Free", "Gluten-Free", "Egg-Free", "Nuts", "Soya", "Shellfish"}

// DefaultMeals seeds the meal vocabulary of a fresh database.
var DefaultMeals = []string{"Breakfast", "Brunch", "Lunch", "Snack", "Starter", "Dinner", "Side", "Dessert", "Drink"}

// ValidName reports whether name contains only letters and dashes.
func ValidName(name string) bool {
	return labelNamePattern.MatchString(name)
}

// Split parses a whitespace-delimited label string into an ordered set.
func Split(raw string) []string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(fields))
	result := make([]string, 0, len(fields))
	for _, field := range fields {
		if _, ok := seen[field]; ok {
			continue
		}
		seen[field] = struct{}{}
		result = append(result, field)
	}
	return result
}

// Join renders a label set in the space-delimited stored form.
func Join(values []string) string {
	return strings.Join(values, " ")
}
