package recipes

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/MarcoPoloResearchLab/cookbook/internal/domainerr"
	"github.com/MarcoPoloResearchLab/cookbook/internal/labels"
	"github.com/go-playground/validator/v10"
)

func newValidator() (*validator.Validate, error) {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	if err := v.RegisterValidation("label", func(fl validator.FieldLevel) bool {
		return labels.ValidName(fl.Field().String())
	}); err != nil {
		return nil, err
	}
	return v, nil
}

// normalizeInput trims the title and drops blank ingredient, method and label
// entries so validation sees what would be stored.
func normalizeInput(input Input) Input {
	input.Title = strings.TrimSpace(input.Title)
	input.Ingredients = compactLines(input.Ingredients)
	input.Methods = compactLines(input.Methods)
	input.Tags = labels.Split(strings.Join(input.Tags, " "))
	input.Meals = labels.Split(strings.Join(input.Meals, " "))
	input.Parent = strings.TrimSpace(input.Parent)
	return input
}

func compactLines(lines []string) []string {
	result := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// validateInput checks the normalized input against field rules and the label
// catalog. Validation errors carry original, the input exactly as submitted.
func (s *Service) validateInput(ctx context.Context, operation string, input, original Input) error {
	if err := s.validate.Struct(input); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return s.failure(operation, "validator_failed", err)
		}
		problems := make([]string, 0, len(fieldErrs))
		for _, fieldErr := range fieldErrs {
			problems = append(problems, fmt.Sprintf("%s %s", fieldErr.Field(), friendlyMessage(fieldErr)))
		}
		sort.Strings(problems)
		return domainerr.Validation("recipes.invalid_input", strings.Join(problems, "; "), original)
	}

	for _, set := range []struct {
		kind   labels.Kind
		values []string
	}{
		{labels.KindTag, input.Tags},
		{labels.KindMeal, input.Meals},
	} {
		unknown, err := s.labels.Unknown(ctx, set.kind, set.values)
		if err != nil {
			return err
		}
		if len(unknown) > 0 {
			return domainerr.Validation("recipes.unknown_label",
				fmt.Sprintf("unknown %s: %s", set.kind, strings.Join(unknown, ", ")), original)
		}
	}
	return nil
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must have at least %s entries", e.Param())
	case "max":
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "label":
		return "may only contain letters and dashes"
	default:
		return "is invalid"
	}
}
