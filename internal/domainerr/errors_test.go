package domainerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMatchesByKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NotFound("recipes.not_found", "recipe does not exist"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected wrapped error to match ErrNotFound")
	}
	if errors.Is(err, ErrForbidden) {
		t.Fatalf("did not expect not found error to match ErrForbidden")
	}
	if KindOf(err) != KindNotFound {
		t.Fatalf("unexpected kind %q", KindOf(err))
	}
}

func TestValidationPreservesInput(t *testing.T) {
	input := map[string]string{"title": "Pancakes"}
	err := Validation("recipes.duplicate_title", "duplicate title", input)

	var domainErr *Error
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected domain error")
	}
	preserved, ok := domainErr.Input.(map[string]string)
	if !ok || preserved["title"] != "Pancakes" {
		t.Fatalf("expected input to be preserved, got %#v", domainErr.Input)
	}
}

func TestKindOfPlainError(t *testing.T) {
	if KindOf(errors.New("boom")) != "" {
		t.Fatalf("expected empty kind for plain errors")
	}
	if KindOf(nil) != "" {
		t.Fatalf("expected empty kind for nil")
	}
}

func TestErrorMessageIncludesCode(t *testing.T) {
	err := Forbidden("comments.out_of_bounds", "comment index out of bounds")
	if err.Error() != "comments.out_of_bounds: comment index out of bounds" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestServiceErrorCode(t *testing.T) {
	cause := errors.New("disk full")
	err := NewServiceError("recipes.create", "insert_failed", cause)

	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("expected service error")
	}
	if serviceErr.Code() != "recipes.create.insert_failed" {
		t.Fatalf("unexpected code %q", serviceErr.Code())
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be unwrapped")
	}
	if KindOf(err) != "" {
		t.Fatalf("service errors carry no domain kind")
	}
}
