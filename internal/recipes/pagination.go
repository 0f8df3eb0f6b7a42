package recipes

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/cookbook/internal/domainerr"
)

// PageSize is the fixed number of recipes per result page.
const PageSize = 10

// ParsePage reads a 1-based page number. Non-numeric input becomes 1.
func ParsePage(raw string) int {
	page, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 1
	}
	return page
}

// Offset validates page against total and returns the row offset. Page 1 is
// always valid so an empty result is an empty page rather than an error.
func Offset(page int, total int64) (int, error) {
	if page < 1 {
		return 0, domainerr.OutOfRange("recipes.page_out_of_range", fmt.Sprintf("page %d does not exist", page))
	}
	// offset >= total, compared in pages so huge page numbers cannot overflow.
	pages := (total + PageSize - 1) / PageSize
	if page != 1 && int64(page-1) >= pages {
		return 0, domainerr.OutOfRange("recipes.page_out_of_range", fmt.Sprintf("page %d does not exist", page))
	}
	return (page - 1) * PageSize, nil
}
