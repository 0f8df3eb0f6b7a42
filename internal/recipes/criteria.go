package recipes

import (
	"github.com/MarcoPoloResearchLab/cookbook/internal/labels"
	"github.com/MarcoPoloResearchLab/cookbook/internal/users"
)

// PreferencesOverride is the value of Criteria.Preferences that ignores the
// caller's standing filters for one query.
const PreferencesOverride = "-1"

// Criteria are the raw discovery filters of a request.
type Criteria struct {
	Tags        string
	Exclude     string
	Meals       string
	Username    string
	Forks       string
	Search      string
	Featured    bool
	Following   bool
	Favourites  bool
	Preferences string
	Sort        string
	Order       string
	Page        string
}

// Resolved is the conflict-free filter set produced from Criteria and the
// caller's session.
type Resolved struct {
	Include    []string
	Exclude    []string
	Meals      []string
	Author     string
	ForkOf     string
	Search     string
	Featured   bool
	Following  bool
	Favourites bool
	Sort       string
	Order      string
}

// Resolve merges explicit filters with the standing session filters unless the
// override sentinel is given. A label both included and excluded is dropped from
// the exclusions only.
func Resolve(criteria Criteria, session users.SessionContext) Resolved {
	include := criteria.Tags
	exclude := criteria.Exclude
	if criteria.Preferences != PreferencesOverride {
		include = session.Preferences + " " + include
		exclude = session.Exclusions + " " + exclude
	}

	included := labels.Split(include)
	includedSet := make(map[string]struct{}, len(included))
	for _, label := range included {
		includedSet[label] = struct{}{}
	}
	var excluded []string
	for _, label := range labels.Split(exclude) {
		if _, ok := includedSet[label]; !ok {
			excluded = append(excluded, label)
		}
	}

	return Resolved{
		Include:    included,
		Exclude:    excluded,
		Meals:      labels.Split(criteria.Meals),
		Author:     criteria.Username,
		ForkOf:     criteria.Forks,
		Search:     criteria.Search,
		Featured:   criteria.Featured,
		Following:  criteria.Following,
		Favourites: criteria.Favourites,
		Sort:       criteria.Sort,
		Order:      criteria.Order,
	}
}
