package search

import (
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Predicate is an exact free-text requirement: every token and every phrase
// must occur in the title or in an ingredient line.
type Predicate struct {
	Tokens  []string
	Phrases []string
}

// IsEmpty reports whether the predicate constrains nothing.
func (p Predicate) IsEmpty() bool {
	return len(p.Tokens) == 0 && len(p.Phrases) == 0
}

// String renders the predicate as individually quoted tokens followed by the
// quoted phrases, e.g. `"apples" "stick of butter"`.
func (p Predicate) String() string {
	quoted := make([]string, 0, len(p.Tokens)+len(p.Phrases))
	for _, token := range p.Tokens {
		quoted = append(quoted, strconv.Quote(token))
	}
	for _, phrase := range p.Phrases {
		quoted = append(quoted, strconv.Quote(phrase))
	}
	return strings.Join(quoted, " ")
}

func buildQuery(predicate Predicate) query.Query {
	terms := make([]string, 0, len(predicate.Tokens)+len(predicate.Phrases))
	terms = append(terms, predicate.Tokens...)
	terms = append(terms, predicate.Phrases...)
	if len(terms) == 0 {
		return bleve.NewMatchAllQuery()
	}

	required := make([]query.Query, 0, len(terms))
	for _, term := range terms {
		perField := make([]query.Query, 0, len(textFields))
		for _, field := range textFields {
			phraseQuery := bleve.NewMatchPhraseQuery(term)
			phraseQuery.SetField(field)
			perField = append(perField, phraseQuery)
		}
		required = append(required, bleve.NewDisjunctionQuery(perField...))
	}
	if len(required) == 1 {
		return required[0]
	}
	return bleve.NewConjunctionQuery(required...)
}
