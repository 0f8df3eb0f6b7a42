package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
)

const (
	fieldTitle       = "title"
	fieldIngredients = "ingredients"
	fieldSlug        = "slug"

	// exactAnalyzerName lowercases and splits on Unicode word boundaries with no
	// stemming or stop words, so "apple" never matches "apples".
	exactAnalyzerName = "cookbook_exact"
)

// textFields are the fields free-text predicates are matched against.
var textFields = []string{fieldTitle, fieldIngredients}

func buildIndexMapping() (mapping.IndexMapping, error) {
	indexMapping := bleve.NewIndexMapping()
	if err := indexMapping.AddCustomAnalyzer(exactAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, err
	}
	indexMapping.DefaultAnalyzer = exactAnalyzerName

	docMapping := bleve.NewDocumentMapping()

	titleFieldMapping := bleve.NewTextFieldMapping()
	titleFieldMapping.Analyzer = exactAnalyzerName
	titleFieldMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt(fieldTitle, titleFieldMapping)

	// Phrase matching needs term vectors for positions.
	ingredientsFieldMapping := bleve.NewTextFieldMapping()
	ingredientsFieldMapping.Analyzer = exactAnalyzerName
	ingredientsFieldMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt(fieldIngredients, ingredientsFieldMapping)

	slugFieldMapping := bleve.NewTextFieldMapping()
	slugFieldMapping.Analyzer = keyword.Name
	slugFieldMapping.Store = true
	docMapping.AddFieldMappingsAt(fieldSlug, slugFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping, nil
}
