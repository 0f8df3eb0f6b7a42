// Package search keeps a Bleve full-text index of recipe titles and ingredients
// and answers exact token/phrase predicates with the matching recipe slugs.
package search

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"go.uber.org/zap"
)

const batchSize = 500

// Document is the searchable projection of a recipe.
type Document struct {
	Slug        string
	Title       string
	Ingredients []string
}

func (d Document) toMap() map[string]interface{} {
	return map[string]interface{}{
		fieldSlug:        d.Slug,
		fieldTitle:       d.Title,
		fieldIngredients: d.Ingredients,
	}
}

// Options configures the index. An empty Path keeps the index in memory.
type Options struct {
	Path   string
	Logger *zap.Logger
}

// Index wraps a Bleve index. All methods are safe for concurrent use; Rebuild
// takes the write lock while it swaps the underlying index.
type Index struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	logger *zap.Logger
}

// Open creates or opens the index at opts.Path.
func Open(opts Options) (*Index, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		index bleve.Index
		err   error
	)
	if opts.Path != "" {
		if _, statErr := os.Stat(opts.Path); statErr == nil {
			index, err = bleve.Open(opts.Path)
			if err != nil {
				logger.Warn("failed to open existing search index, recreating",
					zap.String("path", opts.Path), zap.Error(err))
				if removeErr := os.RemoveAll(opts.Path); removeErr != nil {
					return nil, fmt.Errorf("remove search index: %w", removeErr)
				}
				index = nil
			}
		}
	}
	if index == nil {
		index, err = newBleveIndex(opts.Path)
		if err != nil {
			return nil, err
		}
	}

	return &Index{index: index, path: opts.Path, logger: logger}, nil
}

func newBleveIndex(path string) (bleve.Index, error) {
	indexMapping, err := buildIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("build search mapping: %w", err)
	}
	if path == "" {
		index, err := bleve.NewMemOnly(indexMapping)
		if err != nil {
			return nil, fmt.Errorf("create in-memory search index: %w", err)
		}
		return index, nil
	}
	index, err := bleve.New(path, indexMapping)
	if err != nil {
		return nil, fmt.Errorf("create search index: %w", err)
	}
	return index, nil
}

// Close releases the index.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.index.Close()
}

// Put indexes or replaces the document for its slug.
func (i *Index) Put(doc Document) error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.index.Index(doc.Slug, doc.toMap())
}

// Remove drops the document for slug; unknown slugs are ignored.
func (i *Index) Remove(slug string) error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.index.Delete(slug)
}

// Count returns the number of indexed documents.
func (i *Index) Count() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.index.DocCount()
}

// Rebuild replaces the whole index with docs.
func (i *Index) Rebuild(docs []Document) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.index.Close(); err != nil {
		return fmt.Errorf("close search index: %w", err)
	}
	if i.path != "" {
		if err := os.RemoveAll(i.path); err != nil {
			return fmt.Errorf("remove search index: %w", err)
		}
	}
	index, err := newBleveIndex(i.path)
	if err != nil {
		return err
	}
	i.index = index

	for start := 0; start < len(docs); start += batchSize {
		end := start + batchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := index.NewBatch()
		for _, doc := range docs[start:end] {
			if err := batch.Index(doc.Slug, doc.toMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.Slug, err)
			}
		}
		if err := index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", start, end, err)
		}
	}

	i.logger.Info("search index rebuilt", zap.Int("documents", len(docs)))
	return nil
}

// Match returns the slugs of every document satisfying the predicate.
func (i *Index) Match(ctx context.Context, predicate Predicate) ([]string, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	searchQuery := buildQuery(predicate)
	var slugs []string
	for from := 0; ; from += batchSize {
		request := bleve.NewSearchRequestOptions(searchQuery, batchSize, from, false)
		request.SortBy([]string{"_id"})
		result, err := i.index.SearchInContext(ctx, request)
		if err != nil {
			return nil, fmt.Errorf("execute search: %w", err)
		}
		for _, hit := range result.Hits {
			slugs = append(slugs, hit.ID)
		}
		if len(result.Hits) < batchSize || uint64(from+len(result.Hits)) >= result.Total {
			break
		}
	}
	return slugs, nil
}
