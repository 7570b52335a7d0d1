// Package keyword provides a lexical (BM25) index over FAQ questions,
// used by the admin search endpoint alongside the vector index.
package keyword

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
)

// Result is a single lexical search hit.
type Result struct {
	ID       int64   `json:"id"`
	Question string  `json:"question"`
	Score    float64 `json:"score"`
}

// Index defines lexical search operations over FAQ questions.
type Index interface {
	Index(ctx context.Context, id int64, question, answer string) error
	Delete(ctx context.Context, id int64) error
	Search(ctx context.Context, query string, limit int) ([]Result, error)
	Close() error
}

type faqDoc struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path. An existing index
// is reused; remove the directory to force a rebuild after mapping changes.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so exact words
	// in user phrasing match the stored questions.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("question", textFieldMapping)
	docMapping.AddFieldMappingsAt("answer", textFieldMapping)
	im.DefaultMapping = docMapping

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index indexes (or reindexes) the question/answer pair under id.
func (b *BleveIndex) Index(ctx context.Context, id int64, question, answer string) error {
	return b.index.Index(strconv.FormatInt(id, 10), faqDoc{Question: question, Answer: answer})
}

// Delete removes the entry for id. Deleting an unknown id is a no-op.
func (b *BleveIndex) Delete(ctx context.Context, id int64) error {
	return b.index.Delete(strconv.FormatInt(id, 10))
}

// Search runs a match query over questions (boosted) and answers, returning
// up to limit hits with stored questions.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	questionQuery := bleve.NewMatchQuery(query)
	questionQuery.SetField("question")
	questionQuery.SetBoost(2.0)
	answerQuery := bleve.NewMatchQuery(query)
	answerQuery.SetField("answer")
	combined := bleve.NewDisjunctionQuery(questionQuery, answerQuery)

	request := bleve.NewSearchRequestOptions(combined, limit, 0, false)
	request.Fields = []string{"question"}
	res, err := b.index.SearchInContext(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}

	results := make([]Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		question, _ := hit.Fields["question"].(string)
		results = append(results, Result{ID: id, Question: question, Score: hit.Score})
	}
	return results, nil
}

// Close closes the underlying index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
