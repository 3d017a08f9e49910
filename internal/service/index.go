// Package service implements the spider sync pipeline: sequence fetch,
// reconciliation, document assembly and index application.
package service

import (
	"context"
	"strings"

	"github.com/raphaelgruber/spidersync/internal/index"
)

// IndexReader is the read side of the search engine used to build sequence maps.
type IndexReader interface {
	Exists(ctx context.Context, index string) (bool, error)
	DeleteIndex(ctx context.Context, index string) error
	Search(ctx context.Context, index string, req index.SearchRequest) (*index.SearchResponse, error)
}

// IndexWriter applies document mutations.
type IndexWriter interface {
	UpdateDoc(ctx context.Context, index, id string, doc any) error
	PutDoc(ctx context.Context, index, id string, doc any, pipeline string) error
	DeleteDoc(ctx context.Context, index, id string) error
}

// Index is the full search engine surface the pipeline needs.
type Index interface {
	IndexReader
	IndexWriter
}

// IndexName returns the index holding a collection: {prefix}-{lowercase collection}.
func IndexName(prefix, collection string) string {
	return prefix + "-" + strings.ToLower(collection)
}
