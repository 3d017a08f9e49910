package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/spidersync/internal/index"
	"github.com/raphaelgruber/spidersync/internal/models"
)

// DefaultPageSize is the number of hits requested per search page.
const DefaultPageSize = 1000

// Fields read from each indexed document when building a sequence map.
const (
	fieldSource            = "source"
	fieldAttachmentSource  = "attachment.source"
	fieldAttachmentType    = "attachment.content_type"
	fieldAttachmentContent = "attachment.content"
	contentTypePDF         = "application/pdf"
)

// SequenceFetcher builds the map of file name to last indexed sequence for a collection.
type SequenceFetcher struct {
	index    IndexReader
	pageSize int
	logger   *slog.Logger
}

// NewSequenceFetcher creates a fetcher reading from idx.
func NewSequenceFetcher(idx IndexReader, logger *slog.Logger) *SequenceFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &SequenceFetcher{index: idx, pageSize: DefaultPageSize, logger: logger}
}

// Fetch enumerates indexName and returns the sequences recorded for collection's files.
//
// A missing index yields an empty map. With dropExisting the index is deleted
// and an empty map returned. Search failures stop pagination and return the
// partial map built so far: stale sequences only cause extra rewrites.
func (f *SequenceFetcher) Fetch(ctx context.Context, collection, indexName string, dropExisting bool) (models.SequenceMap, error) {
	seqs := make(models.SequenceMap)

	exists, err := f.index.Exists(ctx, indexName)
	if err != nil {
		return nil, fmt.Errorf("check index: %w", err)
	}
	f.logger.Info("index lookup", "index", indexName, "exists", exists)
	if !exists {
		return seqs, nil
	}

	if dropExisting {
		if err := f.index.DeleteIndex(ctx, indexName); err != nil {
			return nil, fmt.Errorf("delete index: %w", err)
		}
		f.logger.Info("deleted index", "index", indexName)
		return seqs, nil
	}

	var cursor []json.RawMessage
	pages := 0
	for {
		resp, err := f.index.Search(ctx, indexName, sequenceQuery(f.pageSize, cursor))
		if err != nil {
			f.logger.Warn("sequence fetch stopped early",
				"index", indexName, "pages", pages, "entries", len(seqs), "error", err)
			break
		}
		pages++

		hits := resp.Hits.Hits
		if len(hits) == 0 {
			break
		}
		for _, hit := range hits {
			recordHit(seqs, collection, hit)
		}

		// A short page is the last one.
		if len(hits) < f.pageSize {
			break
		}
		cursor = hits[len(hits)-1].Sort
		if len(cursor) == 0 {
			f.logger.Warn("search hit without sort value, stopping pagination", "index", indexName)
			break
		}
	}

	f.logger.Debug("sequence map built", "index", indexName, "pages", pages, "entries", len(seqs))
	return seqs, nil
}

// recordHit adds the metadata and attachment sequences of one indexed document.
func recordHit(seqs models.SequenceMap, collection string, hit index.Hit) {
	if len(hit.Fields[fieldSource]) > 0 {
		job, _ := hit.FirstString(fieldSource)
		seqs[fmt.Sprintf("%s/%s.%s", collection, hit.ID, models.ExtJSON)] = models.JobSequence(job)
	}
	if len(hit.Fields[fieldAttachmentSource]) > 0 {
		job, _ := hit.FirstString(fieldAttachmentSource)
		ext := models.ExtHTML
		if ct, _ := hit.FirstString(fieldAttachmentType); ct == contentTypePDF {
			ext = models.ExtPDF
		}
		seqs[fmt.Sprintf("%s/%s.%s", collection, hit.ID, ext)] = models.JobSequence(job)
	}
}

// sequenceQuery selects documents carrying an extracted attachment, newest id first,
// returning only the job fields.
func sequenceQuery(size int, cursor []json.RawMessage) index.SearchRequest {
	return index.SearchRequest{
		Size: size,
		Query: map[string]any{
			"bool": map[string]any{
				"must": map[string]any{
					"match_all": map[string]any{},
				},
				"filter": map[string]any{
					"exists": map[string]any{"field": fieldAttachmentContent},
				},
			},
		},
		Fields:      []string{fieldSource, fieldAttachmentSource, fieldAttachmentType},
		Source:      false,
		Sort:        []map[string]string{{"id": "desc"}},
		SearchAfter: cursor,
	}
}
