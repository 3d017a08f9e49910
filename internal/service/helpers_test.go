package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/raphaelgruber/spidersync/internal/index"
	"github.com/raphaelgruber/spidersync/internal/models"
	"github.com/raphaelgruber/spidersync/internal/syncerr"
	"github.com/stretchr/testify/require"
)

// testLogger discards output unless the test runs verbose.
func testLogger() *slog.Logger {
	if testing.Verbose() {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// indexedDoc is a document held by fakeIndex.
type indexedDoc struct {
	ID                string
	Source            string
	AttachmentSource  string
	AttachmentType    string
	HasAttachmentText bool
}

// call is one mutation received by fakeIndex.
type call struct {
	Op       string
	Index    string
	ID       string
	Doc      *models.Document
	Pipeline string
}

// fakeIndex is an in-memory search engine honoring the sequence query contract.
type fakeIndex struct {
	mu        sync.Mutex
	exists    bool
	docs      []indexedDoc
	searches  []index.SearchRequest
	calls     []call
	deleted   bool
	searchErr map[int]error // page number (1-based) -> error
	writeErr  map[string]error
}

func (f *fakeIndex) Exists(ctx context.Context, idx string) (bool, error) {
	return f.exists, nil
}

func (f *fakeIndex) DeleteIndex(ctx context.Context, idx string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = true
	f.docs = nil
	return nil
}

func (f *fakeIndex) Search(ctx context.Context, idx string, req index.SearchRequest) (*index.SearchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, req)
	if err := f.searchErr[len(f.searches)]; err != nil {
		return nil, err
	}

	var matching []indexedDoc
	for _, d := range f.docs {
		if d.HasAttachmentText {
			matching = append(matching, d)
		}
	}
	sort.Slice(matching, func(i, j int) bool { return matching[i].ID > matching[j].ID })

	if len(req.SearchAfter) > 0 {
		var after string
		if err := json.Unmarshal(req.SearchAfter[0], &after); err != nil {
			return nil, err
		}
		i := sort.Search(len(matching), func(i int) bool { return matching[i].ID < after })
		matching = matching[i:]
	}
	if len(matching) > req.Size {
		matching = matching[:req.Size]
	}

	resp := &index.SearchResponse{}
	for _, d := range matching {
		fields := map[string][]any{}
		if d.Source != "" {
			fields["source"] = []any{d.Source}
		}
		if d.AttachmentSource != "" {
			fields["attachment.source"] = []any{d.AttachmentSource}
		}
		if d.AttachmentType != "" {
			fields["attachment.content_type"] = []any{d.AttachmentType}
		}
		sortValue, _ := json.Marshal(d.ID)
		resp.Hits.Hits = append(resp.Hits.Hits, index.Hit{
			ID:     d.ID,
			Fields: fields,
			Sort:   []json.RawMessage{sortValue},
		})
	}
	return resp, nil
}

func (f *fakeIndex) record(c call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.writeErr[c.ID]
}

func (f *fakeIndex) UpdateDoc(ctx context.Context, idx, id string, doc any) error {
	return f.record(call{Op: "update", Index: idx, ID: id, Doc: doc.(*models.Document)})
}

func (f *fakeIndex) PutDoc(ctx context.Context, idx, id string, doc any, pipeline string) error {
	return f.record(call{Op: "insert", Index: idx, ID: id, Doc: doc.(*models.Document), Pipeline: pipeline})
}

func (f *fakeIndex) DeleteDoc(ctx context.Context, idx, id string) error {
	return f.record(call{Op: "delete", Index: idx, ID: id})
}

func (f *fakeIndex) callIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, len(f.calls))
	for i, c := range f.calls {
		ids[i] = c.ID
	}
	return ids
}

// paddedID formats n so lexical order matches numeric order.
func paddedID(n int) string {
	s := strconv.Itoa(n)
	for len(s) < 6 {
		s = "0" + s
	}
	return s
}

// writeSpiderFile stores a file under dir the way the filesystem loader expects.
func writeSpiderFile(t *testing.T, dir, name, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func ptr(s string) *string {
	return &s
}

var errBoom = syncerr.Transport("fake", io.ErrUnexpectedEOF)
