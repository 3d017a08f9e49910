package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/raphaelgruber/spidersync/internal/index"
	"github.com/raphaelgruber/spidersync/internal/loader"
	"github.com/raphaelgruber/spidersync/internal/models"
	"github.com/raphaelgruber/spidersync/internal/syncerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spiderFixture writes count metadata files X/<id>.json and returns their notification.
func spiderFixture(t *testing.T, count int) (string, *models.Notification) {
	t.Helper()
	dir := t.TempDir()
	files := map[string]models.FileDescriptor{}
	for i := range count {
		name := fmt.Sprintf("X/%s.json", paddedID(i))
		writeSpiderFile(t, dir, name, `{"Signatur": "ZH_OG"}`)
		files[name] = models.FileDescriptor{Status: models.FileStatusUpdate}
	}
	return dir, notification(files)
}

func newTestExecutor(dir string, idx IndexWriter, concurrency int) *Executor {
	return NewExecutor(NewAssembler(loader.NewFileSystem(dir), "https://docs.example.org", nil), idx, concurrency, testLogger())
}

func TestExecutorRunsWavesInPlanOrder(t *testing.T) {
	dir, n := spiderFixture(t, 7)
	idx := &fakeIndex{}
	groups := Plan(models.SequenceMap{}, n)
	require.Len(t, groups, 7)

	stats, err := newTestExecutor(dir, idx, 3).Run(context.Background(), "docs-x", n, groups)
	require.NoError(t, err)
	assert.Equal(t, ApplyStats{Updated: 7}, stats)

	// Order within a wave is unspecified; waves never interleave.
	ids := idx.callIDs()
	require.Len(t, ids, 7)
	assert.ElementsMatch(t, []string{paddedID(0), paddedID(1), paddedID(2)}, ids[0:3])
	assert.ElementsMatch(t, []string{paddedID(3), paddedID(4), paddedID(5)}, ids[3:6])
	assert.Equal(t, paddedID(6), ids[6])

	for _, c := range idx.calls {
		assert.Equal(t, "update", c.Op)
		assert.Equal(t, "docs-x", c.Index)
		assert.Empty(t, c.Doc.ID, "patch must not carry the id")
		assert.Equal(t, "jobs/X/20", c.Doc.Source)
	}
}

func TestExecutorStopsAfterFailingWave(t *testing.T) {
	dir, n := spiderFixture(t, 6)
	idx := &fakeIndex{writeErr: map[string]error{paddedID(1): errBoom}}
	groups := Plan(models.SequenceMap{}, n)

	stats, err := newTestExecutor(dir, idx, 2).Run(context.Background(), "docs-x", n, groups)
	require.Error(t, err)
	assert.ErrorIs(t, err, syncerr.ErrTransport)
	assert.Contains(t, err.Error(), "wave 0")

	// The sibling in the failing wave still ran; later waves did not.
	assert.ElementsMatch(t, []string{paddedID(0), paddedID(1)}, idx.callIDs())
	assert.Equal(t, ApplyStats{Updated: 1}, stats)
}

func TestExecutorAppliesByDocumentKind(t *testing.T) {
	dir := t.TempDir()
	writeSpiderFile(t, dir, "X/1.json", `{"Signatur": "ZH"}`)
	writeSpiderFile(t, dir, "X/1.pdf", "%PDF")
	writeSpiderFile(t, dir, "X/3.json", `{"Signatur": "ZH"}`)
	n := notification(map[string]models.FileDescriptor{
		"X/1.json": {Status: models.FileStatusNew},
		"X/1.pdf":  {Status: models.FileStatusNew},
		"X/2.json": {Status: models.FileStatusDeleted},
		"X/2.pdf":  {Status: models.FileStatusDeleted},
		"X/3.json": {Status: models.FileStatusUpdate},
	})
	seqs := models.SequenceMap{"X/2.json": 3, "X/2.pdf": 3, "X/3.json": 4}
	idx := &fakeIndex{}

	stats, err := newTestExecutor(dir, idx, 1).Run(context.Background(), "docs-x", n, Plan(seqs, n))
	require.NoError(t, err)
	assert.Equal(t, ApplyStats{Inserted: 1, Updated: 1, Deleted: 1}, stats)

	require.Len(t, idx.calls, 3)
	insert, del, update := idx.calls[0], idx.calls[1], idx.calls[2]

	assert.Equal(t, "insert", insert.Op)
	assert.Equal(t, "1", insert.ID)
	assert.Equal(t, index.AttachmentPipeline, insert.Pipeline)
	assert.Equal(t, "1", insert.Doc.ID)
	assert.NotEmpty(t, insert.Doc.Payload)
	assert.Equal(t, "https://docs.example.org/X/1.pdf", insert.Doc.URL)

	assert.Equal(t, call{Op: "delete", Index: "docs-x", ID: "2"}, del)

	assert.Equal(t, "update", update.Op)
	assert.Equal(t, "3", update.ID)
	assert.Empty(t, update.Doc.Payload)
}

func TestExecutorHonorsCancellation(t *testing.T) {
	dir, n := spiderFixture(t, 3)
	idx := &fakeIndex{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestExecutor(dir, idx, 2).Run(ctx, "docs-x", n, Plan(models.SequenceMap{}, n))
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, idx.calls)
}

func TestNewExecutorDefaultsConcurrency(t *testing.T) {
	assert.Equal(t, DefaultConcurrency, NewExecutor(nil, nil, 0, nil).Concurrency())
	assert.Equal(t, 4, NewExecutor(nil, nil, 4, nil).Concurrency())
}
