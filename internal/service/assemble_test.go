package service

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/raphaelgruber/spidersync/internal/loader"
	"github.com/raphaelgruber/spidersync/internal/metrics"
	"github.com/raphaelgruber/spidersync/internal/models"
	"github.com/raphaelgruber/spidersync/internal/syncerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMetadata = `{
	"Signatur": "CH_BGer_005_5A",
	"Kopfzeile": [
		{"Sprachen": ["de"], "Text": "Urteil vom 1. März"},
		{"Sprachen": ["fr", "it"], "Text": "Arrêt du 1er mars"},
		{"Sprachen": ["it"], "Text": "Sentenza del 1° marzo"}
	],
	"Abstract": [],
	"Num": "5A_123/2023",
	"Datum": "2023-03-01"
}`

func newTestAssembler(t *testing.T, files map[string]string) (*Assembler, *metrics.Collector) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		writeSpiderFile(t, dir, name, content)
	}
	collector := metrics.NewCollector()
	return NewAssembler(loader.NewFileSystem(dir), "https://docs.example.org/", collector), collector
}

func group(n *models.Notification, names ...string) models.FileGroup {
	g := models.FileGroup{}
	for _, name := range names {
		fd, _ := n.Descriptor(name)
		g.Files = append(g.Files, fd)
		g.Base, _ = models.SplitName(name)
	}
	return g
}

func TestAssembleMetadataOnly(t *testing.T) {
	a, collector := newTestAssembler(t, map[string]string{"X/1.json": sampleMetadata})
	n := notification(map[string]models.FileDescriptor{"X/1.json": {Status: models.FileStatusUpdate}})

	doc, err := a.Assemble(context.Background(), n, group(n, "X/1.json"))
	require.NoError(t, err)

	assert.Equal(t, &models.Document{
		ID:        "1",
		Canton:    "CH",
		Hierarchy: []string{"CH", "CH_BGer", "CH_BGer_005", "CH_BGer_005_5A"},
		Title: models.IntText{
			"de": "Urteil vom 1. März",
			"fr": "Arrêt du 1er mars",
			"it": "Sentenza del 1° marzo",
		},
		Abstract:  models.IntText{"de": "", "fr": "", "it": ""},
		Reference: []string{"5A_123/2023"},
		Date:      "2023-03-01",
	}, doc)
	assert.Equal(t, int64(1), collector.Snapshot().Operations[metrics.OpFileLoad].Count)
}

func TestAssembleWithAttachment(t *testing.T) {
	a, _ := newTestAssembler(t, map[string]string{
		"X/1.json": `{"Signatur": "ZH_OG", "Num": ["A", "B"], "Datum": "0000-00-00"}`,
		"X/1.pdf":  "%PDF-1.7",
		"X/1.html": "<html/>",
	})
	n := notification(map[string]models.FileDescriptor{
		"X/1.html": {Status: models.FileStatusNew},
		"X/1.json": {Status: models.FileStatusNew},
		"X/1.pdf":  {Status: models.FileStatusNew},
	})

	doc, err := a.Assemble(context.Background(), n, group(n, "X/1.html", "X/1.json", "X/1.pdf"))
	require.NoError(t, err)

	assert.False(t, doc.Deleted)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("%PDF-1.7")), doc.Payload)
	assert.Equal(t, "https://docs.example.org/X/1.pdf", doc.URL)
	assert.Equal(t, []string{"A", "B"}, doc.Reference)
	assert.Empty(t, doc.Date)
	assert.Nil(t, doc.Title)
}

func TestAssembleKeepsMetadataURL(t *testing.T) {
	a, _ := newTestAssembler(t, map[string]string{
		"X/1.json": `{"Signatur": "ZH", "URL": "https://court.example/1"}`,
		"X/1.html": "<html/>",
	})
	n := notification(map[string]models.FileDescriptor{
		"X/1.json": {Status: models.FileStatusNew},
		"X/1.html": {Status: models.FileStatusNew},
	})

	doc, err := a.Assemble(context.Background(), n, group(n, "X/1.html", "X/1.json"))
	require.NoError(t, err)
	assert.Equal(t, "https://court.example/1", doc.URL)
	assert.NotEmpty(t, doc.Payload)
}

func TestAssembleXMLMetadata(t *testing.T) {
	a, _ := newTestAssembler(t, map[string]string{
		"X/7.xml": `<Dokument>
			<Signatur>BE_VG</Signatur>
			<Kopfzeile><Sprachen>de</Sprachen><Sprachen>fr</Sprachen><Text>Entscheid</Text></Kopfzeile>
			<Num>100.2023.1</Num>
			<Num>100.2023.2</Num>
			<Datum>2023-05-04</Datum>
		</Dokument>`,
	})
	n := notification(map[string]models.FileDescriptor{"X/7.xml": {Status: models.FileStatusNew}})

	doc, err := a.Assemble(context.Background(), n, group(n, "X/7.xml"))
	require.NoError(t, err)
	assert.Equal(t, "7", doc.ID)
	assert.Equal(t, "BE", doc.Canton)
	assert.Equal(t, []string{"BE", "BE_VG"}, doc.Hierarchy)
	assert.Equal(t, models.IntText{"de": "Entscheid", "fr": "Entscheid", "it": ""}, doc.Title)
	assert.Equal(t, []string{"100.2023.1", "100.2023.2"}, doc.Reference)
	assert.Equal(t, "2023-05-04", doc.Date)
}

func TestAssembleDeletedSkipsStorage(t *testing.T) {
	a, collector := newTestAssembler(t, nil)
	n := notification(map[string]models.FileDescriptor{
		"X/2.json": {Status: models.FileStatusDeleted},
		"X/2.pdf":  {Status: models.FileStatusDeleted},
	})

	doc, err := a.Assemble(context.Background(), n, group(n, "X/2.json", "X/2.pdf"))
	require.NoError(t, err)
	assert.Equal(t, &models.Document{ID: "2", Deleted: true}, doc)
	assert.Empty(t, collector.Snapshot().Operations)
}

func TestAssembleUsesSiblingMetadata(t *testing.T) {
	a, _ := newTestAssembler(t, map[string]string{
		"X/3.json": `{"Signatur": "AG"}`,
		"X/3.pdf":  "%PDF",
	})
	n := notification(map[string]models.FileDescriptor{
		"X/3.json": {Status: models.FileStatusEqual},
		"X/3.pdf":  {Status: models.FileStatusUpdate},
	})

	doc, err := a.Assemble(context.Background(), n, group(n, "X/3.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "3", doc.ID)
	assert.Equal(t, "AG", doc.Canton)
	assert.NotEmpty(t, doc.Payload)
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		group   []string
		wantErr error
		subject string
	}{
		{
			name:    "missing metadata file",
			group:   []string{"X/4.json"},
			wantErr: syncerr.ErrNotFound,
			subject: "X/4.json",
		},
		{
			name:    "missing attachment",
			files:   map[string]string{"X/4.json": `{"Signatur": "AG"}`},
			group:   []string{"X/4.json", "X/4.pdf"},
			wantErr: syncerr.ErrNotFound,
			subject: "X/4.pdf",
		},
		{
			name:    "malformed metadata",
			files:   map[string]string{"X/4.json": `{"Signatur": `},
			group:   []string{"X/4.json"},
			wantErr: syncerr.ErrParse,
			subject: "X/4.json",
		},
		{
			name:    "metadata without signature",
			files:   map[string]string{"X/4.json": `{"Datum": "2020-01-01"}`},
			group:   []string{"X/4.json"},
			wantErr: syncerr.ErrParse,
			subject: "X/4.json",
		},
		{
			name:    "no metadata anywhere",
			files:   map[string]string{"X/4.pdf": "%PDF"},
			group:   []string{"X/4.pdf"},
			wantErr: syncerr.ErrParse,
			subject: "X/4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newTestAssembler(t, tt.files)
			files := map[string]models.FileDescriptor{}
			for _, name := range tt.group {
				files[name] = models.FileDescriptor{Status: models.FileStatusNew}
			}
			n := notification(files)

			_, err := a.Assemble(context.Background(), n, group(n, tt.group...))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.subject, syncerr.SubjectOf(err))
		})
	}
}
