package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/raphaelgruber/spidersync/internal/loader"
	"github.com/raphaelgruber/spidersync/internal/metrics"
	"github.com/raphaelgruber/spidersync/internal/models"
	"github.com/raphaelgruber/spidersync/internal/syncerr"
	"golang.org/x/sync/errgroup"
)

// Assembler builds index documents from file groups.
type Assembler struct {
	loader          loader.Loader
	documentBaseURL string
	metrics         *metrics.Collector
}

// NewAssembler creates an assembler. documentBaseURL prefixes synthesized attachment URLs.
func NewAssembler(l loader.Loader, documentBaseURL string, collector *metrics.Collector) *Assembler {
	return &Assembler{
		loader:          l,
		documentBaseURL: strings.TrimSuffix(documentBaseURL, "/"),
		metrics:         collector,
	}
}

// Assemble builds the document for group. A deleted metadata file yields a
// deleted document without touching storage. When the group holds no metadata
// member, the sibling metadata file of the notification is used.
func (a *Assembler) Assemble(ctx context.Context, n *models.Notification, group models.FileGroup) (*models.Document, error) {
	meta, ok := group.Metadata()
	if !ok {
		meta, ok = siblingMetadata(n, group.Base)
		if !ok {
			return nil, syncerr.Parse(group.Base, errors.New("missing metadata file"))
		}
	}

	if meta.Status == models.FileStatusDeleted {
		return &models.Document{ID: models.DocumentID(meta.Name), Deleted: true}, nil
	}

	attachment, hasAttachment := group.Attachment()
	if !hasAttachment {
		return a.buildBase(ctx, meta.Name)
	}

	var doc *models.Document
	var payload string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		doc, err = a.buildBase(gctx, meta.Name)
		return err
	})
	g.Go(func() error {
		var err error
		payload, err = a.loadAttachment(gctx, attachment.Name)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	doc.Payload = payload
	if doc.URL == "" {
		doc.URL = a.documentBaseURL + "/" + attachment.Name
	}
	return doc, nil
}

func siblingMetadata(n *models.Notification, base string) (models.FileDescriptor, bool) {
	for _, ext := range []string{models.ExtJSON, models.ExtXML} {
		if fd, ok := n.Descriptor(base + "." + ext); ok {
			return fd, true
		}
	}
	return models.FileDescriptor{}, false
}

func (a *Assembler) buildBase(ctx context.Context, name string) (*models.Document, error) {
	data, err := a.load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("build file %s: %w", name, err)
	}

	meta, err := decodeMetadata(name, data)
	if err != nil {
		return nil, fmt.Errorf("build file %s: %w", name, syncerr.Parse(name, err))
	}

	doc, err := newDocument(models.DocumentID(name), meta)
	if err != nil {
		return nil, fmt.Errorf("build file %s: %w", name, syncerr.Parse(name, err))
	}
	return doc, nil
}

func (a *Assembler) loadAttachment(ctx context.Context, name string) (string, error) {
	data, err := a.load(ctx, name)
	if err != nil {
		return "", fmt.Errorf("build file %s: %w", name, err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func (a *Assembler) load(ctx context.Context, name string) ([]byte, error) {
	start := time.Now()
	data, err := loader.ReadAll(ctx, a.loader, name)
	if err != nil {
		a.metrics.RecordError(metrics.OpFileLoad)
		return nil, err
	}
	a.metrics.RecordTiming(metrics.OpFileLoad, time.Since(start))
	return data, nil
}

func decodeMetadata(name string, data []byte) (*models.Metadata, error) {
	var meta models.Metadata
	_, ext := models.SplitName(name)
	switch ext {
	case models.ExtXML:
		if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&meta); err != nil {
			return nil, fmt.Errorf("decode xml: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	}
	return &meta, nil
}

// newDocument maps metadata onto the index document.
func newDocument(id string, meta *models.Metadata) (*models.Document, error) {
	if meta.Signature == "" {
		return nil, errors.New("missing Signatur")
	}

	levels := strings.Split(meta.Signature, "_")
	hierarchy := make([]string, len(levels))
	for i := range levels {
		hierarchy[i] = strings.Join(levels[:i+1], "_")
	}

	doc := &models.Document{
		ID:        id,
		Canton:    levels[0],
		Hierarchy: hierarchy,
		URL:       meta.URL,
	}
	if meta.Title != nil {
		doc.Title = models.NewIntText(meta.Title)
	}
	if meta.Abstract != nil {
		doc.Abstract = models.NewIntText(meta.Abstract)
	}
	if meta.Meta != nil {
		doc.Meta = models.NewIntText(meta.Meta)
	}
	if len(meta.Reference) > 0 {
		doc.Reference = meta.Reference
	}
	if meta.Date != "" && meta.Date != models.NullDate {
		doc.Date = meta.Date
	}
	return doc, nil
}
