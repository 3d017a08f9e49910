package models

import (
	"encoding/json"
	"encoding/xml"
)

// IntText is a multilingual text keyed by language code.
type IntText map[string]string

// Languages seeded into every IntText so the index always sees the same keys.
var defaultLanguages = []string{"de", "fr", "it"}

// TextEntry is one metadata text with the languages it applies to.
type TextEntry struct {
	Languages []string `json:"Sprachen" xml:"Sprachen"`
	Text      string   `json:"Text" xml:"Text"`
}

// NewIntText builds a multilingual text from entries. Later entries win when
// two entries name the same language.
func NewIntText(entries []TextEntry) IntText {
	text := make(IntText, len(defaultLanguages))
	for _, lang := range defaultLanguages {
		text[lang] = ""
	}
	for _, e := range entries {
		for _, lang := range e.Languages {
			text[lang] = e.Text
		}
	}
	return text
}

// Document is the normalized form of a file group, ready to be applied to the index.
// A deleted document carries only its ID.
type Document struct {
	ID        string   `json:"id,omitempty"`
	Deleted   bool     `json:"-"`
	Canton    string   `json:"canton,omitempty"`
	Title     IntText  `json:"title,omitempty"`
	Abstract  IntText  `json:"abstract,omitempty"`
	Meta      IntText  `json:"meta,omitempty"`
	Hierarchy []string `json:"hierarchy,omitempty"`
	Reference []string `json:"reference,omitempty"`
	Date      string   `json:"date,omitempty"`
	URL       string   `json:"url,omitempty"`
	Source    string   `json:"source,omitempty"`
	// Payload is the base64 attachment, extracted server-side by the ingest pipeline.
	Payload string `json:"data,omitempty"`
}

// PatchFields returns the document without its id, for partial updates.
func (d *Document) PatchFields() *Document {
	patch := *d
	patch.ID = ""
	return &patch
}

// HasPayload reports whether the document carries attachment bytes.
func (d *Document) HasPayload() bool {
	return d.Payload != ""
}

// NullDate is the sentinel the spider uses for an unknown date.
const NullDate = "0000-00-00"

// Metadata is the collection's native metadata record. JSON and XML use the same names.
type Metadata struct {
	XMLName   xml.Name    `json:"-"`
	Signature string      `json:"Signatur" xml:"Signatur"`
	Title     []TextEntry `json:"Kopfzeile" xml:"Kopfzeile"`
	Abstract  []TextEntry `json:"Abstract" xml:"Abstract"`
	Meta      []TextEntry `json:"Meta" xml:"Meta"`
	Reference StringList  `json:"Num" xml:"Num"`
	Date      string      `json:"Datum" xml:"Datum"`
	URL       string      `json:"URL" xml:"URL"`
}

// StringList decodes either a JSON string or an array of strings.
type StringList []string

// UnmarshalJSON accepts a scalar or an array.
func (l *StringList) UnmarshalJSON(data []byte) error {
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*l = many
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*l = StringList{one}
	return nil
}
