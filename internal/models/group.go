package models

import (
	"path"
	"strings"
)

// File extensions the pipeline understands.
const (
	ExtJSON = "json"
	ExtXML  = "xml"
	ExtPDF  = "pdf"
	ExtHTML = "html"
)

// FileGroup is the ordered set of files sharing one base name; together they
// form a single logical document.
type FileGroup struct {
	Base  string
	Files []FileDescriptor
}

// SplitName splits a file name into base (without extension) and extension.
// A name without a dot has an empty extension and is its own base.
func SplitName(name string) (base, ext string) {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return name, ""
	}
	return name[:i], name[i+1:]
}

// IsMetadata reports whether the extension names a metadata file.
func IsMetadata(ext string) bool {
	return ext == ExtJSON || ext == ExtXML
}

// AlternativeExt returns the attachment kind that substitutes for ext.
// Metadata and unknown extensions map to json.
func AlternativeExt(ext string) string {
	switch ext {
	case ExtHTML:
		return ExtPDF
	case ExtPDF:
		return ExtHTML
	default:
		return ExtJSON
	}
}

// Metadata returns the group's metadata member.
func (g FileGroup) Metadata() (FileDescriptor, bool) {
	for _, f := range g.Files {
		if _, ext := SplitName(f.Name); IsMetadata(ext) {
			return f, true
		}
	}
	return FileDescriptor{}, false
}

// Attachment returns the preferred attachment member: PDF first, then HTML.
func (g FileGroup) Attachment() (FileDescriptor, bool) {
	for _, want := range []string{ExtPDF, ExtHTML} {
		for _, f := range g.Files {
			if _, ext := SplitName(f.Name); ext == want {
				return f, true
			}
		}
	}
	return FileDescriptor{}, false
}

// Names returns the member file names in group order.
func (g FileGroup) Names() []string {
	names := make([]string, len(g.Files))
	for i, f := range g.Files {
		names[i] = f.Name
	}
	return names
}

// DocumentID derives the index id from a file name: its base name without directory.
func DocumentID(name string) string {
	base, _ := SplitName(name)
	return path.Base(base)
}
