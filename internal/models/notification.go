// Package models defines data structures for the spider sync pipeline.
package models

import (
	"strconv"
	"strings"
	"time"
)

// FileStatus is the change state the spider reports for a file.
type FileStatus string

// Wire values use the spider's vocabulary.
const (
	FileStatusEqual   FileStatus = "identisch"
	FileStatusNew     FileStatus = "neu"
	FileStatusUpdate  FileStatus = "update"
	FileStatusDeleted FileStatus = "geloescht"
)

// JobKindFull marks a full re-crawl; the existing index is dropped before syncing.
const JobKindFull = "neu"

// FileDescriptor describes one file in a spider notification.
type FileDescriptor struct {
	Name       string     `json:"-"`
	Checksum   string     `json:"checksum"`
	Status     FileStatus `json:"status"`
	LastChange *string    `json:"last_change,omitempty"`
	SourceJob  *string    `json:"quelle,omitempty"`
}

// Notification is one spider run's report of added, changed and removed files.
type Notification struct {
	Collection string                    `json:"spider"`
	Job        string                    `json:"job"`
	JobKind    string                    `json:"jobtyp"`
	Timestamp  string                    `json:"time"`
	Files      map[string]FileDescriptor `json:"dateien"`
}

// FullCrawl reports whether the notification replaces the whole collection.
func (n *Notification) FullCrawl() bool {
	return n.JobKind == JobKindFull
}

// Descriptor returns the descriptor for name with its Name field populated.
func (n *Notification) Descriptor(name string) (FileDescriptor, bool) {
	fd, ok := n.Files[name]
	if !ok {
		return FileDescriptor{}, false
	}
	fd.Name = name
	return fd, true
}

// ChangeSequence returns the sequence of the run that last changed the file.
func (fd FileDescriptor) ChangeSequence() int {
	if fd.LastChange == nil {
		return 0
	}
	return JobSequence(*fd.LastChange)
}

// JobSequence extracts the run sequence encoded as the numeric suffix after the
// final '/' of a job identifier. Leading digits are parsed; anything else yields 0.
func JobSequence(job string) int {
	s := job[strings.LastIndex(job, "/")+1:]
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

// SequenceMap maps file names to the sequence last recorded for them in the index.
type SequenceMap map[string]int

// NotIndexed is the sequence reported for files absent from the index.
const NotIndexed = -1

// Get returns the recorded sequence for name, or NotIndexed.
func (m SequenceMap) Get(name string) int {
	if seq, ok := m[name]; ok {
		return seq
	}
	return NotIndexed
}

// ParseTimestamp parses the notification time, returning the zero time if it is not RFC 3339.
func (n *Notification) ParseTimestamp() time.Time {
	t, err := time.Parse(time.RFC3339, n.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}
