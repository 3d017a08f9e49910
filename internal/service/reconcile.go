package service

import (
	"sort"

	"github.com/raphaelgruber/spidersync/internal/models"
)

// Plan returns the file groups of n that must be rebuilt, in file name order.
//
// Files are grouped by base name. An attachment is skipped when it is not
// indexed itself but its alternative kind (pdf for html, html for pdf) is.
// Otherwise a file is included when it is new or updated, when it is unchanged
// but changed after the sequence the index recorded, or when it is deleted and
// still indexed. Plan is pure: equal inputs give equal output.
func Plan(seqs models.SequenceMap, n *models.Notification) []models.FileGroup {
	names := make([]string, 0, len(n.Files))
	for name := range n.Files {
		names = append(names, name)
	}
	sort.Strings(names)

	var groups []models.FileGroup
	var current *models.FileGroup

	for _, name := range names {
		fd, _ := n.Descriptor(name)
		base, ext := models.SplitName(name)

		existing := seqs.Get(name)
		if skipAttachment(seqs, base, ext, existing) {
			continue
		}
		if !needsSync(fd, existing) {
			continue
		}

		if current == nil || current.Base != base {
			groups = append(groups, models.FileGroup{Base: base})
			current = &groups[len(groups)-1]
		}
		current.Files = append(current.Files, fd)
	}
	return groups
}

// skipAttachment reports whether an attachment would duplicate the indexed alternative.
// Metadata files are never skipped.
func skipAttachment(seqs models.SequenceMap, base, ext string, existing int) bool {
	if models.IsMetadata(ext) || existing != models.NotIndexed {
		return false
	}
	return seqs.Get(base+"."+models.AlternativeExt(ext)) != models.NotIndexed
}

func needsSync(fd models.FileDescriptor, existing int) bool {
	switch fd.Status {
	case models.FileStatusNew, models.FileStatusUpdate:
		return true
	case models.FileStatusEqual:
		return fd.ChangeSequence() > existing
	case models.FileStatusDeleted:
		return existing != models.NotIndexed
	default:
		return false
	}
}
