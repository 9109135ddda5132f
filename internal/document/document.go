// Package document is the per-user remote library document: one JSON
// document holding the library entries and the cabinets, written with
// merge-on-write semantics.
package document

import (
	"errors"
	"time"

	"bookshelf/internal/library"
)

var ErrNotFound = errors.New("library document not found")

type Document struct {
	UserID    string
	Library   []library.Entry
	Cabinets  []library.Cabinet
	UpdatedAt time.Time
}

// Patch replaces only the fields that are non-nil. A nil field leaves the
// stored value untouched.
type Patch struct {
	Library  *[]library.Entry
	Cabinets *[]library.Cabinet
}

func (p Patch) IsEmpty() bool {
	return p.Library == nil && p.Cabinets == nil
}

// Snapshot returns the document contents with nil slices normalized to empty.
func (d Document) Snapshot() library.Snapshot {
	s := library.Snapshot{Library: d.Library, Cabinets: d.Cabinets}
	if s.Library == nil {
		s.Library = []library.Entry{}
	}
	if s.Cabinets == nil {
		s.Cabinets = []library.Cabinet{}
	}
	return s
}
