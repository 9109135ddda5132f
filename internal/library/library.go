package library

import (
	"time"
)

// Status is the reading status of a library entry.
type Status string

const (
	StatusRead       Status = "read"
	StatusReading    Status = "reading"
	StatusWantToRead Status = "want_to_read"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Book is a normalized catalog record. It is never modified after it was fetched.
type Book struct {
	ID            string   `json:"id" validate:"required"`
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	Description   string   `json:"description,omitempty"`
	Thumbnail     string   `json:"thumbnail,omitempty"`
	ISBN          string   `json:"isbn,omitempty"`
	PublishedDate string   `json:"published_date,omitempty"`
	PageCount     int      `json:"page_count,omitempty"`
	Categories    []string `json:"categories,omitempty"`
	Publisher     string   `json:"publisher,omitempty"`
}

// Entry is a book tracked in a user's library.
//
// ReadDate is kept as the raw ISO string it was stored with: older snapshots
// may carry values that do not parse, and the merge treats those as oldest.
type Entry struct {
	Book
	UserRating   int           `json:"user_rating,omitempty" validate:"omitempty,min=1,max=5"`
	ReadDate     string        `json:"read_date"`
	Status       Status        `json:"status" validate:"omitempty,oneof=read reading want_to_read"`
	ReadingSheet *ReadingSheet `json:"reading_sheet,omitempty" validate:"omitempty"`
}

// ReadingSheet is a typed free-text reflection owned by one entry.
type ReadingSheet struct {
	Type      SheetType         `json:"type" validate:"required,oneof=essai roman_histoire libre"`
	Answers   map[string]string `json:"answers"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Cabinet is a named grouping of library books. A book belongs to at most
// one cabinet; MoveBookToCabinet is what keeps it that way.
type Cabinet struct {
	ID        string    `json:"id" validate:"required"`
	Name      string    `json:"name"`
	BookIDs   []string  `json:"book_ids"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot is a full copy of one user's library and cabinets.
type Snapshot struct {
	Library  []Entry   `json:"library"`
	Cabinets []Cabinet `json:"cabinets"`
}

// IsEmpty reports whether the snapshot holds neither entries nor cabinets.
func (s Snapshot) IsEmpty() bool {
	return len(s.Library) == 0 && len(s.Cabinets) == 0
}

// Clone returns a deep copy so callers can hand snapshots to other goroutines.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Library:  make([]Entry, len(s.Library)),
		Cabinets: make([]Cabinet, len(s.Cabinets)),
	}
	for i, e := range s.Library {
		out.Library[i] = e.Clone()
	}
	for i, c := range s.Cabinets {
		out.Cabinets[i] = c.Clone()
	}
	return out
}

// Clone returns a copy sharing no slices, maps or sheet with e.
func (e Entry) Clone() Entry {
	e.Authors = cloneStrings(e.Authors)
	e.Categories = cloneStrings(e.Categories)
	if e.ReadingSheet != nil {
		sheet := *e.ReadingSheet
		if sheet.Answers != nil {
			answers := make(map[string]string, len(sheet.Answers))
			for k, v := range sheet.Answers {
				answers[k] = v
			}
			sheet.Answers = answers
		}
		e.ReadingSheet = &sheet
	}
	return e
}

// Clone returns a copy with its own non-nil BookIDs.
func (c Cabinet) Clone() Cabinet {
	c.BookIDs = cloneStrings(c.BookIDs)
	if c.BookIDs == nil {
		c.BookIDs = []string{}
	}
	return c
}

// Contains reports whether the cabinet holds bookID.
func (c Cabinet) Contains(bookID string) bool {
	for _, id := range c.BookIDs {
		if id == bookID {
			return true
		}
	}
	return false
}

// ValidRating reports whether rating is within MinRating..MaxRating.
func ValidRating(rating int) bool {
	return rating >= MinRating && rating <= MaxRating
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
