package library

import "time"

var readDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ReadDateLayout is the layout new read dates are written with.
const ReadDateLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatReadDate renders t the way read dates are stored.
func FormatReadDate(t time.Time) string {
	return t.UTC().Format(ReadDateLayout)
}

// ParseReadDate parses a stored read date. The second result is false when
// the value is empty or not a recognizable timestamp.
func ParseReadDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range readDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// MergeLibraries unions two libraries keyed by book ID. primary is the
// remote side. When both sides hold the same book, the entry with the
// strictly later read date wins; an unparsable date loses to a parsable one,
// and ties keep primary.
//
// The bool result is true when the merged library holds anything primary did
// not: an entry only secondary had, or a secondary entry that won.
func MergeLibraries(primary, secondary []Entry) ([]Entry, bool) {
	merged := make([]Entry, 0, len(primary)+len(secondary))
	index := make(map[string]int, len(primary)+len(secondary))
	changed := false

	for _, e := range primary {
		if i, ok := index[e.ID]; ok {
			// duplicated key inside primary: last one wins the same way
			if newer(e, merged[i]) {
				merged[i] = e
			}
			continue
		}
		index[e.ID] = len(merged)
		merged = append(merged, e)
	}

	for _, e := range secondary {
		i, ok := index[e.ID]
		if !ok {
			index[e.ID] = len(merged)
			merged = append(merged, e)
			changed = true
			continue
		}
		if newer(e, merged[i]) {
			merged[i] = e
			changed = true
		}
	}
	return merged, changed
}

// newer reports whether candidate should replace current.
func newer(candidate, current Entry) bool {
	cand, candOK := ParseReadDate(candidate.ReadDate)
	cur, curOK := ParseReadDate(current.ReadDate)
	switch {
	case !candOK:
		return false
	case !curOK:
		return true
	default:
		return cand.After(cur)
	}
}

// MergeCabinets unions two cabinet collections keyed by cabinet ID. For a
// cabinet on both sides the book IDs are unioned, the primary name is kept
// unless it is empty, and every other field comes from secondary.
//
// The bool result is true when the merged collection differs from primary:
// a new cabinet, a new book ID, a filled-in name or a secondary CreatedAt.
func MergeCabinets(primary, secondary []Cabinet) ([]Cabinet, bool) {
	merged := make([]Cabinet, 0, len(primary)+len(secondary))
	index := make(map[string]int, len(primary)+len(secondary))
	changed := false

	for _, c := range primary {
		c = c.Clone()
		c.BookIDs = dedupe(c.BookIDs)
		if i, ok := index[c.ID]; ok {
			merged[i], _ = mergeCabinet(merged[i], c)
			continue
		}
		index[c.ID] = len(merged)
		merged = append(merged, c)
	}

	for _, c := range secondary {
		c = c.Clone()
		i, ok := index[c.ID]
		if !ok {
			c.BookIDs = dedupe(c.BookIDs)
			index[c.ID] = len(merged)
			merged = append(merged, c)
			changed = true
			continue
		}
		var added bool
		merged[i], added = mergeCabinet(merged[i], c)
		changed = changed || added
	}
	return merged, changed
}

func mergeCabinet(existing, incoming Cabinet) (Cabinet, bool) {
	out := incoming
	out.Name = existing.Name
	if out.Name == "" {
		out.Name = incoming.Name
	}

	seen := make(map[string]struct{}, len(existing.BookIDs)+len(incoming.BookIDs))
	ids := make([]string, 0, len(existing.BookIDs)+len(incoming.BookIDs))
	for _, id := range existing.BookIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	added := false
	for _, id := range incoming.BookIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
		added = true
	}
	out.BookIDs = ids
	changed := added || out.Name != existing.Name || !out.CreatedAt.Equal(existing.CreatedAt)
	return out, changed
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
