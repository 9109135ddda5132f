// Package shelf keeps one user's library and cabinets in memory and in sync
// with a local snapshot store and, when someone is signed in, a remote
// document store.
//
// A Store loads on every identity change: it reads the local snapshot,
// fetches the remote one, merges them with remote as primary, and becomes
// Ready. Mutations update memory synchronously and hand full snapshots to
// background writers, one per store, that persist them in order.
package shelf

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"bookshelf/internal/library"
	"bookshelf/internal/logging"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNotReady   = errors.New("library is not ready")
	ErrSuperseded = errors.New("load superseded by a newer identity change")
	ErrClosed     = errors.New("library store closed")
)

type State int

const (
	Uninitialized State = iota
	Loading
	Ready
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return "uninitialized"
	}
}

const defaultWriteTimeout = 10 * time.Second

type Option func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator replaces the cabinet ID generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// WithWriteTimeout bounds each background write.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Store) { s.writeTimeout = d }
}

type Store struct {
	local        LocalStore
	remote       RemoteStore
	logger       logging.Logger
	now          func() time.Time
	newID        func() string
	writeTimeout time.Duration

	localWriter  *writer
	remoteWriter *writer

	mu         sync.Mutex
	state      State
	identity   *Identity
	generation uint64
	closed     bool
	library    []library.Entry
	cabinets   []library.Cabinet
}

// New starts the store's writers. Call Close to stop them. remote may be nil
// when the caller never signs in.
func New(local LocalStore, remote RemoteStore, logger logging.Logger, opts ...Option) *Store {
	s := &Store{
		local:        local,
		remote:       remote,
		logger:       logger,
		now:          time.Now,
		newID:        uuid.NewString,
		writeTimeout: defaultWriteTimeout,
		state:        Uninitialized,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.localWriter = newWriter("local", logger, s.writeTimeout)
	s.remoteWriter = newWriter("remote", logger, s.writeTimeout)
	return s
}

// SetIdentity switches the signed-in user and reloads. Passing the current
// identity while Ready does nothing. It returns ErrSuperseded when another
// identity change started before this load finished.
func (s *Store) SetIdentity(ctx context.Context, id *Identity) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state == Ready && sameIdentity(s.identity, id) {
		s.mu.Unlock()
		return nil
	}
	gen := s.beginLoadLocked(id)
	s.mu.Unlock()
	return s.load(ctx, gen, id)
}

// Reload re-runs the load for the current identity.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	id := s.identity
	gen := s.beginLoadLocked(id)
	s.mu.Unlock()
	return s.load(ctx, gen, id)
}

func (s *Store) beginLoadLocked(id *Identity) uint64 {
	s.generation++
	s.state = Loading
	if id != nil {
		cp := *id
		id = &cp
	}
	s.identity = id
	s.library = nil
	s.cabinets = nil
	return s.generation
}

func (s *Store) load(ctx context.Context, gen uint64, id *Identity) error {
	// Mutations made before Loading may still be queued for the local store.
	if err := s.localWriter.flush(ctx); err != nil {
		s.logger.Warn(ctx, "pending local writes not drained before load", "error", err)
	}
	local := s.readLocal(ctx)

	if id == nil || s.remote == nil {
		return s.finishLoad(ctx, gen, local, nil)
	}

	remote, exists, err := s.remote.Fetch(ctx, id.UserID)
	if err != nil {
		s.logger.Warn(ctx, "remote library unavailable, using local snapshot", "user_id", id.UserID, "error", err)
		return s.finishLoad(ctx, gen, local, nil)
	}

	merged := library.Snapshot{}
	libChanged, cabChanged := false, false
	merged.Library, libChanged = library.MergeLibraries(remote.Library, local.Library)
	merged.Cabinets, cabChanged = library.MergeCabinets(remote.Cabinets, local.Cabinets)

	publish := libChanged || cabChanged || (!exists && !merged.IsEmpty())
	return s.finishLoad(ctx, gen, merged, &publish)
}

// finishLoad installs snap if gen is still current. publish is nil when no
// remote snapshot took part in the load.
func (s *Store) finishLoad(ctx context.Context, gen uint64, snap library.Snapshot, publish *bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.closed {
		s.logger.Debug(ctx, "discarding stale library load", "generation", gen, "current", s.generation)
		return ErrSuperseded
	}

	s.library = snap.Library
	s.cabinets = snap.Cabinets
	if s.library == nil {
		s.library = []library.Entry{}
	}
	if s.cabinets == nil {
		s.cabinets = []library.Cabinet{}
	}
	s.state = Ready

	if publish != nil {
		s.enqueueLocalLocked()
		if *publish {
			s.enqueueRemoteLocked()
		}
	}
	s.logger.Info(ctx, "library ready", "entries", len(s.library), "cabinets", len(s.cabinets), "signed_in", s.identity != nil)
	return nil
}

func (s *Store) readLocal(ctx context.Context) library.Snapshot {
	var snap library.Snapshot
	s.readLocalKey(ctx, LibraryKey, &snap.Library)
	s.readLocalKey(ctx, CabinetsKey, &snap.Cabinets)
	return snap
}

func (s *Store) readLocalKey(ctx context.Context, key string, target any) {
	raw, err := s.local.Get(ctx, key)
	if err != nil {
		s.logger.Warn(ctx, "local snapshot unreadable, treating as empty", "key", key, "error", err)
		return
	}
	if len(raw) == 0 {
		return
	}
	if err := json.Unmarshal(raw, target); err != nil {
		s.logger.Warn(ctx, "local snapshot malformed, treating as empty", "key", key, "error", err)
	}
}

// AddToLibrary tracks book as read now with rating. Re-rating keeps an
// attached reading sheet. Ratings outside 1..5 are ignored.
func (s *Store) AddToLibrary(book library.Book, rating int) error {
	return s.mutate(func() bool {
		if book.ID == "" || !library.ValidRating(rating) {
			return false
		}
		entry := library.Entry{
			Book:       book,
			UserRating: rating,
			ReadDate:   library.FormatReadDate(s.now()),
			Status:     library.StatusRead,
		}
		entry = entry.Clone()
		if i := s.indexLocked(book.ID); i >= 0 {
			entry.ReadingSheet = s.library[i].ReadingSheet
			s.library[i] = entry
			return true
		}
		s.library = append(s.library, entry)
		return true
	})
}

// SaveReadingSheet attaches sheet to a tracked book. Untracked books and
// unknown sheet types are ignored.
func (s *Store) SaveReadingSheet(bookID string, sheet library.ReadingSheet) error {
	return s.mutate(func() bool {
		i := s.indexLocked(bookID)
		if i < 0 {
			return false
		}
		if _, err := library.ParseSheetType(string(sheet.Type)); err != nil {
			return false
		}

		now := s.now().UTC()
		answers := make(map[string]string, len(sheet.Answers))
		for k, v := range sheet.Answers {
			answers[k] = v
		}
		saved := library.ReadingSheet{
			Type:      sheet.Type,
			Answers:   answers,
			CreatedAt: sheet.CreatedAt,
			UpdatedAt: now,
		}
		if prev := s.library[i].ReadingSheet; prev != nil && !prev.CreatedAt.IsZero() {
			saved.CreatedAt = prev.CreatedAt
		}
		if saved.CreatedAt.IsZero() {
			saved.CreatedAt = now
		}
		s.library[i].ReadingSheet = &saved
		return true
	})
}

// RemoveFromLibrary drops the entry and the book's cabinet membership.
func (s *Store) RemoveFromLibrary(bookID string) error {
	return s.mutate(func() bool {
		changed := false
		if i := s.indexLocked(bookID); i >= 0 {
			s.library = append(s.library[:i], s.library[i+1:]...)
			changed = true
		}
		if s.unassignLocked(bookID) {
			changed = true
		}
		return changed
	})
}

// CreateCabinet adds an empty cabinet. The bool is false when name is blank.
func (s *Store) CreateCabinet(name string) (library.Cabinet, bool, error) {
	var created library.Cabinet
	err := s.mutate(func() bool {
		name = strings.TrimSpace(name)
		if name == "" {
			return false
		}
		created = library.Cabinet{
			ID:        s.newID(),
			Name:      name,
			BookIDs:   []string{},
			CreatedAt: s.now().UTC(),
		}
		s.cabinets = append(s.cabinets, created)
		return true
	})
	if err != nil || created.ID == "" {
		return library.Cabinet{}, false, err
	}
	return created.Clone(), true, nil
}

// MoveBookToCabinet removes bookID from every cabinet, then adds it to
// cabinetID when that cabinet exists. A nil cabinetID only unassigns.
func (s *Store) MoveBookToCabinet(bookID string, cabinetID *string) error {
	return s.mutate(func() bool {
		if bookID == "" {
			return false
		}
		changed := s.unassignLocked(bookID)
		if cabinetID == nil {
			return changed
		}
		for i := range s.cabinets {
			if s.cabinets[i].ID == *cabinetID {
				s.cabinets[i].BookIDs = append(s.cabinets[i].BookIDs, bookID)
				return true
			}
		}
		return changed
	})
}

func (s *Store) unassignLocked(bookID string) bool {
	changed := false
	for i := range s.cabinets {
		ids := s.cabinets[i].BookIDs
		kept := make([]string, 0, len(ids))
		for _, id := range ids {
			if id != bookID {
				kept = append(kept, id)
			}
		}
		if len(kept) != len(ids) {
			changed = true
		}
		s.cabinets[i].BookIDs = kept
	}
	return changed
}

func (s *Store) indexLocked(bookID string) int {
	for i, e := range s.library {
		if e.ID == bookID {
			return i
		}
	}
	return -1
}

// mutate runs apply under the lock when Ready and persists when it reports
// a change.
func (s *Store) mutate(apply func() bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.state != Ready {
		return ErrNotReady
	}
	if !apply() {
		return nil
	}
	s.enqueueLocalLocked()
	if s.identity != nil {
		s.enqueueRemoteLocked()
	}
	return nil
}

func (s *Store) snapshotLocked() library.Snapshot {
	return library.Snapshot{Library: s.library, Cabinets: s.cabinets}.Clone()
}

func (s *Store) enqueueLocalLocked() {
	snap := s.snapshotLocked()
	err := s.localWriter.enqueue(job{
		desc: "local snapshot",
		run: func(ctx context.Context) error {
			lib, err := json.Marshal(snap.Library)
			if err != nil {
				return err
			}
			cabs, err := json.Marshal(snap.Cabinets)
			if err != nil {
				return err
			}
			if err := s.local.Set(ctx, LibraryKey, lib); err != nil {
				return err
			}
			return s.local.Set(ctx, CabinetsKey, cabs)
		},
	})
	if err != nil {
		s.logger.Warn(context.Background(), "local write dropped", "error", err)
	}
}

func (s *Store) enqueueRemoteLocked() {
	if s.remote == nil || s.identity == nil {
		return
	}
	snap := s.snapshotLocked()
	userID := s.identity.UserID
	err := s.remoteWriter.enqueue(job{
		desc: "remote document " + userID,
		run: func(ctx context.Context) error {
			return s.remote.Merge(ctx, userID, snap)
		},
	})
	if err != nil {
		s.logger.Warn(context.Background(), "remote write dropped", "user_id", userID, "error", err)
	}
}

// IsBookInLibrary reports whether bookID is tracked.
func (s *Store) IsBookInLibrary(bookID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexLocked(bookID) >= 0
}

// Library returns a copy of the tracked entries.
func (s *Store) Library() []library.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked().Library
}

// Cabinets returns a copy of the cabinets.
func (s *Store) Cabinets() []library.Cabinet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked().Cabinets
}

func (s *Store) Entry(bookID string) (library.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(bookID); i >= 0 {
		return s.library[i].Clone(), true
	}
	return library.Entry{}, false
}

// CabinetOf returns the cabinet holding bookID, if any.
func (s *Store) CabinetOf(bookID string) (library.Cabinet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cabinets {
		if c.Contains(bookID) {
			return c.Clone(), true
		}
	}
	return library.Cabinet{}, false
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Identity returns a copy of the current identity, or nil.
func (s *Store) Identity() *Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return nil
	}
	cp := *s.identity
	return &cp
}

// Flush waits until every write queued so far has been attempted.
func (s *Store) Flush(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.localWriter.flush(ctx) })
	g.Go(func() error { return s.remoteWriter.flush(ctx) })
	return g.Wait()
}

// Close drains the writers and stops them. Later calls return ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); s.localWriter.close() }()
	go func() { defer wg.Done(); s.remoteWriter.close() }()
	wg.Wait()
	return nil
}
