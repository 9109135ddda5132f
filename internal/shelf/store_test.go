package shelf

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"bookshelf/internal/library"
	"bookshelf/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type memLocal struct {
	mu       sync.Mutex
	data     map[string][]byte
	getErr   error
	setDelay time.Duration
}

func newMemLocal() *memLocal { return &memLocal{data: map[string][]byte{}} }

func (m *memLocal) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.data[key], nil
}

func (m *memLocal) Set(_ context.Context, key string, value []byte) error {
	if m.setDelay > 0 {
		time.Sleep(m.setDelay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memLocal) put(t *testing.T, key string, v any) {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	m.data[key] = raw
}

func (m *memLocal) library(t *testing.T) []library.Entry {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []library.Entry
	require.NoError(t, json.Unmarshal(m.data[LibraryKey], &out))
	return out
}

type mergeCall struct {
	userID string
	snap   library.Snapshot
}

type memRemote struct {
	mu       sync.Mutex
	docs     map[string]library.Snapshot
	fetchErr error
	mergeErr error
	// gate, when set, blocks Fetch for that user until closed.
	gate   map[string]chan struct{}
	merges []mergeCall
}

func newMemRemote() *memRemote {
	return &memRemote{docs: map[string]library.Snapshot{}, gate: map[string]chan struct{}{}}
}

func (m *memRemote) Fetch(ctx context.Context, userID string) (library.Snapshot, bool, error) {
	m.mu.Lock()
	gate := m.gate[userID]
	m.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return library.Snapshot{}, false, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return library.Snapshot{}, false, m.fetchErr
	}
	doc, ok := m.docs[userID]
	return doc.Clone(), ok, nil
}

func (m *memRemote) Merge(_ context.Context, userID string, snap library.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.merges = append(m.merges, mergeCall{userID: userID, snap: snap.Clone()})
	if m.mergeErr != nil {
		return m.mergeErr
	}
	m.docs[userID] = snap.Clone()
	return nil
}

func (m *memRemote) calls() []mergeCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mergeCall(nil), m.merges...)
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, local LocalStore, remote RemoteStore) *Store {
	t.Helper()
	n := 0
	s := New(local, remote, logging.Nop(),
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { n++; return "cab-" + string(rune('0'+n)) }),
		WithWriteTimeout(time.Second),
	)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func book(id string) library.Book {
	return library.Book{ID: id, Title: "Title " + id, Authors: []string{"Author"}}
}

func rated(id, readDate string, rating int) library.Entry {
	return library.Entry{Book: book(id), UserRating: rating, ReadDate: readDate, Status: library.StatusRead}
}

func alice() *Identity { return &Identity{UserID: "alice", DisplayName: "Alice"} }

func TestScenario_EmptyAnonymousLoad(t *testing.T) {
	s := newTestStore(t, newMemLocal(), newMemRemote())

	require.NoError(t, s.SetIdentity(t.Context(), nil))

	assert.Equal(t, Ready, s.State())
	assert.Empty(t, s.Library())
	assert.Empty(t, s.Cabinets())
	assert.NotNil(t, s.Library())
}

func TestScenario_LocalOnlyCreatesRemoteDocument(t *testing.T) {
	local := newMemLocal()
	local.put(t, LibraryKey, []library.Entry{rated("B1", "2024-01-01", 4)})
	remote := newMemRemote()
	s := newTestStore(t, local, remote)

	require.NoError(t, s.SetIdentity(t.Context(), alice()))
	require.NoError(t, s.Flush(t.Context()))

	lib := s.Library()
	require.Len(t, lib, 1)
	assert.Equal(t, 4, lib[0].UserRating)

	calls := remote.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "alice", calls[0].userID)
	require.Len(t, calls[0].snap.Library, 1)
	assert.Equal(t, "B1", calls[0].snap.Library[0].ID)
}

func TestScenario_LaterRemoteDateWins(t *testing.T) {
	local := newMemLocal()
	local.put(t, LibraryKey, []library.Entry{rated("B1", "2024-01-01", 3)})
	remote := newMemRemote()
	remote.docs["alice"] = library.Snapshot{Library: []library.Entry{rated("B1", "2024-02-01", 5)}}
	s := newTestStore(t, local, remote)

	require.NoError(t, s.SetIdentity(t.Context(), alice()))
	require.NoError(t, s.Flush(t.Context()))

	e, ok := s.Entry("B1")
	require.True(t, ok)
	assert.Equal(t, 5, e.UserRating)

	// nothing new for the remote side, but local is rewritten with the merge
	assert.Empty(t, remote.calls())
	assert.Equal(t, 5, local.library(t)[0].UserRating)
}

func TestScenario_CabinetBookIDsAreUnioned(t *testing.T) {
	local := newMemLocal()
	local.put(t, CabinetsKey, []library.Cabinet{{ID: "C1", Name: "Local", BookIDs: []string{"B2"}}})
	remote := newMemRemote()
	remote.docs["alice"] = library.Snapshot{Cabinets: []library.Cabinet{{ID: "C1", Name: "Remote", BookIDs: []string{"B1"}}}}
	s := newTestStore(t, local, remote)

	require.NoError(t, s.SetIdentity(t.Context(), alice()))
	require.NoError(t, s.Flush(t.Context()))

	cabs := s.Cabinets()
	require.Len(t, cabs, 1)
	assert.ElementsMatch(t, []string{"B1", "B2"}, cabs[0].BookIDs)
	assert.Equal(t, "Remote", cabs[0].Name)
	require.Len(t, remote.calls(), 1)
}

func TestScenario_BlankCabinetNameIsIgnored(t *testing.T) {
	s := newTestStore(t, newMemLocal(), nil)
	require.NoError(t, s.SetIdentity(t.Context(), nil))

	_, ok, err := s.CreateCabinet("   ")

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, s.Cabinets())
}

func TestScenario_SheetForUnknownBookIsIgnored(t *testing.T) {
	local := newMemLocal()
	s := newTestStore(t, local, nil)
	require.NoError(t, s.SetIdentity(t.Context(), nil))

	err := s.SaveReadingSheet("unknown-id", library.ReadingSheet{Type: library.SheetLibre})
	require.NoError(t, err)
	require.NoError(t, s.Flush(t.Context()))

	assert.Empty(t, s.Library())
	assert.Empty(t, local.data)
}

func TestMutationsBeforeReady(t *testing.T) {
	s := newTestStore(t, newMemLocal(), nil)

	assert.ErrorIs(t, s.AddToLibrary(book("B1"), 4), ErrNotReady)
	_, _, err := s.CreateCabinet("x")
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Equal(t, Uninitialized, s.State())
}

func TestAddToLibrary(t *testing.T) {
	local := newMemLocal()
	s := newTestStore(t, local, nil)
	require.NoError(t, s.SetIdentity(t.Context(), nil))

	require.NoError(t, s.AddToLibrary(book("B1"), 4))
	require.NoError(t, s.AddToLibrary(book("B2"), 0))
	require.NoError(t, s.AddToLibrary(book("B3"), 6))
	require.NoError(t, s.Flush(t.Context()))

	assert.True(t, s.IsBookInLibrary("B1"))
	assert.False(t, s.IsBookInLibrary("B2"))
	assert.False(t, s.IsBookInLibrary("B3"))

	e, _ := s.Entry("B1")
	assert.Equal(t, library.StatusRead, e.Status)
	assert.Equal(t, "2025-06-01T12:00:00.000Z", e.ReadDate)

	stored := local.library(t)
	require.Len(t, stored, 1)
	assert.Equal(t, "B1", stored[0].ID)
}

func TestAddToLibrary_RerateKeepsReadingSheet(t *testing.T) {
	s := newTestStore(t, newMemLocal(), nil)
	require.NoError(t, s.SetIdentity(t.Context(), nil))
	require.NoError(t, s.AddToLibrary(book("B1"), 2))
	require.NoError(t, s.SaveReadingSheet("B1", library.ReadingSheet{
		Type:    library.SheetLibre,
		Answers: map[string]string{"notes": "dense"},
	}))

	require.NoError(t, s.AddToLibrary(book("B1"), 5))

	e, ok := s.Entry("B1")
	require.True(t, ok)
	assert.Equal(t, 5, e.UserRating)
	require.NotNil(t, e.ReadingSheet)
	assert.Equal(t, "dense", e.ReadingSheet.Answers["notes"])
	assert.Len(t, s.Library(), 1)
}

func TestSaveReadingSheet_Timestamps(t *testing.T) {
	now := fixedNow
	s := New(newMemLocal(), nil, logging.Nop(), WithClock(func() time.Time { return now }))
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.SetIdentity(t.Context(), nil))
	require.NoError(t, s.AddToLibrary(book("B1"), 3))

	require.NoError(t, s.SaveReadingSheet("B1", library.ReadingSheet{Type: library.SheetEssai}))
	first, _ := s.Entry("B1")
	require.NotNil(t, first.ReadingSheet)
	assert.Equal(t, fixedNow, first.ReadingSheet.CreatedAt)

	now = fixedNow.Add(48 * time.Hour)
	require.NoError(t, s.SaveReadingSheet("B1", library.ReadingSheet{
		Type:      library.SheetEssai,
		Answers:   map[string]string{"these_auteur": "x"},
		CreatedAt: now,
	}))

	second, _ := s.Entry("B1")
	assert.Equal(t, fixedNow, second.ReadingSheet.CreatedAt)
	assert.Equal(t, now, second.ReadingSheet.UpdatedAt)
	assert.Equal(t, "x", second.ReadingSheet.Answers["these_auteur"])

	require.NoError(t, s.SaveReadingSheet("B1", library.ReadingSheet{Type: "poeme"}))
	third, _ := s.Entry("B1")
	assert.Equal(t, library.SheetEssai, third.ReadingSheet.Type)
}

func TestMoveBookToCabinet_LeavesBookInExactlyOneCabinet(t *testing.T) {
	s := newTestStore(t, newMemLocal(), nil)
	require.NoError(t, s.SetIdentity(t.Context(), nil))
	require.NoError(t, s.AddToLibrary(book("B1"), 4))
	c, ok, err := s.CreateCabinet(" Essais ")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Essais", c.Name)
	d, _, err := s.CreateCabinet("Romans")
	require.NoError(t, err)

	require.NoError(t, s.MoveBookToCabinet("B1", &c.ID))
	require.NoError(t, s.MoveBookToCabinet("B1", &d.ID))

	holding := 0
	for _, cab := range s.Cabinets() {
		if cab.Contains("B1") {
			holding++
			assert.Equal(t, d.ID, cab.ID)
		}
	}
	assert.Equal(t, 1, holding)

	require.NoError(t, s.MoveBookToCabinet("B1", nil))
	_, found := s.CabinetOf("B1")
	assert.False(t, found)

	missing := "nope"
	require.NoError(t, s.MoveBookToCabinet("B1", &missing))
	_, found = s.CabinetOf("B1")
	assert.False(t, found)
}

func TestRemoveFromLibrary_StripsCabinets(t *testing.T) {
	local := newMemLocal()
	local.put(t, LibraryKey, []library.Entry{rated("B1", "2024-01-01", 4), rated("B2", "2024-01-01", 2)})
	local.put(t, CabinetsKey, []library.Cabinet{
		{ID: "C1", BookIDs: []string{"B1", "B2"}},
		{ID: "C2", BookIDs: []string{"B1"}},
	})
	s := newTestStore(t, local, nil)
	require.NoError(t, s.SetIdentity(t.Context(), nil))

	require.NoError(t, s.RemoveFromLibrary("B1"))

	assert.False(t, s.IsBookInLibrary("B1"))
	assert.True(t, s.IsBookInLibrary("B2"))
	for _, c := range s.Cabinets() {
		assert.NotContains(t, c.BookIDs, "B1")
	}
	assert.NoError(t, s.RemoveFromLibrary("absent"))
}

func TestMalformedLocalSnapshotLoadsEmpty(t *testing.T) {
	local := newMemLocal()
	local.data[LibraryKey] = []byte("{not json")
	local.put(t, CabinetsKey, []library.Cabinet{{ID: "C1", Name: "ok", BookIDs: []string{}}})
	s := newTestStore(t, local, nil)

	require.NoError(t, s.SetIdentity(t.Context(), nil))

	assert.Empty(t, s.Library())
	assert.Len(t, s.Cabinets(), 1)
}

func TestUnreadableLocalStoreLoadsEmpty(t *testing.T) {
	local := newMemLocal()
	local.getErr = errors.New("disk gone")
	s := newTestStore(t, local, nil)

	require.NoError(t, s.SetIdentity(t.Context(), nil))
	assert.Equal(t, Ready, s.State())
	assert.Empty(t, s.Library())
}

func TestRemoteFetchFailureFallsBackToLocal(t *testing.T) {
	local := newMemLocal()
	local.put(t, LibraryKey, []library.Entry{rated("B1", "2024-01-01", 4)})
	remote := newMemRemote()
	remote.fetchErr = errors.New("connection refused")
	s := newTestStore(t, local, remote)

	require.NoError(t, s.SetIdentity(t.Context(), alice()))

	assert.Equal(t, Ready, s.State())
	assert.True(t, s.IsBookInLibrary("B1"))
	require.NoError(t, s.Flush(t.Context()))
	assert.Empty(t, remote.calls())
}

func TestRemoteWriteFailureKeepsMemory(t *testing.T) {
	remote := newMemRemote()
	remote.mergeErr = errors.New("timeout")
	s := newTestStore(t, newMemLocal(), remote)
	require.NoError(t, s.SetIdentity(t.Context(), alice()))

	require.NoError(t, s.AddToLibrary(book("B1"), 4))
	require.NoError(t, s.AddToLibrary(book("B2"), 5))
	require.NoError(t, s.Flush(t.Context()))

	assert.Len(t, s.Library(), 2)
	assert.Len(t, remote.calls(), 2)
}

func TestIdentityChangeClearsState(t *testing.T) {
	remote := newMemRemote()
	remote.docs["alice"] = library.Snapshot{Library: []library.Entry{rated("A1", "2024-01-01", 5)}}
	remote.docs["bob"] = library.Snapshot{Library: []library.Entry{rated("B1", "2024-01-01", 1)}}
	s := newTestStore(t, newMemLocal(), remote)

	require.NoError(t, s.SetIdentity(t.Context(), alice()))
	assert.True(t, s.IsBookInLibrary("A1"))

	require.NoError(t, s.SetIdentity(t.Context(), &Identity{UserID: "bob"}))
	assert.True(t, s.IsBookInLibrary("B1"))
	assert.Equal(t, "bob", s.Identity().UserID)

	// same identity again is a no-op
	require.NoError(t, s.AddToLibrary(book("B9"), 3))
	require.NoError(t, s.SetIdentity(t.Context(), &Identity{UserID: "bob"}))
	assert.True(t, s.IsBookInLibrary("B9"))
}

func TestMutationWritesAddressTheCurrentIdentity(t *testing.T) {
	remote := newMemRemote()
	s := newTestStore(t, newMemLocal(), remote)
	require.NoError(t, s.SetIdentity(t.Context(), alice()))
	require.NoError(t, s.AddToLibrary(book("B1"), 4))

	require.NoError(t, s.SetIdentity(t.Context(), nil))
	require.NoError(t, s.AddToLibrary(book("B2"), 4))
	require.NoError(t, s.Flush(t.Context()))

	calls := remote.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "alice", calls[0].userID)
	assert.Len(t, calls[0].snap.Library, 1)
}

func TestStaleLoadIsDiscarded(t *testing.T) {
	remote := newMemRemote()
	remote.docs["alice"] = library.Snapshot{Library: []library.Entry{rated("A1", "2024-01-01", 5)}}
	remote.docs["bob"] = library.Snapshot{Library: []library.Entry{rated("B1", "2024-01-01", 1)}}
	gate := make(chan struct{})
	remote.gate["alice"] = gate
	s := newTestStore(t, newMemLocal(), remote)

	aliceDone := make(chan error, 1)
	go func() { aliceDone <- s.SetIdentity(context.Background(), alice()) }()

	require.Eventually(t, func() bool { return s.State() == Loading }, time.Second, time.Millisecond)

	require.NoError(t, s.SetIdentity(t.Context(), &Identity{UserID: "bob"}))
	close(gate)

	assert.ErrorIs(t, <-aliceDone, ErrSuperseded)
	assert.Equal(t, "bob", s.Identity().UserID)
	assert.True(t, s.IsBookInLibrary("B1"))
	assert.False(t, s.IsBookInLibrary("A1"))
}

func TestReloadPicksUpRemoteChanges(t *testing.T) {
	remote := newMemRemote()
	s := newTestStore(t, newMemLocal(), remote)
	require.NoError(t, s.SetIdentity(t.Context(), alice()))
	assert.Empty(t, s.Library())

	remote.mu.Lock()
	remote.docs["alice"] = library.Snapshot{Library: []library.Entry{rated("R1", "2024-01-01", 2)}}
	remote.mu.Unlock()

	require.NoError(t, s.Reload(t.Context()))
	assert.True(t, s.IsBookInLibrary("R1"))
}

func TestSignInWaitsForQueuedLocalWrites(t *testing.T) {
	local := newMemLocal()
	local.setDelay = 50 * time.Millisecond
	remote := newMemRemote()
	s := newTestStore(t, local, remote)

	require.NoError(t, s.SetIdentity(t.Context(), nil))
	require.NoError(t, s.AddToLibrary(book("B1"), 4))
	require.NoError(t, s.SetIdentity(t.Context(), alice()))
	require.NoError(t, s.Flush(t.Context()))

	assert.True(t, s.IsBookInLibrary("B1"))
	require.Len(t, local.library(t), 1)
	assert.Equal(t, "B1", local.library(t)[0].ID)

	remote.mu.Lock()
	doc := remote.docs["alice"]
	remote.mu.Unlock()
	require.Len(t, doc.Library, 1)
	assert.Equal(t, 4, doc.Library[0].UserRating)
}

func TestReloadWaitsForQueuedLocalWrites(t *testing.T) {
	local := newMemLocal()
	local.setDelay = 50 * time.Millisecond
	s := newTestStore(t, local, nil)

	require.NoError(t, s.SetIdentity(t.Context(), nil))
	require.NoError(t, s.AddToLibrary(book("B1"), 4))
	_, _, err := s.CreateCabinet("Shelf")
	require.NoError(t, err)

	require.NoError(t, s.Reload(t.Context()))
	assert.True(t, s.IsBookInLibrary("B1"))
	assert.Len(t, s.Cabinets(), 1)
}

func TestIsBookInLibraryHasNoSideEffects(t *testing.T) {
	local := newMemLocal()
	s := newTestStore(t, local, nil)
	require.NoError(t, s.SetIdentity(t.Context(), nil))
	require.NoError(t, s.AddToLibrary(book("B1"), 4))
	before := s.Library()

	for range 3 {
		assert.True(t, s.IsBookInLibrary("B1"))
		assert.False(t, s.IsBookInLibrary("B2"))
	}
	assert.Equal(t, before, s.Library())
}

func TestCloseDrainsWrites(t *testing.T) {
	local := newMemLocal()
	s := New(local, nil, logging.Nop())
	require.NoError(t, s.SetIdentity(t.Context(), nil))
	require.NoError(t, s.AddToLibrary(book("B1"), 4))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.Len(t, local.library(t), 1)
	assert.ErrorIs(t, s.AddToLibrary(book("B2"), 4), ErrClosed)
	assert.ErrorIs(t, s.SetIdentity(t.Context(), alice()), ErrClosed)
	assert.NoError(t, s.Flush(t.Context()))
}
