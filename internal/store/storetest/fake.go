// Package storetest provides an in-memory stand-in for the Postgres store,
// reproducing its contract closely enough for service and handler tests: the
// fingerprint uniqueness check, (ts DESC, id DESC) history order, half-open
// window counting with deterministic tie-break, and the bulk anonymize
// rewrite.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/streamhaus/play-history-service/internal/models"
	"github.com/streamhaus/play-history-service/internal/store"
)

// FakeStore is safe for concurrent use.
type FakeStore struct {
	mu     sync.Mutex
	nextID int64
	events []models.PlayEvent

	// InsertErr, when set, is returned by every InsertEvent call.
	InsertErr error
	// AnonymizeErr, when set, is returned by every AnonymizeUser call.
	AnonymizeErr error

	// MostWatchedCalls counts aggregation queries, so tests can assert that
	// validation failures never reach the store.
	MostWatchedCalls int
}

func New() *FakeStore {
	return &FakeStore{}
}

// Events returns a snapshot of all stored rows.
func (f *FakeStore) Events() []models.PlayEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.PlayEvent, len(f.events))
	copy(out, f.events)
	return out
}

func (f *FakeStore) InsertEvent(_ context.Context, ev *models.PlayEvent) (*models.PlayEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.InsertErr != nil {
		return nil, f.InsertErr
	}
	for _, e := range f.events {
		if e.EventHash == ev.EventHash {
			return nil, store.ErrDuplicateEvent
		}
	}

	f.nextID++
	created := *ev
	created.ID = f.nextID
	f.events = append(f.events, created)

	out := created
	return &out, nil
}

func (f *FakeStore) HistoryPage(_ context.Context, userID string, fetch int, beforeID *int64) ([]models.PlayEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	matched := []models.PlayEvent{}
	for _, e := range f.events {
		if e.UserID != userID {
			continue
		}
		if beforeID != nil && e.ID >= *beforeID {
			continue
		}
		matched = append(matched, e)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.After(matched[j].Timestamp)
		}
		return matched[i].ID > matched[j].ID
	})

	if len(matched) > fetch {
		matched = matched[:fetch]
	}
	return matched, nil
}

func (f *FakeStore) MostWatched(_ context.Context, from, to time.Time, limit int) ([]models.MostWatchedEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.MostWatchedCalls++

	counts := map[string]int64{}
	for _, e := range f.events {
		if e.Timestamp.Before(from) || !e.Timestamp.Before(to) {
			continue
		}
		counts[e.ContentID]++
	}

	entries := []models.MostWatchedEntry{}
	for contentID, n := range counts {
		entries = append(entries, models.MostWatchedEntry{ContentID: contentID, TotalPlayCount: n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalPlayCount != entries[j].TotalPlayCount {
			return entries[i].TotalPlayCount > entries[j].TotalPlayCount
		}
		return entries[i].ContentID < entries[j].ContentID
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (f *FakeStore) AnonymizeUser(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.AnonymizeErr != nil {
		return 0, f.AnonymizeErr
	}

	var count int64
	for i := range f.events {
		if f.events[i].UserID == userID {
			f.events[i].UserID = store.AnonymizedUserID
			count++
		}
	}
	return count, nil
}
