package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamhaus/play-history-service/internal/idempotency"
	"github.com/streamhaus/play-history-service/internal/models"
	"github.com/streamhaus/play-history-service/internal/store"
	"github.com/streamhaus/play-history-service/internal/store/storetest"
)

func newService(t *testing.T) (*PlayEvents, *storetest.FakeStore) {
	t.Helper()
	fake := storetest.New()
	return New(fake, idempotency.NewMemoryCache(), zerolog.Nop()), fake
}

func playReq(userID, contentID, ts string, duration int) models.CreatePlayEventRequest {
	return models.CreatePlayEventRequest{
		UserID:           userID,
		ContentID:        contentID,
		Device:           "ios",
		Timestamp:        ts,
		PlaybackDuration: &duration,
	}
}

func TestSubmit_ReplayReturnsIdenticalResponse(t *testing.T) {
	svc, fake := newService(t)
	ctx := context.Background()
	req := playReq("user1", "movie1", "2025-09-01T10:00:00Z", 120)

	first, replayed, err := svc.Submit(ctx, req, "tok-1")
	require.NoError(t, err)
	assert.False(t, replayed)

	second, replayed2, err := svc.Submit(ctx, req, "tok-1")
	require.NoError(t, err)
	assert.True(t, replayed2)

	firstJSON, _ := json.Marshal(first)
	secondJSON, _ := json.Marshal(second)
	assert.Equal(t, firstJSON, secondJSON, "replay must be byte-identical")

	assert.Len(t, fake.Events(), 1, "replay must not write a second row")
}

func TestSubmit_TrueDuplicateUnderNewTokenConflicts(t *testing.T) {
	svc, fake := newService(t)
	ctx := context.Background()
	req := playReq("user1", "movie1", "2025-09-01T10:00:00Z", 120)

	_, _, err := svc.Submit(ctx, req, "tok-a")
	require.NoError(t, err)

	_, _, err = svc.Submit(ctx, req, "tok-b")
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)

	assert.Len(t, fake.Events(), 1)
}

func TestSubmit_DistinctEventsBothPersist(t *testing.T) {
	svc, fake := newService(t)
	ctx := context.Background()

	_, _, err := svc.Submit(ctx, playReq("user1", "movie1", "2025-09-01T10:00:00Z", 120), "tok-a")
	require.NoError(t, err)
	_, _, err = svc.Submit(ctx, playReq("user1", "movie2", "2025-09-01T10:00:00Z", 120), "tok-b")
	require.NoError(t, err)

	assert.Len(t, fake.Events(), 2)
}

func TestSubmit_NormalizesTimestampToUTC(t *testing.T) {
	svc, _ := newService(t)

	resp, _, err := svc.Submit(context.Background(), playReq("user1", "movie1", "2025-09-01T12:00:00+02:00", 120), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "2025-09-01T10:00:00Z", resp.Timestamp)
}

func TestSubmit_Validation(t *testing.T) {
	svc, fake := newService(t)
	ctx := context.Background()
	duration := 120
	negative := -1

	tests := []struct {
		name string
		req  models.CreatePlayEventRequest
	}{
		{"missing userId", models.CreatePlayEventRequest{ContentID: "m", Device: "d", Timestamp: "2025-09-01T10:00:00Z", PlaybackDuration: &duration}},
		{"missing contentId", models.CreatePlayEventRequest{UserID: "u", Device: "d", Timestamp: "2025-09-01T10:00:00Z", PlaybackDuration: &duration}},
		{"missing device", models.CreatePlayEventRequest{UserID: "u", ContentID: "m", Timestamp: "2025-09-01T10:00:00Z", PlaybackDuration: &duration}},
		{"missing duration", models.CreatePlayEventRequest{UserID: "u", ContentID: "m", Device: "d", Timestamp: "2025-09-01T10:00:00Z"}},
		{"negative duration", models.CreatePlayEventRequest{UserID: "u", ContentID: "m", Device: "d", Timestamp: "2025-09-01T10:00:00Z", PlaybackDuration: &negative}},
		{"missing timestamp", models.CreatePlayEventRequest{UserID: "u", ContentID: "m", Device: "d", PlaybackDuration: &duration}},
		{"bad timestamp", models.CreatePlayEventRequest{UserID: "u", ContentID: "m", Device: "d", Timestamp: "yesterday", PlaybackDuration: &duration}},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Submit(ctx, tt.req, fmt.Sprintf("tok-%d", i))
			var ve *ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}

	assert.Empty(t, fake.Events(), "validation failures must not reach the store")
}

func TestSubmit_ZeroDurationIsValid(t *testing.T) {
	svc, _ := newService(t)

	_, _, err := svc.Submit(context.Background(), playReq("user1", "movie1", "2025-09-01T10:00:00Z", 0), "tok-1")
	assert.NoError(t, err)
}

func TestSubmit_StoreErrorPassesThrough(t *testing.T) {
	svc, fake := newService(t)
	fake.InsertErr = errors.New("connection refused")

	_, _, err := svc.Submit(context.Background(), playReq("user1", "movie1", "2025-09-01T10:00:00Z", 120), "tok-1")
	require.Error(t, err)

	var ve *ValidationError
	var ce *ConflictError
	assert.False(t, errors.As(err, &ve))
	assert.False(t, errors.As(err, &ce))
}

// seedHistory submits n events for userID at strictly increasing timestamps.
func seedHistory(t *testing.T, svc *PlayEvents, userID string, n int) {
	t.Helper()
	base := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		ts := base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339)
		_, _, err := svc.Submit(context.Background(), playReq(userID, fmt.Sprintf("movie%d", i), ts, 60), fmt.Sprintf("%s-tok-%d", userID, i))
		require.NoError(t, err)
	}
}

func TestHistory_WalkVisitsEveryEventOnce(t *testing.T) {
	svc, _ := newService(t)
	seedHistory(t, svc, "user1", 7)

	seen := map[string]bool{}
	var prevTS string
	cursor := ""
	pages := 0

	for {
		page, err := svc.History(context.Background(), "user1", 3, cursor)
		require.NoError(t, err)
		pages++

		for _, item := range page.Items {
			assert.False(t, seen[item.ID], "item %s visited twice", item.ID)
			seen[item.ID] = true
			if prevTS != "" {
				assert.True(t, item.Timestamp < prevTS, "timestamps must be strictly descending")
			}
			prevTS = item.Timestamp
		}

		if page.NextCursor == nil {
			break
		}
		cursor = *page.NextCursor
	}

	assert.Len(t, seen, 7)
	assert.Equal(t, 3, pages)
}

func TestHistory_HasMoreFlag(t *testing.T) {
	svc, _ := newService(t)
	seedHistory(t, svc, "user1", 3)

	first, err := svc.History(context.Background(), "user1", 2, "")
	require.NoError(t, err)
	assert.Equal(t, 2, first.Count)
	require.NotNil(t, first.NextCursor)
	assert.Equal(t, first.Items[1].ID, *first.NextCursor, "cursor is the last returned item, not the probe row")

	second, err := svc.History(context.Background(), "user1", 2, *first.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Count)
	assert.Nil(t, second.NextCursor)
}

func TestHistory_TiesBrokenByID(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	// Same instant, distinct content: insertion order decides via id DESC.
	_, _, err := svc.Submit(ctx, playReq("user1", "movieA", "2025-09-01T10:00:00Z", 60), "tok-a")
	require.NoError(t, err)
	_, _, err = svc.Submit(ctx, playReq("user1", "movieB", "2025-09-01T10:00:00Z", 60), "tok-b")
	require.NoError(t, err)

	page, err := svc.History(ctx, "user1", 10, "")
	require.NoError(t, err)
	require.Equal(t, 2, page.Count)
	assert.Equal(t, "movieB", page.Items[0].ContentID)
	assert.Equal(t, "movieA", page.Items[1].ContentID)
}

func TestHistory_InvalidCursor(t *testing.T) {
	svc, _ := newService(t)

	for _, cursor := range []string{"not-an-id", "-5", "0", "1.5"} {
		_, err := svc.History(context.Background(), "user1", 10, cursor)
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve, "cursor %q must be rejected", cursor)
	}
}

func TestHistory_EmptyIsNotAnError(t *testing.T) {
	svc, _ := newService(t)

	page, err := svc.History(context.Background(), "nobody", 20, "")
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 0, page.Count)
	assert.Nil(t, page.NextCursor)
}

func TestHistory_LimitBounds(t *testing.T) {
	svc, _ := newService(t)

	for _, limit := range []int{0, -1, MaxHistoryLimit + 1} {
		_, err := svc.History(context.Background(), "user1", limit, "")
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve, "limit %d must be rejected", limit)
	}
}

// seedPlays submits n events for contentID inside the window starting at base.
func seedPlays(t *testing.T, svc *PlayEvents, contentID string, n int, base time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		ts := base.Add(time.Duration(i) * time.Second).Format(time.RFC3339)
		_, _, err := svc.Submit(context.Background(), playReq(fmt.Sprintf("user%d", i%3), contentID, ts, 60), fmt.Sprintf("%s-tok-%d", contentID, i))
		require.NoError(t, err)
	}
}

func TestMostWatched_RanksByCountAndExcludesOutOfRange(t *testing.T) {
	svc, _ := newService(t)
	from := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	seedPlays(t, svc, "movieA", 7, from)
	seedPlays(t, svc, "movieB", 5, from)
	seedPlays(t, svc, "movieC", 3, from)
	seedPlays(t, svc, "movieD", 2, to) // at the window's exclusive end

	resp, err := svc.MostWatched(context.Background(), from, to, 10)
	require.NoError(t, err)

	assert.Equal(t, []models.MostWatchedEntry{
		{ContentID: "movieA", TotalPlayCount: 7},
		{ContentID: "movieB", TotalPlayCount: 5},
		{ContentID: "movieC", TotalPlayCount: 3},
	}, resp.Items)
}

func TestMostWatched_TiesOrderedByContentID(t *testing.T) {
	svc, _ := newService(t)
	from := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	seedPlays(t, svc, "movieZ", 4, from)
	seedPlays(t, svc, "movieA", 4, from.Add(time.Hour))

	resp, err := svc.MostWatched(context.Background(), from, to, 10)
	require.NoError(t, err)

	require.Len(t, resp.Items, 2)
	assert.Equal(t, "movieA", resp.Items[0].ContentID)
	assert.Equal(t, "movieZ", resp.Items[1].ContentID)
}

func TestMostWatched_EmptyWindow(t *testing.T) {
	svc, _ := newService(t)
	from := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	resp, err := svc.MostWatched(context.Background(), from, from.AddDate(0, 1, 0), 10)
	require.NoError(t, err)
	assert.Empty(t, resp.Items)
}

func TestMostWatched_RangeValidatedBeforeQuery(t *testing.T) {
	svc, fake := newService(t)
	at := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	for _, to := range []time.Time{at, at.Add(-time.Hour)} {
		_, err := svc.MostWatched(context.Background(), at, to, 10)
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve)
	}

	assert.Zero(t, fake.MostWatchedCalls, "invalid ranges must never reach the store")
}

func TestMostWatched_LimitBounds(t *testing.T) {
	svc, _ := newService(t)
	from := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	for _, limit := range []int{0, MaxMostWatchedLimit + 1} {
		_, err := svc.MostWatched(context.Background(), from, from.AddDate(0, 1, 0), limit)
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve)
	}
}

func TestAnonymize_EmptiesHistoryAndPreservesCounts(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	seedHistory(t, svc, "user1", 3)
	seedHistory(t, svc, "user2", 1)

	resp, err := svc.Anonymize(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.AnonymizedCount)

	gone, err := svc.History(ctx, "user1", 20, "")
	require.NoError(t, err)
	assert.Empty(t, gone.Items)

	kept, err := svc.History(ctx, store.AnonymizedUserID, 20, "")
	require.NoError(t, err)
	assert.Equal(t, 3, kept.Count, "records must survive under the placeholder id")

	other, err := svc.History(ctx, "user2", 20, "")
	require.NoError(t, err)
	assert.Equal(t, 1, other.Count)
}

func TestAnonymize_StoreErrorPassesThrough(t *testing.T) {
	svc, fake := newService(t)
	fake.AnonymizeErr = errors.New("connection refused")

	_, err := svc.Anonymize(context.Background(), "user1")
	require.Error(t, err)
}
