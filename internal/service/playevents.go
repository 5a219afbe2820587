// Package service implements the play-history core: dedup-safe ingestion,
// cursor-paginated history, windowed most-watched ranking, and bulk
// anonymization. Typed errors (ValidationError, ConflictError) cross the
// package boundary unmodified; translation to status codes belongs to the
// transport layer.
package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/streamhaus/play-history-service/internal/fingerprint"
	"github.com/streamhaus/play-history-service/internal/idempotency"
	"github.com/streamhaus/play-history-service/internal/models"
	"github.com/streamhaus/play-history-service/internal/store"
)

// Limits for the two read paths.
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 500

	DefaultMostWatchedLimit = 200
	MaxMostWatchedLimit     = 5000
)

// EventStore is the persistence capability the service depends on.
// *store.PostgresStore is the production implementation.
type EventStore interface {
	InsertEvent(ctx context.Context, ev *models.PlayEvent) (*models.PlayEvent, error)
	HistoryPage(ctx context.Context, userID string, fetch int, beforeID *int64) ([]models.PlayEvent, error)
	MostWatched(ctx context.Context, from, to time.Time, limit int) ([]models.MostWatchedEntry, error)
	AnonymizeUser(ctx context.Context, userID string) (int64, error)
}

// PlayEvents composes the fingerprint, the idempotency cache and the event
// store. All methods are safe under concurrent invocation; ingestion races
// are resolved by the store's uniqueness constraint, not by a lock here.
type PlayEvents struct {
	store  EventStore
	cache  idempotency.Cache
	logger zerolog.Logger
}

func New(st EventStore, cache idempotency.Cache, logger zerolog.Logger) *PlayEvents {
	return &PlayEvents{store: st, cache: cache, logger: logger}
}

// Submit records one playback report. The second return value reports
// whether the response was replayed from the idempotency cache.
//
// A cache hit on the idempotency token short-circuits everything and returns
// the original response snapshot. Otherwise the event is fingerprinted and
// inserted; a uniqueness violation on the fingerprint means a different token
// already submitted the same semantic event, which is a ConflictError. The
// constraint is the actual correctness mechanism: if the process dies before
// the cache write, a retry re-attempts the insert and surfaces as Conflict
// instead of silently duplicating data.
func (s *PlayEvents) Submit(ctx context.Context, req models.CreatePlayEventRequest, token string) (models.PlayEventResponse, bool, error) {
	if resp, ok := s.cache.Get(token); ok {
		s.logger.Debug().Str("idempotency_key", token).Msg("idempotency cache hit, replaying response")
		return resp, true, nil
	}

	ts, err := validateCreateRequest(req)
	if err != nil {
		return models.PlayEventResponse{}, false, err
	}

	hash := fingerprint.Compute(req.UserID, req.ContentID, req.Device, req.Timestamp, *req.PlaybackDuration)

	created, err := s.store.InsertEvent(ctx, &models.PlayEvent{
		UserID:           req.UserID,
		ContentID:        req.ContentID,
		Device:           req.Device,
		Timestamp:        ts,
		PlaybackDuration: *req.PlaybackDuration,
		EventHash:        hash,
		IdempotencyKey:   token,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEvent) {
			return models.PlayEventResponse{}, false, &ConflictError{Reason: "play event already recorded"}
		}
		return models.PlayEventResponse{}, false, err
	}

	resp := created.ToResponse()
	s.cache.Put(token, resp)

	s.logger.Info().
		Int64("id", created.ID).
		Str("user_id", created.UserID).
		Str("content_id", created.ContentID).
		Msg("play event recorded")

	return resp, false, nil
}

func validateCreateRequest(req models.CreatePlayEventRequest) (time.Time, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return time.Time{}, validationErrorf("userId is required")
	}
	if strings.TrimSpace(req.ContentID) == "" {
		return time.Time{}, validationErrorf("contentId is required")
	}
	if strings.TrimSpace(req.Device) == "" {
		return time.Time{}, validationErrorf("device is required")
	}
	if req.PlaybackDuration == nil {
		return time.Time{}, validationErrorf("playbackDuration is required")
	}
	if *req.PlaybackDuration < 0 {
		return time.Time{}, validationErrorf("playbackDuration must be >= 0")
	}
	if req.Timestamp == "" {
		return time.Time{}, validationErrorf("timestamp is required")
	}
	ts, err := time.Parse(time.RFC3339, req.Timestamp)
	if err != nil {
		return time.Time{}, validationErrorf("timestamp must be RFC3339")
	}
	return ts.UTC(), nil
}

// History returns one page of a user's play history ordered by
// (timestamp DESC, id DESC); the id breaks ties among equal timestamps so
// cursors are stable. The store fetches limit+1 rows: an extra row means a
// next page exists and the cursor becomes the id of the last returned item.
// An empty history is a valid result, never "not found".
func (s *PlayEvents) History(ctx context.Context, userID string, limit int, cursor string) (models.HistoryResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return models.HistoryResponse{}, validationErrorf("userId is required")
	}
	if limit < 1 || limit > MaxHistoryLimit {
		return models.HistoryResponse{}, validationErrorf("limit must be between 1 and %d", MaxHistoryLimit)
	}

	var beforeID *int64
	if cursor != "" {
		id, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil || id <= 0 {
			return models.HistoryResponse{}, validationErrorf("cursor must be the id of a previously returned item")
		}
		beforeID = &id
	}

	events, err := s.store.HistoryPage(ctx, userID, limit+1, beforeID)
	if err != nil {
		return models.HistoryResponse{}, err
	}

	hasNext := len(events) > limit
	if hasNext {
		events = events[:limit]
	}

	items := make([]models.PlayEventResponse, 0, len(events))
	for i := range events {
		items = append(items, events[i].ToResponse())
	}

	var nextCursor *string
	if hasNext {
		// The cursor is the id of the last item handed back, not the probe row.
		c := items[len(items)-1].ID
		nextCursor = &c
	}

	return models.HistoryResponse{
		UserID:     userID,
		Items:      items,
		Count:      len(items),
		NextCursor: nextCursor,
	}, nil
}

// MostWatched ranks content by play count over the half-open window
// [from,to). One unit per stored event: a user replaying the same content
// counts every time. Ties are broken by ascending content id. The window is
// validated before any query runs, and an empty window is a valid result.
func (s *PlayEvents) MostWatched(ctx context.Context, from, to time.Time, limit int) (models.MostWatchedResponse, error) {
	if limit < 1 || limit > MaxMostWatchedLimit {
		return models.MostWatchedResponse{}, validationErrorf("limit must be between 1 and %d", MaxMostWatchedLimit)
	}
	if !from.Before(to) {
		return models.MostWatchedResponse{}, validationErrorf(`"from" must be before "to"`)
	}

	entries, err := s.store.MostWatched(ctx, from.UTC(), to.UTC(), limit)
	if err != nil {
		return models.MostWatchedResponse{}, err
	}

	return models.MostWatchedResponse{
		Items: entries,
		From:  from.UTC().Format(time.RFC3339),
		To:    to.UTC().Format(time.RFC3339),
	}, nil
}

// Anonymize irreversibly rewrites the user's identifier to the fixed
// placeholder across all of their records in one bulk mutation, running to
// completion before reporting success. The affected-row count is returned
// for audit. A future async job pipeline would replace the synchronous call
// behind this same signature.
func (s *PlayEvents) Anonymize(ctx context.Context, userID string) (models.AnonymizeResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return models.AnonymizeResponse{}, validationErrorf("userId is required")
	}

	s.logger.Info().Str("user_id", userID).Msg("anonymization started")

	count, err := s.store.AnonymizeUser(ctx, userID)
	if err != nil {
		return models.AnonymizeResponse{}, err
	}

	s.logger.Info().Str("user_id", userID).Int64("records", count).Msg("anonymization completed")

	return models.AnonymizeResponse{UserID: userID, AnonymizedCount: count}, nil
}
