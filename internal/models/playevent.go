package models

import (
	"strconv"
	"time"
)

// PlayEvent is one persisted playback report. The store assigns ID in
// creation order, which doubles as the pagination tiebreak.
type PlayEvent struct {
	ID               int64
	UserID           string
	ContentID        string
	Device           string
	Timestamp        time.Time
	PlaybackDuration int
	EventHash        string
	IdempotencyKey   string
}

// CreatePlayEventRequest is the POST /v1/play payload.
// PlaybackDuration is a pointer so a legitimate 0 is distinguishable from an
// absent field.
type CreatePlayEventRequest struct {
	UserID           string `json:"userId"`
	ContentID        string `json:"contentId"`
	Device           string `json:"device"`
	Timestamp        string `json:"timestamp"`
	PlaybackDuration *int   `json:"playbackDuration"`
}

// PlayEventResponse is returned by POST /v1/play and embedded in history
// pages. The ID is the store identity rendered as a decimal string; clients
// treat it (and cursors derived from it) as opaque.
type PlayEventResponse struct {
	ID               string `json:"id"`
	UserID           string `json:"userId"`
	ContentID        string `json:"contentId"`
	Device           string `json:"device"`
	Timestamp        string `json:"timestamp"`
	PlaybackDuration int    `json:"playbackDuration"`
}

// ToResponse converts a persisted event into its wire form, normalizing the
// timestamp to RFC3339 UTC.
func (e *PlayEvent) ToResponse() PlayEventResponse {
	return PlayEventResponse{
		ID:               strconv.FormatInt(e.ID, 10),
		UserID:           e.UserID,
		ContentID:        e.ContentID,
		Device:           e.Device,
		Timestamp:        e.Timestamp.UTC().Format(time.RFC3339),
		PlaybackDuration: e.PlaybackDuration,
	}
}

// HistoryResponse is one page of a user's play history.
// NextCursor is nil when no further page exists.
type HistoryResponse struct {
	UserID     string              `json:"userId"`
	Items      []PlayEventResponse `json:"items"`
	Count      int                 `json:"count"`
	NextCursor *string             `json:"nextCursor"`
}

// MostWatchedEntry is one ranked row of the aggregation result.
type MostWatchedEntry struct {
	ContentID      string `json:"contentId"`
	TotalPlayCount int64  `json:"totalPlayCount"`
}

// MostWatchedResponse wraps the ranking with the queried window.
type MostWatchedResponse struct {
	Items []MostWatchedEntry `json:"items"`
	From  string             `json:"from"`
	To    string             `json:"to"`
}

// AnonymizeResponse reports how many records the bulk rewrite touched,
// for audit purposes.
type AnonymizeResponse struct {
	UserID          string `json:"userId"`
	AnonymizedCount int64  `json:"anonymizedCount"`
}
