package store

import (
	"context"
	_ "embed"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/streamhaus/play-history-service/internal/models"
)

// schemaSQL is embedded so the service can self-bootstrap its database schema.
//
//go:embed schema.sql
var schemaSQL string

// AnonymizedUserID is the fixed placeholder written over a user's identifier
// during anonymization. All anonymized users' records accumulate under it
// indistinguishably; the goal is unlinkability, not a per-user tombstone.
const AnonymizedUserID = "user-deleted"

// ErrDuplicateEvent reports that an event with the same fingerprint already
// exists. Raised by the unique index on event_hash, which is the concurrency
// control for the ingest path.
var ErrDuplicateEvent = errors.New("duplicate play event")

// Postgres unique_violation.
const uniqueViolationCode = "23505"

// builder produces statement builders with Postgres placeholders.
func builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

// PostgresStore is the durable persistence layer for play events.
type PostgresStore struct {
	q Querier
}

// NewPostgresStore creates a connection pool and fails fast if the DB is
// unreachable.
func NewPostgresStore(dbURL string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{q: pool}, nil
}

// NewWithQuerier wraps an existing Querier. Used by unit tests to run the
// store against pgxmock.
func NewWithQuerier(q Querier) *PostgresStore {
	return &PostgresStore{q: q}
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema() error {
	_, err := p.q.Exec(context.Background(), schemaSQL)
	return err
}

// Ping is used by the readiness endpoint to validate DB connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.q.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() {
	p.q.Close()
}

// InsertEvent appends one play event and returns it with the store-assigned
// id. A unique-index violation on event_hash comes back as ErrDuplicateEvent.
func (p *PostgresStore) InsertEvent(ctx context.Context, ev *models.PlayEvent) (*models.PlayEvent, error) {
	query := builder().
		Insert("play_events").
		Columns("user_id", "content_id", "device", "ts", "playback_duration", "event_hash", "idempotency_key").
		Values(ev.UserID, ev.ContentID, ev.Device, ev.Timestamp, ev.PlaybackDuration, ev.EventHash, ev.IdempotencyKey).
		Suffix("RETURNING id")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	created := *ev
	if err := p.q.QueryRow(ctx, sqlStr, args...).Scan(&created.ID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return nil, ErrDuplicateEvent
		}
		return nil, err
	}
	return &created, nil
}

// HistoryPage returns up to fetch events for userID ordered by
// (ts DESC, id DESC). When beforeID is set only rows with a smaller id are
// returned, which is how the pager resumes from a cursor. Callers pass
// fetch = limit+1 to detect whether a next page exists without a separate
// count query.
func (p *PostgresStore) HistoryPage(ctx context.Context, userID string, fetch int, beforeID *int64) ([]models.PlayEvent, error) {
	query := builder().
		Select("id", "user_id", "content_id", "device", "ts", "playback_duration", "event_hash").
		From("play_events").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("ts DESC", "id DESC").
		Limit(uint64(fetch))

	if beforeID != nil {
		query = query.Where(sq.Lt{"id": *beforeID})
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := p.q.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []models.PlayEvent{}
	for rows.Next() {
		var ev models.PlayEvent
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.ContentID, &ev.Device, &ev.Timestamp, &ev.PlaybackDuration, &ev.EventHash); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// MostWatched counts events per content id in the half-open window [from,to)
// and returns the top rows by play count. Equal counts are ordered by
// ascending content id so the ranking is deterministic. The limit applies
// after the full ranking, never before.
func (p *PostgresStore) MostWatched(ctx context.Context, from, to time.Time, limit int) ([]models.MostWatchedEntry, error) {
	query := builder().
		Select("content_id", "COUNT(*) AS total_play_count").
		From("play_events").
		Where(sq.GtOrEq{"ts": from}).
		Where(sq.Lt{"ts": to}).
		GroupBy("content_id").
		OrderBy("total_play_count DESC", "content_id ASC").
		Limit(uint64(limit))

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := p.q.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.MostWatchedEntry{}
	for rows.Next() {
		var e models.MostWatchedEntry
		if err := rows.Scan(&e.ContentID, &e.TotalPlayCount); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AnonymizeUser rewrites user_id to the fixed placeholder across every
// matching row in a single bulk UPDATE and returns the number of rows
// touched. No transaction wraps the statement: a concurrent read may observe
// a mix of original and placeholder ids mid-mutation.
func (p *PostgresStore) AnonymizeUser(ctx context.Context, userID string) (int64, error) {
	query := builder().
		Update("play_events").
		Set("user_id", AnonymizedUserID).
		Where(sq.Eq{"user_id": userID})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return 0, err
	}

	tag, err := p.q.Exec(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
