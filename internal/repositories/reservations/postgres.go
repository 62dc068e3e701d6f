// Package reservations provides the PostgreSQL-backed reservation store:
// conditional upserts, cancellation-by-absence and watermark queries.
package reservations

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/msavelyev/calhub/internal/dbx"
	"github.com/msavelyev/calhub/internal/models"
)

// clockLayout is the wire format for the time-of-day columns. The pgx stdlib
// driver hands TIME values back as strings, possibly with fractional seconds.
const clockLayout = "15:04:05"

// PostgresRepository implements Repository over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const upsertQuery = `
	INSERT INTO reservation
		(id, user_id, title, detail, date_begin, time_begin, date_end, time_end, invalid, location, url, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (id, user_id)
	DO UPDATE SET
		title = EXCLUDED.title,
		detail = EXCLUDED.detail,
		date_begin = EXCLUDED.date_begin,
		time_begin = EXCLUDED.time_begin,
		date_end = EXCLUDED.date_end,
		time_end = EXCLUDED.time_end,
		invalid = EXCLUDED.invalid,
		location = EXCLUDED.location,
		url = EXCLUDED.url,
		updated_at = EXCLUDED.updated_at
	WHERE reservation.title IS DISTINCT FROM EXCLUDED.title
		OR reservation.detail IS DISTINCT FROM EXCLUDED.detail
		OR reservation.date_begin IS DISTINCT FROM EXCLUDED.date_begin
		OR reservation.time_begin IS DISTINCT FROM EXCLUDED.time_begin
		OR reservation.date_end IS DISTINCT FROM EXCLUDED.date_end
		OR reservation.time_end IS DISTINCT FROM EXCLUDED.time_end
		OR reservation.invalid IS DISTINCT FROM EXCLUDED.invalid
		OR reservation.location IS DISTINCT FROM EXCLUDED.location
		OR reservation.url IS DISTINCT FROM EXCLUDED.url;
`

// Upsert writes the event if new or changed. The WHERE clause on the update
// arm makes an unchanged re-submit a pure no-op: zero rows affected, no
// updated_at bump.
func (r *PostgresRepository) Upsert(ctx context.Context, userID models.UserID, ev *models.Event, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, upsertQuery,
		ev.ID, int64(userID), ev.Title, ev.Detail,
		ev.DateBegin, clockArg(ev.TimeBegin), dateArg(ev.DateEnd), clockArg(ev.TimeEnd),
		ev.Invalid, ev.Location, ev.URL, now,
	)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n > 0, nil
}

// SelectInvalidIDs returns which of ids are stored and currently invalid.
func (r *PostgresRepository) SelectInvalidIDs(ctx context.Context, userID models.UserID, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, 0, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, int64(userID))
	for i, id := range ids {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+2))
		args = append(args, id)
	}

	query := fmt.Sprintf(
		`SELECT id FROM reservation WHERE user_id = $1 AND invalid AND id IN (%s)`,
		strings.Join(placeholders, ", "),
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select invalid ids: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}
	return result, rows.Err()
}

// CancelMissing marks future, still-valid rows under the prefix invalid when
// absent from presentIDs. Unlike the plain upsert path this always stamps
// updated_at: a cancellation is a change the remote reconciler must see.
func (r *PostgresRepository) CancelMissing(ctx context.Context, userID models.UserID, prefix string, presentIDs []string, now time.Time) (int64, error) {
	var sb strings.Builder
	sb.WriteString(`
	UPDATE reservation SET invalid = TRUE, updated_at = $1
	WHERE user_id = $2
		AND id LIKE $3
		AND NOT invalid
		AND (date_begin > $4 OR (date_begin = $4 AND (time_begin IS NULL OR time_begin > $5)))`)

	args := []any{now, int64(userID), prefix + "%", dateOnly(now), now.Format(clockLayout)}

	if len(presentIDs) > 0 {
		placeholders := make([]string, 0, len(presentIDs))
		for _, id := range presentIDs {
			args = append(args, id)
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		sb.WriteString("\n\t\tAND id NOT IN (")
		sb.WriteString(strings.Join(placeholders, ", "))
		sb.WriteString(")")
	}

	res, err := r.db.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

// SelectUpdatedSince returns the rows the remote reconciler must look at:
// everything touched after the watermark.
func (r *PostgresRepository) SelectUpdatedSince(ctx context.Context, userID models.UserID, since time.Time) ([]*models.Event, error) {
	query := `
	SELECT id, title, detail, date_begin, time_begin, date_end, time_end, invalid, location, url, updated_at
	FROM reservation
	WHERE user_id = $1 AND updated_at > $2
	ORDER BY updated_at;
`
	rows, err := r.db.QueryContext(ctx, query, int64(userID), since)
	if err != nil {
		return nil, fmt.Errorf("failed to select reservations: %w", err)
	}
	defer rows.Close()

	var result []*models.Event
	for rows.Next() {
		var (
			item               models.Event
			timeBegin, timeEnd sql.NullString
			dateEnd            sql.NullTime
			location, url      sql.NullString
		)
		if err := rows.Scan(
			&item.ID, &item.Title, &item.Detail,
			&item.DateBegin, &timeBegin, &dateEnd, &timeEnd,
			&item.Invalid, &location, &url, &item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if item.TimeBegin, err = parseClock(timeBegin); err != nil {
			return nil, err
		}
		if item.TimeEnd, err = parseClock(timeEnd); err != nil {
			return nil, err
		}
		if dateEnd.Valid {
			d := dateEnd.Time
			item.DateEnd = &d
		}
		if location.Valid {
			v := location.String
			item.Location = &v
		}
		if url.Valid {
			v := url.String
			item.URL = &v
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func dateArg(d *time.Time) any {
	if d == nil {
		return nil
	}
	return *d
}

func clockArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(clockLayout)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func parseClock(v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}
	// Strip fractional seconds the driver may include.
	s := v.String
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return nil, fmt.Errorf("bad time-of-day value %q: %w", v.String, err)
	}
	return &t, nil
}
