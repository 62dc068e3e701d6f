// Package mappings provides the PostgreSQL-backed remote event mapping store.
package mappings

import (
	"context"
	"fmt"
	"strings"

	"github.com/msavelyev/calhub/internal/dbx"
	"github.com/msavelyev/calhub/internal/models"
)

// PostgresRepository implements Repository over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) SelectByReservationIDs(ctx context.Context, userID models.UserID, reservationIDs []string) (map[string]string, error) {
	if len(reservationIDs) == 0 {
		return map[string]string{}, nil
	}

	placeholders := make([]string, 0, len(reservationIDs))
	args := make([]any, 0, len(reservationIDs)+1)
	args = append(args, int64(userID))
	for i, id := range reservationIDs {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+2))
		args = append(args, id)
	}

	query := fmt.Sprintf(
		`SELECT reservation_id, event_id FROM remote_event_mapping WHERE user_id = $1 AND reservation_id IN (%s)`,
		strings.Join(placeholders, ", "),
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select mappings: %w", err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var reservationID, eventID string
		if err := rows.Scan(&reservationID, &eventID); err != nil {
			return nil, err
		}
		result[reservationID] = eventID
	}
	return result, rows.Err()
}

func (r *PostgresRepository) InsertBatch(ctx context.Context, items []*models.EventMapping) error {
	if len(items) == 0 {
		return nil
	}

	values := make([]string, 0, len(items))
	args := make([]any, 0, len(items)*3)
	for i, item := range items {
		values = append(values, fmt.Sprintf("($%d, $%d, $%d)", i*3+1, i*3+2, i*3+3))
		args = append(args, item.EventID, int64(item.UserID), item.ReservationID)
	}

	query := fmt.Sprintf(
		`INSERT INTO remote_event_mapping (event_id, user_id, reservation_id) VALUES %s`,
		strings.Join(values, ", "),
	)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
