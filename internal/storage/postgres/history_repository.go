package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type historyRepository struct {
	db *sql.DB
}

// NewHistoryRepository создаёт PostgreSQL-реализацию HistoryRepository.
func NewHistoryRepository(store *Store) domain.HistoryRepository {
	return &historyRepository{db: store.DB()}
}

func (r *historyRepository) Append(event domain.StatusEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if event.Occurred.IsZero() {
		event.Occurred = time.Now().UTC()
	}

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO order_status_history (order_id, status, reason, occurred)
		VALUES ($1,$2,$3,$4)
	`, event.OrderID, string(event.Status), event.Reason, event.Occurred); err != nil {
		return fmt.Errorf("append status event: %w", err)
	}

	return nil
}

func (r *historyRepository) List(orderID string) ([]domain.StatusEvent, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, status, reason, occurred
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY occurred ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list status events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.StatusEvent, 0)
	for rows.Next() {
		var (
			event  domain.StatusEvent
			status string
		)
		if err := rows.Scan(&event.OrderID, &status, &event.Reason, &event.Occurred); err != nil {
			return nil, fmt.Errorf("scan status event: %w", err)
		}
		event.Status = domain.OrderStatus(status)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status events: %w", err)
	}

	return events, nil
}

var _ domain.HistoryRepository = (*historyRepository)(nil)
