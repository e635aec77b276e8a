package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/vladislavdragonenkov/orderprovider/internal/domain"
)

// timelineRepository — таблица timeline_events; записи каскадно удаляются вместе с заказом.
type timelineRepository struct {
	db *sql.DB
}

// NewTimelineRepository создаёт PostgreSQL-историю заказов.
func NewTimelineRepository(store *Store) domain.TimelineRepository {
	return &timelineRepository{db: store.db}
}

func (r *timelineRepository) Append(ctx context.Context, ev domain.TimelineEvent) error {
	if ev.Occurred.IsZero() {
		ev.Occurred = time.Now()
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	const q = `INSERT INTO timeline_events (order_id, type, reason, occurred) VALUES ($1, $2, $3, $4)`
	if _, err := r.db.ExecContext(ctx, q, ev.OrderID, ev.Type, ev.Reason, ev.Occurred.UTC()); err != nil {
		return domain.StoreError("append timeline event", err)
	}
	return nil
}

// List сортирует по occurred, а при равном времени по порядку вставки.
func (r *timelineRepository) List(ctx context.Context, orderID string) ([]domain.TimelineEvent, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	const q = `
		SELECT type, reason, occurred
		FROM timeline_events
		WHERE order_id = $1
		ORDER BY occurred, id`
	rows, err := r.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, domain.StoreError("list timeline events", err)
	}
	defer rows.Close()

	events := []domain.TimelineEvent{}
	for rows.Next() {
		ev := domain.TimelineEvent{OrderID: orderID}
		if err := rows.Scan(&ev.Type, &ev.Reason, &ev.Occurred); err != nil {
			return nil, domain.StoreError("scan timeline event", err)
		}
		ev.Occurred = ev.Occurred.UTC()
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("iterate timeline events", err)
	}
	return events, nil
}

var _ domain.TimelineRepository = (*timelineRepository)(nil)
