package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/orderprovider/internal/domain"
)

const defaultPullLimit = 100

// outboxRepository — таблица outbox_messages; статус меняется pending -> sent|failed.
type outboxRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewOutboxRepository создаёт PostgreSQL-очередь событий заказа.
func NewOutboxRepository(store *Store) domain.OutboxRepository {
	return &outboxRepository{db: store.db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *outboxRepository) Enqueue(ctx context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = r.now()
	}
	msg.CreatedAt = msg.CreatedAt.UTC()
	if msg.Payload == nil {
		msg.Payload = []byte{}
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	const q = `
		INSERT INTO outbox_messages (id, aggregate_type, aggregate_id, event_type, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)`
	if _, err := r.db.ExecContext(ctx, q,
		msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload, msg.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return domain.OutboxMessage{}, fmt.Errorf("%w: outbox message %s", domain.ErrConflict, msg.ID)
		}
		return domain.OutboxMessage{}, domain.StoreError("enqueue outbox message", err)
	}
	return msg, nil
}

func (r *outboxRepository) PullPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = defaultPullLimit
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	const q = `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM outbox_messages
		WHERE status = 'pending'
		ORDER BY created_at, id
		LIMIT $1`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, domain.StoreError("pull pending outbox messages", err)
	}
	defer rows.Close()

	var batch []domain.OutboxMessage
	for rows.Next() {
		var m domain.OutboxMessage
		if err := rows.Scan(&m.ID, &m.AggregateType, &m.AggregateID, &m.EventType, &m.Payload, &m.CreatedAt); err != nil {
			return nil, domain.StoreError("scan outbox message", err)
		}
		m.CreatedAt = m.CreatedAt.UTC()
		batch = append(batch, m)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("iterate outbox messages", err)
	}
	return batch, nil
}

func (r *outboxRepository) Stats(ctx context.Context) (domain.OutboxStats, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var (
		stats  domain.OutboxStats
		oldest sql.NullTime
	)
	const q = `SELECT COUNT(*), MIN(created_at) FROM outbox_messages WHERE status = 'pending'`
	if err := r.db.QueryRowContext(ctx, q).Scan(&stats.PendingCount, &oldest); err != nil {
		return domain.OutboxStats{}, domain.StoreError("outbox stats", err)
	}
	if oldest.Valid {
		stats.OldestPendingAt = oldest.Time.UTC()
	}
	return stats, nil
}

func (r *outboxRepository) MarkSent(ctx context.Context, id string) error {
	return r.settle(ctx, id, "sent")
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id string) error {
	return r.settle(ctx, id, "failed")
}

// settle фиксирует итог доставки и увеличивает счётчик попыток.
func (r *outboxRepository) settle(ctx context.Context, id, status string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	const q = `
		UPDATE outbox_messages
		SET status = $2, attempt_count = attempt_count + 1, updated_at = $3
		WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id, status, r.now())
	if err != nil {
		return domain.StoreError("mark outbox message "+status, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.StoreError("mark outbox message "+status, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrOutboxRecordNotFound, id)
	}
	return nil
}

var _ domain.OutboxRepository = (*outboxRepository)(nil)
