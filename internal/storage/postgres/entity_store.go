package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/orderprovider/internal/domain"
)

// rowScanner — общий интерфейс *sql.Row и *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// rowCodec описывает отображение сущности на строку таблицы.
// Первая колонка всегда первичный ключ id.
type rowCodec[T any] struct {
	table   string
	columns []string
	orderBy string
	scan    func(rowScanner) (T, error)
	values  func(T) ([]any, error)
}

// entityStore — PostgreSQL-реализация EntityStore поверх rowCodec.
// Предикаты являются Go-замыканиями, поэтому фильтрация выполняется после чтения строк;
// Update и Delete блокируют прочитанные строки через SELECT ... FOR UPDATE.
// Операции по ID (domain.KeyedStore) идут по первичному ключу и затрагивают одну строку.
type entityStore[T domain.Entity[T]] struct {
	db    *sql.DB
	codec rowCodec[T]
}

func newEntityStore[T domain.Entity[T]](store *Store, codec rowCodec[T]) *entityStore[T] {
	if codec.orderBy == "" {
		codec.orderBy = "id"
	}
	return &entityStore[T]{db: store.db, codec: codec}
}

func (s *entityStore[T]) Create(ctx context.Context, entity T) (bool, error) {
	if entity.EntityID() == "" {
		return false, nil
	}

	values, err := s.codec.values(entity)
	if err != nil {
		return false, domain.StoreError("encode "+s.codec.table+" row", err)
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) DO NOTHING`,
		s.codec.table, strings.Join(s.codec.columns, ", "), placeholders(1, len(s.codec.columns)),
	), values...)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, domain.StoreError("insert into "+s.codec.table, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, domain.StoreError("rows affected", err)
	}
	return affected == 1, nil
}

func (s *entityStore[T]) GetOne(ctx context.Context, pred domain.Predicate[T]) (T, bool, error) {
	var zero T

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, s.selectQuery(""))
	if err != nil {
		return zero, false, domain.StoreError("select from "+s.codec.table, err)
	}
	defer rows.Close()

	for rows.Next() {
		entity, err := s.codec.scan(rows)
		if err != nil {
			return zero, false, domain.StoreError("scan "+s.codec.table+" row", err)
		}
		if pred.Matches(entity) {
			return entity, true, nil
		}
	}
	if err := rows.Err(); err != nil {
		return zero, false, domain.StoreError("iterate "+s.codec.table+" rows", err)
	}

	return zero, false, nil
}

func (s *entityStore[T]) GetAll(ctx context.Context, pred domain.Predicate[T]) ([]T, error) {
	queryCtx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(queryCtx, s.selectQuery(""))
	if err != nil {
		return nil, domain.StoreError("select from "+s.codec.table, err)
	}
	defer rows.Close()

	result := make([]T, 0)
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entity, err := s.codec.scan(rows)
		if err != nil {
			return nil, domain.StoreError("scan "+s.codec.table+" row", err)
		}
		if pred.Matches(entity) {
			result = append(result, entity)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("iterate "+s.codec.table+" rows", err)
	}

	return result, nil
}

func (s *entityStore[T]) Update(ctx context.Context, pred domain.Predicate[T], entity T) (updated bool, err error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, domain.StoreError("begin tx", err)
	}
	defer func() {
		if err != nil || !updated {
			_ = tx.Rollback()
		}
	}()

	matches, err := s.lockMatches(ctx, tx, pred, true)
	if err != nil {
		return false, err
	}
	if len(matches) == 0 {
		return false, nil
	}

	values, err := s.codec.values(entity.WithEntityID(matches[0].EntityID()))
	if err != nil {
		return false, domain.StoreError("encode "+s.codec.table+" row", err)
	}

	if _, err = tx.ExecContext(ctx, s.updateQuery(), values...); err != nil {
		return false, domain.StoreError("update "+s.codec.table, err)
	}

	if err = tx.Commit(); err != nil {
		return false, domain.StoreError("commit update "+s.codec.table, err)
	}
	return true, nil
}

func (s *entityStore[T]) Delete(ctx context.Context, pred domain.Predicate[T]) (deleted bool, err error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, domain.StoreError("begin tx", err)
	}
	defer func() {
		if err != nil || !deleted {
			_ = tx.Rollback()
		}
	}()

	matches, err := s.lockMatches(ctx, tx, pred, false)
	if err != nil {
		return false, err
	}
	if len(matches) == 0 {
		return false, nil
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.codec.table)
	for _, m := range matches {
		if _, err = tx.ExecContext(ctx, query, m.EntityID()); err != nil {
			return false, domain.StoreError("delete from "+s.codec.table, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return false, domain.StoreError("commit delete "+s.codec.table, err)
	}
	return true, nil
}

// GetByID читает одну строку по первичному ключу.
func (s *entityStore[T]) GetByID(ctx context.Context, id string) (T, bool, error) {
	var zero T

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	entity, err := s.codec.scan(s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT %s FROM %s WHERE id = $1`, strings.Join(s.codec.columns, ", "), s.codec.table,
	), id))
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, domain.StoreError("select from "+s.codec.table+" by id", err)
	}
	return entity, true, nil
}

// UpdateByID заменяет строку одним UPDATE; блокируется только строка с этим id.
func (s *entityStore[T]) UpdateByID(ctx context.Context, id string, entity T) (bool, error) {
	values, err := s.codec.values(entity.WithEntityID(id))
	if err != nil {
		return false, domain.StoreError("encode "+s.codec.table+" row", err)
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, s.updateQuery(), values...)
	if err != nil {
		return false, domain.StoreError("update "+s.codec.table, err)
	}
	return affectedAny(res)
}

func (s *entityStore[T]) DeleteByID(ctx context.Context, id string) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.codec.table), id)
	if err != nil {
		return false, domain.StoreError("delete from "+s.codec.table, err)
	}
	return affectedAny(res)
}

func affectedAny(res sql.Result) (bool, error) {
	affected, err := res.RowsAffected()
	if err != nil {
		return false, domain.StoreError("rows affected", err)
	}
	return affected > 0, nil
}

// lockMatches читает строки в транзакции с блокировкой и возвращает совпадения.
func (s *entityStore[T]) lockMatches(ctx context.Context, tx *sql.Tx, pred domain.Predicate[T], firstOnly bool) ([]T, error) {
	rows, err := tx.QueryContext(ctx, s.selectQuery("FOR UPDATE"))
	if err != nil {
		return nil, domain.StoreError("select for update "+s.codec.table, err)
	}
	defer rows.Close()

	var matches []T
	for rows.Next() {
		entity, err := s.codec.scan(rows)
		if err != nil {
			return nil, domain.StoreError("scan "+s.codec.table+" row", err)
		}
		if !pred.Matches(entity) {
			continue
		}
		matches = append(matches, entity)
		if firstOnly {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("iterate "+s.codec.table+" rows", err)
	}
	return matches, nil
}

func (s *entityStore[T]) selectQuery(suffix string) string {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY %s`,
		strings.Join(s.codec.columns, ", "), s.codec.table, s.codec.orderBy)
	if suffix != "" {
		query += " " + suffix
	}
	return query
}

// updateQuery обновляет все колонки строки: $1 это id, остальные параметры идут по порядку колонок.
func (s *entityStore[T]) updateQuery() string {
	assignments := make([]string, 0, len(s.codec.columns)-1)
	for i, column := range s.codec.columns[1:] {
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, i+2))
	}
	return fmt.Sprintf(`UPDATE %s SET %s WHERE id = $1`, s.codec.table, strings.Join(assignments, ", "))
}

func placeholders(from, count int) string {
	parts := make([]string, 0, count)
	for i := 0; i < count; i++ {
		parts = append(parts, fmt.Sprintf("$%d", from+i))
	}
	return strings.Join(parts, ", ")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.KeyedStore[domain.Order] = (*entityStore[domain.Order])(nil)
