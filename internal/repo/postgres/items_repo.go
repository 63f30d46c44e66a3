package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shelfwise/lending/internal/domain"
)

type ItemRepository interface {
	Create(ctx context.Context, item *domain.Item) (*domain.Item, error)
	GetByEdition(ctx context.Context, editionID int64) (*domain.Item, error)
	List(ctx context.Context, limit, offset int) ([]domain.Item, error)
	Delete(ctx context.Context, editionID int64) (bool, error)
	SetProtectedKey(ctx context.Context, id int64, key *string) error
}

type itemRepository struct {
	pool *pgxpool.Pool
}

func NewItemRepository(pool *pgxpool.Pool) ItemRepository {
	return &itemRepository{pool: pool}
}

func (r *itemRepository) Create(ctx context.Context, item *domain.Item) (*domain.Item, error) {
	const q = `
		INSERT INTO items (edition_id, formats, lending_required, storage_key, protected_key)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	err := r.pool.QueryRow(ctx, q,
		item.EditionID, int(item.Formats), item.LendingRequired,
		item.StorageKey, item.ProtectedKey,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, domain.ErrItemExists
		}
		return nil, fmt.Errorf("failed to create item: %w", err)
	}
	return item, nil
}

func (r *itemRepository) GetByEdition(ctx context.Context, editionID int64) (*domain.Item, error) {
	const q = `
		SELECT id, edition_id, formats, lending_required, storage_key, protected_key,
		       created_at, updated_at
		FROM items
		WHERE edition_id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var (
		item    domain.Item
		formats int
	)
	err := r.pool.QueryRow(ctx, q, editionID).Scan(
		&item.ID, &item.EditionID, &formats, &item.LendingRequired,
		&item.StorageKey, &item.ProtectedKey, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	item.Formats = domain.Format(formats)
	return &item, nil
}

func (r *itemRepository) List(ctx context.Context, limit, offset int) ([]domain.Item, error) {
	const q = `
		SELECT id, edition_id, formats, lending_required, storage_key, protected_key,
		       created_at, updated_at
		FROM items
		ORDER BY id
		LIMIT $1 OFFSET $2`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		var (
			item    domain.Item
			formats int
		)
		if err := rows.Scan(
			&item.ID, &item.EditionID, &formats, &item.LendingRequired,
			&item.StorageKey, &item.ProtectedKey, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		item.Formats = domain.Format(formats)
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *itemRepository) Delete(ctx context.Context, editionID int64) (bool, error) {
	const q = `DELETE FROM items WHERE edition_id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, editionID)
	if err != nil {
		return false, fmt.Errorf("failed to delete item: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

func (r *itemRepository) SetProtectedKey(ctx context.Context, id int64, key *string) error {
	const q = `UPDATE items SET protected_key = $2, updated_at = now() WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, id, key)
	return err
}
