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

type LoanRepository interface {
	FindActive(ctx context.Context, itemID int64, email string) (*domain.Loan, error)
	CreateActive(ctx context.Context, itemID int64, email string) (*domain.Loan, error)
	MarkReturned(ctx context.Context, itemID int64, email string) (*domain.Loan, error)
	CountActive(ctx context.Context, itemID int64) (int, error)
	ListByEmail(ctx context.Context, email string, limit, offset int) ([]domain.Loan, error)
}

type loanRepository struct {
	pool *pgxpool.Pool
}

func NewLoanRepository(pool *pgxpool.Pool) LoanRepository {
	return &loanRepository{pool: pool}
}

func (r *loanRepository) FindActive(ctx context.Context, itemID int64, email string) (*domain.Loan, error) {
	const q = `
		SELECT id, item_id, email, created_at, returned_at
		FROM loans
		WHERE item_id = $1 AND lower(email) = lower($2) AND returned_at IS NULL`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var loan domain.Loan
	err := r.pool.QueryRow(ctx, q, itemID, email).Scan(
		&loan.ID, &loan.ItemID, &loan.Email, &loan.CreatedAt, &loan.ReturnedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active loan: %w", err)
	}
	return &loan, nil
}

// CreateActive inserts a new active loan only if the item has no other
// active loan. The conditional insert plus the partial unique index on
// loans(item_id) WHERE returned_at IS NULL makes concurrent borrows of a
// single-copy item resolve to exactly one winner, even across service
// instances.
func (r *loanRepository) CreateActive(ctx context.Context, itemID int64, email string) (*domain.Loan, error) {
	const q = `
		INSERT INTO loans (item_id, email)
		SELECT $1, lower($2)
		WHERE NOT EXISTS (
			SELECT 1 FROM loans WHERE item_id = $1 AND returned_at IS NULL
		)
		RETURNING id, item_id, email, created_at, returned_at`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var loan domain.Loan
	err := r.pool.QueryRow(ctx, q, itemID, email).Scan(
		&loan.ID, &loan.ItemID, &loan.Email, &loan.CreatedAt, &loan.ReturnedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrItemUnavailable
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			// Lost the race against a concurrent borrow.
			return nil, domain.ErrItemUnavailable
		}
		return nil, fmt.Errorf("failed to create loan: %w", err)
	}
	return &loan, nil
}

func (r *loanRepository) MarkReturned(ctx context.Context, itemID int64, email string) (*domain.Loan, error) {
	const q = `
		UPDATE loans
		SET returned_at = now()
		WHERE item_id = $1 AND lower(email) = lower($2) AND returned_at IS NULL
		RETURNING id, item_id, email, created_at, returned_at`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var loan domain.Loan
	err := r.pool.QueryRow(ctx, q, itemID, email).Scan(
		&loan.ID, &loan.ItemID, &loan.Email, &loan.CreatedAt, &loan.ReturnedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrLoanNotFound
		}
		return nil, fmt.Errorf("failed to mark loan returned: %w", err)
	}
	return &loan, nil
}

func (r *loanRepository) CountActive(ctx context.Context, itemID int64) (int, error) {
	const q = `SELECT count(*) FROM loans WHERE item_id = $1 AND returned_at IS NULL`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var count int
	if err := r.pool.QueryRow(ctx, q, itemID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active loans: %w", err)
	}
	return count, nil
}

func (r *loanRepository) ListByEmail(ctx context.Context, email string, limit, offset int) ([]domain.Loan, error) {
	const q = `
		SELECT id, item_id, email, created_at, returned_at
		FROM loans
		WHERE lower(email) = lower($1)
		ORDER BY id DESC
		LIMIT $2 OFFSET $3`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, email, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	defer rows.Close()

	var loans []domain.Loan
	for rows.Next() {
		var loan domain.Loan
		if err := rows.Scan(&loan.ID, &loan.ItemID, &loan.Email, &loan.CreatedAt, &loan.ReturnedAt); err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		loans = append(loans, loan)
	}
	return loans, rows.Err()
}
