package service

import (
	"context"
	"fmt"

	"github.com/shelfwise/lending/internal/domain"
	"github.com/shelfwise/lending/internal/repo/postgres"
	"github.com/shelfwise/lending/internal/storage"
	"github.com/shelfwise/lending/pkg/events"
	"github.com/shelfwise/lending/pkg/logger"
)

type LendingService interface {
	Borrow(ctx context.Context, editionID int64, email string) (*domain.Loan, error)
	Return(ctx context.Context, editionID int64, email string) (*domain.Loan, error)
	ActiveLoan(ctx context.Context, editionID int64, email string) (*domain.Loan, error)
	ListLoans(ctx context.Context, email string, limit, offset int) ([]domain.Loan, error)
}

type lendingService struct {
	itemRepo postgres.ItemRepository
	loanRepo postgres.LoanRepository
	tiers    *storage.AccessTier
	eventBus events.Publisher

	// retainProtected keeps the protected copy after the last return so
	// the next borrower skips the copy. Off by default: the protected
	// bucket then only holds files someone can currently read.
	retainProtected bool
}

func NewLendingService(
	itemRepo postgres.ItemRepository,
	loanRepo postgres.LoanRepository,
	tiers *storage.AccessTier,
	eventBus events.Publisher,
	retainProtected bool,
) LendingService {
	return &lendingService{
		itemRepo:        itemRepo,
		loanRepo:        loanRepo,
		tiers:           tiers,
		eventBus:        eventBus,
		retainProtected: retainProtected,
	}
}

// Borrow moves (item, patron) from NoLoan to Active. The ledger write is
// the commit point; the protected-copy side effect is retried
// asynchronously if storage is down, so the patron-facing response never
// blocks on the object store.
func (s *lendingService) Borrow(ctx context.Context, editionID int64, email string) (*domain.Loan, error) {
	item, err := s.itemRepo.GetByEdition(ctx, editionID)
	if err != nil {
		return nil, err
	}

	if !item.LendingRequired {
		return nil, domain.ErrLoanNotRequired
	}

	existing, err := s.loanRepo.FindActive(ctx, item.ID, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrAlreadyBorrowed
	}

	loan, err := s.loanRepo.CreateActive(ctx, item.ID, email)
	if err != nil {
		return nil, err
	}

	if err := s.tiers.EnsureProtected(ctx, item); err != nil {
		logger.ErrorContext(ctx, "Failed to create protected copy, scheduling retry",
			"error", err, "edition_id", editionID)
		s.publish(ctx, events.StorageSync, events.StorageSyncEvent{
			EditionID: editionID,
			Action:    "ensure",
		})
	} else {
		key := item.StorageKey
		if err := s.itemRepo.SetProtectedKey(ctx, item.ID, &key); err != nil {
			logger.WarnContext(ctx, "Failed to record protected key", "error", err, "edition_id", editionID)
		}
	}

	s.publish(ctx, events.LoanBorrowed, loanEvent(loan, editionID))
	return loan, nil
}

// Return moves the active loan to Returned. Returned is terminal; a
// later borrow opens a fresh ledger row.
func (s *lendingService) Return(ctx context.Context, editionID int64, email string) (*domain.Loan, error) {
	item, err := s.itemRepo.GetByEdition(ctx, editionID)
	if err != nil {
		return nil, err
	}

	if !item.LendingRequired {
		return nil, domain.ErrLoanNotRequired
	}

	loan, err := s.loanRepo.MarkReturned(ctx, item.ID, email)
	if err != nil {
		return nil, err
	}

	remaining, err := s.loanRepo.CountActive(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count remaining loans: %w", err)
	}

	if remaining == 0 && !s.retainProtected {
		if err := s.tiers.ReleaseProtected(ctx, item); err != nil {
			logger.ErrorContext(ctx, "Failed to release protected copy, scheduling retry",
				"error", err, "edition_id", editionID)
			s.publish(ctx, events.StorageSync, events.StorageSyncEvent{
				EditionID: editionID,
				Action:    "release",
			})
		} else if err := s.itemRepo.SetProtectedKey(ctx, item.ID, nil); err != nil {
			logger.WarnContext(ctx, "Failed to clear protected key", "error", err, "edition_id", editionID)
		}
	}

	s.publish(ctx, events.LoanReturned, loanEvent(loan, editionID))
	return loan, nil
}

func (s *lendingService) ActiveLoan(ctx context.Context, editionID int64, email string) (*domain.Loan, error) {
	item, err := s.itemRepo.GetByEdition(ctx, editionID)
	if err != nil {
		return nil, err
	}
	return s.loanRepo.FindActive(ctx, item.ID, email)
}

func (s *lendingService) ListLoans(ctx context.Context, email string, limit, offset int) ([]domain.Loan, error) {
	return s.loanRepo.ListByEmail(ctx, email, limit, offset)
}

func (s *lendingService) publish(ctx context.Context, subject string, event interface{}) {
	if err := s.eventBus.Publish(ctx, subject, event); err != nil {
		logger.WarnContext(ctx, "Failed to publish event", "error", err, "subject", subject)
	}
}

func loanEvent(loan *domain.Loan, editionID int64) events.LoanEvent {
	return events.LoanEvent{
		LoanID:     loan.ID,
		ItemID:     loan.ItemID,
		EditionID:  editionID,
		Email:      loan.Email,
		CreatedAt:  loan.CreatedAt,
		ReturnedAt: loan.ReturnedAt,
	}
}
