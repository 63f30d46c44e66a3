package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/shelfwise/lending/internal/domain"
	"github.com/shelfwise/lending/internal/repo/postgres"
	"github.com/shelfwise/lending/internal/storage"
	"github.com/shelfwise/lending/pkg/events"
	"github.com/shelfwise/lending/pkg/logger"
)

// storageSyncQueue names the queue group so each event is replayed by
// exactly one instance.
const storageSyncQueue = "lending-storage-sync"

// StorageSyncConsumer replays protected-copy transitions that failed
// after their ledger write committed. Reconciliation is state-driven:
// the ledger decides whether the protected copy should exist, so a
// stale event (a loan returned before the retry ran) still converges to
// the right outcome.
type StorageSyncConsumer struct {
	itemRepo postgres.ItemRepository
	loanRepo postgres.LoanRepository
	tiers    *storage.AccessTier

	retainProtected bool
}

func NewStorageSyncConsumer(
	itemRepo postgres.ItemRepository,
	loanRepo postgres.LoanRepository,
	tiers *storage.AccessTier,
	retainProtected bool,
) *StorageSyncConsumer {
	return &StorageSyncConsumer{
		itemRepo:        itemRepo,
		loanRepo:        loanRepo,
		tiers:           tiers,
		retainProtected: retainProtected,
	}
}

// Start registers the queue subscription on the event bus.
func (c *StorageSyncConsumer) Start(bus events.Subscriber) error {
	return bus.QueueSubscribe(events.StorageSync, storageSyncQueue, func(msg *events.Message) {
		var event events.StorageSyncEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			logger.Error("Failed to decode storage sync event", "error", err)
			return
		}
		if err := c.Apply(context.Background(), event); err != nil {
			logger.Error("Storage sync failed, awaiting next event",
				"error", err, "edition_id", event.EditionID, "action", event.Action)
		}
	})
}

// Apply reconciles one item's protected copy with its ledger state.
func (c *StorageSyncConsumer) Apply(ctx context.Context, event events.StorageSyncEvent) error {
	item, err := c.itemRepo.GetByEdition(ctx, event.EditionID)
	if err != nil {
		if errors.Is(err, domain.ErrItemNotFound) {
			// Item deleted since the event was published.
			return nil
		}
		return err
	}

	active, err := c.loanRepo.CountActive(ctx, item.ID)
	if err != nil {
		return err
	}

	if active > 0 {
		if err := c.tiers.EnsureProtected(ctx, item); err != nil {
			return err
		}
		key := item.StorageKey
		return c.itemRepo.SetProtectedKey(ctx, item.ID, &key)
	}

	if c.retainProtected {
		return nil
	}
	if err := c.tiers.ReleaseProtected(ctx, item); err != nil {
		return err
	}
	return c.itemRepo.SetProtectedKey(ctx, item.ID, nil)
}
