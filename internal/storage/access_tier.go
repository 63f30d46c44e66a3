package storage

import (
	"context"
	"fmt"

	"github.com/shelfwise/lending/internal/domain"
	"github.com/shelfwise/lending/pkg/logger"
)

// AccessTier moves item files between the public and the protected
// bucket as lending state changes. Both operations check the store for
// the current object state before acting, so a retry after a partial
// failure converges instead of duplicating work.
type AccessTier struct {
	store           ObjectStore
	publicBucket    string
	protectedBucket string
}

func NewAccessTier(store ObjectStore, publicBucket, protectedBucket string) *AccessTier {
	return &AccessTier{
		store:           store,
		publicBucket:    publicBucket,
		protectedBucket: protectedBucket,
	}
}

// EnsureProtected copies an item's file into the protected bucket if it
// is not already there. Idempotent.
func (t *AccessTier) EnsureProtected(ctx context.Context, item *domain.Item) error {
	ctx, cancel := context.WithTimeout(ctx, storageOpTimeout)
	defer cancel()

	exists, err := t.store.Exists(ctx, t.protectedBucket, item.StorageKey)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	if exists {
		return nil
	}

	if err := t.store.Copy(ctx, t.publicBucket, item.StorageKey, t.protectedBucket, item.StorageKey); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	logger.InfoContext(ctx, "Protected copy created",
		"edition_id", item.EditionID, "key", item.StorageKey)
	return nil
}

// ReleaseProtected removes the protected copy if present. Idempotent.
func (t *AccessTier) ReleaseProtected(ctx context.Context, item *domain.Item) error {
	ctx, cancel := context.WithTimeout(ctx, storageOpTimeout)
	defer cancel()

	exists, err := t.store.Exists(ctx, t.protectedBucket, item.StorageKey)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	if !exists {
		return nil
	}

	if err := t.store.Delete(ctx, t.protectedBucket, item.StorageKey); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	logger.InfoContext(ctx, "Protected copy released",
		"edition_id", item.EditionID, "key", item.StorageKey)
	return nil
}
