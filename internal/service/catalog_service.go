package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/shelfwise/lending/internal/domain"
	"github.com/shelfwise/lending/internal/repo/postgres"
	"github.com/shelfwise/lending/internal/storage"
	"github.com/shelfwise/lending/pkg/config"
	"github.com/shelfwise/lending/pkg/events"
	"github.com/shelfwise/lending/pkg/logger"
)

type CatalogService interface {
	Upload(ctx context.Context, req *domain.UploadRequest, file io.Reader) (*domain.Item, error)
	Get(ctx context.Context, editionID int64) (*domain.Item, error)
	List(ctx context.Context, limit, offset int) ([]domain.Item, error)
	Delete(ctx context.Context, editionID int64) error
	OpenPublic(ctx context.Context, item *domain.Item) (io.ReadCloser, error)
	OpenProtected(ctx context.Context, item *domain.Item) (io.ReadCloser, error)
}

type catalogService struct {
	itemRepo postgres.ItemRepository
	store    storage.ObjectStore
	tiers    *storage.AccessTier
	eventBus events.Publisher
	cfg      *config.Config
}

func NewCatalogService(
	itemRepo postgres.ItemRepository,
	store storage.ObjectStore,
	tiers *storage.AccessTier,
	eventBus events.Publisher,
	cfg *config.Config,
) CatalogService {
	return &catalogService{
		itemRepo: itemRepo,
		store:    store,
		tiers:    tiers,
		eventBus: eventBus,
		cfg:      cfg,
	}
}

// Upload stores the file in the public bucket and records the item.
// Lending-required items get their protected copy up front so the first
// borrow does not depend on a storage round trip.
func (s *catalogService) Upload(ctx context.Context, req *domain.UploadRequest, file io.Reader) (*domain.Item, error) {
	if err := req.Validate(s.cfg.Lending.MaxUploadSize); err != nil {
		return nil, err
	}

	// Refuse duplicates before touching storage, or the new file would
	// clobber the live item's public object. The unique constraint on
	// items.edition_id stays as the race backstop.
	if _, err := s.itemRepo.GetByEdition(ctx, req.EditionID); err == nil {
		return nil, domain.ErrItemExists
	} else if !errors.Is(err, domain.ErrItemNotFound) {
		return nil, err
	}

	format, _ := domain.FormatForExtension(filepath.Ext(req.Filename))
	key := domain.ObjectKey(req.EditionID, req.Filename)

	if err := s.store.Put(ctx, s.cfg.Storage.PublicBucket, key, file, req.Size, format.ContentType()); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	item := &domain.Item{
		EditionID:       req.EditionID,
		Formats:         format,
		LendingRequired: req.LendingRequired,
		StorageKey:      key,
	}

	if req.LendingRequired {
		if err := s.tiers.EnsureProtected(ctx, item); err != nil {
			return nil, err
		}
		item.ProtectedKey = &key
	}

	item, err := s.itemRepo.Create(ctx, item)
	if err != nil {
		return nil, err
	}

	event := events.ItemUploadedEvent{
		ItemID:          item.ID,
		EditionID:       item.EditionID,
		LendingRequired: item.LendingRequired,
		CreatedAt:       item.CreatedAt,
	}
	if err := s.eventBus.Publish(ctx, events.ItemUploaded, event); err != nil {
		logger.WarnContext(ctx, "Failed to publish item uploaded event", "error", err)
	}

	return item, nil
}

func (s *catalogService) Get(ctx context.Context, editionID int64) (*domain.Item, error) {
	return s.itemRepo.GetByEdition(ctx, editionID)
}

func (s *catalogService) List(ctx context.Context, limit, offset int) ([]domain.Item, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.itemRepo.List(ctx, limit, offset)
}

// Delete removes the item's objects from both buckets and its catalog
// row. The loans ledger is untouched.
func (s *catalogService) Delete(ctx context.Context, editionID int64) error {
	item, err := s.itemRepo.GetByEdition(ctx, editionID)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, s.cfg.Storage.PublicBucket, item.StorageKey); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	if err := s.tiers.ReleaseProtected(ctx, item); err != nil {
		return err
	}

	if _, err := s.itemRepo.Delete(ctx, editionID); err != nil {
		return err
	}

	event := events.ItemDeletedEvent{EditionID: editionID, DeletedAt: time.Now()}
	if err := s.eventBus.Publish(ctx, events.ItemDeleted, event); err != nil {
		logger.WarnContext(ctx, "Failed to publish item deleted event", "error", err)
	}

	return nil
}

func (s *catalogService) OpenPublic(ctx context.Context, item *domain.Item) (io.ReadCloser, error) {
	rc, err := s.store.Get(ctx, s.cfg.Storage.PublicBucket, item.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return rc, nil
}

func (s *catalogService) OpenProtected(ctx context.Context, item *domain.Item) (io.ReadCloser, error) {
	rc, err := s.store.Get(ctx, s.cfg.Storage.ProtectedBucket, item.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return rc, nil
}
