package app

import (
	"context"
	"fmt"

	"github.com/louisbranch/realmtree/internal/platform/id"
	"github.com/louisbranch/realmtree/internal/services/realms/storage"
	"go.opentelemetry.io/otel/attribute"
)

func (s *Service) ready() error {
	if s == nil || s.store == nil {
		return fmt.Errorf("realm service is not configured")
	}
	return nil
}

// Root returns the root realm.
func (s *Service) Root(ctx context.Context) (storage.Realm, error) {
	if err := s.ready(); err != nil {
		return storage.Realm{}, err
	}
	return s.store.Root(ctx)
}

// GetRealm returns one realm.
func (s *Service) GetRealm(ctx context.Context, realmID id.Key) (storage.Realm, error) {
	if err := s.ready(); err != nil {
		return storage.Realm{}, err
	}
	return s.store.GetRealm(ctx, realmID)
}

// GetRealmByPath resolves a full path.
func (s *Service) GetRealmByPath(ctx context.Context, fullPath string) (storage.Realm, error) {
	if err := s.ready(); err != nil {
		return storage.Realm{}, err
	}
	return s.store.GetRealmByPath(ctx, fullPath)
}

// Children lists a realm's children in display order.
func (s *Service) Children(ctx context.Context, parentID id.Key) ([]storage.Realm, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.store.Children(ctx, parentID)
}

// Subtree lists a realm and its descendants by path.
func (s *Service) Subtree(ctx context.Context, realmID id.Key) ([]storage.Realm, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.store.Subtree(ctx, realmID)
}

// Ancestors lists a realm's ancestors, root first.
func (s *Service) Ancestors(ctx context.Context, realmID id.Key) ([]storage.Realm, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.store.Ancestors(ctx, realmID)
}

// Blocks lists a realm's blocks.
func (s *Service) Blocks(ctx context.Context, realmID id.Key) ([]storage.Block, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.store.Blocks(ctx, realmID)
}

// GetEvent returns one event.
func (s *Service) GetEvent(ctx context.Context, eventID id.Key) (storage.Event, error) {
	if err := s.ready(); err != nil {
		return storage.Event{}, err
	}
	return s.store.GetEvent(ctx, eventID)
}

// GetSeries returns one series.
func (s *Service) GetSeries(ctx context.Context, seriesID id.Key) (storage.Series, error) {
	if err := s.ready(); err != nil {
		return storage.Series{}, err
	}
	return s.store.GetSeries(ctx, seriesID)
}

// PendingItems returns up to limit queued work items.
func (s *Service) PendingItems(ctx context.Context, limit int) ([]storage.QueueItem, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.store.PendingItems(ctx, limit)
}

// ResolveBatch loads the current state behind queue items.
func (s *Service) ResolveBatch(ctx context.Context, items []storage.QueueItem) (storage.Batch, error) {
	if err := s.ready(); err != nil {
		return storage.Batch{}, err
	}
	return s.store.ResolveBatch(ctx, items)
}

// QueueStats summarizes the pending queue.
func (s *Service) QueueStats(ctx context.Context) (storage.QueueStats, error) {
	if err := s.ready(); err != nil {
		return storage.QueueStats{}, err
	}
	return s.store.QueueStats(ctx)
}

// ReadBatch reads up to limit pending items and resolves them in one call,
// the read half of the indexer contract. Items stay queued until the caller
// passes batch.QueueIDs to AckItems.
func (s *Service) ReadBatch(ctx context.Context, limit int) (storage.Batch, error) {
	if err := s.ready(); err != nil {
		return storage.Batch{}, err
	}
	ctx, span := s.tracer.Start(ctx, "realms.read_batch")
	defer span.End()

	items, err := s.store.PendingItems(ctx, limit)
	if err != nil {
		span.RecordError(err)
		return storage.Batch{}, err
	}
	batch, err := s.store.ResolveBatch(ctx, items)
	if err != nil {
		span.RecordError(err)
		return storage.Batch{}, fmt.Errorf("resolve batch: %w", err)
	}
	span.SetAttributes(
		attribute.Int("queue.items", len(items)),
		attribute.Int("queue.tombstones", len(batch.DeletedRealms)+len(batch.DeletedEvents)),
	)
	return batch, nil
}
