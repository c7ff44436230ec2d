package sqlite

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/louisbranch/realmtree/internal/platform/id"
	"github.com/louisbranch/realmtree/internal/services/realms/domain"
	"github.com/louisbranch/realmtree/internal/services/realms/storage"
)

// maxBatchItems bounds the bind variables of one IN (...) list, well under
// SQLite's variable limit. Larger reads are clamped and larger resolves and
// acks run in chunks of this size.
const maxBatchItems = 5000

// chunkKeys splits keys into slices of at most maxBatchItems.
func chunkKeys[T any](keys []T) [][]T {
	var chunks [][]T
	for len(keys) > maxBatchItems {
		chunks = append(chunks, keys[:maxBatchItems])
		keys = keys[maxBatchItems:]
	}
	if len(keys) > 0 {
		chunks = append(chunks, keys)
	}
	return chunks
}

// PendingItems returns up to limit queued items in queue order. Limits above
// maxBatchItems are clamped.
func (s *Store) PendingItems(ctx context.Context, limit int) ([]storage.QueueItem, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, domain.ErrInvalidQueueReadLimit
	}
	limit = min(limit, maxBatchItems)
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, item_id, kind FROM search_index_queue ORDER BY id LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending items: %w", err)
	}
	defer rows.Close()

	items := make([]storage.QueueItem, 0, limit)
	for rows.Next() {
		var item storage.QueueItem
		var itemID int64
		var kind string
		if err := rows.Scan(&item.ID, &itemID, &kind); err != nil {
			return nil, fmt.Errorf("scan pending item: %w", err)
		}
		item.ItemID = id.Key(itemID)
		item.Kind = domain.ItemKind(kind)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending items: %w", err)
	}
	return items, nil
}

// ResolveBatch loads the current state of each item's entity. Entities that
// no longer exist come back as tombstones so the indexer can drop them.
func (s *Store) ResolveBatch(ctx context.Context, items []storage.QueueItem) (storage.Batch, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Batch{}, err
	}
	batch := storage.Batch{
		Realms:        []storage.Realm{},
		Events:        []storage.Event{},
		DeletedRealms: []id.Key{},
		DeletedEvents: []id.Key{},
		QueueIDs:      make([]int64, 0, len(items)),
	}
	var realmKeys, eventKeys []id.Key
	for _, item := range items {
		batch.QueueIDs = append(batch.QueueIDs, item.ID)
		switch item.Kind {
		case domain.ItemKindRealm:
			realmKeys = append(realmKeys, item.ItemID)
		case domain.ItemKindEvent:
			eventKeys = append(eventKeys, item.ItemID)
		default:
			return storage.Batch{}, fmt.Errorf("resolve batch: unknown item kind %q", item.Kind)
		}
	}

	if len(realmKeys) > 0 {
		found := make(map[id.Key]struct{}, len(realmKeys))
		for _, chunk := range chunkKeys(realmKeys) {
			realms, err := queryRealms(ctx, s.sqlDB,
				`WHERE r.id IN (`+placeholders(len(chunk))+`)`,
				keyArgs(chunk)...,
			)
			if err != nil {
				return storage.Batch{}, fmt.Errorf("resolve realms: %w", err)
			}
			for _, realm := range realms {
				found[realm.ID] = struct{}{}
			}
			batch.Realms = append(batch.Realms, realms...)
		}
		slices.SortFunc(batch.Realms, func(a, b storage.Realm) int {
			return strings.Compare(a.FullPath, b.FullPath)
		})
		batch.DeletedRealms = missingKeys(realmKeys, found)
	}

	if len(eventKeys) > 0 {
		found := make(map[id.Key]struct{}, len(eventKeys))
		for _, chunk := range chunkKeys(eventKeys) {
			events, err := s.resolveEvents(ctx, chunk)
			if err != nil {
				return storage.Batch{}, err
			}
			for _, event := range events {
				found[event.ID] = struct{}{}
			}
			batch.Events = append(batch.Events, events...)
		}
		batch.DeletedEvents = missingKeys(eventKeys, found)
	}
	return batch, nil
}

func (s *Store) resolveEvents(ctx context.Context, keys []id.Key) ([]storage.Event, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, series, title FROM events WHERE id IN (`+placeholders(len(keys))+`)`,
		keyArgs(keys)...,
	)
	if err != nil {
		return nil, fmt.Errorf("resolve events: %w", err)
	}
	defer rows.Close()

	var events []storage.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func missingKeys(keys []id.Key, found map[id.Key]struct{}) []id.Key {
	missing := make([]id.Key, 0)
	for _, key := range keys {
		if _, ok := found[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}

// AckItems removes processed queue positions. Only an item enqueued after its
// earlier position was acked gets a new position that survives; a trigger
// that fires while the item is still pending is a no-op on the same row, so
// acking that row drops it too.
func (s *Store) AckItems(ctx context.Context, queueIDs []int64) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	if len(queueIDs) == 0 {
		return 0, nil
	}
	var removed int
	err := s.inTx(ctx, "ack items", func(t *tx) error {
		removed = 0
		for _, chunk := range chunkKeys(queueIDs) {
			args := make([]any, len(chunk))
			for i, queueID := range chunk {
				args[i] = queueID
			}
			res, err := t.ExecContext(ctx,
				`DELETE FROM search_index_queue WHERE id IN (`+placeholders(len(chunk))+`)`,
				args...,
			)
			if err != nil {
				return fmt.Errorf("delete acked items: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("delete acked items: %w", err)
			}
			removed += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// QueueStats counts pending items per kind.
func (s *Store) QueueStats(ctx context.Context) (storage.QueueStats, error) {
	if err := s.ready(ctx); err != nil {
		return storage.QueueStats{}, err
	}
	var stats storage.QueueStats
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT
    COALESCE(SUM(CASE WHEN kind = 'realm' THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN kind = 'event' THEN 1 ELSE 0 END), 0),
    COALESCE(MIN(id), 0)
FROM search_index_queue`).Scan(&stats.Realms, &stats.Events, &stats.OldestID)
	if err != nil {
		return storage.QueueStats{}, fmt.Errorf("queue stats: %w", err)
	}
	return stats, nil
}

// RebuildQueue enqueues every realm and event, returning how many items
// were added. Items already pending keep their position.
func (s *Store) RebuildQueue(ctx context.Context) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	var added int
	err := s.inTx(ctx, "rebuild queue", func(t *tx) error {
		if err := t.enqueueSelect(ctx, domain.ItemKindRealm, `SELECT id AS item_id FROM realms ORDER BY full_path`); err != nil {
			return err
		}
		if err := t.enqueueSelect(ctx, domain.ItemKindEvent, `SELECT id AS item_id FROM events`); err != nil {
			return err
		}
		added = t.enqueued[domain.ItemKindRealm] + t.enqueued[domain.ItemKindEvent]
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}
