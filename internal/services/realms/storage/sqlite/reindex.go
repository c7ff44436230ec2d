package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/louisbranch/realmtree/internal/platform/id"
	"github.com/louisbranch/realmtree/internal/services/realms/domain"
)

// Reindex triggers. Each runs inside the transaction of the mutation that
// caused it, so the queue commits or rolls back together with the data.

// enqueueKeys adds work items, ignoring ones already pending.
func (t *tx) enqueueKeys(ctx context.Context, kind domain.ItemKind, keys ...id.Key) error {
	for _, key := range keys {
		res, err := t.ExecContext(ctx, `
INSERT INTO search_index_queue (item_id, kind) VALUES (?, ?)
ON CONFLICT(item_id, kind) DO NOTHING`, int64(key), string(kind))
		if err != nil {
			return fmt.Errorf("enqueue %s %s: %w", kind, key, err)
		}
		t.countEnqueued(kind, res)
	}
	return nil
}

// enqueueSelect adds a work item for every non-null item_id selected by
// query.
func (t *tx) enqueueSelect(ctx context.Context, kind domain.ItemKind, query string, args ...any) error {
	res, err := t.ExecContext(ctx, `
INSERT INTO search_index_queue (item_id, kind)
SELECT item_id, ? FROM (`+query+`) WHERE item_id IS NOT NULL
ON CONFLICT(item_id, kind) DO NOTHING`, append([]any{string(kind)}, args...)...)
	if err != nil {
		return fmt.Errorf("enqueue %s items: %w", kind, err)
	}
	t.countEnqueued(kind, res)
	return nil
}

func (t *tx) countEnqueued(kind domain.ItemKind, res sql.Result) {
	if n, err := res.RowsAffected(); err == nil {
		t.enqueued[kind] += int(n)
	}
}

// realmsChanged queues realms whose own row changed.
func (t *tx) realmsChanged(ctx context.Context, realms ...id.Key) error {
	return t.enqueueKeys(ctx, domain.ItemKindRealm, realms...)
}

// realmNameChanged queues the realm and every strict descendant, since
// descendants index their ancestors' names.
func (t *tx) realmNameChanged(ctx context.Context, realm id.Key, fullPath string) error {
	lo, hi := domain.DescendantRange(fullPath)
	return t.enqueueSelect(ctx, domain.ItemKindRealm,
		`SELECT id AS item_id FROM realms WHERE id = ? OR (full_path >= ? AND full_path < ?)`,
		int64(realm), lo, hi,
	)
}

// blockRefsChanged queues the events a block points at: the video itself or
// every event of the series.
func (t *tx) blockRefsChanged(ctx context.Context, videoID *id.Key, seriesID *id.Key) error {
	if videoID == nil && seriesID == nil {
		return nil
	}
	return t.enqueueSelect(ctx, domain.ItemKindEvent,
		`SELECT id AS item_id FROM events WHERE id = ? OR series = ?`,
		nullKey(videoID), nullKey(seriesID),
	)
}

// titleChanged queues every realm hosting a block that references key.
// Both reference columns are matched because event and series keys share
// the block table; a stray match only costs a redundant reindex.
func (t *tx) titleChanged(ctx context.Context, key id.Key) error {
	return t.enqueueSelect(ctx, domain.ItemKindRealm,
		`SELECT DISTINCT realm AS item_id FROM blocks WHERE video_id = ? OR series_id = ?`,
		int64(key), int64(key),
	)
}

// subtreeRemoved queues every realm of the subtree rooted at fullPath and
// every event referenced from blocks inside it.
func (t *tx) subtreeRemoved(ctx context.Context, realm id.Key, fullPath string) error {
	lo, hi := domain.DescendantRange(fullPath)
	subtree := `SELECT id FROM realms WHERE id = ? OR (full_path >= ? AND full_path < ?)`
	args := []any{int64(realm), lo, hi}
	if err := t.enqueueSelect(ctx, domain.ItemKindRealm,
		`SELECT id AS item_id FROM realms WHERE id = ? OR (full_path >= ? AND full_path < ?)`,
		args...,
	); err != nil {
		return err
	}
	return t.enqueueSelect(ctx, domain.ItemKindEvent, `
SELECT e.id AS item_id
FROM events e
WHERE e.id IN (SELECT video_id FROM blocks WHERE realm IN (`+subtree+`))
   OR e.series IN (SELECT series_id FROM blocks WHERE realm IN (`+subtree+`))`,
		append(append([]any{}, args...), args...)...,
	)
}

// nameSourcesChanged queues realms (and their descendants) whose name is
// taken from block.
func (t *tx) nameSourcesChanged(ctx context.Context, block id.Key) error {
	rows, err := t.QueryContext(ctx, `SELECT id, full_path FROM realms WHERE name_from_block = ?`, int64(block))
	if err != nil {
		return fmt.Errorf("find realms named by block %s: %w", block, err)
	}
	type named struct {
		key  id.Key
		path string
	}
	var realms []named
	for rows.Next() {
		var key int64
		var path string
		if err := rows.Scan(&key, &path); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan realm named by block %s: %w", block, err)
		}
		realms = append(realms, named{key: id.Key(key), path: path})
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("iterate realms named by block %s: %w", block, err)
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("close realms named by block %s: %w", block, err)
	}
	for _, realm := range realms {
		if err := t.realmNameChanged(ctx, realm.key, realm.path); err != nil {
			return err
		}
	}
	return nil
}

// nameTitleChanged queues realms whose name block shows key, since their
// derived name follows the title.
func (t *tx) nameTitleChanged(ctx context.Context, key id.Key) error {
	rows, err := t.QueryContext(ctx, `SELECT id FROM blocks WHERE video_id = ? OR series_id = ?`, int64(key), int64(key))
	if err != nil {
		return fmt.Errorf("find blocks showing %s: %w", key, err)
	}
	var blocks []id.Key
	for rows.Next() {
		var block int64
		if err := rows.Scan(&block); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan block showing %s: %w", key, err)
		}
		blocks = append(blocks, id.Key(block))
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("iterate blocks showing %s: %w", key, err)
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("close blocks showing %s: %w", key, err)
	}
	for _, block := range blocks {
		if err := t.nameSourcesChanged(ctx, block); err != nil {
			return err
		}
	}
	return nil
}
