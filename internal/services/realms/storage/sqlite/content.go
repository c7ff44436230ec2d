package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/realmtree/internal/platform/id"
	"github.com/louisbranch/realmtree/internal/services/realms/domain"
	"github.com/louisbranch/realmtree/internal/services/realms/storage"
)

func getSeries(ctx context.Context, q queryer, key id.Key) (storage.Series, error) {
	var series storage.Series
	var raw int64
	err := q.QueryRowContext(ctx, `SELECT id, title FROM series WHERE id = ?`, int64(key)).Scan(&raw, &series.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Series{}, domain.NotFound("series", key)
	}
	if err != nil {
		return storage.Series{}, fmt.Errorf("get series %s: %w", key, err)
	}
	series.ID = id.Key(raw)
	return series, nil
}

func scanEvent(row rowScanner) (storage.Event, error) {
	var event storage.Event
	var raw int64
	var series sql.NullInt64
	if err := row.Scan(&raw, &series, &event.Title); err != nil {
		return storage.Event{}, err
	}
	event.ID = id.Key(raw)
	event.SeriesID = keyPtr(series)
	return event, nil
}

func getEvent(ctx context.Context, q queryer, key id.Key) (storage.Event, error) {
	event, err := scanEvent(q.QueryRowContext(ctx, `SELECT id, series, title FROM events WHERE id = ?`, int64(key)))
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Event{}, domain.NotFound("event", key)
	}
	if err != nil {
		return storage.Event{}, fmt.Errorf("get event %s: %w", key, err)
	}
	return event, nil
}

const blockColumns = `id, realm, idx, type, text_content, video_id, series_id`

func scanBlock(row rowScanner) (storage.Block, error) {
	var (
		block         storage.Block
		key, realm    int64
		blockType     string
		video, series sql.NullInt64
	)
	if err := row.Scan(&key, &realm, &block.Index, &blockType, &block.Text, &video, &series); err != nil {
		return storage.Block{}, err
	}
	block.ID = id.Key(key)
	block.RealmID = id.Key(realm)
	block.Type = storage.BlockType(blockType)
	block.VideoID = keyPtr(video)
	block.SeriesID = keyPtr(series)
	return block, nil
}

func getBlock(ctx context.Context, q queryer, key id.Key) (storage.Block, error) {
	block, err := scanBlock(q.QueryRowContext(ctx, `SELECT `+blockColumns+` FROM blocks WHERE id = ?`, int64(key)))
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Block{}, domain.NotFound("block", key)
	}
	if err != nil {
		return storage.Block{}, fmt.Errorf("get block %s: %w", key, err)
	}
	return block, nil
}

// CreateSeries inserts a series. Series are not indexed on their own.
func (s *Store) CreateSeries(ctx context.Context, title string) (storage.Series, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Series{}, err
	}
	title = strings.TrimSpace(title)
	if err := domain.CheckTitle(title); err != nil {
		return storage.Series{}, err
	}
	var created storage.Series
	err := s.inTx(ctx, "create series", func(t *tx) error {
		key, err := s.keys.Next(ctx, t, id.KindSeries)
		if err != nil {
			return err
		}
		if _, err := t.ExecContext(ctx, `INSERT INTO series (id, title) VALUES (?, ?)`, int64(key), title); err != nil {
			return fmt.Errorf("insert series: %w", err)
		}
		created = storage.Series{ID: key, Title: title}
		return nil
	})
	if err != nil {
		return storage.Series{}, err
	}
	return created, nil
}

// SetSeriesTitle retitles a series, queueing its events and the realms
// showing it.
func (s *Store) SetSeriesTitle(ctx context.Context, seriesID id.Key, title string) (storage.Series, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Series{}, err
	}
	title = strings.TrimSpace(title)
	if err := domain.CheckTitle(title); err != nil {
		return storage.Series{}, err
	}
	var updated storage.Series
	err := s.inTx(ctx, "set series title", func(t *tx) error {
		series, err := getSeries(ctx, t, seriesID)
		if err != nil {
			return err
		}
		if series.Title == title {
			updated = series
			return nil
		}
		if _, err := t.ExecContext(ctx, `UPDATE series SET title = ? WHERE id = ?`, title, int64(seriesID)); err != nil {
			return fmt.Errorf("update series title: %w", err)
		}
		if err := t.titleChanged(ctx, seriesID); err != nil {
			return err
		}
		if err := t.nameTitleChanged(ctx, seriesID); err != nil {
			return err
		}
		if err := t.enqueueSelect(ctx, domain.ItemKindEvent, `SELECT id AS item_id FROM events WHERE series = ?`, int64(seriesID)); err != nil {
			return err
		}
		updated = storage.Series{ID: seriesID, Title: title}
		return nil
	})
	if err != nil {
		return storage.Series{}, err
	}
	return updated, nil
}

// DeleteSeries removes a series. Its events stay and lose the membership;
// series blocks keep their place with no target.
func (s *Store) DeleteSeries(ctx context.Context, seriesID id.Key) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.inTx(ctx, "delete series", func(t *tx) error {
		if _, err := getSeries(ctx, t, seriesID); err != nil {
			return err
		}
		if err := t.titleChanged(ctx, seriesID); err != nil {
			return err
		}
		if err := t.nameTitleChanged(ctx, seriesID); err != nil {
			return err
		}
		if err := t.enqueueSelect(ctx, domain.ItemKindEvent, `SELECT id AS item_id FROM events WHERE series = ?`, int64(seriesID)); err != nil {
			return err
		}
		if _, err := t.ExecContext(ctx, `DELETE FROM series WHERE id = ?`, int64(seriesID)); err != nil {
			return fmt.Errorf("delete series: %w", err)
		}
		return nil
	})
}

// GetSeries returns one series.
func (s *Store) GetSeries(ctx context.Context, seriesID id.Key) (storage.Series, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Series{}, err
	}
	return getSeries(ctx, s.sqlDB, seriesID)
}

// CreateEvent inserts an event, optionally in a series, and queues it.
func (s *Store) CreateEvent(ctx context.Context, seriesID *id.Key, title string) (storage.Event, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Event{}, err
	}
	title = strings.TrimSpace(title)
	if err := domain.CheckTitle(title); err != nil {
		return storage.Event{}, err
	}
	var created storage.Event
	err := s.inTx(ctx, "create event", func(t *tx) error {
		if seriesID != nil {
			if _, err := getSeries(ctx, t, *seriesID); err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return domain.ErrInvalidContentRef
				}
				return err
			}
		}
		key, err := s.keys.Next(ctx, t, id.KindEvent)
		if err != nil {
			return err
		}
		if _, err := t.ExecContext(ctx,
			`INSERT INTO events (id, series, title) VALUES (?, ?, ?)`,
			int64(key), nullKey(seriesID), title,
		); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		if err := t.enqueueKeys(ctx, domain.ItemKindEvent, key); err != nil {
			return err
		}
		created = storage.Event{ID: key, SeriesID: seriesID, Title: title}
		return nil
	})
	if err != nil {
		return storage.Event{}, err
	}
	return created, nil
}

// SetEventTitle retitles an event, queueing it and the realms showing it.
func (s *Store) SetEventTitle(ctx context.Context, eventID id.Key, title string) (storage.Event, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Event{}, err
	}
	title = strings.TrimSpace(title)
	if err := domain.CheckTitle(title); err != nil {
		return storage.Event{}, err
	}
	var updated storage.Event
	err := s.inTx(ctx, "set event title", func(t *tx) error {
		event, err := getEvent(ctx, t, eventID)
		if err != nil {
			return err
		}
		if event.Title == title {
			updated = event
			return nil
		}
		if _, err := t.ExecContext(ctx, `UPDATE events SET title = ? WHERE id = ?`, title, int64(eventID)); err != nil {
			return fmt.Errorf("update event title: %w", err)
		}
		if err := t.titleChanged(ctx, eventID); err != nil {
			return err
		}
		if err := t.nameTitleChanged(ctx, eventID); err != nil {
			return err
		}
		if err := t.enqueueKeys(ctx, domain.ItemKindEvent, eventID); err != nil {
			return err
		}
		event.Title = title
		updated = event
		return nil
	})
	if err != nil {
		return storage.Event{}, err
	}
	return updated, nil
}

// DeleteEvent removes an event and queues its tombstone. Video blocks
// showing it keep their place with no target.
func (s *Store) DeleteEvent(ctx context.Context, eventID id.Key) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.inTx(ctx, "delete event", func(t *tx) error {
		if _, err := getEvent(ctx, t, eventID); err != nil {
			return err
		}
		if err := t.titleChanged(ctx, eventID); err != nil {
			return err
		}
		if err := t.nameTitleChanged(ctx, eventID); err != nil {
			return err
		}
		if err := t.enqueueKeys(ctx, domain.ItemKindEvent, eventID); err != nil {
			return err
		}
		if _, err := t.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, int64(eventID)); err != nil {
			return fmt.Errorf("delete event: %w", err)
		}
		return nil
	})
}

// GetEvent returns one event.
func (s *Store) GetEvent(ctx context.Context, eventID id.Key) (storage.Event, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Event{}, err
	}
	return getEvent(ctx, s.sqlDB, eventID)
}

// checkBlockRef enforces that only video blocks point at events and only
// series blocks point at series, and that the target exists.
func checkBlockRef(ctx context.Context, q queryer, blockType storage.BlockType, ref storage.BlockRef) error {
	switch blockType {
	case storage.BlockTypeVideo:
		if ref.SeriesID != nil || ref.VideoID == nil {
			return domain.ErrInvalidContentRef
		}
		if _, err := getEvent(ctx, q, *ref.VideoID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return domain.ErrInvalidContentRef
			}
			return err
		}
	case storage.BlockTypeSeries:
		if ref.VideoID != nil || ref.SeriesID == nil {
			return domain.ErrInvalidContentRef
		}
		if _, err := getSeries(ctx, q, *ref.SeriesID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return domain.ErrInvalidContentRef
			}
			return err
		}
	case storage.BlockTypeTitle, storage.BlockTypeText:
		if ref.VideoID != nil || ref.SeriesID != nil {
			return domain.ErrInvalidContentRef
		}
	default:
		return domain.ErrInvalidContentRef
	}
	return nil
}

// AddBlock appends a block to a realm and queues the events it shows.
func (s *Store) AddBlock(ctx context.Context, in storage.NewBlock) (storage.Block, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Block{}, err
	}
	var created storage.Block
	err := s.inTx(ctx, "add block", func(t *tx) error {
		if _, err := getRealm(ctx, t, in.RealmID); err != nil {
			return err
		}
		if err := checkBlockRef(ctx, t, in.Type, storage.BlockRef{VideoID: in.VideoID, SeriesID: in.SeriesID}); err != nil {
			return err
		}
		var next int
		if err := t.QueryRowContext(ctx, `SELECT COALESCE(MAX(idx) + 1, 0) FROM blocks WHERE realm = ?`, int64(in.RealmID)).Scan(&next); err != nil {
			return fmt.Errorf("next block index: %w", err)
		}
		key, err := s.keys.Next(ctx, t, id.KindBlock)
		if err != nil {
			return err
		}
		if _, err := t.ExecContext(ctx, `
INSERT INTO blocks (id, realm, idx, type, text_content, video_id, series_id)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
			int64(key), int64(in.RealmID), next, string(in.Type), in.Text, nullKey(in.VideoID), nullKey(in.SeriesID),
		); err != nil {
			return fmt.Errorf("insert block: %w", err)
		}
		if err := t.blockRefsChanged(ctx, in.VideoID, in.SeriesID); err != nil {
			return err
		}
		created, err = getBlock(ctx, t, key)
		return err
	})
	if err != nil {
		return storage.Block{}, err
	}
	return created, nil
}

// SetBlockRef points a video or series block at another target. Only the
// new target's events are queued.
func (s *Store) SetBlockRef(ctx context.Context, blockID id.Key, ref storage.BlockRef) (storage.Block, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Block{}, err
	}
	var updated storage.Block
	err := s.inTx(ctx, "set block ref", func(t *tx) error {
		block, err := getBlock(ctx, t, blockID)
		if err != nil {
			return err
		}
		if err := checkBlockRef(ctx, t, block.Type, ref); err != nil {
			return err
		}
		if sameKey(block.VideoID, ref.VideoID) && sameKey(block.SeriesID, ref.SeriesID) {
			updated = block
			return nil
		}
		if _, err := t.ExecContext(ctx,
			`UPDATE blocks SET video_id = ?, series_id = ? WHERE id = ?`,
			nullKey(ref.VideoID), nullKey(ref.SeriesID), int64(blockID),
		); err != nil {
			return fmt.Errorf("update block ref: %w", err)
		}
		if err := t.blockRefsChanged(ctx, ref.VideoID, ref.SeriesID); err != nil {
			return err
		}
		if err := t.nameSourcesChanged(ctx, blockID); err != nil {
			return err
		}
		updated, err = getBlock(ctx, t, blockID)
		return err
	})
	if err != nil {
		return storage.Block{}, err
	}
	return updated, nil
}

// RemoveBlock deletes a block, queueing the events it showed and any realm
// that took its name from it.
func (s *Store) RemoveBlock(ctx context.Context, blockID id.Key) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.inTx(ctx, "remove block", func(t *tx) error {
		block, err := getBlock(ctx, t, blockID)
		if err != nil {
			return err
		}
		if err := t.blockRefsChanged(ctx, block.VideoID, block.SeriesID); err != nil {
			return err
		}
		if err := t.nameSourcesChanged(ctx, blockID); err != nil {
			return err
		}
		if _, err := t.ExecContext(ctx, `DELETE FROM blocks WHERE id = ?`, int64(blockID)); err != nil {
			return fmt.Errorf("delete block: %w", err)
		}
		return nil
	})
}

// Blocks lists a realm's blocks in display order.
func (s *Store) Blocks(ctx context.Context, realmID id.Key) ([]storage.Block, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if _, err := getRealm(ctx, s.sqlDB, realmID); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+blockColumns+` FROM blocks WHERE realm = ? ORDER BY idx`, int64(realmID))
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()

	blocks := make([]storage.Block, 0)
	for rows.Next() {
		block, err := scanBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		blocks = append(blocks, block)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocks: %w", err)
	}
	return blocks, nil
}
