package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/louisbranch/realmtree/internal/platform/id"
	"github.com/louisbranch/realmtree/internal/services/realms/domain"
	"github.com/louisbranch/realmtree/internal/services/realms/storage"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

const realmSelect = `
SELECT r.id, r.parent, r.path_segment, r.name, r.name_from_block,
       COALESCE(r.name, (
           SELECT COALESCE(e.title, s.title)
           FROM blocks b
           LEFT JOIN events e ON e.id = b.video_id
           LEFT JOIN series s ON s.id = b.series_id
           WHERE b.id = r.name_from_block
       ), ''),
       r.idx, r.child_order, r.full_path
FROM realms r`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRealm(row rowScanner) (storage.Realm, error) {
	var (
		realm     storage.Realm
		key       int64
		parent    sql.NullInt64
		name      sql.NullString
		nameBlock sql.NullInt64
		order     string
	)
	if err := row.Scan(&key, &parent, &realm.PathSegment, &name, &nameBlock, &realm.ResolvedName, &realm.Index, &order, &realm.FullPath); err != nil {
		return storage.Realm{}, err
	}
	realm.ID = id.Key(key)
	realm.ParentID = keyPtr(parent)
	realm.Name = stringPtr(name)
	realm.NameFromBlock = keyPtr(nameBlock)
	realm.ChildOrder = domain.ChildOrder(order)
	return realm, nil
}

func getRealm(ctx context.Context, q queryer, key id.Key) (storage.Realm, error) {
	realm, err := scanRealm(q.QueryRowContext(ctx, realmSelect+` WHERE r.id = ?`, int64(key)))
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Realm{}, domain.NotFound("realm", key)
	}
	if err != nil {
		return storage.Realm{}, fmt.Errorf("get realm %s: %w", key, err)
	}
	return realm, nil
}

func queryRealms(ctx context.Context, q queryer, where string, args ...any) ([]storage.Realm, error) {
	rows, err := q.QueryContext(ctx, realmSelect+` `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query realms: %w", err)
	}
	defer rows.Close()

	realms := make([]storage.Realm, 0)
	for rows.Next() {
		realm, err := scanRealm(rows)
		if err != nil {
			return nil, fmt.Errorf("scan realm: %w", err)
		}
		realms = append(realms, realm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate realms: %w", err)
	}
	return realms, nil
}

// ensurePathFree rejects a derived path some other realm already has.
func ensurePathFree(ctx context.Context, q queryer, fullPath string) error {
	var found int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM realms WHERE full_path = ?`, fullPath).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check path %s: %w", fullPath, err)
	}
	return domain.PathTaken(fullPath)
}

// loadParent resolves a prospective parent, reporting absence as
// ErrNoSuchParent rather than not found.
func loadParent(ctx context.Context, q queryer, key id.Key) (storage.Realm, error) {
	parent, err := getRealm(ctx, q, key)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Realm{}, domain.ErrNoSuchParent
	}
	return parent, err
}

// CreateRealm inserts a realm below in.ParentID and queues it for indexing.
func (s *Store) CreateRealm(ctx context.Context, in storage.NewRealm) (storage.Realm, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Realm{}, err
	}
	if err := domain.CheckSegment(in.PathSegment); err != nil {
		return storage.Realm{}, err
	}
	if err := domain.CheckName(in.Name); err != nil {
		return storage.Realm{}, err
	}
	order, err := domain.ParseChildOrder(string(in.ChildOrder))
	if err != nil {
		return storage.Realm{}, domain.InvalidOrder(err.Error())
	}
	index := domain.DefaultChildIndex
	if in.Index != nil {
		index = *in.Index
	}

	var created storage.Realm
	err = s.inTx(ctx, "create realm", func(t *tx) error {
		parent, err := loadParent(ctx, t, in.ParentID)
		if err != nil {
			return err
		}
		fullPath := domain.JoinPath(parent.FullPath, in.PathSegment)
		if err := ensurePathFree(ctx, t, fullPath); err != nil {
			return err
		}
		key, err := s.keys.Next(ctx, t, id.KindRealm)
		if err != nil {
			return err
		}
		if err := withPathWriter(ctx, t, func() error {
			_, err := t.ExecContext(ctx, `
INSERT INTO realms (id, parent, path_segment, full_path, name, idx, child_order)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
				int64(key), int64(parent.ID), in.PathSegment, fullPath, nullString(in.Name), index, string(order),
			)
			return err
		}); err != nil {
			return fmt.Errorf("insert realm: %w", err)
		}
		if err := t.realmsChanged(ctx, key); err != nil {
			return err
		}
		created, err = getRealm(ctx, t, key)
		return err
	})
	if err != nil {
		return storage.Realm{}, err
	}
	return created, nil
}

// MoveRealm re-parents a realm and rewrites the paths of its subtree.
func (s *Store) MoveRealm(ctx context.Context, realmID id.Key, newParentID id.Key) (storage.Realm, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Realm{}, err
	}
	if realmID == id.RootKey {
		return storage.Realm{}, domain.ErrRootImmutable
	}

	var moved storage.Realm
	err := s.inTx(ctx, "move realm", func(t *tx) error {
		realm, err := getRealm(ctx, t, realmID)
		if err != nil {
			return err
		}
		parent, err := loadParent(ctx, t, newParentID)
		if err != nil {
			return err
		}
		if parent.ID == realm.ID || domain.IsStrictDescendant(realm.FullPath, parent.FullPath) {
			return domain.ErrCyclicMove
		}
		if realm.ParentID != nil && *realm.ParentID == parent.ID {
			moved = realm
			return nil
		}
		if err := ensurePathFree(ctx, t, domain.JoinPath(parent.FullPath, realm.PathSegment)); err != nil {
			return err
		}
		changed, err := propagatePaths(ctx, t, realm.ID, func() error {
			if _, err := t.ExecContext(ctx, `UPDATE realms SET parent = ? WHERE id = ?`, int64(parent.ID), int64(realm.ID)); err != nil {
				return fmt.Errorf("update parent: %w", err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		if err := t.realmsChanged(ctx, append([]id.Key{realm.ID}, changed...)...); err != nil {
			return err
		}
		moved, err = getRealm(ctx, t, realm.ID)
		return err
	})
	if err != nil {
		return storage.Realm{}, err
	}
	return moved, nil
}

// RenameRealm replaces a realm's path segment and rewrites its subtree.
func (s *Store) RenameRealm(ctx context.Context, realmID id.Key, segment string) (storage.Realm, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Realm{}, err
	}
	if realmID == id.RootKey {
		return storage.Realm{}, domain.ErrRootImmutable
	}
	if err := domain.CheckSegment(segment); err != nil {
		return storage.Realm{}, err
	}

	var renamed storage.Realm
	err := s.inTx(ctx, "rename realm", func(t *tx) error {
		realm, err := getRealm(ctx, t, realmID)
		if err != nil {
			return err
		}
		if realm.PathSegment == segment {
			renamed = realm
			return nil
		}
		parent, err := getRealm(ctx, t, *realm.ParentID)
		if err != nil {
			return err
		}
		if err := ensurePathFree(ctx, t, domain.JoinPath(parent.FullPath, segment)); err != nil {
			return err
		}
		changed, err := propagatePaths(ctx, t, realm.ID, func() error {
			if _, err := t.ExecContext(ctx, `UPDATE realms SET path_segment = ? WHERE id = ?`, segment, int64(realm.ID)); err != nil {
				return fmt.Errorf("update segment: %w", err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		if err := t.realmsChanged(ctx, append([]id.Key{realm.ID}, changed...)...); err != nil {
			return err
		}
		renamed, err = getRealm(ctx, t, realm.ID)
		return err
	})
	if err != nil {
		return storage.Realm{}, err
	}
	return renamed, nil
}

// SetRealmName sets, replaces or clears a realm's display name.
func (s *Store) SetRealmName(ctx context.Context, realmID id.Key, name storage.RealmName) (storage.Realm, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Realm{}, err
	}
	if name.Name != nil && name.FromBlock != nil {
		return storage.Realm{}, domain.ErrNameSourceConflict
	}
	if err := domain.CheckName(name.Name); err != nil {
		return storage.Realm{}, err
	}

	var updated storage.Realm
	err := s.inTx(ctx, "set realm name", func(t *tx) error {
		realm, err := getRealm(ctx, t, realmID)
		if err != nil {
			return err
		}
		if name.FromBlock != nil {
			var host int64
			var blockType string
			err := t.QueryRowContext(ctx, `SELECT realm, type FROM blocks WHERE id = ?`, int64(*name.FromBlock)).Scan(&host, &blockType)
			if errors.Is(err, sql.ErrNoRows) {
				return domain.NotFound("block", *name.FromBlock)
			}
			if err != nil {
				return fmt.Errorf("load name block: %w", err)
			}
			if id.Key(host) != realm.ID {
				return domain.ErrNameBlockOutsideRealm
			}
			switch storage.BlockType(blockType) {
			case storage.BlockTypeVideo, storage.BlockTypeSeries:
			default:
				return domain.ErrNameBlockUntitled
			}
		}
		if sameString(realm.Name, name.Name) && sameKey(realm.NameFromBlock, name.FromBlock) {
			updated = realm
			return nil
		}
		if _, err := t.ExecContext(ctx,
			`UPDATE realms SET name = ?, name_from_block = ? WHERE id = ?`,
			nullString(name.Name), nullKey(name.FromBlock), int64(realm.ID),
		); err != nil {
			return fmt.Errorf("update name: %w", err)
		}
		if err := t.realmNameChanged(ctx, realm.ID, realm.FullPath); err != nil {
			return err
		}
		updated, err = getRealm(ctx, t, realm.ID)
		return err
	})
	if err != nil {
		return storage.Realm{}, err
	}
	return updated, nil
}

// SetChildOrder changes how a realm lists its children. With by_index,
// childIDs may give the complete new sequence of the current children.
func (s *Store) SetChildOrder(ctx context.Context, parentID id.Key, order domain.ChildOrder, childIDs []id.Key) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	order, err := domain.ParseChildOrder(string(order))
	if err != nil {
		return domain.InvalidOrder(err.Error())
	}
	if len(childIDs) > 0 && !order.UsesIndex() {
		return domain.InvalidOrder("child indices only apply to " + string(domain.ChildOrderByIndex))
	}

	return s.inTx(ctx, "set child order", func(t *tx) error {
		if _, err := getRealm(ctx, t, parentID); err != nil {
			return err
		}
		if _, err := t.ExecContext(ctx, `UPDATE realms SET child_order = ? WHERE id = ?`, string(order), int64(parentID)); err != nil {
			return fmt.Errorf("update child order: %w", err)
		}
		if len(childIDs) == 0 {
			return nil
		}
		current, err := childSegments(ctx, t, parentID)
		if err != nil {
			return err
		}
		if len(current) != len(childIDs) {
			return domain.InvalidOrder(fmt.Sprintf("expected %d children, got %d", len(current), len(childIDs)))
		}
		pending := make(map[id.Key]struct{}, len(current))
		for _, child := range current {
			pending[child.key] = struct{}{}
		}
		for i, child := range childIDs {
			if _, ok := pending[child]; !ok {
				return domain.InvalidOrder(fmt.Sprintf("realm %s is not a child or is listed twice", child))
			}
			delete(pending, child)
			if _, err := t.ExecContext(ctx, `UPDATE realms SET idx = ? WHERE id = ?`, i, int64(child)); err != nil {
				return fmt.Errorf("update child index: %w", err)
			}
		}
		return nil
	})
}

// DeleteRealm removes a realm with its subtree and hosted blocks.
func (s *Store) DeleteRealm(ctx context.Context, realmID id.Key) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	if realmID == id.RootKey {
		return 0, domain.ErrRootImmutable
	}

	var removed int
	err := s.inTx(ctx, "delete realm", func(t *tx) error {
		realm, err := getRealm(ctx, t, realmID)
		if err != nil {
			return err
		}
		if err := t.subtreeRemoved(ctx, realm.ID, realm.FullPath); err != nil {
			return err
		}
		lo, hi := domain.DescendantRange(realm.FullPath)
		res, err := t.ExecContext(ctx,
			`DELETE FROM realms WHERE id = ? OR (full_path >= ? AND full_path < ?)`,
			int64(realm.ID), lo, hi,
		)
		if err != nil {
			return fmt.Errorf("delete subtree: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete subtree: %w", err)
		}
		removed = int(n)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Root returns the root realm.
func (s *Store) Root(ctx context.Context) (storage.Realm, error) {
	return s.GetRealm(ctx, id.RootKey)
}

// GetRealm returns one realm.
func (s *Store) GetRealm(ctx context.Context, realmID id.Key) (storage.Realm, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Realm{}, err
	}
	return getRealm(ctx, s.sqlDB, realmID)
}

// GetRealmByPath resolves a full path; "" and "/" name the root.
func (s *Store) GetRealmByPath(ctx context.Context, fullPath string) (storage.Realm, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Realm{}, err
	}
	fullPath = domain.NormalizePath(fullPath)
	realm, err := scanRealm(s.sqlDB.QueryRowContext(ctx, realmSelect+` WHERE r.full_path = ?`, fullPath))
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Realm{}, domain.NotFoundPath(fullPath)
	}
	if err != nil {
		return storage.Realm{}, fmt.Errorf("get realm by path: %w", err)
	}
	return realm, nil
}

// Children lists a realm's direct children in its child order.
func (s *Store) Children(ctx context.Context, parentID id.Key) ([]storage.Realm, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	parent, err := getRealm(ctx, s.sqlDB, parentID)
	if err != nil {
		return nil, err
	}
	children, err := queryRealms(ctx, s.sqlDB, `WHERE r.parent = ? ORDER BY r.idx, r.path_segment`, int64(parentID))
	if err != nil {
		return nil, err
	}
	sortChildren(children, parent.ChildOrder)
	return children, nil
}

// sortChildren orders alphabetically by display name, falling back to the
// path segment for unnamed realms. by_index order comes from the query.
func sortChildren(children []storage.Realm, order domain.ChildOrder) {
	if order.UsesIndex() {
		return
	}
	collator := collate.New(language.Und, collate.IgnoreCase)
	label := func(r storage.Realm) string {
		if r.ResolvedName != "" {
			return r.ResolvedName
		}
		return r.PathSegment
	}
	slices.SortStableFunc(children, func(a, b storage.Realm) int {
		c := collator.CompareString(label(a), label(b))
		if order == domain.ChildOrderAlphabeticDesc {
			return -c
		}
		return c
	})
}

// Subtree returns the realm and every descendant ordered by full path.
func (s *Store) Subtree(ctx context.Context, realmID id.Key) ([]storage.Realm, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	realm, err := getRealm(ctx, s.sqlDB, realmID)
	if err != nil {
		return nil, err
	}
	lo, hi := domain.DescendantRange(realm.FullPath)
	return queryRealms(ctx, s.sqlDB,
		`WHERE r.id = ? OR (r.full_path >= ? AND r.full_path < ?) ORDER BY r.full_path`,
		int64(realm.ID), lo, hi,
	)
}

// Ancestors lists a realm's ancestors, root first. The root has none.
func (s *Store) Ancestors(ctx context.Context, realmID id.Key) ([]storage.Realm, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	realm, err := getRealm(ctx, s.sqlDB, realmID)
	if err != nil {
		return nil, err
	}
	if realm.IsRoot() {
		return []storage.Realm{}, nil
	}
	paths := domain.AncestorPaths(realm.FullPath)
	args := make([]any, len(paths))
	for i, p := range paths {
		args[i] = p
	}
	return queryRealms(ctx, s.sqlDB,
		`WHERE r.full_path IN (`+placeholders(len(paths))+`) ORDER BY length(r.full_path)`,
		args...,
	)
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sameKey(a, b *id.Key) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
