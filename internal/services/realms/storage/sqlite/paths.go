package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/louisbranch/realmtree/internal/platform/id"
	"github.com/louisbranch/realmtree/internal/services/realms/domain"
)

// withPathWriter holds the path guard row while fn runs. The guard triggers
// reject every write to parent, path_segment or full_path made without it.
func withPathWriter(ctx context.Context, t *tx, fn func() error) error {
	if _, err := t.ExecContext(ctx, `INSERT INTO path_propagation_guard (id) VALUES (1)`); err != nil {
		return fmt.Errorf("claim path guard: %w", err)
	}
	if err := fn(); err != nil {
		return err
	}
	if _, err := t.ExecContext(ctx, `DELETE FROM path_propagation_guard`); err != nil {
		return fmt.Errorf("release path guard: %w", err)
	}
	return nil
}

type pathNode struct {
	key  id.Key
	path string
}

type childSegment struct {
	key     id.Key
	segment string
}

// propagatePaths applies a structural change to start (a new parent or
// segment) and recomputes full_path for start and its whole subtree from the
// parent's current path, walking breadth first so every node is written after
// its parent. Both happen under one guard claim. It returns the realms whose
// path changed.
func propagatePaths(ctx context.Context, t *tx, start id.Key, apply func() error) ([]id.Key, error) {
	var changed []id.Key
	visited := make(map[id.Key]struct{})
	err := withPathWriter(ctx, t, func() error {
		if apply != nil {
			if err := apply(); err != nil {
				return err
			}
		}
		var parentPath, segment string
		err := t.QueryRowContext(ctx, `
SELECT p.full_path, r.path_segment
FROM realms r
JOIN realms p ON p.id = r.parent
WHERE r.id = ?`, int64(start)).Scan(&parentPath, &segment)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound("realm", start)
		}
		if err != nil {
			return fmt.Errorf("load propagation start: %w", err)
		}

		queue := []pathNode{{key: start, path: domain.JoinPath(parentPath, segment)}}
		for len(queue) > 0 {
			node := queue[0]
			queue = queue[1:]
			if _, seen := visited[node.key]; seen {
				return fmt.Errorf("path propagation reached realm %s twice", node.key)
			}
			visited[node.key] = struct{}{}

			res, err := t.ExecContext(ctx,
				`UPDATE realms SET full_path = ? WHERE id = ? AND full_path <> ?`,
				node.path, int64(node.key), node.path,
			)
			if err != nil {
				return fmt.Errorf("write full path of %s: %w", node.key, err)
			}
			if n, err := res.RowsAffected(); err == nil && n > 0 {
				changed = append(changed, node.key)
			}

			children, err := childSegments(ctx, t, node.key)
			if err != nil {
				return err
			}
			for _, child := range children {
				queue = append(queue, pathNode{key: child.key, path: domain.JoinPath(node.path, child.segment)})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	t.propagated = append(t.propagated, len(visited))
	return changed, nil
}

func childSegments(ctx context.Context, q queryer, parent id.Key) ([]childSegment, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, path_segment FROM realms WHERE parent = ?`, int64(parent))
	if err != nil {
		return nil, fmt.Errorf("list children of %s: %w", parent, err)
	}
	defer rows.Close()

	var out []childSegment
	for rows.Next() {
		var key int64
		var segment string
		if err := rows.Scan(&key, &segment); err != nil {
			return nil, fmt.Errorf("scan child of %s: %w", parent, err)
		}
		out = append(out, childSegment{key: id.Key(key), segment: segment})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate children of %s: %w", parent, err)
	}
	return out, nil
}
