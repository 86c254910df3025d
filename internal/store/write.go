package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/memento/internal/ir"
	"github.com/roach88/memento/internal/region"
)

// SaveNodes inserts nodes into the graph table in one transaction.
// Uses ON CONFLICT(id) DO NOTHING for idempotency: ids are content hashes,
// so an existing row already holds the same payload.
func (s *Store) SaveNodes(ctx context.Context, nodes []ir.EventNode) error {
	if len(nodes) == 0 {
		return nil
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO nodes (id, op, content, timestamp, meta, parents)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer stmt.Close()

		for _, n := range nodes {
			cols, err := marshalNode(n)
			if err != nil {
				return fmt.Errorf("node %s: %w", ir.ShortID(n.ID), err)
			}
			if _, err := stmt.ExecContext(ctx, n.ID, string(n.Op), n.Content, n.Timestamp, cols.meta, cols.parents); err != nil {
				return fmt.Errorf("insert node %s: %w", ir.ShortID(n.ID), err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save nodes: %w", err)
	}
	return nil
}

// DeleteNodes removes nodes, and every region's log rows for them, in one
// transaction. Unknown ids are ignored.
func (s *Store) DeleteNodes(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id); err != nil {
				return fmt.Errorf("delete node %s: %w", ir.ShortID(id), err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE hash = ?`, id); err != nil {
				return fmt.Errorf("delete events %s: %w", ir.ShortID(id), err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete nodes: %w", err)
	}
	return nil
}

// RecordEvent appends node to the region's event log.
// Duplicate (region, timestamp, hash) rows are silently ignored.
func (s *Store) RecordEvent(ctx context.Context, regionName string, n ir.EventNode) error {
	cols, err := marshalNode(n)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (region, timestamp, hash, op, content, meta, parents)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(region, timestamp, hash) DO NOTHING
	`,
		regionName,
		n.Timestamp,
		n.ID,
		string(n.Op),
		n.Content,
		cols.meta,
		cols.parents,
	)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// SaveRegion upserts a region's heads and meta.
func (s *Store) SaveRegion(ctx context.Context, p region.Pointer) error {
	heads, err := marshalIDs(p.Heads)
	if err != nil {
		return fmt.Errorf("save region %s: %w", p.Name, err)
	}
	meta, err := marshalMeta(p.Meta)
	if err != nil {
		return fmt.Errorf("save region %s: %w", p.Name, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO heads (region, heads, meta, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(region) DO UPDATE SET
			heads = excluded.heads,
			meta = excluded.meta,
			updated_at = excluded.updated_at
	`,
		p.Name,
		heads,
		meta,
		s.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save region %s: %w", p.Name, err)
	}
	return nil
}

// DeleteRegion removes a region's pointer and its event log. The region's
// nodes stay until they are garbage collected. Returns UNKNOWN_REGION when
// no pointer exists.
func (s *Store) DeleteRegion(ctx context.Context, name string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM heads WHERE region = ?`, name)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ir.NewUnknownRegionError(name)
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM events WHERE region = ?`, name)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete region: %w", err)
	}
	return nil
}
