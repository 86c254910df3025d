package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/memento/internal/ir"
	"github.com/roach88/memento/internal/query"
	"github.com/roach88/memento/internal/querysql"
	"github.com/roach88/memento/internal/region"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// LoadNodes returns every stored node ordered by timestamp ASC, id ASC.
//
// Returns an empty slice (not nil) when the graph is empty.
func (s *Store) LoadNodes(ctx context.Context) ([]ir.EventNode, error) {
	return s.QueryNodes(ctx, nil)
}

// QueryNodes returns the stored nodes m matches, evaluated in SQL.
// Matchers that cannot be compiled fail with querysql.ErrNotCompilable.
func (s *Store) QueryNodes(ctx context.Context, m query.Matcher) ([]ir.EventNode, error) {
	where, params, err := querysql.NewCompiler(querysql.SQLite, 0).Compile(m)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, op, content, timestamp, meta, parents
		FROM nodes
		WHERE `+where+`
		ORDER BY timestamp ASC, id COLLATE BINARY ASC
	`, params...)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	return collectNodes(rows, "nodes")
}

// RegionEvents returns a region's event log ordered by timestamp ASC,
// hash ASC.
func (s *Store) RegionEvents(ctx context.Context, regionName string) ([]ir.EventNode, error) {
	return s.QueryEvents(ctx, regionName, nil)
}

// QueryEvents returns the rows of a region's event log that m matches,
// evaluated in SQL.
func (s *Store) QueryEvents(ctx context.Context, regionName string, m query.Matcher) ([]ir.EventNode, error) {
	where, params, err := querysql.NewCompiler(querysql.SQLite, 1).Compile(m)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT hash, op, content, timestamp, meta, parents
		FROM events
		WHERE region = ? AND (`+where+`)
		ORDER BY timestamp ASC, hash COLLATE BINARY ASC
	`, append([]any{regionName}, params...)...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	return collectNodes(rows, "events")
}

// RegionHeads returns a region's pointer or UNKNOWN_REGION.
func (s *Store) RegionHeads(ctx context.Context, name string) (region.Pointer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT region, heads, meta FROM heads WHERE region = ?
	`, name)

	p, err := scanPointer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return region.Pointer{}, ir.NewUnknownRegionError(name)
	}
	if err != nil {
		return region.Pointer{}, fmt.Errorf("read region %s: %w", name, err)
	}
	return p, nil
}

// LoadRegions returns every region pointer ordered by name.
func (s *Store) LoadRegions(ctx context.Context) ([]region.Pointer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT region, heads, meta FROM heads
		ORDER BY region COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query regions: %w", err)
	}
	defer rows.Close()

	ptrs := []region.Pointer{}
	for rows.Next() {
		p, err := scanPointer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan region: %w", err)
		}
		ptrs = append(ptrs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate regions: %w", err)
	}
	return ptrs, nil
}

func collectNodes(rows *sql.Rows, table string) ([]ir.EventNode, error) {
	nodes := []ir.EventNode{}
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return nodes, nil
}

// scanNode scans (id, op, content, timestamp, meta, parents).
func scanNode(row rowScanner) (ir.EventNode, error) {
	var n ir.EventNode
	var op, metaJSON, parentsJSON string

	if err := row.Scan(&n.ID, &op, &n.Content, &n.Timestamp, &metaJSON, &parentsJSON); err != nil {
		return ir.EventNode{}, err
	}
	n.Op = ir.Op(op)

	meta, err := unmarshalMeta(metaJSON)
	if err != nil {
		return ir.EventNode{}, err
	}
	n.Meta = meta

	parents, err := unmarshalIDs(parentsJSON)
	if err != nil {
		return ir.EventNode{}, err
	}
	n.Parents = parents

	return n, nil
}

// scanPointer scans (region, heads, meta).
func scanPointer(row rowScanner) (region.Pointer, error) {
	var p region.Pointer
	var headsJSON, metaJSON string

	if err := row.Scan(&p.Name, &headsJSON, &metaJSON); err != nil {
		return region.Pointer{}, err
	}

	heads, err := unmarshalIDs(headsJSON)
	if err != nil {
		return region.Pointer{}, err
	}
	p.Heads = heads

	meta, err := unmarshalMeta(metaJSON)
	if err != nil {
		return region.Pointer{}, err
	}
	p.Meta = meta

	return p, nil
}
