package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/memento/internal/ir"
	"github.com/roach88/memento/internal/query"
	"github.com/roach88/memento/internal/querysql"
	"github.com/roach88/memento/internal/region"
)

// PgStore is a PostgreSQL-backed memento store with the same tables as the
// SQLite store: nodes, events and heads.
type PgStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// New creates a PgStore over an existing pool.
func New(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool, now: time.Now}
}

// Open connects to dsn and ensures the tables exist.
func Open(ctx context.Context, dsn string) (*PgStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	s := New(pool)
	if err := s.EnsureTables(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the pool.
func (s *PgStore) Close() error {
	s.pool.Close()
	return nil
}

// EnsureTables creates the tables and indexes if they don't exist.
func (s *PgStore) EnsureTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS nodes (
			id        TEXT PRIMARY KEY,
			op        TEXT NOT NULL,
			content   TEXT NOT NULL,
			timestamp BIGINT NOT NULL,
			meta      JSONB NOT NULL DEFAULT '{}',
			parents   TEXT[] NOT NULL DEFAULT '{}'
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			region    TEXT NOT NULL,
			timestamp BIGINT NOT NULL,
			hash      TEXT NOT NULL,
			op        TEXT NOT NULL,
			content   TEXT NOT NULL,
			meta      JSONB NOT NULL DEFAULT '{}',
			parents   TEXT[] NOT NULL DEFAULT '{}',
			PRIMARY KEY (region, timestamp, hash)
		)`,
		`CREATE TABLE IF NOT EXISTS heads (
			region     TEXT PRIMARY KEY,
			heads      TEXT[] NOT NULL DEFAULT '{}',
			meta       JSONB NOT NULL DEFAULT '{}',
			updated_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_timestamp_id ON nodes(timestamp, id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_hash ON events(hash)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure tables: %w", err)
		}
	}
	return nil
}

// SaveNodes inserts nodes in one batched transaction. Existing ids are
// skipped.
func (s *PgStore) SaveNodes(ctx context.Context, nodes []ir.EventNode) error {
	if len(nodes) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, n := range nodes {
		metaJSON, err := json.Marshal(metaOrEmpty(n.Meta))
		if err != nil {
			return fmt.Errorf("marshal meta %s: %w", ir.ShortID(n.ID), err)
		}
		batch.Queue(`
			INSERT INTO nodes (id, op, content, timestamp, meta, parents)
			VALUES ($1, $2, $3, $4, $5::jsonb, $6)
			ON CONFLICT (id) DO NOTHING`,
			n.ID, string(n.Op), n.Content, n.Timestamp, string(metaJSON), ir.NormalizeParents(n.Parents))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("save nodes: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save nodes: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("save nodes: commit: %w", err)
	}
	return nil
}

// DeleteNodes removes nodes and their event log rows.
func (s *PgStore) DeleteNodes(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("delete nodes: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM nodes WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("delete nodes: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM events WHERE hash = ANY($1)`, ids); err != nil {
		return fmt.Errorf("delete nodes: events: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("delete nodes: commit: %w", err)
	}
	return nil
}

// LoadNodes returns every node ordered by timestamp, id.
func (s *PgStore) LoadNodes(ctx context.Context) ([]ir.EventNode, error) {
	return s.QueryNodes(ctx, nil)
}

// QueryNodes returns the nodes m matches, evaluated in SQL.
func (s *PgStore) QueryNodes(ctx context.Context, m query.Matcher) ([]ir.EventNode, error) {
	where, params, err := querysql.NewCompiler(querysql.Postgres, 0).Compile(m)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	return s.scanNodes(ctx, `
		SELECT id, op, content, timestamp, meta, parents
		FROM nodes WHERE `+where+`
		ORDER BY timestamp ASC, id COLLATE "C" ASC`, params...)
}

// RecordEvent appends node to a region's event log.
func (s *PgStore) RecordEvent(ctx context.Context, regionName string, n ir.EventNode) error {
	metaJSON, err := json.Marshal(metaOrEmpty(n.Meta))
	if err != nil {
		return fmt.Errorf("record event: marshal meta: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO events (region, timestamp, hash, op, content, meta, parents)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)
		ON CONFLICT (region, timestamp, hash) DO NOTHING`,
		regionName, n.Timestamp, n.ID, string(n.Op), n.Content, string(metaJSON), ir.NormalizeParents(n.Parents))
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// RegionEvents returns a region's event log ordered by timestamp, hash.
func (s *PgStore) RegionEvents(ctx context.Context, regionName string) ([]ir.EventNode, error) {
	return s.QueryEvents(ctx, regionName, nil)
}

// QueryEvents returns the log rows of a region that m matches.
func (s *PgStore) QueryEvents(ctx context.Context, regionName string, m query.Matcher) ([]ir.EventNode, error) {
	where, params, err := querysql.NewCompiler(querysql.Postgres, 1).Compile(m)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return s.scanNodes(ctx, `
		SELECT hash, op, content, timestamp, meta, parents
		FROM events WHERE region = $1 AND (`+where+`)
		ORDER BY timestamp ASC, hash COLLATE "C" ASC`,
		append([]any{regionName}, params...)...)
}

// SaveRegion upserts a region pointer.
func (s *PgStore) SaveRegion(ctx context.Context, p region.Pointer) error {
	metaJSON, err := json.Marshal(metaOrEmpty(p.Meta))
	if err != nil {
		return fmt.Errorf("save region %s: marshal meta: %w", p.Name, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO heads (region, heads, meta, updated_at)
		VALUES ($1, $2, $3::jsonb, $4)
		ON CONFLICT (region) DO UPDATE SET
			heads = EXCLUDED.heads,
			meta = EXCLUDED.meta,
			updated_at = EXCLUDED.updated_at`,
		p.Name, ir.NormalizeParents(p.Heads), string(metaJSON), s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("save region %s: %w", p.Name, err)
	}
	return nil
}

// DeleteRegion removes a region pointer and its event log, or returns
// UNKNOWN_REGION.
func (s *PgStore) DeleteRegion(ctx context.Context, name string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("delete region: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM heads WHERE region = $1`, name)
	if err != nil {
		return fmt.Errorf("delete region: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ir.NewUnknownRegionError(name)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM events WHERE region = $1`, name); err != nil {
		return fmt.Errorf("delete region: events: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("delete region: commit: %w", err)
	}
	return nil
}

// RegionHeads returns one region pointer or UNKNOWN_REGION.
func (s *PgStore) RegionHeads(ctx context.Context, name string) (region.Pointer, error) {
	row := s.pool.QueryRow(ctx, `SELECT region, heads, meta FROM heads WHERE region = $1`, name)
	p, err := scanPointer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return region.Pointer{}, ir.NewUnknownRegionError(name)
	}
	if err != nil {
		return region.Pointer{}, fmt.Errorf("read region %s: %w", name, err)
	}
	return p, nil
}

// LoadRegions returns every region pointer ordered by name.
func (s *PgStore) LoadRegions(ctx context.Context) ([]region.Pointer, error) {
	rows, err := s.pool.Query(ctx, `SELECT region, heads, meta FROM heads ORDER BY region COLLATE "C" ASC`)
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
	return ptrs, rows.Err()
}

func (s *PgStore) scanNodes(ctx context.Context, sql string, args ...any) ([]ir.EventNode, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	nodes := []ir.EventNode{}
	for rows.Next() {
		var n ir.EventNode
		var op string
		var metaJSON []byte
		if err := rows.Scan(&n.ID, &op, &n.Content, &n.Timestamp, &metaJSON, &n.Parents); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		n.Op = ir.Op(op)
		if err := json.Unmarshal(metaJSON, &n.Meta); err != nil {
			return nil, fmt.Errorf("node %s: unmarshal meta: %w", ir.ShortID(n.ID), err)
		}
		n.Meta = metaOrEmpty(n.Meta)
		if n.Parents == nil {
			n.Parents = []string{}
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return nodes, nil
}

func scanPointer(row pgx.Row) (region.Pointer, error) {
	var p region.Pointer
	var metaJSON []byte
	if err := row.Scan(&p.Name, &p.Heads, &metaJSON); err != nil {
		return region.Pointer{}, err
	}
	if err := json.Unmarshal(metaJSON, &p.Meta); err != nil {
		return region.Pointer{}, fmt.Errorf("unmarshal meta: %w", err)
	}
	p.Meta = metaOrEmpty(p.Meta)
	if p.Heads == nil {
		p.Heads = []string{}
	}
	return p, nil
}

func metaOrEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
