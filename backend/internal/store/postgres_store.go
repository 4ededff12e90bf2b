package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgCreateTable = `CREATE TABLE IF NOT EXISTS copy_blocks (
	block_key  TEXT PRIMARY KEY,
	content    TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	pgSelectAll = `SELECT block_key, content FROM copy_blocks`
	pgUpsert    = `INSERT INTO copy_blocks (block_key, content, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (block_key) DO UPDATE SET content = EXCLUDED.content, updated_at = EXCLUDED.updated_at`
)

type PostgresStore struct {
	mu   sync.Mutex
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, pgCreateTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create copy_blocks: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// pgxpool.Pool 与 pgx.Tx 都满足
type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *PostgresStore) Read(ctx context.Context) (Document, error) {
	return readPostgres(ctx, s.pool)
}

func readPostgres(ctx context.Context, q pgQuerier) (Document, error) {
	rows, err := q.Query(ctx, pgSelectAll)
	if err != nil {
		return Document{}, fmt.Errorf("load copy_blocks: %w", err)
	}
	defer rows.Close()

	doc := NewDocument()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Document{}, fmt.Errorf("scan copy_blocks: %w", err)
		}
		doc.Blocks[k] = v
	}
	if err := rows.Err(); err != nil {
		return Document{}, fmt.Errorf("load copy_blocks: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) Merge(ctx context.Context, blocks map[string]string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("begin: %w", err)
	}
	// Commit 之后 Rollback 是 no-op
	defer tx.Rollback(ctx)

	if len(blocks) > 0 {
		keys := make([]string, 0, len(blocks))
		for k := range blocks {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		batch := &pgx.Batch{}
		for _, k := range keys {
			batch.Queue(pgUpsert, k, blocks[k])
		}
		br := tx.SendBatch(ctx, batch)
		for range keys {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return Document{}, fmt.Errorf("upsert copy_blocks: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return Document{}, fmt.Errorf("upsert copy_blocks: %w", err)
		}
	}

	doc, err := readPostgres(ctx, tx)
	if err != nil {
		return Document{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Document{}, fmt.Errorf("commit: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
