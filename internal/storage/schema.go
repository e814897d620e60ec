package storage

import (
	"context"
	"fmt"
)

// EnsureSchema creates the tables and indexes the service relies on when
// they are missing, so a fresh database works without a separate migration
// step. Every statement is idempotent and safe to run at each startup.
func EnsureSchema(ctx context.Context, db *DB, embedDim int) error {
	if embedDim <= 0 {
		embedDim = 1536
	}
	if _, err := db.Pool.Exec(ctx, schemaDDL(embedDim)); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func schemaDDL(embedDim int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS kb_articles (
  article_id TEXT PRIMARY KEY,
  run_id TEXT,
  title TEXT NOT NULL,
  tags TEXT[] NOT NULL DEFAULT '{}',
  status TEXT NOT NULL DEFAULT 'draft',
  case_count INT NOT NULL DEFAULT 0,
  cluster_id TEXT,
  kb TEXT NOT NULL,
  embedding vector(%d),
  search_tsv tsvector,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_kb_articles_run ON kb_articles(run_id);
CREATE INDEX IF NOT EXISTS idx_kb_articles_tsv ON kb_articles USING GIN (search_tsv);

CREATE TABLE IF NOT EXISTS generation_runs (
  run_id TEXT PRIMARY KEY,
  status TEXT NOT NULL CHECK (status IN ('pending','running','completed','failed')),
  case_count INT NOT NULL DEFAULT 0,
  threshold INT NOT NULL DEFAULT 5,
  categories INT NOT NULL DEFAULT 0,
  articles INT NOT NULL DEFAULT 0,
  skipped INT NOT NULL DEFAULT 0,
  fail_reason TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS llm_calls (
  call_id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  operation TEXT NOT NULL,
  run_id TEXT,
  provider_name TEXT NOT NULL,
  model TEXT,
  request_id TEXT,
  status TEXT NOT NULL,
  error_type TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_llm_calls_run ON llm_calls(run_id, created_at DESC);
`, embedDim)
}
