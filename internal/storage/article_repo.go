package storage

import (
	"context"
	"fmt"

	"smartkb/internal/models"
)

type ArticleRecord struct {
	ID              string
	RunID           string
	Title           string
	Tags            []string
	Status          string
	CaseCount       int
	ClusterID       string
	KB              string
	EmbeddingVector *string
}

type ArticleRepo struct {
	db *DB
}

func NewArticleRepo(db *DB) *ArticleRepo {
	return &ArticleRepo{db: db}
}

// UpsertArticle persists one article together with its embedding and search
// tsvector. A nil embedding keeps any previously stored vector.
func (r *ArticleRepo) UpsertArticle(ctx context.Context, a ArticleRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO kb_articles (article_id, run_id, title, tags, status, case_count, cluster_id, kb, embedding, search_tsv)
VALUES ($1, NULLIF($2,''), $3, $4, $5, $6, NULLIF($7,''), $8,
        CASE WHEN $9::text IS NULL THEN NULL ELSE $9::vector END,
        to_tsvector('english', $3 || ' ' || array_to_string($4, ' ') || ' ' || $8))
ON CONFLICT (article_id)
DO UPDATE SET
  run_id = COALESCE(EXCLUDED.run_id, kb_articles.run_id),
  title = EXCLUDED.title,
  tags = EXCLUDED.tags,
  status = EXCLUDED.status,
  case_count = EXCLUDED.case_count,
  cluster_id = COALESCE(EXCLUDED.cluster_id, kb_articles.cluster_id),
  kb = EXCLUDED.kb,
  embedding = COALESCE(EXCLUDED.embedding, kb_articles.embedding),
  search_tsv = EXCLUDED.search_tsv`,
		a.ID, a.RunID, a.Title, a.Tags, a.Status, a.CaseCount, a.ClusterID, a.KB, a.EmbeddingVector)
	if err != nil {
		return fmt.Errorf("upsert article %s: %w", a.ID, err)
	}
	return nil
}

func (r *ArticleRepo) GetArticle(ctx context.Context, id string) (*models.KBArticle, error) {
	var a models.KBArticle
	err := r.db.Pool.QueryRow(ctx, `
SELECT article_id, COALESCE(run_id,''), title, tags, status, case_count, COALESCE(cluster_id,''), kb, created_at
FROM kb_articles WHERE article_id=$1`, id).
		Scan(&a.ID, &a.RunID, &a.Title, &a.Tags, &a.Status, &a.CaseCount, &a.ClusterID, &a.KB, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get article: %w", err)
	}
	return &a, nil
}

func (r *ArticleRepo) ListArticles(ctx context.Context) ([]models.KBArticle, error) {
	return r.listWhere(ctx, "", nil)
}

func (r *ArticleRepo) ListArticlesByRun(ctx context.Context, runID string) ([]models.KBArticle, error) {
	return r.listWhere(ctx, "WHERE run_id=$1", []any{runID})
}

func (r *ArticleRepo) listWhere(ctx context.Context, where string, args []any) ([]models.KBArticle, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT article_id, COALESCE(run_id,''), title, tags, status, case_count, COALESCE(cluster_id,''), kb, created_at
FROM kb_articles `+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()
	out := make([]models.KBArticle, 0, 16)
	for rows.Next() {
		var a models.KBArticle
		if err := rows.Scan(&a.ID, &a.RunID, &a.Title, &a.Tags, &a.Status, &a.CaseCount, &a.ClusterID, &a.KB, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return out, nil
}
