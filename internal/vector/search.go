package vector

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"smartkb/internal/models"
	"smartkb/internal/util"
)

const (
	vectorWeight  = 0.7
	keywordWeight = 0.3
)

type Searcher struct {
	q Queryer
}

type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func NewSearcher(q Queryer) *Searcher {
	return &Searcher{q: q}
}

// SearchArticles ranks knowledge base articles by a blend of cosine
// similarity and full-text rank. An empty query text degrades to a pure
// vector search over all articles, which matches the wildcard behavior of
// the query-less entry point.
func (s *Searcher) SearchArticles(ctx context.Context, queryVec []float32, queryText string, topK int) ([]models.SearchResult, error) {
	if topK <= 0 {
		topK = 3
	}
	vecLiteral := ToLiteral(queryVec)
	queryText = strings.TrimSpace(queryText)

	var query string
	args := []any{vecLiteral, topK}
	if queryText == "" || queryText == "*" {
		query = `
SELECT article_id, title, tags, status, kb,
       1 - (embedding <=> $1::vector) AS score
FROM kb_articles
WHERE embedding IS NOT NULL
ORDER BY embedding <=> $1::vector
LIMIT $2`
	} else {
		query = fmt.Sprintf(`
SELECT article_id, title, tags, status, kb,
       %f * (1 - (embedding <=> $1::vector)) +
       %f * ts_rank(search_tsv, websearch_to_tsquery('english', $3)) AS score
FROM kb_articles
WHERE embedding IS NOT NULL
ORDER BY score DESC
LIMIT $2`, vectorWeight, keywordWeight)
		args = append(args, queryText)
	}

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query article search: %w", err)
	}
	defer rows.Close()

	results := make([]models.SearchResult, 0, topK)
	for rows.Next() {
		var r models.SearchResult
		if err := rows.Scan(&r.ID, &r.Title, &r.Tags, &r.Status, &r.KB, &r.Score); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		r.Snippet = util.MarkdownSnippet(r.KB)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return results, nil
}

func ToLiteral(v []float32) string {
	parts := make([]string, 0, len(v))
	for _, x := range v {
		parts = append(parts, fmt.Sprintf("%f", x))
	}
	return "[" + strings.Join(parts, ",") + "]"
}
