package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"smartkb/internal/config"
	"smartkb/internal/models"
	"smartkb/internal/providers"
	"smartkb/internal/storage"
	"smartkb/internal/vector"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// The indexer bulk-loads pre-generated articles into the search index,
// embedding each body on the way in. Useful for seeding a fresh database or
// re-indexing after a schema change.
func main() {
	_ = godotenv.Load(".env")
	seedPath := flag.String("seed", "", "path to a JSON file holding an array of articles")
	flag.Parse()
	if *seedPath == "" {
		log.Fatal("usage: indexer -seed articles.json")
	}

	cfg := config.Load()
	data, err := os.ReadFile(*seedPath)
	if err != nil {
		log.Fatal(err)
	}
	var articles []models.KBArticle
	if err := json.Unmarshal(data, &articles); err != nil {
		log.Fatalf("decode seed file: %v", err)
	}
	if len(articles) == 0 {
		log.Fatal("seed file holds no articles")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	if err := storage.EnsureSchema(ctx, db, cfg.EmbedDim); err != nil {
		log.Fatal(err)
	}
	repo := storage.NewArticleRepo(db)

	pm, err := providers.NewManager(cfg)
	if err != nil {
		log.Fatal(err)
	}

	indexed := 0
	for _, a := range articles {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if a.Status == "" {
			a.Status = "draft"
		}
		vectors, info, err := pm.FirstEmbedProvider().Embed(ctx, providers.EmbedRequest{
			Operation: "index_article",
			Inputs:    []string{a.Title + "\n\n" + a.KB},
			Dimension: cfg.EmbedDim,
		})
		if err != nil {
			log.Fatalf("embed article %s: %v", a.ID, err)
		}
		lit := vector.ToLiteral(vectors[0])
		if err := repo.UpsertArticle(ctx, storage.ArticleRecord{
			ID:              a.ID,
			RunID:           a.RunID,
			Title:           a.Title,
			Tags:            a.Tags,
			Status:          a.Status,
			CaseCount:       a.CaseCount,
			ClusterID:       a.ClusterID,
			KB:              a.KB,
			EmbeddingVector: &lit,
		}); err != nil {
			log.Fatalf("upsert article %s: %v", a.ID, err)
		}
		indexed++
		log.Printf("indexed %s (%s) via provider=%s", a.ID, a.Title, info.Name)
	}
	log.Printf("done: %d article(s) indexed", indexed)
}
