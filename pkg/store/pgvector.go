package store

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/vectorstores"
	"github.com/xhad/ragdemo/internal/models"
	"github.com/xhad/ragdemo/pkg/logging"
	"go.uber.org/zap"
)

type PGVectorConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
	BatchSize  int
	Embedder   embeddings.Embedder
	Logger     *zap.Logger
}

// PGVectorStore persists chunks in PostgreSQL using the pgvector extension.
// It is an alternative to MemoryStore when the index should outlive the process.
type PGVectorStore struct {
	config PGVectorConfig
	pool   *pgxpool.Pool
	log    *zap.Logger
}

var _ vectorstores.VectorStore = (*PGVectorStore)(nil)

func NewPGVector(ctx context.Context, config PGVectorConfig) (*PGVectorStore, error) {
	if config.TableName == "" {
		config.TableName = "documents"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 3072
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	config.Logger = logging.OrNop(config.Logger)

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &PGVectorStore{
		config: config,
		pool:   pool,
		log:    config.Logger,
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *PGVectorStore) initialize(ctx context.Context) error {
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			embedding vector(%d),
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, vs.config.TableName, vs.config.VectorDim)

	_, err = vs.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	return nil
}

// AddDocuments embeds docs in batches and inserts one row per chunk.
func (vs *PGVectorStore) AddDocuments(ctx context.Context, docs []models.Document, options ...vectorstores.Option) ([]string, error) {
	opts := vectorstores.Options{Embedder: vs.config.Embedder}
	for _, o := range options {
		o(&opts)
	}
	if opts.Embedder == nil {
		return nil, ErrNoEmbedder
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, content, embedding, metadata)
		VALUES ($1, $2, $3, $4)`,
		vs.config.TableName)

	ids := make([]string, 0, len(docs))
	for start := 0; start < len(docs); start += vs.config.BatchSize {
		end := start + vs.config.BatchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]

		texts := make([]string, len(batch))
		for i, d := range batch {
			texts[i] = sanitizeUTF8(d.PageContent)
		}

		vectors, err := embedTexts(ctx, opts.Embedder, texts)
		if err != nil {
			return nil, err
		}
		for _, v := range vectors {
			if len(v) != vs.config.VectorDim {
				return nil, fmt.Errorf("%w: got %d, want %d", ErrDimMismatch, len(v), vs.config.VectorDim)
			}
		}

		tx, err := vs.pool.Begin(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}

		for i, d := range batch {
			id := uuid.NewString()
			_, err = tx.Exec(ctx, stmt, id, texts[i], pgvector.NewVector(vectors[i]), d.Metadata)
			if err != nil {
				tx.Rollback(ctx)
				return nil, fmt.Errorf("failed to insert document: %w", err)
			}
			ids = append(ids, id)
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
	}

	vs.log.Debug("documents stored", zap.Int("count", len(ids)), zap.String("table", vs.config.TableName))
	return ids, nil
}

// SimilaritySearch ranks rows by cosine distance; Score is 1 - distance.
func (vs *PGVectorStore) SimilaritySearch(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]models.Document, error) {
	opts := vectorstores.Options{Embedder: vs.config.Embedder}
	for _, o := range options {
		o(&opts)
	}
	if opts.Embedder == nil {
		return nil, ErrNoEmbedder
	}
	if numDocuments <= 0 {
		numDocuments = DefaultK
	}

	var count int
	if err := vs.pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", vs.config.TableName)).Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	if count == 0 {
		return nil, ErrEmptyIndex
	}

	q, err := opts.Embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	sql := fmt.Sprintf(`
		SELECT content, metadata, 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1, created_at
		LIMIT $2`,
		vs.config.TableName)

	rows, err := vs.pool.Query(ctx, sql, pgvector.NewVector(q), numDocuments)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		var score float64
		if err := rows.Scan(&doc.PageContent, &doc.Metadata, &score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		doc.Score = float32(score)
		if opts.ScoreThreshold > 0 && doc.Score < opts.ScoreThreshold {
			continue
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

func (vs *PGVectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
