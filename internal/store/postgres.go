// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/Andre-cardia/c4marketing-sub000/internal/decision"
)

// DB is the pgx surface the Postgres store needs. *pgxpool.Pool and pgxmock
// pools both satisfy it.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DefaultMatchFunction is the similarity-search database function.
const DefaultMatchFunction = "match_documents"

// Postgres searches documents through a match function taking
// (query_embedding vector, match_count int, filters jsonb) and returning
// (id, content, metadata, similarity). It also runs allow-listed structured
// queries for the db_query tool.
type Postgres struct {
	db        DB
	matchFn   string
	allowRPCs []string
}

// NewPostgres wraps db. allowRPCs lists the structured-query functions Call
// may run; nothing else is ever executed.
func NewPostgres(db DB, allowRPCs []string) *Postgres {
	return &Postgres{
		db:        db,
		matchFn:   DefaultMatchFunction,
		allowRPCs: slices.Clone(allowRPCs),
	}
}

// Connect opens a pgx pool for dsn and pings it.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

// =============================================================================
// SIMILARITY SEARCH
// =============================================================================

// Search calls the match function with the embedding, the match count and
// the normalized filters as JSON.
func (p *Postgres) Search(ctx context.Context, embedding []float32, matchCount int, filters decision.RouteFilters) ([]decision.RetrievedDoc, error) {
	if filters.TenantID == "" {
		return nil, ErrMissingTenant
	}
	filtersJSON, err := json.Marshal(filters)
	if err != nil {
		return nil, fmt.Errorf("postgres: encode filters: %w", err)
	}

	sql := fmt.Sprintf("SELECT id, content, metadata, similarity FROM %s($1, $2, $3::jsonb)",
		pgx.Identifier{p.matchFn}.Sanitize())
	rows, err := p.db.Query(ctx, sql, pgvector.NewVector(embedding), matchCount, string(filtersJSON))
	if err != nil {
		return nil, fmt.Errorf("postgres: search: %w", err)
	}
	defer rows.Close()

	docs := make([]decision.RetrievedDoc, 0, matchCount)
	for rows.Next() {
		var (
			id          string
			content     string
			metadataRaw []byte
			similarity  float64
		)
		if err := rows.Scan(&id, &content, &metadataRaw, &similarity); err != nil {
			return nil, fmt.Errorf("postgres: scan: %w", err)
		}
		meta := make(map[string]any)
		if len(metadataRaw) > 0 {
			if err := json.Unmarshal(metadataRaw, &meta); err != nil {
				return nil, fmt.Errorf("postgres: decode metadata: %w", err)
			}
		}
		docs = append(docs, decision.RetrievedDoc{
			ID:         id,
			Content:    content,
			Similarity: similarity,
			Metadata:   meta,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: search rows: %w", err)
	}
	return docs, nil
}

// =============================================================================
// WRITE
// =============================================================================

// Insert stores doc in the documents table the match function reads. Routing
// fields travel in the metadata column, which is what the match function
// filters on.
func (p *Postgres) Insert(ctx context.Context, doc Document) (string, error) {
	if err := doc.Validate(); err != nil {
		return "", err
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	meta, err := json.Marshal(doc.metadataFor())
	if err != nil {
		return "", fmt.Errorf("postgres: encode metadata: %w", err)
	}

	_, err = p.db.Exec(ctx, `
		INSERT INTO documents (id, tenant_id, content, metadata, embedding, created_at)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding`,
		doc.ID, doc.TenantID, doc.Content, string(meta), pgvector.NewVector(doc.Embedding), doc.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("postgres: insert: %w", err)
	}
	return doc.ID, nil
}

// =============================================================================
// STRUCTURED QUERIES
// =============================================================================

// Call runs an allow-listed structured query. Each function takes a single
// jsonb parameter bag and returns rows; every row comes back as a JSON object.
// The parameter bag must carry tenant_id.
func (p *Postgres) Call(ctx context.Context, q *decision.DBQuery) ([]map[string]any, error) {
	if q == nil {
		return nil, fmt.Errorf("%w: empty query", ErrRPCNotAllowed)
	}
	if !slices.Contains(p.allowRPCs, q.RPCName) {
		return nil, fmt.Errorf("%w: %q", ErrRPCNotAllowed, q.RPCName)
	}
	if tenant, _ := q.Params["tenant_id"].(string); tenant == "" {
		return nil, ErrMissingTenant
	}
	params, err := json.Marshal(q.Params)
	if err != nil {
		return nil, fmt.Errorf("postgres: encode params: %w", err)
	}

	sql := fmt.Sprintf("SELECT row_to_json(r)::text FROM %s($1::jsonb) AS r",
		pgx.Identifier{q.RPCName}.Sanitize())
	rows, err := p.db.Query(ctx, sql, string(params))
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", q.RPCName, err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("postgres: %s: scan: %w", q.RPCName, err)
		}
		row := make(map[string]any)
		if err := json.Unmarshal([]byte(raw), &row); err != nil {
			return nil, fmt.Errorf("postgres: %s: decode row: %w", q.RPCName, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %s: rows: %w", q.RPCName, err)
	}
	return out, nil
}
