// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/Andre-cardia/c4marketing-sub000/internal/decision"
)

// SQLite schema for the local document store. Embeddings are stored in the
// pgvector text form ("[0.1,0.2]") so the same value type serves both stores.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    content TEXT NOT NULL,
    category TEXT NOT NULL,      -- official_doc, database_record, chat_log, session_summary, system_note
    artifact_kind TEXT NOT NULL DEFAULT '',
    source_table TEXT NOT NULL DEFAULT '',
    client_id TEXT NOT NULL DEFAULT '',
    project_id TEXT NOT NULL DEFAULT '',
    source_id TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL, -- Unix timestamp
    metadata TEXT NOT NULL DEFAULT '{}',
    embedding TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_tenant_category ON documents(tenant_id, category);
CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at);
`

// SQLite is a local document store. Candidate rows are selected in SQL by
// tenant, category and scope; similarity is scored in process.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the store at path. ":memory:" gives a
// throwaway in-memory store.
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	// SQLite only supports one writer at a time, and an in-memory database
	// lives in a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: set pragma: %w", err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: init schema: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// =============================================================================
// WRITE
// =============================================================================

// Insert stores doc and returns its id. Empty ids get a new UUID and a zero
// CreatedAt becomes now.
func (s *SQLite) Insert(ctx context.Context, doc Document) (string, error) {
	if err := doc.Validate(); err != nil {
		return "", err
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = s.now()
	}
	meta := doc.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("sqlite: encode metadata: %w", err)
	}
	embedding, err := pgvector.NewVector(doc.Embedding).Value()
	if err != nil {
		return "", fmt.Errorf("sqlite: encode embedding: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO documents
			(id, tenant_id, content, category, artifact_kind, source_table,
			 client_id, project_id, source_id, status, created_at, metadata, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.TenantID, doc.Content, string(doc.Category), string(doc.ArtifactKind), doc.SourceTable,
		doc.ClientID, doc.ProjectID, doc.SourceID, doc.Status, doc.CreatedAt.Unix(), string(metaJSON), embedding,
	)
	if err != nil {
		return "", fmt.Errorf("sqlite: insert: %w", err)
	}
	return doc.ID, nil
}

// =============================================================================
// SEARCH
// =============================================================================

// Search returns up to matchCount documents by cosine similarity.
//
// Filter semantics:
//   - tenant_id must match; a document category must be allowed and not blocked
//   - client, project and source ids restrict when set
//   - artifact kind, source tables and status restrict documents that record one
//   - the time window, when positive, bounds chat_log rows only
func (s *SQLite) Search(ctx context.Context, embedding []float32, matchCount int, filters decision.RouteFilters) ([]decision.RetrievedDoc, error) {
	if filters.TenantID == "" {
		return nil, ErrMissingTenant
	}
	if matchCount <= 0 || len(filters.AllowCategories) == 0 {
		return []decision.RetrievedDoc{}, nil
	}

	query, args := buildCandidateQuery(filters, s.now())
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: search: %w", err)
	}
	defer rows.Close()

	var hits []decision.RetrievedDoc
	for rows.Next() {
		var (
			doc       Document
			category  string
			artifact  string
			createdAt int64
			metaRaw   string
			vec       pgvector.Vector
		)
		if err := rows.Scan(&doc.ID, &doc.TenantID, &doc.Content, &category, &artifact, &doc.SourceTable,
			&doc.ClientID, &doc.ProjectID, &doc.SourceID, &doc.Status, &createdAt, &metaRaw, &vec); err != nil {
			return nil, fmt.Errorf("sqlite: scan: %w", err)
		}
		doc.Category = decision.DocumentCategory(category)
		doc.ArtifactKind = decision.ArtifactKind(artifact)
		doc.CreatedAt = time.Unix(createdAt, 0)
		if err := json.Unmarshal([]byte(metaRaw), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("sqlite: decode metadata: %w", err)
		}

		hits = append(hits, decision.RetrievedDoc{
			ID:         doc.ID,
			Content:    doc.Content,
			Similarity: cosineSimilarity(embedding, vec.Slice()),
			Metadata:   doc.metadataFor(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: search rows: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})
	if len(hits) > matchCount {
		hits = hits[:matchCount]
	}
	return hits, nil
}

// buildCandidateQuery turns normalized filters into a prefilter query.
func buildCandidateQuery(f decision.RouteFilters, now time.Time) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT id, tenant_id, content, category, artifact_kind, source_table,
		client_id, project_id, source_id, status, created_at, metadata, embedding
		FROM documents WHERE tenant_id = ?`)
	args := []any{f.TenantID}

	allowed := make([]string, 0, len(f.AllowCategories))
	for _, c := range f.AllowCategories {
		if !f.Allows(c) {
			continue
		}
		allowed = append(allowed, string(c))
	}
	if len(allowed) == 0 {
		// Every allowed category is also blocked.
		b.WriteString(" AND 0")
		return b.String(), args
	}
	b.WriteString(" AND category IN (" + placeholders(len(allowed)) + ")")
	for _, c := range allowed {
		args = append(args, c)
	}

	for _, scope := range []struct{ col, val string }{
		{"client_id", f.ClientID},
		{"project_id", f.ProjectID},
		{"source_id", f.SourceID},
	} {
		if scope.val != "" {
			b.WriteString(" AND " + scope.col + " = ?")
			args = append(args, scope.val)
		}
	}

	if f.ArtifactKind != "" {
		b.WriteString(" AND (artifact_kind = '' OR artifact_kind = ?)")
		args = append(args, string(f.ArtifactKind))
	}
	if len(f.SourceTables) > 0 {
		b.WriteString(" AND (source_table = '' OR source_table IN (" + placeholders(len(f.SourceTables)) + "))")
		for _, t := range f.SourceTables {
			args = append(args, t)
		}
	}
	if f.Status != "" {
		b.WriteString(" AND (status = '' OR status = ?)")
		args = append(args, f.Status)
	}
	if f.TimeWindowMinutes > 0 {
		cutoff := now.Add(-time.Duration(f.TimeWindowMinutes) * time.Minute).Unix()
		b.WriteString(" AND (category <> ? OR created_at >= ?)")
		args = append(args, string(decision.CategoryChatLog), cutoff)
	}
	return b.String(), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// cosineSimilarity returns the cosine of the angle between a and b, or 0 when
// the lengths differ or either vector is zero.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
