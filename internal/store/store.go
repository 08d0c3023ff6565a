// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store provides the similarity-search backends behind retrieval and
// the structured-query executor behind the db_query tool.
//
// Two backends implement Search(ctx, embedding, matchCount, filters):
//
//   - Postgres: calls the match_documents database function over pgvector
//   - SQLite: a local document table scored in process, for development
//
// Both receive filters that were already normalized by the policy enforcer
// and apply every category, tenant and scope constraint they carry.
package store

import (
	"errors"
	"maps"
	"time"

	"github.com/Andre-cardia/c4marketing-sub000/internal/decision"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrMissingTenant   = errors.New("store: tenant is required")
	ErrRPCNotAllowed   = errors.New("store: rpc not allowed")
	ErrInvalidDocument = errors.New("store: invalid document")
)

// =============================================================================
// DOCUMENT
// =============================================================================

// Document is one stored chunk with its embedding and routing metadata.
type Document struct {
	ID           string                    `json:"id"`
	TenantID     string                    `json:"tenant_id"`
	Content      string                    `json:"content"`
	Category     decision.DocumentCategory `json:"category"`
	ArtifactKind decision.ArtifactKind     `json:"artifact_kind,omitempty"`
	SourceTable  string                    `json:"source_table,omitempty"`
	ClientID     string                    `json:"client_id,omitempty"`
	ProjectID    string                    `json:"project_id,omitempty"`
	SourceID     string                    `json:"source_id,omitempty"`
	Status       string                    `json:"status,omitempty"`
	CreatedAt    time.Time                 `json:"created_at"`
	Metadata     map[string]any            `json:"metadata,omitempty"`
	Embedding    []float32                 `json:"-"`
}

// Validate checks the fields every stored document needs.
func (d Document) Validate() error {
	switch {
	case d.TenantID == "":
		return ErrMissingTenant
	case d.Content == "":
		return errors.Join(ErrInvalidDocument, errors.New("content is empty"))
	case !d.Category.Valid():
		return errors.Join(ErrInvalidDocument, errors.New("unknown category "+string(d.Category)))
	case len(d.Embedding) == 0:
		return errors.Join(ErrInvalidDocument, errors.New("embedding is empty"))
	}
	return nil
}

// metadataFor returns the metadata bag reported with a search hit. Routing
// fields always win over free-form metadata so category checks downstream
// see the stored category.
func (d Document) metadataFor() map[string]any {
	out := maps.Clone(d.Metadata)
	if out == nil {
		out = make(map[string]any)
	}
	out["tenant_id"] = d.TenantID
	out["category"] = string(d.Category)
	if d.ArtifactKind != "" {
		out["artifact_kind"] = string(d.ArtifactKind)
	}
	if d.SourceTable != "" {
		out["source_table"] = d.SourceTable
	}
	if d.ClientID != "" {
		out["client_id"] = d.ClientID
	}
	if d.ProjectID != "" {
		out["project_id"] = d.ProjectID
	}
	if d.SourceID != "" {
		out["source_id"] = d.SourceID
	}
	if d.Status != "" {
		out["status"] = d.Status
	}
	out["created_at"] = d.CreatedAt.UTC().Format(time.RFC3339)
	return out
}
