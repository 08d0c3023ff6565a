// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Andre-cardia/c4marketing-sub000/internal/embedding"
)

// Inserter stores one embedded document.
type Inserter interface {
	Insert(ctx context.Context, doc Document) (string, error)
}

// maxIngestLine bounds a single JSON line.
const maxIngestLine = 1 << 20

// IngestStats reports what an ingest run did.
type IngestStats struct {
	Inserted int
	Skipped  int
}

// Ingest reads one JSON document per line from r, embeds its content and
// inserts it. Blank lines and lines starting with '#' are skipped. tenantID,
// when set, fills documents that carry none. The first malformed line or
// failed call aborts the run with its line number.
func Ingest(ctx context.Context, r io.Reader, emb embedding.Embedder, dst Inserter, tenantID string) (IngestStats, error) {
	var stats IngestStats

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxIngestLine)

	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			stats.Skipped++
			continue
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		var doc Document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return stats, fmt.Errorf("ingest: line %d: %w", line, err)
		}
		if doc.TenantID == "" {
			doc.TenantID = tenantID
		}

		vec, err := emb.Embed(ctx, doc.Content)
		if err != nil {
			return stats, fmt.Errorf("ingest: line %d: embed: %w", line, err)
		}
		doc.Embedding = vec

		if _, err := dst.Insert(ctx, doc); err != nil {
			return stats, fmt.Errorf("ingest: line %d: %w", line, err)
		}
		stats.Inserted++
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("ingest: read: %w", err)
	}
	return stats, nil
}
