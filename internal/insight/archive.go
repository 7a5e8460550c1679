package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/aisti-labs/insight-engine/internal/insight/types"
	"github.com/aisti-labs/insight-engine/pkg/postgres"
)

// Archive writes mined patterns and clusters to Postgres for offline
// diagnostics. Derived data only; the engine never reads it back.
type Archive struct {
	client postgres.Client
	logger *slog.Logger
}

// NewArchive creates a Postgres-backed archive
func NewArchive(client postgres.Client, logger *slog.Logger) *Archive {
	return &Archive{client: client, logger: logger}
}

// EnsureSchema creates the archive tables when they do not exist
func (a *Archive) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS mined_patterns (
			id BIGSERIAL PRIMARY KEY,
			pattern_key TEXT NOT NULL,
			pattern_type TEXT NOT NULL,
			name TEXT NOT NULL,
			conditions JSONB NOT NULL,
			actions JSONB NOT NULL,
			frequency INT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			support DOUBLE PRECISION NOT NULL,
			mined_at TIMESTAMPTZ NOT NULL,
			archived_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_mined_patterns_key
			ON mined_patterns (pattern_key, mined_at)`,
		`CREATE TABLE IF NOT EXISTS task_clusters (
			id BIGSERIAL PRIMARY KEY,
			cluster_id TEXT NOT NULL,
			task_ids TEXT[] NOT NULL,
			member_count INT NOT NULL,
			centroid JSONB NOT NULL,
			centroid_vector vector(6) NOT NULL,
			completion_rate DOUBLE PRECISION NOT NULL,
			avg_duration_minutes DOUBLE PRECISION NOT NULL,
			clustered_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range statements {
		if _, err := a.client.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create archive schema: %w", err)
		}
	}
	return nil
}

// ArchivePatterns appends the current pattern table to the archive
func (a *Archive) ArchivePatterns(ctx context.Context, patterns []*types.Pattern) error {
	query := `
		INSERT INTO mined_patterns (
			pattern_key, pattern_type, name, conditions, actions,
			frequency, confidence, support, mined_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	for _, p := range patterns {
		conditionsJSON, err := json.Marshal(p.Conditions)
		if err != nil {
			return fmt.Errorf("failed to marshal conditions for %s: %w", p.Key, err)
		}
		actionsJSON, err := json.Marshal(p.Actions)
		if err != nil {
			return fmt.Errorf("failed to marshal actions for %s: %w", p.Key, err)
		}

		_, err = a.client.Exec(ctx, query,
			p.Key,
			string(p.Type),
			p.Name,
			conditionsJSON,
			actionsJSON,
			p.Frequency,
			p.Confidence,
			p.Support,
			p.MinedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to archive pattern %s: %w", p.Key, err)
		}
	}

	a.logger.Info("Patterns archived", "count", len(patterns))
	return nil
}

// ArchiveClusters appends the current cluster set. The centroid is
// stored twice: as JSON for inspection and as a vector for
// nearest-centroid queries.
func (a *Archive) ArchiveClusters(ctx context.Context, clusters []*types.TaskCluster) error {
	query := `
		INSERT INTO task_clusters (
			cluster_id, task_ids, member_count, centroid, centroid_vector,
			completion_rate, avg_duration_minutes, clustered_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	now := time.Now().UTC()
	for _, c := range clusters {
		centroidJSON, err := json.Marshal(c.Centroid)
		if err != nil {
			return fmt.Errorf("failed to marshal centroid for %s: %w", c.ID, err)
		}
		taskIDs := make([]string, len(c.Tasks))
		for i, task := range c.Tasks {
			taskIDs[i] = task.TaskID
		}

		_, err = a.client.Exec(ctx, query,
			c.ID,
			pq.Array(taskIDs),
			len(c.Tasks),
			centroidJSON,
			pgvector.NewVector(c.Centroid.Vector()),
			c.Characteristics.CompletionRate,
			c.Characteristics.AvgDurationMinutes,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to archive cluster %s: %w", c.ID, err)
		}
	}

	a.logger.Info("Clusters archived", "count", len(clusters))
	return nil
}

// ArchivedPattern is one diagnostics row read back from the archive
type ArchivedPattern struct {
	Key        string    `json:"key"`
	Type       string    `json:"type"`
	Name       string    `json:"name"`
	Frequency  int       `json:"frequency"`
	Confidence float64   `json:"confidence"`
	Support    float64   `json:"support"`
	MinedAt    time.Time `json:"mined_at"`
	ArchivedAt time.Time `json:"archived_at"`
}

// RecentPatterns returns the newest archived patterns for diagnostics
func (a *Archive) RecentPatterns(ctx context.Context, limit int) ([]*ArchivedPattern, error) {
	query := `
		SELECT pattern_key, pattern_type, name, frequency, confidence,
			support, mined_at, archived_at
		FROM mined_patterns
		ORDER BY archived_at DESC, confidence DESC
		LIMIT $1
	`

	rows, err := a.client.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query archived patterns: %w", err)
	}
	defer rows.Close()

	var patterns []*ArchivedPattern
	for rows.Next() {
		var p ArchivedPattern
		err := rows.Scan(
			&p.Key,
			&p.Type,
			&p.Name,
			&p.Frequency,
			&p.Confidence,
			&p.Support,
			&p.MinedAt,
			&p.ArchivedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan archived pattern: %w", err)
		}
		patterns = append(patterns, &p)
	}
	return patterns, rows.Err()
}
