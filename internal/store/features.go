package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"faultscope/internal/features"
)

// CachedVectors returns every cached feature vector for a catalog
// fingerprint, or nil when the cache holds nothing for it. Results are
// ordered by session then sensor so table construction is stable.
func (s *Store) CachedVectors(ctx context.Context, fingerprint string) ([]*features.Vector, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT session_id, label, sensor_name, sensor_type, features_json
         FROM feature_cache WHERE fingerprint = ?
         ORDER BY session_id, sensor_name, sensor_type`,
		fingerprint,
	)
	if err != nil {
		return nil, fmt.Errorf("query feature cache: %w", err)
	}
	defer rows.Close()

	var vectors []*features.Vector
	for rows.Next() {
		var sessionID, label, sensorName, sensorType, featuresJSON string
		if err := rows.Scan(&sessionID, &label, &sensorName, &sensorType, &featuresJSON); err != nil {
			return nil, fmt.Errorf("scan cached vector: %w", err)
		}
		values := map[string]float64{}
		if err := json.Unmarshal([]byte(featuresJSON), &values); err != nil {
			return nil, fmt.Errorf("decode cached vector for %s/%s_%s: %w", sessionID, sensorName, sensorType, err)
		}
		vectors = append(vectors, &features.Vector{
			SessionID:  sessionID,
			Label:      label,
			SensorName: sensorName,
			SensorType: sensorType,
			Values:     values,
		})
	}
	return vectors, rows.Err()
}

// StoreVectors replaces the cache with vectors extracted for the given
// fingerprint. Entries for other fingerprints are dropped: the cache
// only ever describes the current dataset contents.
func (s *Store) StoreVectors(ctx context.Context, fingerprint string, vectors []*features.Vector) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cache tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM feature_cache WHERE fingerprint != ?`, fingerprint); err != nil {
		return fmt.Errorf("drop stale cache: %w", err)
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	for _, vector := range vectors {
		payload, err := json.Marshal(vector.Values)
		if err != nil {
			return fmt.Errorf("encode vector for %s/%s_%s: %w", vector.SessionID, vector.SensorName, vector.SensorType, err)
		}
		_, err = tx.ExecContext(
			ctx,
			`INSERT INTO feature_cache (
                fingerprint, session_id, label, sensor_name, sensor_type, features_json, created_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT (fingerprint, session_id, sensor_name, sensor_type)
            DO UPDATE SET label = excluded.label, features_json = excluded.features_json, created_at = excluded.created_at`,
			fingerprint,
			vector.SessionID,
			vector.Label,
			vector.SensorName,
			vector.SensorType,
			string(payload),
			timestamp,
		)
		if err != nil {
			return fmt.Errorf("cache vector for %s/%s_%s: %w", vector.SessionID, vector.SensorName, vector.SensorType, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cache tx: %w", err)
	}
	return nil
}

// ClearVectors drops the entire feature cache.
func (s *Store) ClearVectors(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM feature_cache`)
	if err != nil {
		return 0, fmt.Errorf("clear feature cache: %w", err)
	}
	return res.RowsAffected()
}
