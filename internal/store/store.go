package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"faultscope/internal/config"
)

// Store manages turn history and the feature cache backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the database and verifies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.DatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// NewTurn inserts a turn in the awaiting-input state and returns it.
func (s *Store) NewTurn(ctx context.Context, conversationID, request string) (*Turn, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO turns (
            conversation_id, state, request, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?)`,
		conversationID,
		StateAwaitingInput,
		request,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert turn: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetTurn(ctx, id)
}

// GetTurn fetches a turn by identifier. Missing turns return nil.
func (s *Store) GetTurn(ctx context.Context, id int64) (*Turn, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+turnColumns+` FROM turns WHERE id = ?`, id)
	turn, err := scanTurn(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get turn: %w", err)
	}
	return turn, nil
}

// UpdateTurn persists changes to an existing turn, enforcing the legal
// state transitions when the state changed.
func (s *Store) UpdateTurn(ctx context.Context, turn *Turn) error {
	if turn == nil {
		return errors.New("turn is nil")
	}
	current, err := s.GetTurn(ctx, turn.ID)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("turn %d does not exist", turn.ID)
	}
	if current.State != turn.State && !CanTransition(current.State, turn.State) {
		return fmt.Errorf("illegal turn transition %s -> %s", current.State, turn.State)
	}

	turn.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(
		ctx,
		`UPDATE turns
         SET state = ?, intent = ?, params_json = ?, response = ?,
             artifact_json = ?, error_message = ?, updated_at = ?
         WHERE id = ?`,
		turn.State,
		nullableString(turn.Intent),
		nullableString(turn.ParamsJSON),
		nullableString(turn.Response),
		nullableString(turn.ArtifactJSON),
		nullableString(turn.ErrorMessage),
		turn.UpdatedAt.Format(time.RFC3339Nano),
		turn.ID,
	)
	if err != nil {
		return fmt.Errorf("update turn: %w", err)
	}
	return nil
}

// RecentTurns returns the last limit turns of one conversation in
// chronological order.
func (s *Store) RecentTurns(ctx context.Context, conversationID string, limit int) ([]*Turn, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+turnColumns+` FROM turns WHERE conversation_id = ? ORDER BY id DESC LIMIT ?`,
		conversationID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent turns: %w", err)
	}
	defer rows.Close()

	var turns []*Turn
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// ListTurns returns turns filtered by state set (or all turns when no
// state is provided), oldest first.
func (s *Store) ListTurns(ctx context.Context, states ...State) ([]*Turn, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + turnColumns + ` FROM turns`
	orderClause := ` ORDER BY id`

	if len(states) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(states))
		args := make([]any, len(states))
		for i, state := range states {
			args[i] = state
		}
		query := baseQuery + ` WHERE state IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var turns []*Turn
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

// FailStaleExecuting marks turns stuck in a live state before cutoff as
// failed. Used at startup so a crash mid-turn never leaves phantom
// in-flight work.
func (s *Store) FailStaleExecuting(ctx context.Context, cutoff time.Time, message string) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE turns
         SET state = ?, error_message = ?, updated_at = ?
         WHERE state IN (?, ?, ?) AND updated_at < ?`,
		StateFailed,
		message,
		time.Now().UTC().Format(time.RFC3339Nano),
		StateAwaitingInput,
		StateRouted,
		StateExecuting,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("fail stale turns: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of turns grouped by state.
func (s *Store) Stats(ctx context.Context) (map[State]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(1) FROM turns GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("turn stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[State]int)
	for rows.Next() {
		var state State
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats[state] = count
	}
	return stats, rows.Err()
}

// Health aggregates turn state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for state, count := range stats {
		health.Total += count
		switch state {
		case StateCompleted:
			health.Completed += count
		case StateFailed:
			health.Failed += count
		default:
			health.Active += count
		}
	}
	return health, nil
}

// CheckHealth returns diagnostic information about the database file and
// its integrity.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			health.DatabaseExists = false
			return health, nil
		}
		return health, fmt.Errorf("stat database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping database: %w", err)
	}
	health.DatabaseReadable = true

	row := s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM turns")
	if err := row.Scan(&health.TotalTurns); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count turns: %w", err)
	}
	row = s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM feature_cache")
	if err := row.Scan(&health.CachedVectors); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count cached vectors: %w", err)
	}

	row = s.db.QueryRowContext(connCtx, "PRAGMA integrity_check")
	var integrityResult string
	if err := row.Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}

// RemoveTurn deletes a turn by identifier.
func (s *Store) RemoveTurn(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM turns WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete turn: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearTurns removes all turn history.
func (s *Store) ClearTurns(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM turns`)
	if err != nil {
		return 0, fmt.Errorf("clear turns: %w", err)
	}
	return res.RowsAffected()
}

const turnColumns = "id, conversation_id, state, request, intent, params_json, response, artifact_json, error_message, created_at, updated_at"

func scanTurn(scanner interface{ Scan(dest ...any) error }) (*Turn, error) {
	var (
		id             int64
		conversationID string
		stateStr       string
		request        string
		intent         sql.NullString
		paramsJSON     sql.NullString
		response       sql.NullString
		artifactJSON   sql.NullString
		errorMessage   sql.NullString
		createdRaw     sql.NullString
		updatedRaw     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&conversationID,
		&stateStr,
		&request,
		&intent,
		&paramsJSON,
		&response,
		&artifactJSON,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	turn := &Turn{
		ID:             id,
		ConversationID: conversationID,
		State:          State(stateStr),
		Request:        request,
		Intent:         intent.String,
		ParamsJSON:     paramsJSON.String,
		Response:       response.String,
		ArtifactJSON:   artifactJSON.String,
		ErrorMessage:   errorMessage.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		turn.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		turn.UpdatedAt = updated
	}
	return turn, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
