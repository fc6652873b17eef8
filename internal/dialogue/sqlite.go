// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dialogue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/scholar-nlu/pkg/types"
)

// SQLiteRepository stores one row per user in a user_contexts table.
// History, articles and preferences are JSON columns; timestamps are
// RFC 3339 strings. This layout is the on-disk contract the round-trip
// tests target.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens or creates the database at dbPath, creating
// parent directories as needed.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Init creates the user_contexts table if it does not exist.
func (r *SQLiteRepository) Init(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS user_contexts (
			user_id INTEGER PRIMARY KEY,
			conversation_history TEXT,
			current_topic TEXT,
			current_articles TEXT,
			user_preferences TEXT,
			created_at TEXT,
			updated_at TEXT
		)`)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Get loads the context row for the user.
func (r *SQLiteRepository) Get(ctx context.Context, userID int64) (*types.UserContext, error) {
	var (
		historyJSON  sql.NullString
		topic        sql.NullString
		articlesJSON sql.NullString
		prefsJSON    sql.NullString
		createdAt    sql.NullString
		updatedAt    sql.NullString
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT conversation_history, current_topic, current_articles,
		       user_preferences, created_at, updated_at
		FROM user_contexts WHERE user_id = ?`, userID,
	).Scan(&historyJSON, &topic, &articlesJSON, &prefsJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading context for user %d: %w", userID, err)
	}

	return deserializeRow(userID, historyJSON.String, topic.String,
		articlesJSON.String, prefsJSON.String, createdAt.String, updatedAt.String)
}

// Upsert replaces the context row for the user.
func (r *SQLiteRepository) Upsert(ctx context.Context, uctx *types.UserContext) error {
	historyJSON, articlesJSON, prefsJSON, err := serializeContext(uctx)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO user_contexts
			(user_id, conversation_history, current_topic, current_articles,
			 user_preferences, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			conversation_history=excluded.conversation_history,
			current_topic=excluded.current_topic,
			current_articles=excluded.current_articles,
			user_preferences=excluded.user_preferences,
			created_at=excluded.created_at,
			updated_at=excluded.updated_at`,
		uctx.UserID, historyJSON, uctx.CurrentTopic, articlesJSON, prefsJSON,
		uctx.CreatedAt.UTC().Format(time.RFC3339Nano),
		uctx.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upserting context for user %d: %w", uctx.UserID, err)
	}
	return nil
}

func serializeContext(uctx *types.UserContext) (history, articles, prefs string, err error) {
	turns := uctx.ConversationHistory
	if turns == nil {
		turns = []types.ConversationTurn{}
	}
	h, err := json.Marshal(turns)
	if err != nil {
		return "", "", "", fmt.Errorf("serializing history: %w", err)
	}

	arts := uctx.CurrentArticles
	if arts == nil {
		arts = []types.Article{}
	}
	a, err := json.Marshal(arts)
	if err != nil {
		return "", "", "", fmt.Errorf("serializing articles: %w", err)
	}

	p := uctx.UserPreferences
	if p == nil {
		p = map[string]any{}
	}
	pr, err := json.Marshal(p)
	if err != nil {
		return "", "", "", fmt.Errorf("serializing preferences: %w", err)
	}

	return string(h), string(a), string(pr), nil
}

func deserializeRow(userID int64, historyJSON, topic, articlesJSON, prefsJSON, createdAt, updatedAt string) (*types.UserContext, error) {
	uctx := &types.UserContext{UserID: userID, CurrentTopic: topic}

	if historyJSON != "" {
		if err := json.Unmarshal([]byte(historyJSON), &uctx.ConversationHistory); err != nil {
			return nil, fmt.Errorf("parsing history for user %d: %w", userID, err)
		}
	}
	if articlesJSON != "" {
		if err := json.Unmarshal([]byte(articlesJSON), &uctx.CurrentArticles); err != nil {
			return nil, fmt.Errorf("parsing articles for user %d: %w", userID, err)
		}
	}
	if prefsJSON != "" {
		if err := json.Unmarshal([]byte(prefsJSON), &uctx.UserPreferences); err != nil {
			return nil, fmt.Errorf("parsing preferences for user %d: %w", userID, err)
		}
	}
	if uctx.UserPreferences == nil {
		uctx.UserPreferences = map[string]any{}
	}

	uctx.CreatedAt = parseTimestamp(createdAt)
	uctx.UpdatedAt = parseTimestamp(updatedAt)
	return uctx, nil
}

// parseTimestamp tolerates missing or malformed stored timestamps rather
// than failing the whole load.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Now()
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Now()
	}
	return t
}
