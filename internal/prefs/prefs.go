package prefs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"meal-order-assistant/internal/planner"
)

// Repository persists per-user planning preferences as a JSON document.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Get loads the preferences for a user. Missing rows yield defaults.
func (r *Repository) Get(ctx context.Context, userID string) (planner.Preferences, error) {
	var data string
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM preferences WHERE user_id = ?`, userID).Scan(&data)
	if err == sql.ErrNoRows {
		return planner.Preferences{}, nil
	}
	if err != nil {
		return planner.Preferences{}, fmt.Errorf("failed to load preferences: %w", err)
	}

	var prefs planner.Preferences
	if err := json.Unmarshal([]byte(data), &prefs); err != nil {
		return planner.Preferences{}, fmt.Errorf("failed to unmarshal preferences: %w", err)
	}
	return prefs, nil
}

// Save upserts the preferences for a user.
func (r *Repository) Save(ctx context.Context, userID string, prefs planner.Preferences) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO preferences (user_id, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		userID, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}
