package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"
)

// Platform-wide setting keys.
const KeyBroadcastsEnabled = "broadcasts_enabled"

// Setting value types. Values are stored as text and parsed on read; the
// type column documents the expected shape per key.
const (
	ValueBool   = "bool"
	ValueInt    = "int"
	ValueString = "string"
)

type Setting struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	ValueType   string    `json:"value_type"`
	Description string    `json:"description,omitempty"`
	UpdatedBy   *int64    `json:"updated_by,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s *Store) GetSetting(ctx context.Context, key string) (Setting, error) {
	var st Setting
	err := s.DB.QueryRowContext(ctx, `
		SELECT key, value, value_type, description, updated_by, updated_at
		FROM settings
		WHERE key = $1
	`, key).Scan(&st.Key, &st.Value, &st.ValueType, &st.Description, &st.UpdatedBy, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Setting{}, ErrNotFound
	}
	if err != nil {
		return Setting{}, err
	}
	return st, nil
}

// GetBool reads a boolean flag, falling back to def when the key is
// absent or malformed.
func (s *Store) GetBool(ctx context.Context, key string, def bool) (bool, error) {
	st, err := s.GetSetting(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	v, err := strconv.ParseBool(st.Value)
	if err != nil {
		return def, nil
	}
	return v, nil
}

// SetValue upserts one setting. This is the single write path for config
// flags; there is no untyped fallback.
func (s *Store) SetValue(ctx context.Context, key, value, valueType, description string, updatedBy int64) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO settings (key, value, value_type, description, updated_by, updated_at)
		VALUES ($1,$2,$3,$4,$5,NOW())
		ON CONFLICT (key) DO UPDATE
		   SET value=EXCLUDED.value, value_type=EXCLUDED.value_type,
		       description=EXCLUDED.description, updated_by=EXCLUDED.updated_by,
		       updated_at=NOW()
	`, key, value, valueType, description, updatedBy)
	return err
}
