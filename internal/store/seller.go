package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type Seller struct {
	ID                int64      `json:"id"`
	Name              string     `json:"name"`
	Role              string     `json:"role"`
	Active            bool       `json:"active"`
	Suspended         bool       `json:"suspended"`
	TrialEndsAt       *time.Time `json:"trial_ends_at,omitempty"`
	BroadcastsEnabled bool       `json:"broadcasts_enabled"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (s *Store) GetSeller(ctx context.Context, id int64) (Seller, error) {
	var sl Seller
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, name, role, active, suspended, trial_ends_at, broadcasts_enabled, created_at, updated_at
		FROM sellers
		WHERE id = $1
	`, id).Scan(&sl.ID, &sl.Name, &sl.Role, &sl.Active, &sl.Suspended, &sl.TrialEndsAt,
		&sl.BroadcastsEnabled, &sl.CreatedAt, &sl.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Seller{}, ErrNotFound
	}
	if err != nil {
		return Seller{}, err
	}
	return sl, nil
}

// MarkSuspended flips a seller whose trial has lapsed. The guard on
// suspended=FALSE keeps the write idempotent under concurrent requests:
// exactly one caller observes the flip.
func (s *Store) MarkSuspended(ctx context.Context, id int64) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE sellers
		   SET suspended=TRUE, active=FALSE, updated_at=NOW()
		 WHERE id=$1 AND suspended=FALSE
	`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) SetSellerBroadcastsEnabled(ctx context.Context, id int64, enabled bool) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE sellers
		   SET broadcasts_enabled=$1, updated_at=NOW()
		 WHERE id=$2
	`, enabled, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
