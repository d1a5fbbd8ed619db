package store

import (
	"context"
	"database/sql"
	"errors"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrTokenNotFound     = errors.New("token not found")
	ErrInvalidSchedule   = errors.New("scheduled time must be in the future")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadySending    = errors.New("dispatch already in progress")
)

type Store struct {
	DB *sql.DB
}

func New(db *sql.DB) *Store { return &Store{DB: db} }

func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
