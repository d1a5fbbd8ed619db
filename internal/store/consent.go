package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sellergram/broadcast/internal/consent"
)

const contactColumns = `id, seller_id, phone, buyer_id, name, subscribed, subscribed_at,
	       unsubscribed_at, source, opt_in_token, opt_out_token, created_at, updated_at`

func scanContact(row *sql.Row) (consent.Record, error) {
	var r consent.Record
	err := row.Scan(&r.ID, &r.SellerID, &r.Phone, &r.BuyerID, &r.Name, &r.Subscribed,
		&r.SubscribedAt, &r.UnsubscribedAt, &r.Source, &r.OptInToken, &r.OptOutToken,
		&r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return consent.Record{}, ErrNotFound
	}
	if err != nil {
		return consent.Record{}, err
	}
	return r, nil
}

// UpsertContact creates a subscribed record with fresh tokens on first
// contact, or refreshes name/source on repeat contact. The conflict arm
// deliberately leaves subscription state and tokens alone: re-running a
// checkout must never re-subscribe someone who opted out.
func (s *Store) UpsertContact(ctx context.Context, sellerID int64, phone, name, source string, buyerID *int64) (consent.Record, error) {
	return scanContact(s.DB.QueryRowContext(ctx, `
		INSERT INTO contacts (seller_id, phone, buyer_id, name, subscribed, subscribed_at, source, opt_in_token, opt_out_token)
		VALUES ($1,$2,$3,$4,TRUE,NOW(),$5,$6,$7)
		ON CONFLICT (seller_id, phone) DO UPDATE
		   SET name=EXCLUDED.name, source=EXCLUDED.source,
		       buyer_id=COALESCE(EXCLUDED.buyer_id, contacts.buyer_id),
		       updated_at=NOW()
		RETURNING `+contactColumns, sellerID, phone, buyerID, name, source, consent.NewToken(), consent.NewToken()))
}

// RedeemOptOut flips a record to unsubscribed by its opt-out token.
// Redeeming twice is not an error; the second call reports alreadyDone.
func (s *Store) RedeemOptOut(ctx context.Context, token string) (alreadyDone bool, err error) {
	return s.redeem(ctx, token, false)
}

// RedeemOptIn re-subscribes a record by its opt-in token.
func (s *Store) RedeemOptIn(ctx context.Context, token string) (alreadyDone bool, err error) {
	return s.redeem(ctx, token, true)
}

func (s *Store) redeem(ctx context.Context, token string, subscribe bool) (bool, error) {
	column := "opt_out_token"
	stamp := "unsubscribed_at"
	if subscribe {
		column = "opt_in_token"
		stamp = "subscribed_at"
	}

	// The WHERE clause only matches records not already in the target
	// state, so concurrent redemptions of the same token settle on one
	// winner and the rest observe alreadyDone.
	res, err := s.DB.ExecContext(ctx, `
		UPDATE contacts
		   SET subscribed=$1, `+stamp+`=NOW(), updated_at=NOW()
		 WHERE `+column+`=$2 AND subscribed=$3
	`, subscribe, token, !subscribe)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return false, nil
	}

	var exists bool
	err = s.DB.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM contacts WHERE `+column+`=$1)
	`, token).Scan(&exists)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, ErrTokenNotFound
	}
	return true, nil
}

// ListEligible returns the seller's subscribed recipients in insertion
// order; this is the candidate set for any dispatch run.
func (s *Store) ListEligible(ctx context.Context, sellerID int64) ([]consent.Record, error) {
	return s.listContacts(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE seller_id = $1 AND subscribed
		ORDER BY id
	`, sellerID)
}

func (s *Store) ListContacts(ctx context.Context, sellerID int64, limit, offset int) ([]consent.Record, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.listContacts(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE seller_id = $1
		ORDER BY id
		LIMIT $2 OFFSET $3
	`, sellerID, limit, offset)
}

func (s *Store) listContacts(ctx context.Context, query string, args ...any) ([]consent.Record, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []consent.Record
	for rows.Next() {
		var r consent.Record
		if err := rows.Scan(&r.ID, &r.SellerID, &r.Phone, &r.BuyerID, &r.Name, &r.Subscribed,
			&r.SubscribedAt, &r.UnsubscribedAt, &r.Source, &r.OptInToken, &r.OptOutToken,
			&r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
