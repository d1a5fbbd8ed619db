package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sellergram/broadcast/internal/campaign"
)

const campaignColumns = `id, seller_id, title, body, category, product_ref, status,
	       scheduled_at, sent_at, total_recipients, sent_count, delivered_count,
	       failed_count, created_at, updated_at`

func scanCampaign(row *sql.Row) (campaign.Campaign, error) {
	var c campaign.Campaign
	err := row.Scan(&c.ID, &c.SellerID, &c.Title, &c.Body, &c.Category, &c.ProductRef,
		&c.Status, &c.ScheduledAt, &c.SentAt, &c.TotalRecipients, &c.SentCount,
		&c.DeliveredCount, &c.FailedCount, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return campaign.Campaign{}, ErrNotFound
	}
	if err != nil {
		return campaign.Campaign{}, err
	}
	return c, nil
}

func (s *Store) InsertCampaign(ctx context.Context, tx *sql.Tx, sellerID int64, title, body, category string, productRef *string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
	INSERT INTO campaigns (seller_id, title, body, category, product_ref, status)
	VALUES ($1,$2,$3,$4,$5,'draft') RETURNING id`,
		sellerID, title, body, category, productRef).Scan(&id)
	return id, err
}

// ReplaceAudience stores the optional audience subset for a campaign. An
// empty audience means the campaign targets every eligible recipient.
func (s *Store) ReplaceAudience(ctx context.Context, tx *sql.Tx, campaignID int64, contacts []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM campaign_audience WHERE campaign_id=$1`, campaignID); err != nil {
		return err
	}
	for _, contact := range contacts {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO campaign_audience (campaign_id, contact)
		VALUES ($1,$2) ON CONFLICT DO NOTHING`, campaignID, contact); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetAudience(ctx context.Context, campaignID int64) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT contact FROM campaign_audience WHERE campaign_id=$1 ORDER BY contact`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (s *Store) GetCampaign(ctx context.Context, id int64) (campaign.Campaign, error) {
	return scanCampaign(s.DB.QueryRowContext(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		WHERE id = $1
	`, id))
}

// GetSellerCampaign scopes the lookup to the owning seller so one seller
// can never read or mutate another seller's campaign.
func (s *Store) GetSellerCampaign(ctx context.Context, id, sellerID int64) (campaign.Campaign, error) {
	return scanCampaign(s.DB.QueryRowContext(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		WHERE id = $1 AND seller_id = $2
	`, id, sellerID))
}

func (s *Store) ListCampaigns(ctx context.Context, sellerID int64, limit, offset int) ([]campaign.Campaign, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		WHERE seller_id = $1
		ORDER BY id DESC
		LIMIT $2 OFFSET $3
	`, sellerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []campaign.Campaign
	for rows.Next() {
		var c campaign.Campaign
		if err := rows.Scan(&c.ID, &c.SellerID, &c.Title, &c.Body, &c.Category, &c.ProductRef,
			&c.Status, &c.ScheduledAt, &c.SentAt, &c.TotalRecipients, &c.SentCount,
			&c.DeliveredCount, &c.FailedCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateDraft edits title/body/category/product_ref. Only drafts may be
// edited; anything later in the lifecycle is immutable through this path.
func (s *Store) UpdateDraft(ctx context.Context, id, sellerID int64, title, body, category string, productRef *string) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE campaigns
		   SET title=$1, body=$2, category=$3, product_ref=$4, updated_at=NOW()
		 WHERE id=$5 AND seller_id=$6 AND status='draft'
	`, title, body, category, productRef, id, sellerID)
	if err != nil {
		return err
	}
	return s.explainNoRows(ctx, res, id, sellerID)
}

func (s *Store) Schedule(ctx context.Context, id, sellerID int64, at, now time.Time) error {
	if !at.After(now) {
		return ErrInvalidSchedule
	}
	res, err := s.DB.ExecContext(ctx, `
		UPDATE campaigns
		   SET status='scheduled', scheduled_at=$1, updated_at=NOW()
		 WHERE id=$2 AND seller_id=$3 AND status IN ('draft','scheduled')
	`, at, id, sellerID)
	if err != nil {
		return err
	}
	return s.explainNoRows(ctx, res, id, sellerID)
}

func (s *Store) Cancel(ctx context.Context, id, sellerID int64) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE campaigns
		   SET status='cancelled', updated_at=NOW()
		 WHERE id=$1 AND seller_id=$2 AND status IN ('draft','scheduled')
	`, id, sellerID)
	if err != nil {
		return err
	}
	return s.explainNoRows(ctx, res, id, sellerID)
}

// ClaimSending atomically moves a campaign into 'sending'. The status
// itself is the mutual-exclusion flag: a second claim, whether from a
// duplicate API trigger or an overlapping scheduler scan, finds zero
// matching rows and reports ErrAlreadySending.
func (s *Store) ClaimSending(ctx context.Context, id int64) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE campaigns
		   SET status='sending', updated_at=NOW()
		 WHERE id=$1 AND status IN ('draft','scheduled')
	`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	c, err := s.GetCampaign(ctx, id)
	if err != nil {
		return err
	}
	if c.Status == campaign.StatusSending {
		return ErrAlreadySending
	}
	return ErrInvalidTransition
}

func (s *Store) SetTotalRecipients(ctx context.Context, id int64, total int) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE campaigns SET total_recipients=$1, updated_at=NOW() WHERE id=$2
	`, total, id)
	return err
}

// IncrementSent records one successful send; delivered marks transport
// confirmation. Counter updates are single atomic statements so each
// recipient contributes exactly once regardless of worker interleaving.
func (s *Store) IncrementSent(ctx context.Context, id int64, delivered bool) error {
	deliveredInc := 0
	if delivered {
		deliveredInc = 1
	}
	_, err := s.DB.ExecContext(ctx, `
		UPDATE campaigns
		   SET sent_count = sent_count + 1,
		       delivered_count = delivered_count + $1,
		       updated_at = NOW()
		 WHERE id=$2
	`, deliveredInc, id)
	return err
}

func (s *Store) IncrementFailed(ctx context.Context, id int64) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE campaigns
		   SET failed_count = failed_count + 1, updated_at = NOW()
		 WHERE id=$1
	`, id)
	return err
}

func (s *Store) AppendSendError(ctx context.Context, id int64, contact, errMsg string) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO campaign_send_errors (campaign_id, contact, error)
		VALUES ($1,$2,$3)
	`, id, contact, errMsg)
	return err
}

func (s *Store) ListSendErrors(ctx context.Context, campaignID int64, limit, offset int) ([]campaign.SendError, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT contact, error, created_at
		FROM campaign_send_errors
		WHERE campaign_id=$1
		ORDER BY id
		LIMIT $2 OFFSET $3
	`, campaignID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []campaign.SendError
	for rows.Next() {
		var e campaign.SendError
		if err := rows.Scan(&e.Contact, &e.Error, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Finalize closes a dispatch run. Only 'sending' campaigns can be
// finalized, so a campaign can never move backward out of a terminal
// state or skip the sending phase.
func (s *Store) Finalize(ctx context.Context, id int64, finalStatus string) error {
	if finalStatus != campaign.StatusSent && finalStatus != campaign.StatusFailed {
		return ErrInvalidTransition
	}
	res, err := s.DB.ExecContext(ctx, `
		UPDATE campaigns
		   SET status=$1, sent_at=NOW(), updated_at=NOW()
		 WHERE id=$2 AND status='sending'
	`, finalStatus, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// ListDue returns scheduled campaigns whose scheduled_at has passed.
func (s *Store) ListDue(ctx context.Context, now time.Time, limit int) ([]campaign.DispatchJob, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, seller_id
		FROM campaigns
		WHERE status='scheduled' AND scheduled_at <= $1
		ORDER BY scheduled_at
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []campaign.DispatchJob
	for rows.Next() {
		var j campaign.DispatchJob
		if err := rows.Scan(&j.CampaignID, &j.SellerID); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// explainNoRows turns a zero-row UPDATE into the right sentinel: the
// campaign either does not exist for this seller, or it is in a state the
// attempted transition does not allow.
func (s *Store) explainNoRows(ctx context.Context, res sql.Result, id, sellerID int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	c, err := s.GetSellerCampaign(ctx, id, sellerID)
	if err != nil {
		return err
	}
	if c.Status == campaign.StatusSending {
		return ErrAlreadySending
	}
	return ErrInvalidTransition
}
