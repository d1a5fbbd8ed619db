package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/sellergram/broadcast/internal/campaign"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	return New(db), mock, func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatal(err)
		}
		db.Close()
	}
}

var campaignRowColumns = []string{
	"id", "seller_id", "title", "body", "category", "product_ref", "status",
	"scheduled_at", "sent_at", "total_recipients", "sent_count", "delivered_count",
	"failed_count", "created_at", "updated_at",
}

func campaignRow(mockStatus string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(campaignRowColumns).
		AddRow(int64(10), int64(1), "t", "b", "", nil, mockStatus, nil, nil, 0, 0, 0, 0, now, now)
}

func TestInsertCampaign_WithTx(t *testing.T) {
	s, mock, done := newMock(t)
	defer done()
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`
	INSERT INTO campaigns (seller_id, title, body, category, product_ref, status)
	VALUES ($1,$2,$3,$4,$5,'draft') RETURNING id`)).
		WithArgs(int64(1), "Sale", "Body", "promo", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectCommit()

	var id int64
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		var e error
		id, e = s.InsertCampaign(ctx, tx, 1, "Sale", "Body", "promo", nil)
		return e
	})
	if err != nil {
		t.Fatal(err)
	}
	if id != 7 {
		t.Fatalf("want id=7, got %d", id)
	}
}

func TestClaimSending_Succeeds(t *testing.T) {
	s, mock, done := newMock(t)
	defer done()

	mock.ExpectExec(regexp.QuoteMeta(`
		UPDATE campaigns
		   SET status='sending', updated_at=NOW()
		 WHERE id=$1 AND status IN ('draft','scheduled')
	`)).
		WithArgs(int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.ClaimSending(context.Background(), 10); err != nil {
		t.Fatal(err)
	}
}

func TestClaimSending_AlreadySending(t *testing.T) {
	s, mock, done := newMock(t)
	defer done()

	mock.ExpectExec("UPDATE campaigns").
		WithArgs(int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM campaigns").
		WithArgs(int64(10)).
		WillReturnRows(campaignRow(campaign.StatusSending))

	err := s.ClaimSending(context.Background(), 10)
	if !errors.Is(err, ErrAlreadySending) {
		t.Fatalf("want ErrAlreadySending, got %v", err)
	}
}

func TestClaimSending_TerminalCampaign(t *testing.T) {
	s, mock, done := newMock(t)
	defer done()

	mock.ExpectExec("UPDATE campaigns").
		WithArgs(int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM campaigns").
		WithArgs(int64(10)).
		WillReturnRows(campaignRow(campaign.StatusSent))

	err := s.ClaimSending(context.Background(), 10)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("want ErrInvalidTransition, got %v", err)
	}
}

func TestSchedule_RejectsPastTime(t *testing.T) {
	s, _, done := newMock(t)
	defer done()

	now := time.Now()
	err := s.Schedule(context.Background(), 10, 1, now.Add(-time.Minute), now)
	if !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("want ErrInvalidSchedule, got %v", err)
	}
}

func TestSchedule_FutureTime(t *testing.T) {
	s, mock, done := newMock(t)
	defer done()

	now := time.Now()
	at := now.Add(time.Hour)
	mock.ExpectExec("UPDATE campaigns").
		WithArgs(at, int64(10), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.Schedule(context.Background(), 10, 1, at, now); err != nil {
		t.Fatal(err)
	}
}

func TestCancel_RejectedOnceSending(t *testing.T) {
	s, mock, done := newMock(t)
	defer done()

	mock.ExpectExec("UPDATE campaigns").
		WithArgs(int64(10), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM campaigns").
		WithArgs(int64(10), int64(1)).
		WillReturnRows(campaignRow(campaign.StatusSending))

	err := s.Cancel(context.Background(), 10, 1)
	if !errors.Is(err, ErrAlreadySending) {
		t.Fatalf("want ErrAlreadySending, got %v", err)
	}
}

func TestFinalize_OnlyFromSending(t *testing.T) {
	s, mock, done := newMock(t)
	defer done()

	mock.ExpectExec("UPDATE campaigns").
		WithArgs(campaign.StatusSent, int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Finalize(context.Background(), 10, campaign.StatusSent)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("want ErrInvalidTransition, got %v", err)
	}
}

func TestFinalize_RejectsNonTerminalTarget(t *testing.T) {
	s, _, done := newMock(t)
	defer done()

	err := s.Finalize(context.Background(), 10, campaign.StatusDraft)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("finalize must never move a campaign back to draft, got %v", err)
	}
}

func TestListDue(t *testing.T) {
	s, mock, done := newMock(t)
	defer done()

	now := time.Now()
	mock.ExpectQuery("SELECT id, seller_id").
		WithArgs(now, 100).
		WillReturnRows(sqlmock.NewRows([]string{"id", "seller_id"}).
			AddRow(int64(3), int64(1)).
			AddRow(int64(4), int64(2)))

	jobs, err := s.ListDue(context.Background(), now, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 || jobs[0].CampaignID != 3 || jobs[1].SellerID != 2 {
		t.Fatalf("unexpected jobs: %+v", jobs)
	}
}

func TestGetBool_DefaultWhenUnset(t *testing.T) {
	s, mock, done := newMock(t)
	defer done()

	mock.ExpectQuery("SELECT key, value, value_type").
		WithArgs(KeyBroadcastsEnabled).
		WillReturnError(sql.ErrNoRows)

	v, err := s.GetBool(context.Background(), KeyBroadcastsEnabled, true)
	if err != nil {
		t.Fatal(err)
	}
	if !v {
		t.Fatal("unset flag must fall back to the default")
	}
}

func TestGetBool_ReadsStoredValue(t *testing.T) {
	s, mock, done := newMock(t)
	defer done()

	mock.ExpectQuery("SELECT key, value, value_type").
		WithArgs(KeyBroadcastsEnabled).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value", "value_type", "description", "updated_by", "updated_at"}).
			AddRow(KeyBroadcastsEnabled, "false", ValueBool, "", nil, time.Now()))

	v, err := s.GetBool(context.Background(), KeyBroadcastsEnabled, true)
	if err != nil {
		t.Fatal(err)
	}
	if v {
		t.Fatal("stored false must win over the default")
	}
}
