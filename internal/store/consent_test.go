package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var contactRowColumns = []string{
	"id", "seller_id", "phone", "buyer_id", "name", "subscribed", "subscribed_at",
	"unsubscribed_at", "source", "opt_in_token", "opt_out_token", "created_at", "updated_at",
}

func TestUpsertContact_NewRecordStartsSubscribed(t *testing.T) {
	s, mock, done := newMock(t)
	defer done()

	now := time.Now()
	mock.ExpectQuery("INSERT INTO contacts").
		WithArgs(int64(1), "+15550001", nil, "Ada", "checkout", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(contactRowColumns).
			AddRow(int64(5), int64(1), "+15550001", nil, "Ada", true, now, nil, "checkout", "tok-in", "tok-out", now, now))

	rec, err := s.UpsertContact(context.Background(), 1, "+15550001", "Ada", "checkout", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !rec.Subscribed {
		t.Fatal("new contact must start subscribed")
	}
	if rec.OptOutToken == "" || rec.OptInToken == "" {
		t.Fatal("tokens must be minted on creation")
	}
}

func TestUpsertContact_RepeatKeepsUnsubscribedState(t *testing.T) {
	s, mock, done := newMock(t)
	defer done()

	// The conflict arm only touches name/source, so the returned row still
	// reflects the earlier opt-out.
	now := time.Now()
	unsub := now.Add(-time.Hour)
	mock.ExpectQuery("INSERT INTO contacts").
		WithArgs(int64(1), "+15550001", nil, "Ada L", "checkout", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(contactRowColumns).
			AddRow(int64(5), int64(1), "+15550001", nil, "Ada L", false, now.Add(-2*time.Hour), unsub, "checkout", "tok-in", "tok-out", now.Add(-2*time.Hour), now))

	rec, err := s.UpsertContact(context.Background(), 1, "+15550001", "Ada L", "checkout", nil)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Subscribed {
		t.Fatal("upsert must not re-subscribe an opted-out contact")
	}
	if rec.Name != "Ada L" {
		t.Fatalf("name should be refreshed, got %q", rec.Name)
	}
}

func TestRedeemOptOut_FirstRedemption(t *testing.T) {
	s, mock, done := newMock(t)
	defer done()

	mock.ExpectExec("UPDATE contacts").
		WithArgs(false, "tok-out", true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	already, err := s.RedeemOptOut(context.Background(), "tok-out")
	if err != nil {
		t.Fatal(err)
	}
	if already {
		t.Fatal("first redemption should report a fresh flip")
	}
}

func TestRedeemOptOut_SecondRedemptionIsIdempotent(t *testing.T) {
	s, mock, done := newMock(t)
	defer done()

	mock.ExpectExec("UPDATE contacts").
		WithArgs(false, "tok-out", true).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("tok-out").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	already, err := s.RedeemOptOut(context.Background(), "tok-out")
	if err != nil {
		t.Fatal(err)
	}
	if !already {
		t.Fatal("second redemption should report already done, not an error")
	}
}

func TestRedeemOptOut_UnknownToken(t *testing.T) {
	s, mock, done := newMock(t)
	defer done()

	mock.ExpectExec("UPDATE contacts").
		WithArgs(false, "nope", true).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := s.RedeemOptOut(context.Background(), "nope")
	if !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("want ErrTokenNotFound, got %v", err)
	}
}

func TestRedeemOptIn_ReSubscribes(t *testing.T) {
	s, mock, done := newMock(t)
	defer done()

	mock.ExpectExec("UPDATE contacts").
		WithArgs(true, "tok-in", false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	already, err := s.RedeemOptIn(context.Background(), "tok-in")
	if err != nil {
		t.Fatal(err)
	}
	if already {
		t.Fatal("opt-in on an unsubscribed record should flip")
	}
}

func TestListEligible_OnlySubscribedInInsertionOrder(t *testing.T) {
	s, mock, done := newMock(t)
	defer done()

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM contacts").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(contactRowColumns).
			AddRow(int64(1), int64(1), "+1", nil, "a", true, now, nil, "manual", "i1", "o1", now, now).
			AddRow(int64(3), int64(1), "+3", nil, "c", true, now, nil, "manual", "i3", "o3", now, now))

	recs, err := s.ListEligible(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || recs[0].Phone != "+1" || recs[1].Phone != "+3" {
		t.Fatalf("unexpected eligible set: %+v", recs)
	}
	for _, r := range recs {
		if !r.Subscribed {
			t.Fatalf("eligible list must never contain unsubscribed records: %+v", r)
		}
	}
}
