package auth

import (
	"testing"
	"time"
)

func TestIssueAndParse(t *testing.T) {
	tokens := New("secret", time.Hour)

	raw, err := tokens.Issue(7, RoleSeller)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := tokens.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if claims.SellerID != 7 || claims.Role != RoleSeller {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParse_WrongSecret(t *testing.T) {
	raw, err := New("secret-a", time.Hour).Issue(7, RoleSeller)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := New("secret-b", time.Hour).Parse(raw); err == nil {
		t.Fatal("token signed with another secret must not parse")
	}
}

func TestParse_Expired(t *testing.T) {
	tokens := New("secret", time.Nanosecond)
	raw, err := tokens.Issue(7, RoleSeller)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := tokens.Parse(raw); err == nil {
		t.Fatal("expired token must not parse")
	}
}

func TestParse_Garbage(t *testing.T) {
	tokens := New("secret", time.Hour)
	for _, raw := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := tokens.Parse(raw); err == nil {
			t.Fatalf("parse(%q) should fail", raw)
		}
	}
}
