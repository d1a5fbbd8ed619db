package consent

import (
	"time"

	"github.com/google/uuid"
)

// How a recipient's consent was captured.
const (
	SourceCheckout     = "checkout"
	SourceRegistration = "registration"
	SourceManual       = "manual"
)

// Record holds one recipient's opt-in state for one seller. There is
// exactly one record per (seller, phone); records are soft-state and are
// never hard-deleted, so an unsubscribed recipient can re-subscribe with
// the same tokens.
type Record struct {
	ID             int64      `json:"id"`
	SellerID       int64      `json:"seller_id"`
	Phone          string     `json:"phone"`
	BuyerID        *int64     `json:"buyer_id,omitempty"`
	Name           string     `json:"name"`
	Subscribed     bool       `json:"subscribed"`
	SubscribedAt   time.Time  `json:"subscribed_at"`
	UnsubscribedAt *time.Time `json:"unsubscribed_at,omitempty"`
	Source         string     `json:"source"`
	OptInToken     string     `json:"-"`
	OptOutToken    string     `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewToken mints an opaque, globally unique redemption credential. The
// unique constraint on the token columns guarantees at most one record
// matches a redemption.
func NewToken() string {
	return uuid.NewString()
}
