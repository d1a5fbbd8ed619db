package access

import (
	"context"
	"time"

	"github.com/sellergram/broadcast/internal/store"
	"github.com/sellergram/broadcast/pkg/auth"
)

type sellersAPI interface {
	MarkSuspended(ctx context.Context, id int64) (bool, error)
}

// TrialMonitor lazily suspends trial-bound sellers. It runs as a side
// effect of every authenticated seller request rather than on a timer, so
// a seller whose trial lapsed stays nominally active until their next
// request. That staleness window is an accepted property, not a bug.
type TrialMonitor struct {
	Sellers sellersAPI
	Now     func() time.Time
}

func NewTrialMonitor(sellers sellersAPI) *TrialMonitor {
	return &TrialMonitor{Sellers: sellers, Now: time.Now}
}

// CheckAndSuspendIfExpired suspends the seller when the trial window has
// passed. Returns true only for the request that performed the flip; the
// passed seller is updated in place so downstream checks in the same
// request see the suspension.
func (m *TrialMonitor) CheckAndSuspendIfExpired(ctx context.Context, seller *store.Seller) (bool, error) {
	if seller.Role != auth.RoleSeller {
		return false, nil
	}
	if seller.Suspended || seller.TrialEndsAt == nil {
		return false, nil
	}
	if m.Now().Before(*seller.TrialEndsAt) {
		return false, nil
	}

	flipped, err := m.Sellers.MarkSuspended(ctx, seller.ID)
	if err != nil {
		return false, err
	}
	seller.Suspended = true
	seller.Active = false
	return flipped, nil
}
