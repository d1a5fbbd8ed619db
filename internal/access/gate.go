package access

import (
	"context"

	"github.com/sellergram/broadcast/internal/store"
)

// Denial reasons, one per authorization layer. The caller always learns
// which layer blocked them.
const (
	ReasonPlatformDisabled = "platform_disabled"
	ReasonSellerDisabled   = "seller_disabled"
	ReasonTrialExpired     = "trial_expired"
	ReasonAccountInactive  = "account_inactive"
)

// Denial is an authorization failure with the layer that produced it.
type Denial struct {
	Reason string
}

func (d *Denial) Error() string { return "broadcast access denied: " + d.Reason }

type settingsAPI interface {
	GetBool(ctx context.Context, key string, def bool) (bool, error)
}

// Gate evaluates the three-layer broadcast authorization: the global
// platform flag, the per-seller flag, and the seller's trial/suspension
// status. It is consulted when a campaign leaves draft and again at the
// start of every dispatch run, because any layer may change in between.
type Gate struct {
	Settings settingsAPI
}

func NewGate(settings settingsAPI) *Gate {
	return &Gate{Settings: settings}
}

// Authorize returns nil or a *Denial. Checks run cheapest first and
// short-circuit on the first failing layer.
func (g *Gate) Authorize(ctx context.Context, seller store.Seller) error {
	enabled, err := g.Settings.GetBool(ctx, store.KeyBroadcastsEnabled, true)
	if err != nil {
		return err
	}
	if !enabled {
		return &Denial{Reason: ReasonPlatformDisabled}
	}
	if !seller.BroadcastsEnabled {
		return &Denial{Reason: ReasonSellerDisabled}
	}
	if seller.Suspended {
		return &Denial{Reason: ReasonTrialExpired}
	}
	if !seller.Active {
		return &Denial{Reason: ReasonAccountInactive}
	}
	return nil
}
