package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/sellergram/broadcast/internal/campaign"
	"github.com/sellergram/broadcast/internal/consent"
	"github.com/sellergram/broadcast/internal/store"
	"github.com/sellergram/broadcast/pkg/logx"
	"github.com/sellergram/broadcast/pkg/metrics"
)

// maxErrorLog caps how many per-recipient failures are persisted for one
// dispatch run; failures past the cap still count, they just are not
// logged row by row.
const maxErrorLog = 200

type campaignStore interface {
	GetCampaign(ctx context.Context, id int64) (campaign.Campaign, error)
	ClaimSending(ctx context.Context, id int64) error
	SetTotalRecipients(ctx context.Context, id int64, total int) error
	IncrementSent(ctx context.Context, id int64, delivered bool) error
	IncrementFailed(ctx context.Context, id int64) error
	AppendSendError(ctx context.Context, id int64, contact, errMsg string) error
	Finalize(ctx context.Context, id int64, finalStatus string) error
	GetAudience(ctx context.Context, campaignID int64) ([]string, error)
}

type consentStore interface {
	ListEligible(ctx context.Context, sellerID int64) ([]consent.Record, error)
}

type sellerStore interface {
	GetSeller(ctx context.Context, id int64) (store.Seller, error)
}

type accessGate interface {
	Authorize(ctx context.Context, seller store.Seller) error
}

// Dispatcher executes one campaign's send phase: re-authorize, claim the
// sending state, fan the message out to eligible recipients through a
// bounded worker pool, and finalize.
type Dispatcher struct {
	Campaigns   campaignStore
	Consents    consentStore
	Sellers     sellerStore
	Gate        accessGate
	Transport   Transport
	Concurrency int
}

func New(campaigns campaignStore, consents consentStore, sellers sellerStore, gate accessGate, transport Transport, concurrency int) *Dispatcher {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Dispatcher{
		Campaigns:   campaigns,
		Consents:    consents,
		Sellers:     sellers,
		Gate:        gate,
		Transport:   transport,
		Concurrency: concurrency,
	}
}

// Run performs one dispatch run and returns the campaign's final status.
// Authorization is re-evaluated here even if the API already checked it,
// because flags may have changed between scheduling and send time; a
// denial leaves the campaign exactly as it was. A campaign already in
// 'sending' yields store.ErrAlreadySending.
func (d *Dispatcher) Run(ctx context.Context, campaignID int64) (string, error) {
	start := time.Now()

	c, err := d.Campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return "", err
	}

	seller, err := d.Sellers.GetSeller(ctx, c.SellerID)
	if err != nil {
		return "", err
	}
	if err := d.Gate.Authorize(ctx, seller); err != nil {
		return "", err
	}

	if err := d.Campaigns.ClaimSending(ctx, campaignID); err != nil {
		return "", err
	}

	recipients, err := d.resolveRecipients(ctx, c)
	if err != nil {
		// The campaign stays in 'sending' for a retriggered run rather
		// than being finalized as failed with nothing attempted.
		return "", err
	}
	if err := d.Campaigns.SetTotalRecipients(ctx, campaignID, len(recipients)); err != nil {
		return "", err
	}

	if len(recipients) == 0 {
		// Nothing to send is not an error.
		if err := d.Campaigns.Finalize(ctx, campaignID, campaign.StatusSent); err != nil {
			return "", err
		}
		metrics.DispatchRunsTotal.WithLabelValues(campaign.StatusSent).Inc()
		logx.L().Infow("dispatch_empty", "campaign_id", campaignID)
		return campaign.StatusSent, nil
	}

	failed := d.fanOut(ctx, c, recipients)

	final := campaign.StatusSent
	if failed == len(recipients) {
		final = campaign.StatusFailed
	}
	if err := d.Campaigns.Finalize(ctx, campaignID, final); err != nil {
		return "", err
	}

	metrics.DispatchRunsTotal.WithLabelValues(final).Inc()
	metrics.DispatchDuration.Observe(time.Since(start).Seconds())
	logx.L().Infow("dispatch_complete",
		"campaign_id", campaignID,
		"total", len(recipients),
		"failed", failed,
		"final", final,
	)
	return final, nil
}

// resolveRecipients loads the seller's eligible list and intersects it
// with the campaign's audience subset when one is defined.
func (d *Dispatcher) resolveRecipients(ctx context.Context, c campaign.Campaign) ([]consent.Record, error) {
	eligible, err := d.Consents.ListEligible(ctx, c.SellerID)
	if err != nil {
		return nil, err
	}

	audience, err := d.Campaigns.GetAudience(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if len(audience) == 0 {
		return eligible, nil
	}

	wanted := make(map[string]struct{}, len(audience))
	for _, contact := range audience {
		wanted[contact] = struct{}{}
	}
	var out []consent.Record
	for _, r := range eligible {
		if _, ok := wanted[r.Phone]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// fanOut sends to every recipient with bounded concurrency and returns
// the number of failures. Each recipient contributes exactly once to the
// aggregate; a failure never aborts the run.
func (d *Dispatcher) fanOut(ctx context.Context, c campaign.Campaign, recipients []consent.Record) int {
	jobs := make(chan consent.Record)
	var wg sync.WaitGroup

	var mu sync.Mutex
	failed := 0
	logged := 0

	for i := 0; i < d.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range jobs {
				d.sendOne(ctx, c, r, &mu, &failed, &logged)
			}
		}()
	}

	for _, r := range recipients {
		jobs <- r
	}
	close(jobs)
	wg.Wait()

	return failed
}

func (d *Dispatcher) sendOne(ctx context.Context, c campaign.Campaign, r consent.Record, mu *sync.Mutex, failed, logged *int) {
	outcome, sendErr := d.Transport.Send(ctx, r.Phone, c.Body)
	if sendErr != nil {
		mu.Lock()
		*failed++
		logThis := *logged < maxErrorLog
		if logThis {
			*logged++
		}
		mu.Unlock()

		if err := d.Campaigns.IncrementFailed(ctx, c.ID); err != nil {
			logx.L().Errorw("db_increment_failed_error", "campaign_id", c.ID, "contact", r.Phone, "error", err)
		}
		if logThis {
			if err := d.Campaigns.AppendSendError(ctx, c.ID, r.Phone, sendErr.Error()); err != nil {
				logx.L().Errorw("db_append_send_error", "campaign_id", c.ID, "contact", r.Phone, "error", err)
			}
		}
		metrics.RecipientsFailedTotal.Inc()
		logx.L().Infow("send_failed", "campaign_id", c.ID, "contact", r.Phone, "error", sendErr)
		return
	}

	if err := d.Campaigns.IncrementSent(ctx, c.ID, outcome == OutcomeDelivered); err != nil {
		logx.L().Errorw("db_increment_sent_error", "campaign_id", c.ID, "contact", r.Phone, "error", err)
	}
	metrics.RecipientsSentTotal.Inc()
}
