package worker

import (
	"context"
	"errors"
	"time"

	"github.com/sellergram/broadcast/internal/campaign"
	"github.com/sellergram/broadcast/internal/store"
	"github.com/sellergram/broadcast/pkg/logx"
	"github.com/sellergram/broadcast/pkg/metrics"
)

const scanBatch = 100

type dueAPI interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]campaign.DispatchJob, error)
}

// Scheduler periodically picks up campaigns whose scheduled time has
// passed and runs them through the dispatcher. The claim inside the
// dispatcher makes overlapping scans harmless; a campaign grabbed by a
// previous tick surfaces as a claim conflict and is skipped.
type Scheduler struct {
	Due      dueAPI
	Dispatch dispatcherAPI
	Interval time.Duration
}

func NewScheduler(due dueAPI, dispatch dispatcherAPI, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Scheduler{Due: due, Dispatch: dispatch, Interval: interval}
}

func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	logx.L().Infow("scheduler_started", "interval", s.Interval.String())
	for {
		select {
		case <-ctx.Done():
			logx.L().Infow("scheduler_stopping")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	jobs, err := s.Due.ListDue(ctx, time.Now(), scanBatch)
	if err != nil {
		logx.L().Errorw("scheduler_scan_error", "error", err)
		return
	}

	for _, job := range jobs {
		metrics.ScheduledPickedTotal.Inc()

		runCtx, cancel := context.WithTimeout(ctx, jobTimeout)
		state, err := s.Dispatch.Run(runCtx, job.CampaignID)
		cancel()

		switch {
		case err == nil:
			logx.L().Infow("scheduled_dispatch_done", "campaign_id", job.CampaignID, "state", state)
		case errors.Is(err, store.ErrAlreadySending):
			logx.L().Infow("scheduled_dispatch_raced", "campaign_id", job.CampaignID)
		case permanent(err):
			logx.L().Infow("scheduled_dispatch_skipped", "campaign_id", job.CampaignID, "reason", err.Error())
		default:
			logx.L().Errorw("scheduled_dispatch_error", "campaign_id", job.CampaignID, "error", err)
		}

		if ctx.Err() != nil {
			return
		}
	}
}
