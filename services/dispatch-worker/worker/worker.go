package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sellergram/broadcast/internal/access"
	"github.com/sellergram/broadcast/internal/campaign"
	"github.com/sellergram/broadcast/internal/store"
	"github.com/sellergram/broadcast/pkg/logx"
	"github.com/sellergram/broadcast/pkg/rmq"
)

const jobTimeout = 10 * time.Minute

type dispatcherAPI interface {
	Run(ctx context.Context, campaignID int64) (string, error)
}

type Worker struct {
	Cons     *rmq.Consumer
	Dispatch dispatcherAPI
}

func New(cons *rmq.Consumer, dispatch dispatcherAPI) *Worker {
	return &Worker{Cons: cons, Dispatch: dispatch}
}

func (w *Worker) Run(ctx context.Context) error {
	msgs, err := w.Cons.Consume()
	if err != nil {
		return err
	}
	logx.L().Infow("worker_started", "queue", w.Cons.Queue)

	for {
		select {
		case <-ctx.Done():
			logx.L().Infow("worker_stopping")
			return ctx.Err()

		case d, ok := <-msgs:
			if !ok {
				logx.L().Warnw("consumer_channel_closed")
				return nil
			}

			var job campaign.DispatchJob
			if err := json.Unmarshal(d.Body, &job); err != nil {
				logx.L().Warnw("job_unmarshal_error", "error", err)
				_ = d.Ack(false)
				continue
			}

			runCtx, cancel := context.WithTimeout(ctx, jobTimeout)
			state, err := w.Dispatch.Run(runCtx, job.CampaignID)
			cancel()

			if err == nil {
				logx.L().Infow("dispatch_done", "campaign_id", job.CampaignID, "state", state)
				_ = d.Ack(false)
				continue
			}

			if permanent(err) {
				logx.L().Infow("dispatch_skipped", "campaign_id", job.CampaignID, "reason", err.Error())
				_ = d.Ack(false)
				continue
			}

			logx.L().Errorw("dispatch_error", "campaign_id", job.CampaignID, "error", err)
			_ = d.Nack(false, true)
		}
	}
}

// permanent reports whether retrying the job can never succeed. A claim
// conflict means another worker owns the campaign; a denial or a bad
// transition will not heal on requeue.
func permanent(err error) bool {
	var denial *access.Denial
	return errors.Is(err, store.ErrAlreadySending) ||
		errors.Is(err, store.ErrInvalidTransition) ||
		errors.Is(err, store.ErrNotFound) ||
		errors.As(err, &denial)
}
