package main

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sellergram/broadcast/internal/access"
	"github.com/sellergram/broadcast/internal/dispatch"
	"github.com/sellergram/broadcast/internal/store"
	"github.com/sellergram/broadcast/pkg/config"
	"github.com/sellergram/broadcast/pkg/db"
	"github.com/sellergram/broadcast/pkg/logx"
	"github.com/sellergram/broadcast/pkg/metrics"
	"github.com/sellergram/broadcast/pkg/rmq"
	"github.com/sellergram/broadcast/services/dispatch-worker/worker"
)

var errTemp = errors.New("temporary send error")

// simulateSend stands in for the messenger integration.
func simulateSend(_ context.Context, _, _ string) (dispatch.Outcome, error) {
	r := rand.Float64()
	switch {
	case r < 0.80:
		return dispatch.OutcomeDelivered, nil
	case r < 0.95:
		return dispatch.OutcomeSent, nil
	default:
		return "", errTemp
	}
}

func main() {
	logx.Init()
	defer logx.Sync()

	config.MustLoadWorker()
	cfg := config.Worker

	sqlDB, err := db.Open(cfg.DBDSN)
	if err != nil {
		logx.L().Fatalw("db_open_error", "error", err)
	}
	defer sqlDB.Close()

	cons, err := rmq.NewConsumer(cfg.RMQURL, cfg.Queue)
	if err != nil {
		logx.L().Fatalw("rmq_init_error", "error", err)
	}
	defer cons.Close()

	st := store.New(sqlDB)
	gate := access.NewGate(st)
	disp := dispatch.New(st, st, st, gate, dispatch.TransportFunc(simulateSend), cfg.Concurrency)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsSrv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: metrics.Handler()}
	go func() {
		logx.L().Infow("metrics_listen_start", "addr", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.L().Errorw("metrics_server_error", "error", err)
		}
	}()
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shCtx)
	}()

	sched := worker.NewScheduler(st, disp, cfg.ScanInterval)
	go func() {
		if err := sched.Run(ctx); err != nil && err != context.Canceled {
			logx.L().Errorw("scheduler_error", "error", err)
		}
	}()

	w := worker.New(cons, disp)
	if err := w.Run(ctx); err != nil && err != context.Canceled {
		logx.L().Fatalw("worker_error", "error", err)
	}

	logx.L().Infow("dispatch-worker stopped gracefully")
}
