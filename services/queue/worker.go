package queuesvc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/pkg/errors"

	"github.com/siwesng/slims/core"
	"github.com/siwesng/slims/core/logbook"
	"github.com/siwesng/slims/core/report"
)

const baseRetryDelay = 2 * time.Second

// Worker consumes queued jobs and runs the periodic sweeps.
type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	logger    core.Logger
}

func NewWorker(conf *core.Config, reportSvc report.Service, lbSvc logbook.Service, logger core.Logger) *Worker {
	server := asynq.NewServer(redisOpt(conf), asynq.Config{
		Concurrency: 5,
		RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
			return baseRetryDelay << n
		},
	})
	scheduler := asynq.NewScheduler(redisOpt(conf), &asynq.SchedulerOpts{Location: time.UTC})

	w := &Worker{
		server:    server,
		scheduler: scheduler,
		mux:       asynq.NewServeMux(),
		logger:    logger,
	}
	w.mux.HandleFunc(core.JobExportPDF, w.handleExportPDF(reportSvc))
	w.mux.HandleFunc(core.JobExportCleanup, w.handleExportCleanup(reportSvc))
	w.mux.HandleFunc(core.JobReviewSweep, w.handleReviewSweep(lbSvc))
	w.mux.HandleFunc(core.JobHealthCheck, w.handleHealthCheck)
	return w
}

// Start launches the job server and registers the periodic jobs.
func (w *Worker) Start() error {
	crons := map[string]string{
		core.JobReviewSweep:   "0 2 * * *",  // daily at 02:00 UTC
		core.JobExportCleanup: "@every 1h",
		core.JobHealthCheck:   "@every 5m",
	}
	for job, spec := range crons {
		if _, err := w.scheduler.Register(spec, asynq.NewTask(job, nil)); err != nil {
			return errors.Wrapf(err, "registering %s schedule", job)
		}
	}
	if err := w.scheduler.Start(); err != nil {
		return errors.Wrap(err, "starting job scheduler")
	}
	if err := w.server.Start(w.mux); err != nil {
		return errors.Wrap(err, "starting job server")
	}
	return nil
}

func (w *Worker) Shutdown() {
	w.scheduler.Shutdown()
	w.server.Shutdown()
}

func (w *Worker) handleExportPDF(reportSvc report.Service) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload core.ExportPDFPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			// malformed payloads never succeed; do not retry
			return fmt.Errorf("unmarshaling export payload: %v: %w", err, asynq.SkipRetry)
		}
		url, err := reportSvc.ExportLogbook(ctx, payload.StudentID, payload.SessionID)
		if err != nil {
			return err
		}
		w.logger.Info(fmt.Sprintf("exported logbook for student %s: %s", payload.StudentID, url))
		return nil
	}
}

func (w *Worker) handleExportCleanup(reportSvc report.Service) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		return reportSvc.CleanupExports(ctx)
	}
}

func (w *Worker) handleReviewSweep(lbSvc logbook.Service) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		n, err := lbSvc.ExpireStaleReviews(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			w.logger.Info(fmt.Sprintf("expired %d stale review requests", n))
		}
		return nil
	}
}

func (w *Worker) handleHealthCheck(_ context.Context, _ *asynq.Task) error {
	w.logger.Debug("job queue healthy")
	return nil
}
