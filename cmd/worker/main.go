package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fundqa/exam-copilot/internal/bootstrap"
	"github.com/fundqa/exam-copilot/internal/config"
	"github.com/fundqa/exam-copilot/internal/core/domain"
	"github.com/fundqa/exam-copilot/internal/observability/logging"
	"github.com/fundqa/exam-copilot/internal/observability/metrics"
)

const serviceName = "exam-copilot-worker"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: metricsMux,
	}
	go func() {
		logger.Info("worker metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("worker metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeGenerationJobs(ctx, func(handlerCtx context.Context, job domain.GenerationJob) error {
		jobCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Minute)
		defer cancel()

		workerMetrics.StartJob()
		start := time.Now()

		report, err := app.QuestGen.RunJob(jobCtx, job)
		workerMetrics.FinishJob(serviceName, time.Since(start), err)
		if err != nil {
			logger.Error("generation job failed", "job_id", job.ID, "error", err)
			return err
		}

		workerMetrics.ObserveQuestions(serviceName, report.Verified, report.Rejected)
		logger.Info("generation job done",
			"job_id", report.JobID,
			"extracted", report.Extracted,
			"generated", report.Generated,
			"duplicates", report.Duplicates,
			"verified", report.Verified,
			"rejected", report.Rejected,
		)
		return nil
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
