package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fundqa/exam-copilot/internal/bootstrap"
	"github.com/fundqa/exam-copilot/internal/config"
	"github.com/fundqa/exam-copilot/internal/infrastructure/report"
	"github.com/fundqa/exam-copilot/internal/observability/logging"
)

func main() {
	var (
		inputPath  = flag.String("input", "", "validation dataset (.xlsx or .csv)")
		outputPath = flag.String("output", "eval_results.xlsx", "result workbook path")
		limit      = flag.Int("limit", 0, "max questions to evaluate, 0 means all")
	)
	flag.Parse()

	if *inputPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	logger := logging.NewJSONLogger("exam-copilot-evaluator", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	items, err := report.ReadEvalItems(*inputPath, *limit)
	if err != nil {
		log.Fatalf("read dataset error: %v", err)
	}
	logger.Info("dataset loaded", "path", *inputPath, "questions", len(items))

	records, summary, err := app.Evaluator.Run(ctx, items)
	if err != nil {
		log.Fatalf("evaluation error: %v", err)
	}

	if err := report.WriteEvalWorkbook(*outputPath, records, summary); err != nil {
		log.Fatalf("write results error: %v", err)
	}

	logger.Info("evaluation done",
		"output", *outputPath,
		"total", summary.Total,
		"correct", summary.Correct,
		"failed", summary.Failed,
		"accuracy", summary.Accuracy,
	)
}
