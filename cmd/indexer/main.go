package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fundqa/exam-copilot/internal/bootstrap"
	"github.com/fundqa/exam-copilot/internal/config"
	"github.com/fundqa/exam-copilot/internal/core/domain"
	"github.com/fundqa/exam-copilot/internal/infrastructure/extractor/pdftext"
	"github.com/fundqa/exam-copilot/internal/observability/logging"
)

func main() {
	var (
		sectionsPath = flag.String("sections", "", "path to a sections JSONL file to index")
		pdfPath      = flag.String("pdf", "", "path to a textbook PDF to extract as plain text")
		outPath      = flag.String("out", "", "output path for extracted PDF text (default stdout)")
	)
	flag.Parse()

	switch {
	case *pdfPath != "":
		if err := extractPDF(*pdfPath, *outPath); err != nil {
			log.Fatalf("pdf extraction error: %v", err)
		}
	case *sectionsPath != "":
		if err := buildIndex(*sectionsPath); err != nil {
			log.Fatalf("index build error: %v", err)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func extractPDF(pdfPath, outPath string) error {
	text, err := pdftext.New().ExtractText(pdfPath)
	if err != nil {
		return err
	}
	if outPath == "" {
		fmt.Println(text)
		return nil
	}
	return os.WriteFile(outPath, []byte(text), 0o644)
}

func buildIndex(sectionsPath string) error {
	cfg := config.Load()
	logger := logging.NewJSONLogger("exam-copilot-indexer", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	sections, err := readSections(sectionsPath)
	if err != nil {
		return err
	}
	logger.Info("sections loaded", "path", sectionsPath, "sections", len(sections))

	stats, err := app.IngestUC.BuildIndex(ctx, sections)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	logger.Info("index built", "parents", stats.Parents, "children", stats.Children)
	return nil
}

// readSections parses one JSON-encoded SourceSection per line. Blank lines
// are skipped.
func readSections(path string) ([]domain.SourceSection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sections file: %w", err)
	}
	defer f.Close()

	var sections []domain.SourceSection
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var section domain.SourceSection
		if err := json.Unmarshal(line, &section); err != nil {
			return nil, fmt.Errorf("parse section at line %d: %w", lineNum, err)
		}
		sections = append(sections, section)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read sections file: %w", err)
	}
	return sections, nil
}
