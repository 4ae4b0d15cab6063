package usecase

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/fundqa/exam-copilot/internal/core/domain"
	"github.com/fundqa/exam-copilot/internal/core/ports"
)

// answerLinePattern matches the answer declaration the QA prompts instruct
// the model to emit, in either language.
var answerLinePattern = regexp.MustCompile(`(?i)(?:答案|answer)\s*[:：]\s*([A-Da-d])`)

// EvaluateUseCase replays a validation dataset through the full answering
// pipeline and scores the parsed options against expected answers.
type EvaluateUseCase struct {
	answerer ports.QueryService
	logger   *slog.Logger
}

func NewEvaluateUseCase(answerer ports.QueryService, logger *slog.Logger) *EvaluateUseCase {
	return &EvaluateUseCase{answerer: answerer, logger: logger}
}

// Run answers every item sequentially. Per-item failures are recorded, not
// fatal; they count against accuracy.
func (uc *EvaluateUseCase) Run(ctx context.Context, items []domain.EvalItem) ([]domain.EvalRecord, *domain.EvalSummary, error) {
	if len(items) == 0 {
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "evaluate", errors.New("empty dataset"))
	}

	records := make([]domain.EvalRecord, 0, len(items))
	summary := &domain.EvalSummary{Total: len(items)}

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return records, summary, err
		}

		record := domain.EvalRecord{
			Question:       item.Question,
			ExpectedAnswer: item.ExpectedAnswer,
		}

		start := time.Now()
		result, err := uc.answerer.Answer(ctx, item.Question)
		record.Latency = time.Since(start)

		if err != nil {
			record.Err = err.Error()
			summary.Failed++
			uc.logger.Warn("evaluation item failed", "index", i, "error", err)
		} else {
			record.ModelAnswer = result.FullResponse
			record.Pipeline = result.Pipeline
			record.ParsedOption = ParseAnswerOption(result.FullResponse)
			record.Correct = answerMatches(item.ExpectedAnswer, record.ParsedOption, result.FullResponse)
		}

		if record.Correct {
			summary.Correct++
		}
		records = append(records, record)
	}

	summary.Accuracy = float64(summary.Correct) / float64(summary.Total)
	uc.logger.Info("evaluation finished",
		"total", summary.Total,
		"correct", summary.Correct,
		"failed", summary.Failed,
		"accuracy", summary.Accuracy,
	)
	return records, summary, nil
}

// ParseAnswerOption extracts the declared option letter from a model answer.
// Empty when the answer carries no answer line.
func ParseAnswerOption(answer string) string {
	m := answerLinePattern.FindStringSubmatch(answer)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}

// answerMatches scores loosely: single-letter expectations compare against
// the parsed option, longer expectations pass on containment anywhere in the
// model answer.
func answerMatches(expected, parsedOption, fullAnswer string) bool {
	expected = strings.TrimSpace(expected)
	if expected == "" {
		return false
	}
	if len(expected) == 1 {
		return strings.EqualFold(expected, parsedOption)
	}
	return strings.Contains(fullAnswer, expected)
}
