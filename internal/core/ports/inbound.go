package ports

import (
	"context"

	"github.com/fundqa/exam-copilot/internal/core/domain"
)

// QueryService is the inbound contract for grounded question answering.
type QueryService interface {
	Answer(ctx context.Context, question string) (*domain.QueryResult, error)
	AnswerStream(ctx context.Context, question string) (<-chan domain.StreamEvent, error)
}

// CorpusIndexer is the inbound contract for building the retrieval corpus.
type CorpusIndexer interface {
	BuildIndex(ctx context.Context, sections []domain.SourceSection) (*domain.IndexStats, error)
}

// QuestionGenerator runs one generation job end to end.
type QuestionGenerator interface {
	RunJob(ctx context.Context, job domain.GenerationJob) (*domain.GenerationReport, error)
}

// Evaluator answers a validation dataset and scores the results.
type Evaluator interface {
	Run(ctx context.Context, items []domain.EvalItem) ([]domain.EvalRecord, *domain.EvalSummary, error)
}
