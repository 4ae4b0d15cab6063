package ports

import (
	"context"

	"github.com/fundqa/exam-copilot/internal/core/domain"
)

// ChunkStore persists and reads the parent/child corpus.
type ChunkStore interface {
	InsertParents(ctx context.Context, parents []domain.ParentChunk) error
	InsertChildren(ctx context.Context, children []domain.ChildChunk) error
	GetParents(ctx context.Context, ids []string) (map[string]domain.ParentChunk, error)
	ChapterTree(ctx context.Context) ([]domain.ChapterNode, error)
	ListParentsByChapters(ctx context.Context, chapters []string) ([]domain.ParentChunk, error)
}

// LexicalIndex performs full-text search over child chunks.
type LexicalIndex interface {
	SearchChildren(ctx context.Context, query string, limit int) ([]domain.RetrievalHit, error)
}

// VectorIndex stores child-chunk embeddings and performs similarity search.
type VectorIndex interface {
	IndexChildren(ctx context.Context, children []domain.ChildChunk, vectors [][]float32) error
	SearchChildren(ctx context.Context, queryVector []float32, limit int) ([]domain.RetrievalHit, error)
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// AnswerGenerator talks to the chat-completion models.
type AnswerGenerator interface {
	Generate(ctx context.Context, pipeline domain.Pipeline, prompt string) (string, error)
	GenerateStream(ctx context.Context, pipeline domain.Pipeline, prompt string, onDelta func(string) error) error
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// CrossEncoder scores query/passage pairs for the model reranker.
type CrossEncoder interface {
	Score(ctx context.Context, query string, passages []string) ([]float64, error)
}

// CorpusSplitter turns source sections into parent and child chunks.
type CorpusSplitter interface {
	SplitParents(sections []domain.SourceSection) []domain.ParentChunk
	SplitChildren(parents []domain.ParentChunk) []domain.ChildChunk
}

// QuestionStore persists generated questions.
type QuestionStore interface {
	SaveQuestion(ctx context.Context, q domain.GeneratedQuestion) error
	ListQuestionTexts(ctx context.Context, chapters []string) ([]string, error)
}

// JobQueue carries question-generation jobs from api to worker.
type JobQueue interface {
	PublishGenerationJob(ctx context.Context, job domain.GenerationJob) error
	SubscribeGenerationJobs(ctx context.Context, handler func(context.Context, domain.GenerationJob) error) error
}
