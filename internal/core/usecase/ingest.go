package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fundqa/exam-copilot/internal/core/domain"
	"github.com/fundqa/exam-copilot/internal/core/ports"
)

const defaultEmbedBatchSize = 64

// IngestCorpusUseCase builds the two-tier retrieval corpus: parent passages
// for grounding, child windows for search granularity.
type IngestCorpusUseCase struct {
	splitter  ports.CorpusSplitter
	embedder  ports.Embedder
	vectors   ports.VectorIndex
	store     ports.ChunkStore
	batchSize int
	logger    *slog.Logger
}

func NewIngestCorpusUseCase(
	splitter ports.CorpusSplitter,
	embedder ports.Embedder,
	vectors ports.VectorIndex,
	store ports.ChunkStore,
	batchSize int,
	logger *slog.Logger,
) *IngestCorpusUseCase {
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}
	return &IngestCorpusUseCase{
		splitter:  splitter,
		embedder:  embedder,
		vectors:   vectors,
		store:     store,
		batchSize: batchSize,
		logger:    logger,
	}
}

// BuildIndex splits sections, persists both chunk tiers and indexes child
// embeddings. Parents are written before children so every indexed child has
// a resolvable parent.
func (uc *IngestCorpusUseCase) BuildIndex(ctx context.Context, sections []domain.SourceSection) (*domain.IndexStats, error) {
	if len(sections) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "build index", fmt.Errorf("no sections"))
	}

	parents := uc.splitter.SplitParents(sections)
	children := uc.splitter.SplitChildren(parents)
	uc.logger.Info("corpus split", "sections", len(sections), "parents", len(parents), "children", len(children))

	if err := uc.store.InsertParents(ctx, parents); err != nil {
		return nil, fmt.Errorf("insert parents: %w", err)
	}
	if err := uc.store.InsertChildren(ctx, children); err != nil {
		return nil, fmt.Errorf("insert children: %w", err)
	}

	for start := 0; start < len(children); start += uc.batchSize {
		end := start + uc.batchSize
		if end > len(children) {
			end = len(children)
		}
		batch := children[start:end]

		texts := make([]string, len(batch))
		for i, child := range batch {
			texts[i] = child.Content
		}
		vectors, err := uc.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed children [%d:%d]: %w", start, end, err)
		}
		if err := uc.vectors.IndexChildren(ctx, batch, vectors); err != nil {
			return nil, fmt.Errorf("index children [%d:%d]: %w", start, end, err)
		}
	}

	return &domain.IndexStats{Parents: len(parents), Children: len(children)}, nil
}
