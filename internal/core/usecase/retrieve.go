package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fundqa/exam-copilot/internal/core/domain"
	"github.com/fundqa/exam-copilot/internal/core/ports"
)

const (
	defaultInitialK     = 20
	defaultCandidateCap = 20
	defaultFinalK       = 5
)

// RetrievalEngine runs hybrid recall over the child indexes and resolves the
// winners to their parent passages. The lexical channel is best-effort; the
// vector channel is mandatory.
type RetrievalEngine struct {
	embedder ports.Embedder
	vectors  ports.VectorIndex
	lexical  ports.LexicalIndex
	store    ports.ChunkStore
	reranker *Reranker
	logger   *slog.Logger

	initialK     int
	candidateCap int
	finalK       int
}

func NewRetrievalEngine(
	embedder ports.Embedder,
	vectors ports.VectorIndex,
	lexical ports.LexicalIndex,
	store ports.ChunkStore,
	reranker *Reranker,
	initialK, candidateCap, finalK int,
	logger *slog.Logger,
) *RetrievalEngine {
	if initialK <= 0 {
		initialK = defaultInitialK
	}
	if candidateCap <= 0 {
		candidateCap = defaultCandidateCap
	}
	if finalK <= 0 {
		finalK = defaultFinalK
	}
	return &RetrievalEngine{
		embedder:     embedder,
		vectors:      vectors,
		lexical:      lexical,
		store:        store,
		reranker:     reranker,
		logger:       logger,
		initialK:     initialK,
		candidateCap: candidateCap,
		finalK:       finalK,
	}
}

// Retrieve returns up to finalK parent candidates for the question, ordered
// best-first. An empty result means the corpus has nothing relevant.
func (e *RetrievalEngine) Retrieve(ctx context.Context, question string) ([]domain.Candidate, error) {
	queryVector, err := e.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	vectorHits, err := e.vectors.SearchChildren(ctx, queryVector, e.initialK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	keywordHits, err := e.lexical.SearchChildren(ctx, question, e.initialK)
	if err != nil {
		e.logger.Warn("lexical search degraded, continuing with vector hits only", "error", err)
		keywordHits = nil
	}

	candidates := e.mergeHits(vectorHits, keywordHits)
	if len(candidates) == 0 {
		return nil, nil
	}

	candidates, err = e.resolveParents(ctx, candidates)
	if err != nil {
		e.logger.Warn("parent fetch degraded, dropping candidates", "error", err)
		return nil, nil
	}

	return e.reranker.Rerank(ctx, question, candidates, e.finalK), nil
}

// mergeHits concatenates vector hits before keyword hits and keeps the first
// occurrence of each parent id. Hits without a parent id are dropped. A
// parent seen on the keyword channel is marked regardless of which channel
// saw it first.
func (e *RetrievalEngine) mergeHits(vectorHits, keywordHits []domain.RetrievalHit) []domain.Candidate {
	byParent := make(map[string]int, len(vectorHits)+len(keywordHits))
	candidates := make([]domain.Candidate, 0, e.candidateCap)

	for _, hit := range append(append([]domain.RetrievalHit{}, vectorHits...), keywordHits...) {
		if hit.ParentID == "" {
			continue
		}
		if idx, seen := byParent[hit.ParentID]; seen {
			if hit.Source == domain.SourceKeyword {
				candidates[idx].KeywordHit = true
			}
			continue
		}
		if len(candidates) >= e.candidateCap {
			continue
		}
		byParent[hit.ParentID] = len(candidates)
		candidates = append(candidates, domain.Candidate{
			ParentID:   hit.ParentID,
			Content:    hit.ChildContent,
			Metadata:   hit.Metadata,
			KeywordHit: hit.Source == domain.SourceKeyword,
		})
	}
	return candidates
}

// resolveParents swaps child snippets for full parent passages. Candidates
// whose parent row is missing are dropped.
func (e *RetrievalEngine) resolveParents(ctx context.Context, candidates []domain.Candidate) ([]domain.Candidate, error) {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ParentID
	}

	parents, err := e.store.GetParents(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get parents: %w", err)
	}

	resolved := candidates[:0]
	for _, c := range candidates {
		parent, ok := parents[c.ParentID]
		if !ok {
			e.logger.Warn("parent chunk missing for indexed child", "parent_id", c.ParentID)
			continue
		}
		c.Content = parent.Content
		c.Metadata = parent.Metadata
		resolved = append(resolved, c)
	}
	return resolved, nil
}
