package usecase

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/fundqa/exam-copilot/internal/core/domain"
	"github.com/fundqa/exam-copilot/internal/core/ports"
)

// RerankStrategy selects how retrieval candidates are ordered before
// truncation to the final context window.
type RerankStrategy string

const (
	RerankHeuristic RerankStrategy = "heuristic"
	RerankModel     RerankStrategy = "model"
)

const (
	rerankBaseScore     = 1.0
	tableRewriteBoost   = 0.5
	examPriorityBoost   = 0.3
	keywordChannelBoost = 0.2
)

// Reranker orders merged candidates. The model strategy talks to an external
// cross-encoder service that is opened lazily, at most once per process;
// any open or scoring failure degrades to the input order.
type Reranker struct {
	strategy RerankStrategy
	logger   *slog.Logger

	openEncoder func() (ports.CrossEncoder, error)
	encoderOnce sync.Once
	encoder     ports.CrossEncoder
	encoderErr  error
}

func NewReranker(strategy RerankStrategy, openEncoder func() (ports.CrossEncoder, error), logger *slog.Logger) *Reranker {
	return &Reranker{
		strategy:    strategy,
		openEncoder: openEncoder,
		logger:      logger,
	}
}

// Rerank returns candidates ordered best-first, truncated to topN.
// The input slice is not modified.
func (r *Reranker) Rerank(ctx context.Context, question string, candidates []domain.Candidate, topN int) []domain.Candidate {
	if len(candidates) == 0 {
		return candidates
	}

	out := make([]domain.Candidate, len(candidates))
	copy(out, candidates)

	switch r.strategy {
	case RerankModel:
		if !r.scoreWithEncoder(ctx, question, out) {
			return truncate(out, topN)
		}
	default:
		for i := range out {
			out[i].RerankScore = heuristicScore(out[i])
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RerankScore > out[j].RerankScore
	})
	return truncate(out, topN)
}

// heuristicScore prefers hand-rewritten tables, exam-weighted sections and
// candidates corroborated by the lexical channel.
func heuristicScore(c domain.Candidate) float64 {
	score := rerankBaseScore
	if c.Metadata.ChunkType == domain.ChunkTypeTableRewrite {
		score += tableRewriteBoost
	}
	if c.Metadata.ExamPriority > 1 {
		score += examPriorityBoost
	}
	if c.KeywordHit {
		score += keywordChannelBoost
	}
	return score
}

// scoreWithEncoder fills RerankScore from the cross-encoder and reports
// whether scoring succeeded. On failure the candidates keep their merge
// order and zero scores.
func (r *Reranker) scoreWithEncoder(ctx context.Context, question string, candidates []domain.Candidate) bool {
	r.encoderOnce.Do(func() {
		r.encoder, r.encoderErr = r.openEncoder()
		if r.encoderErr != nil {
			r.logger.Warn("cross-encoder unavailable, falling back to retrieval order", "error", r.encoderErr)
		}
	})
	if r.encoderErr != nil {
		return false
	}

	passages := make([]string, len(candidates))
	for i, c := range candidates {
		passages[i] = c.Content
	}

	scores, err := r.encoder.Score(ctx, question, passages)
	if err != nil || len(scores) != len(candidates) {
		r.logger.Warn("cross-encoder scoring failed, keeping retrieval order", "error", err)
		return false
	}
	for i := range candidates {
		candidates[i].RerankScore = scores[i]
	}
	return true
}

func truncate(candidates []domain.Candidate, topN int) []domain.Candidate {
	if topN <= 0 || topN >= len(candidates) {
		return candidates
	}
	return candidates[:topN]
}
