package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fundqa/exam-copilot/internal/core/domain"
	"github.com/fundqa/exam-copilot/internal/core/ports"
)

// notFoundResponse is the fixed refusal returned when retrieval produces no
// evidence. The generator is never called in that case.
const notFoundResponse = "未在教材中找到相关信息。"

// PromptTemplates hold the std and calc question-answering templates with
// {context} and {question} placeholders.
type PromptTemplates struct {
	Std  string
	Calc string
}

func (p PromptTemplates) Render(pipeline domain.Pipeline, contextBlock, question string) string {
	tmpl := p.Std
	if pipeline == domain.PipelineCalc {
		tmpl = p.Calc
	}
	return strings.NewReplacer(
		"{context}", contextBlock,
		"{question}", question,
	).Replace(tmpl)
}

// QueryUseCase orchestrates one question: route, retrieve, ground, generate.
type QueryUseCase struct {
	engine    *RetrievalEngine
	generator ports.AnswerGenerator
	prompts   PromptTemplates
	logger    *slog.Logger
}

func NewQueryUseCase(
	engine *RetrievalEngine,
	generator ports.AnswerGenerator,
	prompts PromptTemplates,
	logger *slog.Logger,
) *QueryUseCase {
	return &QueryUseCase{
		engine:    engine,
		generator: generator,
		prompts:   prompts,
		logger:    logger,
	}
}

// Answer runs the full pipeline and returns the complete result.
func (uc *QueryUseCase) Answer(ctx context.Context, question string) (*domain.QueryResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer", fmt.Errorf("empty question"))
	}

	pipeline := ClassifyQuestion(question)

	candidates, err := uc.engine.Retrieve(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	if len(candidates) == 0 {
		return &domain.QueryResult{
			FullResponse:    notFoundResponse,
			EvidenceSources: []domain.ChunkMetadata{},
			Pipeline:        pipeline,
			RetrievedDocs:   []domain.Candidate{},
		}, nil
	}

	prompt := uc.prompts.Render(pipeline, FormatContext(candidates), question)
	answer, err := uc.generator.Generate(ctx, pipeline, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &domain.QueryResult{
		FullResponse:    answer,
		EvidenceSources: evidenceSources(candidates),
		Pipeline:        pipeline,
		RetrievedDocs:   candidates,
	}, nil
}

// AnswerStream runs retrieval synchronously, then streams generation.
// The channel always carries one metadata event, zero or more chunk events
// and one terminal sources event; a generation failure is reported on the
// terminal event instead of aborting the stream.
func (uc *QueryUseCase) AnswerStream(ctx context.Context, question string) (<-chan domain.StreamEvent, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer stream", fmt.Errorf("empty question"))
	}

	pipeline := ClassifyQuestion(question)

	candidates, err := uc.engine.Retrieve(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	events := make(chan domain.StreamEvent)
	go func() {
		defer close(events)

		send := func(ev domain.StreamEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send(domain.StreamEvent{
			Type:      domain.EventMetadata,
			Pipeline:  pipeline,
			DocsFound: len(candidates),
		}) {
			return
		}

		terminal := domain.StreamEvent{
			Type:            domain.EventSources,
			EvidenceSources: evidenceSources(candidates),
			RetrievedDocs:   candidates,
		}

		if len(candidates) == 0 {
			if !send(domain.StreamEvent{Type: domain.EventChunk, Content: notFoundResponse}) {
				return
			}
			send(terminal)
			return
		}

		prompt := uc.prompts.Render(pipeline, FormatContext(candidates), question)
		err := uc.generator.GenerateStream(ctx, pipeline, prompt, func(delta string) error {
			if !send(domain.StreamEvent{Type: domain.EventChunk, Content: delta}) {
				return context.Canceled
			}
			return nil
		})
		if err != nil && ctx.Err() == nil {
			uc.logger.Error("streamed generation failed", "pipeline", pipeline, "error", err)
			terminal.Error = err.Error()
		}
		send(terminal)
	}()
	return events, nil
}

// FormatContext renders candidates as a numbered, source-tagged evidence
// block for the answer prompt.
func FormatContext(candidates []domain.Candidate) string {
	blocks := make([]string, 0, len(candidates))
	for i, c := range candidates {
		header := fmt.Sprintf("证据 %d [%s|%s|%s]", i+1, c.Metadata.Book, c.Metadata.Chapter, c.Metadata.Section)
		if c.Metadata.FigureRef != "" {
			header += fmt.Sprintf(" (%s)", c.Metadata.FigureRef)
		}
		blocks = append(blocks, header+":\n"+c.Content+"\n")
	}
	return strings.Join(blocks, "\n")
}

func evidenceSources(candidates []domain.Candidate) []domain.ChunkMetadata {
	sources := make([]domain.ChunkMetadata, len(candidates))
	for i, c := range candidates {
		sources[i] = c.Metadata
	}
	return sources
}
