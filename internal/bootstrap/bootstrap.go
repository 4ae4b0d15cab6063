package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fundqa/exam-copilot/internal/config"
	"github.com/fundqa/exam-copilot/internal/core/ports"
	"github.com/fundqa/exam-copilot/internal/core/usecase"
	"github.com/fundqa/exam-copilot/internal/infrastructure/chunking"
	"github.com/fundqa/exam-copilot/internal/infrastructure/llm/openai"
	"github.com/fundqa/exam-copilot/internal/infrastructure/queue/nats"
	"github.com/fundqa/exam-copilot/internal/infrastructure/rerank/bge"
	"github.com/fundqa/exam-copilot/internal/infrastructure/repository/postgres"
	"github.com/fundqa/exam-copilot/internal/infrastructure/resilience"
	"github.com/fundqa/exam-copilot/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue     *nats.Queue
	Chunks    ports.ChunkStore
	QueryUC   ports.QueryService
	IngestUC  ports.CorpusIndexer
	QuestGen  ports.QuestionGenerator
	Evaluator ports.Evaluator

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	chunks := postgres.NewChunkRepository(db)
	if err := chunks.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure chunk schema: %w", err)
	}
	questions := postgres.NewQuestionRepository(db)
	if err := questions.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure question schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	llmClient := openai.New(openai.Options{
		BaseURL:       cfg.LLMAPIBase,
		APIKey:        cfg.LLMAPIKey,
		ExtraHeaders:  cfg.LLMExtraHeaders,
		StdModel:      cfg.RAGLLMModel,
		CalcModel:     cfg.CalcModelName,
		FallbackModel: cfg.CalcModelFallback,
		EmbedModel:    cfg.EmbedModelName,
	}, executor)

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	calcModel := llmClient.EnsureCalcModel(probeCtx)
	cancel()
	logger.Info("calc model selected", "model", calcModel)

	generator := openai.NewGenerator(llmClient)
	embedder := openai.NewEmbedder(llmClient)

	vectors := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)

	openEncoder := func() (ports.CrossEncoder, error) {
		encoder := bge.New(cfg.RerankServiceURL, 10*time.Second, executor)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := encoder.Ping(pingCtx); err != nil {
			return nil, fmt.Errorf("rerank service unavailable: %w", err)
		}
		return encoder, nil
	}
	reranker := usecase.NewReranker(usecase.RerankStrategy(cfg.RerankStrategy), openEncoder, logger)

	engine := usecase.NewRetrievalEngine(
		embedder,
		vectors,
		chunks,
		chunks,
		reranker,
		cfg.RetrievalInitialK,
		cfg.RetrievalCandidates,
		cfg.RetrievalFinalK,
		logger,
	)

	prompts, err := config.LoadPrompts(cfg.PromptTemplatesPath)
	if err != nil {
		return nil, fmt.Errorf("load prompt templates: %w", err)
	}

	queryUC := usecase.NewQueryUseCase(engine, generator, usecase.PromptTemplates{
		Std:  prompts.StdQA,
		Calc: prompts.CalcQA,
	}, logger)

	splitter := chunking.NewSplitter()
	ingestUC := usecase.NewIngestCorpusUseCase(splitter, embedder, vectors, chunks, cfg.EmbedBatchSize, logger)
	questGenUC := usecase.NewQuestionGenUseCase(chunks, questions, generator, embedder, queryUC, logger)
	evaluateUC := usecase.NewEvaluateUseCase(queryUC, logger)

	return &App{
		Config: cfg,
		Logger: logger,

		Queue:     queue,
		Chunks:    chunks,
		QueryUC:   queryUC,
		IngestUC:  ingestUC,
		QuestGen:  questGenUC,
		Evaluator: evaluateUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
