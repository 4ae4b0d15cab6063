package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fundqa/exam-copilot/internal/core/domain"
	"github.com/fundqa/exam-copilot/internal/core/ports"
)

const (
	// duplicateThreshold is the embedding cosine similarity above which a
	// generated stem is considered a rephrase of an existing question.
	duplicateThreshold = 0.85
	// verifyPassScore is the minimum verifier confidence for acceptance.
	verifyPassScore = 0.7

	defaultJobCount = 5
)

const extractPrompt = `你是基金从业资格考试命题专家。请从下面的教材段落中提取可以出题的知识点。
每个知识点必须是教材中明确陈述的、可以独立考查的事实。

教材段落：
{context}

请输出 JSON 数组，每项形如 {"point": "知识点", "source_text": "教材原文依据"}。只输出 JSON。`

var questionPrompts = map[domain.QuestionType]string{
	domain.QuestionFact: `请根据以下知识点出一道单选题，直接考查该事实。

知识点：{point}
教材依据：{source_text}

输出 JSON：{"stem": "...", "options": {"A": "...", "B": "...", "C": "...", "D": "..."}, "correct_option": "A", "explanation": "..."}。只输出 JSON。`,
	domain.QuestionNegative: `请根据以下知识点出一道单选题，题干使用"下列说法错误的是"或"不属于"等否定形式。

知识点：{point}
教材依据：{source_text}

输出 JSON：{"stem": "...", "options": {"A": "...", "B": "...", "C": "...", "D": "..."}, "correct_option": "A", "explanation": "..."}。只输出 JSON。`,
	domain.QuestionScenario: `请根据以下知识点出一道单选题，题干设置一个具体业务场景（如投资者申购、赎回、转换基金），要求考生运用该知识点判断。

知识点：{point}
教材依据：{source_text}

输出 JSON：{"stem": "...", "options": {"A": "...", "B": "...", "C": "...", "D": "..."}, "correct_option": "A", "explanation": "..."}。只输出 JSON。`,
}

const verifyPrompt = `你是基金从业资格考试审题专家。下面是一道生成的单选题、它声称的正确答案，以及教材检索系统针对该题给出的回答。
请判断声称的正确答案是否与教材回答一致。

题目：{stem}
声称的正确答案：{claimed}
教材回答：{reference}

输出 JSON：{"verdict": "pass" 或 "fail", "score": 0到1之间的置信度, "reason": "..."}。只输出 JSON。`

// QuestionGenUseCase turns corpus chapters into verified practice questions:
// knowledge-point extraction, templated generation, duplicate filtering and
// retrieval-backed verification.
type QuestionGenUseCase struct {
	store     ports.ChunkStore
	questions ports.QuestionStore
	generator ports.AnswerGenerator
	embedder  ports.Embedder
	answerer  ports.QueryService
	logger    *slog.Logger
}

func NewQuestionGenUseCase(
	store ports.ChunkStore,
	questions ports.QuestionStore,
	generator ports.AnswerGenerator,
	embedder ports.Embedder,
	answerer ports.QueryService,
	logger *slog.Logger,
) *QuestionGenUseCase {
	return &QuestionGenUseCase{
		store:     store,
		questions: questions,
		generator: generator,
		embedder:  embedder,
		answerer:  answerer,
		logger:    logger,
	}
}

// RunJob executes one generation job. Individual chunk or question failures
// are logged and skipped; the job fails only when the corpus or the question
// history cannot be read at all.
func (uc *QuestionGenUseCase) RunJob(ctx context.Context, job domain.GenerationJob) (*domain.GenerationReport, error) {
	if job.Count <= 0 {
		job.Count = defaultJobCount
	}
	if len(job.Types) == 0 {
		job.Types = []domain.QuestionType{domain.QuestionFact, domain.QuestionNegative, domain.QuestionScenario}
	}

	parents, err := uc.store.ListParentsByChapters(ctx, job.Chapters)
	if err != nil {
		return nil, fmt.Errorf("list parents: %w", err)
	}
	if len(parents) == 0 {
		return nil, domain.WrapError(domain.ErrNotFound, "run job", fmt.Errorf("no corpus for chapters %v", job.Chapters))
	}

	history, err := uc.loadHistory(ctx, job.Chapters)
	if err != nil {
		return nil, fmt.Errorf("load question history: %w", err)
	}

	report := &domain.GenerationReport{JobID: job.ID}
	typeIdx := 0

	for _, parent := range parents {
		if report.Verified >= job.Count {
			break
		}

		points, err := uc.extractKnowledgePoints(ctx, parent)
		if err != nil {
			uc.logger.Warn("knowledge extraction failed, skipping chunk", "parent_id", parent.ID, "error", err)
			continue
		}
		report.Extracted += len(points)

		for _, point := range points {
			if report.Verified >= job.Count {
				break
			}

			qType := job.Types[typeIdx%len(job.Types)]
			typeIdx++

			candidate, err := uc.generateCandidate(ctx, point, qType, parent)
			if err != nil {
				uc.logger.Warn("question generation failed", "type", qType, "error", err)
				continue
			}
			report.Generated++

			stemVector, dup, err := uc.isDuplicate(ctx, candidate.Stem, history)
			if err != nil {
				uc.logger.Warn("duplicate check failed, keeping question", "error", err)
			} else if dup {
				report.Duplicates++
				continue
			}

			verified, score := uc.verify(ctx, candidate)

			question := domain.GeneratedQuestion{
				ID:            uuid.NewString(),
				Stem:          candidate.Stem,
				Options:       candidate.Options,
				CorrectOption: candidate.CorrectOption,
				Explanation:   candidate.Explanation,
				Type:          candidate.Type,
				Chapter:       candidate.Chapter,
				Section:       candidate.Section,
				Status:        domain.QuestionRejected,
				VerifyScore:   score,
				CreatedAt:     time.Now().UTC(),
			}
			if verified {
				question.Status = domain.QuestionVerified
			}
			if err := uc.questions.SaveQuestion(ctx, question); err != nil {
				uc.logger.Warn("saving question failed", "error", err)
				continue
			}

			if verified {
				report.Verified++
			} else {
				report.Rejected++
			}
			if stemVector != nil {
				history = append(history, stemVector)
			}
		}
	}

	uc.logger.Info("generation job finished",
		"job_id", job.ID,
		"extracted", report.Extracted,
		"generated", report.Generated,
		"duplicates", report.Duplicates,
		"verified", report.Verified,
		"rejected", report.Rejected,
	)
	return report, nil
}

func (uc *QuestionGenUseCase) loadHistory(ctx context.Context, chapters []string) ([][]float32, error) {
	texts, err := uc.questions.ListQuestionTexts(ctx, chapters)
	if err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, nil
	}
	return uc.embedder.Embed(ctx, texts)
}

func (uc *QuestionGenUseCase) extractKnowledgePoints(ctx context.Context, parent domain.ParentChunk) ([]domain.KnowledgePoint, error) {
	prompt := strings.Replace(extractPrompt, "{context}", parent.Content, 1)
	raw, err := uc.generator.GenerateJSON(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var points []domain.KnowledgePoint
	if err := json.Unmarshal([]byte(raw), &points); err != nil {
		return nil, fmt.Errorf("parse knowledge points: %w", err)
	}
	for i := range points {
		points[i].Chapter = parent.Metadata.Chapter
		points[i].Section = parent.Metadata.Section
	}
	return points, nil
}

func (uc *QuestionGenUseCase) generateCandidate(ctx context.Context, point domain.KnowledgePoint, qType domain.QuestionType, parent domain.ParentChunk) (domain.QuestionCandidate, error) {
	prompt := strings.NewReplacer(
		"{point}", point.Point,
		"{source_text}", point.SourceText,
	).Replace(questionPrompts[qType])

	raw, err := uc.generator.GenerateJSON(ctx, prompt)
	if err != nil {
		return domain.QuestionCandidate{}, err
	}

	var candidate domain.QuestionCandidate
	if err := json.Unmarshal([]byte(raw), &candidate); err != nil {
		return domain.QuestionCandidate{}, fmt.Errorf("parse question: %w", err)
	}
	if candidate.Stem == "" || candidate.CorrectOption == "" {
		return domain.QuestionCandidate{}, fmt.Errorf("incomplete question payload")
	}
	candidate.Type = qType
	candidate.Chapter = parent.Metadata.Chapter
	candidate.Section = parent.Metadata.Section
	return candidate, nil
}

func (uc *QuestionGenUseCase) isDuplicate(ctx context.Context, stem string, history [][]float32) ([]float32, bool, error) {
	vector, err := uc.embedder.EmbedQuery(ctx, stem)
	if err != nil {
		return nil, false, err
	}
	for _, prev := range history {
		if cosineSimilarity(vector, prev) >= duplicateThreshold {
			return vector, true, nil
		}
	}
	return vector, false, nil
}

// verify answers the generated question through the retrieval pipeline and
// asks the model whether the claimed answer matches the textbook response.
func (uc *QuestionGenUseCase) verify(ctx context.Context, candidate domain.QuestionCandidate) (bool, float64) {
	claimed := candidate.CorrectOption + ". " + optionText(candidate.Options, candidate.CorrectOption)

	reference, err := uc.answerer.Answer(ctx, candidate.Stem+"\n"+claimed)
	if err != nil {
		uc.logger.Warn("verification answer failed", "error", err)
		return false, 0
	}

	prompt := strings.NewReplacer(
		"{stem}", candidate.Stem,
		"{claimed}", claimed,
		"{reference}", reference.FullResponse,
	).Replace(verifyPrompt)

	raw, err := uc.generator.GenerateJSON(ctx, prompt)
	if err != nil {
		uc.logger.Warn("verification verdict failed", "error", err)
		return false, 0
	}

	var verdict struct {
		Verdict string  `json:"verdict"`
		Score   float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		uc.logger.Warn("verification verdict unparseable", "error", err)
		return false, 0
	}
	return strings.EqualFold(verdict.Verdict, "pass") && verdict.Score >= verifyPassScore, verdict.Score
}

func optionText(options domain.QuestionOptions, key string) string {
	switch strings.ToUpper(strings.TrimSpace(key)) {
	case "A":
		return options.A
	case "B":
		return options.B
	case "C":
		return options.C
	case "D":
		return options.D
	}
	return ""
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
