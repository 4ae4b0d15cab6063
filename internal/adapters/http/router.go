package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fundqa/exam-copilot/internal/core/domain"
	"github.com/fundqa/exam-copilot/internal/core/ports"
	"github.com/fundqa/exam-copilot/internal/observability/metrics"
)

const (
	serviceName = "api"

	backpressureAcquireTimeout = 100 * time.Millisecond
)

type RouterOptions struct {
	RateLimitRPS   float64
	RateLimitBurst int
	MaxConcurrent  int
}

type Router struct {
	logger  *slog.Logger
	query   ports.QueryService
	chunks  ports.ChunkStore
	jobs    ports.JobQueue
	metrics *metrics.HTTPServerMetrics
	opts    RouterOptions
}

func NewRouter(
	logger *slog.Logger,
	query ports.QueryService,
	chunks ports.ChunkStore,
	jobs ports.JobQueue,
	m *metrics.HTTPServerMetrics,
	opts RouterOptions,
) *Router {
	return &Router{
		logger:  logger,
		query:   query,
		chunks:  chunks,
		jobs:    jobs,
		metrics: m,
		opts:    opts,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.Handle("/metrics", rt.metrics.Handler())
	mux.HandleFunc("/v1/query", rt.answerQuery)
	mux.HandleFunc("/v1/query/stream", rt.answerQueryStream)
	mux.HandleFunc("/v1/questions/generate", rt.publishGenerationJob)
	mux.HandleFunc("/v1/corpus/chapters", rt.listChapters)

	var handler http.Handler = mux
	handler = rt.metrics.Middleware(serviceName, handler)
	handler = backpressureMiddleware(handler, rt.opts.MaxConcurrent, backpressureAcquireTimeout)
	handler = rateLimitMiddleware(handler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst)
	handler = accessLogMiddleware(rt.logger, handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type queryRequest struct {
	Question string `json:"question"`
}

func (rt *Router) answerQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	req, ok := decodeQueryRequest(w, r)
	if !ok {
		return
	}

	start := time.Now()
	result, err := rt.query.Answer(r.Context(), req.Question)
	if err != nil {
		rt.logger.Error("query failed",
			"request_id", requestIDFromContext(r.Context()),
			"error", err,
		)
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	rt.metrics.RecordQuery(serviceName, "/v1/query", string(result.Pipeline), len(result.RetrievedDocs), time.Since(start))
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) answerQueryStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	req, ok := decodeQueryRequest(w, r)
	if !ok {
		return
	}

	start := time.Now()
	events, err := rt.query.AnswerStream(r.Context(), req.Question)
	if err != nil {
		rt.logger.Error("stream query failed",
			"request_id", requestIDFromContext(r.Context()),
			"error", err,
		)
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	pipeline, docsFound, err := writeEventStream(w, events)
	if err != nil {
		rt.logger.Warn("stream aborted",
			"request_id", requestIDFromContext(r.Context()),
			"error", err,
		)
		return
	}
	rt.metrics.RecordQuery(serviceName, "/v1/query/stream", pipeline, docsFound, time.Since(start))
}

type generateRequest struct {
	Chapters []string `json:"chapters"`
	Count    int      `json:"count"`
	Types    []string `json:"types"`
}

func (rt *Router) publishGenerationJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.Chapters) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "chapters are required"})
		return
	}

	types, err := parseQuestionTypes(req.Types)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	job := domain.GenerationJob{
		ID:       uuid.NewString(),
		Chapters: req.Chapters,
		Count:    req.Count,
		Types:    types,
	}
	if err := rt.jobs.PublishGenerationJob(r.Context(), job); err != nil {
		rt.logger.Error("publish generation job failed",
			"request_id", requestIDFromContext(r.Context()),
			"error", err,
		)
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}

func (rt *Router) listChapters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	tree, err := rt.chunks.ChapterTree(r.Context())
	if err != nil {
		rt.logger.Error("chapter tree failed",
			"request_id", requestIDFromContext(r.Context()),
			"error", err,
		)
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chapters": tree})
}

func decodeQueryRequest(w http.ResponseWriter, r *http.Request) (queryRequest, bool) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return queryRequest{}, false
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return queryRequest{}, false
	}
	return req, true
}

func parseQuestionTypes(raw []string) ([]domain.QuestionType, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	types := make([]domain.QuestionType, 0, len(raw))
	for _, t := range raw {
		switch qt := domain.QuestionType(strings.ToLower(strings.TrimSpace(t))); qt {
		case domain.QuestionFact, domain.QuestionNegative, domain.QuestionScenario:
			types = append(types, qt)
		default:
			return nil, domain.WrapError(domain.ErrInvalidInput, "parse question types", errUnknownQuestionType(t))
		}
	}
	return types, nil
}

type errUnknownQuestionType string

func (e errUnknownQuestionType) Error() string {
	return "unknown question type: " + string(e)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
