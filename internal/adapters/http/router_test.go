package httpadapter

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fundqa/exam-copilot/internal/core/domain"
	"github.com/fundqa/exam-copilot/internal/observability/metrics"
)

type queryServiceFake struct {
	answer       *domain.QueryResult
	answerErr    error
	streamEvents []domain.StreamEvent
	streamErr    error
	lastQuestion string
}

func (f *queryServiceFake) Answer(_ context.Context, question string) (*domain.QueryResult, error) {
	f.lastQuestion = question
	if f.answerErr != nil {
		return nil, f.answerErr
	}
	return f.answer, nil
}

func (f *queryServiceFake) AnswerStream(_ context.Context, question string) (<-chan domain.StreamEvent, error) {
	f.lastQuestion = question
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	ch := make(chan domain.StreamEvent, len(f.streamEvents))
	for _, event := range f.streamEvents {
		ch <- event
	}
	close(ch)
	return ch, nil
}

type chunkStoreFake struct {
	tree    []domain.ChapterNode
	treeErr error
}

func (f *chunkStoreFake) InsertParents(context.Context, []domain.ParentChunk) error  { return nil }
func (f *chunkStoreFake) InsertChildren(context.Context, []domain.ChildChunk) error { return nil }
func (f *chunkStoreFake) GetParents(context.Context, []string) (map[string]domain.ParentChunk, error) {
	return nil, nil
}
func (f *chunkStoreFake) ChapterTree(context.Context) ([]domain.ChapterNode, error) {
	return f.tree, f.treeErr
}
func (f *chunkStoreFake) ListParentsByChapters(context.Context, []string) ([]domain.ParentChunk, error) {
	return nil, nil
}

type jobQueueFake struct {
	published  []domain.GenerationJob
	publishErr error
}

func (f *jobQueueFake) PublishGenerationJob(_ context.Context, job domain.GenerationJob) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, job)
	return nil
}

func (f *jobQueueFake) SubscribeGenerationJobs(context.Context, func(context.Context, domain.GenerationJob) error) error {
	return nil
}

func newTestRouter(query *queryServiceFake, chunks *chunkStoreFake, jobs *jobQueueFake, opts RouterOptions) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if query == nil {
		query = &queryServiceFake{}
	}
	if chunks == nil {
		chunks = &chunkStoreFake{}
	}
	if jobs == nil {
		jobs = &jobQueueFake{}
	}
	return NewRouter(logger, query, chunks, jobs, metrics.NewHTTPServerMetrics("api-test"), opts).Handler()
}

func TestAnswerQueryReturnsResult(t *testing.T) {
	query := &queryServiceFake{
		answer: &domain.QueryResult{
			FullResponse: "开放式基金可以随时申购赎回。答案：A",
			Pipeline:     domain.PipelineStd,
			EvidenceSources: []domain.ChunkMetadata{
				{Book: "基金基础", Chapter: "第一章", Section: "1.1"},
			},
			RetrievedDocs: []domain.Candidate{{ParentID: "p1", Content: "开放式基金"}},
		},
	}
	handler := newTestRouter(query, nil, nil, RouterOptions{})

	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"question":"什么是开放式基金？"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", res.Code, res.Body.String())
	}
	if query.lastQuestion != "什么是开放式基金？" {
		t.Fatalf("question = %q", query.lastQuestion)
	}

	var result domain.QueryResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Pipeline != domain.PipelineStd || len(result.RetrievedDocs) != 1 {
		t.Fatalf("result = %+v", result)
	}
}

func TestAnswerQueryRejectsEmptyQuestion(t *testing.T) {
	handler := newTestRouter(nil, nil, nil, RouterOptions{})

	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"question":"  "}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.Code)
	}
}

func TestAnswerQueryMapsTemporaryErrorTo503(t *testing.T) {
	query := &queryServiceFake{
		answerErr: domain.WrapError(domain.ErrTemporary, "llm_generate", io.ErrUnexpectedEOF),
	}
	handler := newTestRouter(query, nil, nil, RouterOptions{})

	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"question":"费用怎么算？"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", res.Code)
	}
}

func TestAnswerQueryStreamWritesFramesInOrder(t *testing.T) {
	query := &queryServiceFake{
		streamEvents: []domain.StreamEvent{
			{Type: domain.EventMetadata, Pipeline: domain.PipelineCalc, DocsFound: 2},
			{Type: domain.EventChunk, Content: "先计算"},
			{Type: domain.EventChunk, Content: "净值增长率"},
			{Type: domain.EventSources, EvidenceSources: []domain.ChunkMetadata{{Chapter: "第三章"}}},
		},
	}
	handler := newTestRouter(query, nil, nil, RouterOptions{})

	req := httptest.NewRequest(http.MethodPost, "/v1/query/stream", strings.NewReader(`{"question":"净值增长率是多少？"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.Code)
	}
	if ct := res.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	body := res.Body.String()
	frames := strings.Split(strings.TrimSpace(body), "\n\n")
	if len(frames) != 5 {
		t.Fatalf("frames = %d, want 4 events + [DONE]: %q", len(frames), body)
	}
	if frames[len(frames)-1] != "data: [DONE]" {
		t.Fatalf("last frame = %q", frames[len(frames)-1])
	}

	var first domain.StreamEvent
	if err := json.Unmarshal([]byte(strings.TrimPrefix(frames[0], "data: ")), &first); err != nil {
		t.Fatalf("decode first frame: %v", err)
	}
	if first.Type != domain.EventMetadata || first.Pipeline != domain.PipelineCalc || first.DocsFound != 2 {
		t.Fatalf("first frame = %+v", first)
	}

	var last domain.StreamEvent
	if err := json.Unmarshal([]byte(strings.TrimPrefix(frames[3], "data: ")), &last); err != nil {
		t.Fatalf("decode terminal frame: %v", err)
	}
	if last.Type != domain.EventSources || len(last.EvidenceSources) != 1 {
		t.Fatalf("terminal frame = %+v", last)
	}
}

func TestPublishGenerationJobAcceptsRequest(t *testing.T) {
	jobs := &jobQueueFake{}
	handler := newTestRouter(nil, nil, jobs, RouterOptions{})

	payload := `{"chapters":["第一章"],"count":3,"types":["fact","scenario"]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/questions/generate", strings.NewReader(payload))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body %s", res.Code, res.Body.String())
	}
	if len(jobs.published) != 1 {
		t.Fatalf("published jobs = %d, want 1", len(jobs.published))
	}
	job := jobs.published[0]
	if job.ID == "" || job.Count != 3 || len(job.Types) != 2 {
		t.Fatalf("job = %+v", job)
	}

	var resp map[string]string
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["job_id"] != job.ID {
		t.Fatalf("job_id = %q, want %q", resp["job_id"], job.ID)
	}
}

func TestPublishGenerationJobRejectsUnknownType(t *testing.T) {
	jobs := &jobQueueFake{}
	handler := newTestRouter(nil, nil, jobs, RouterOptions{})

	payload := `{"chapters":["第一章"],"types":["essay"]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/questions/generate", strings.NewReader(payload))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.Code)
	}
	if len(jobs.published) != 0 {
		t.Fatalf("no job should be published, got %d", len(jobs.published))
	}
}

func TestPublishGenerationJobRequiresChapters(t *testing.T) {
	handler := newTestRouter(nil, nil, nil, RouterOptions{})

	req := httptest.NewRequest(http.MethodPost, "/v1/questions/generate", strings.NewReader(`{"count":5}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.Code)
	}
}

func TestListChapters(t *testing.T) {
	chunks := &chunkStoreFake{
		tree: []domain.ChapterNode{
			{Chapter: "第一章", Sections: []string{"1.1", "1.2"}},
		},
	}
	handler := newTestRouter(nil, chunks, nil, RouterOptions{})

	req := httptest.NewRequest(http.MethodGet, "/v1/corpus/chapters", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.Code)
	}

	var resp struct {
		Chapters []domain.ChapterNode `json:"chapters"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Chapters) != 1 || len(resp.Chapters[0].Sections) != 2 {
		t.Fatalf("chapters = %+v", resp.Chapters)
	}
}

func TestHealthz(t *testing.T) {
	handler := newTestRouter(nil, nil, nil, RouterOptions{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.Code)
	}
}
