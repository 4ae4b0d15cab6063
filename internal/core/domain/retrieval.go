package domain

// RetrievalSource tags which search channel produced a hit.
type RetrievalSource string

const (
	SourceVector  RetrievalSource = "vector"
	SourceKeyword RetrievalSource = "keyword"
)

// RetrievalHit is one child-level match from a single search backend.
// It lives only within one retrieval call.
type RetrievalHit struct {
	ParentID     string
	ChildContent string
	Metadata     ChunkMetadata
	Score        float64
	Source       RetrievalSource
}

// Candidate is a deduplicated parent passage paired with its retrieval
// evidence, produced by merging hits and destroyed when the query ends.
type Candidate struct {
	ParentID string        `json:"parent_id"`
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
	// KeywordHit is true when at least one lexical hit mapped to this parent.
	KeywordHit  bool    `json:"keyword_hit,omitempty"`
	RerankScore float64 `json:"rerank_score,omitempty"`
}

// Pipeline is the router decision selecting the generation strategy.
type Pipeline string

const (
	PipelineStd  Pipeline = "std"
	PipelineCalc Pipeline = "calc"
)

// QueryResult is the assembled answer payload for one question.
type QueryResult struct {
	FullResponse    string          `json:"full_response"`
	EvidenceSources []ChunkMetadata `json:"evidence_sources"`
	Pipeline        Pipeline        `json:"pipeline"`
	RetrievedDocs   []Candidate     `json:"retrieved_docs"`
}

// StreamEventType enumerates the closed set of streaming event variants.
type StreamEventType string

const (
	EventMetadata StreamEventType = "metadata"
	EventChunk    StreamEventType = "chunk"
	EventSources  StreamEventType = "sources"
)

// StreamEvent is one element of the incremental answer protocol:
// exactly one metadata event, zero or more chunk events, then exactly one
// terminal sources event.
type StreamEvent struct {
	Type            StreamEventType `json:"type"`
	Pipeline        Pipeline        `json:"pipeline,omitempty"`
	DocsFound       int             `json:"docs_found,omitempty"`
	Content         string          `json:"content,omitempty"`
	EvidenceSources []ChunkMetadata `json:"evidence_sources,omitempty"`
	RetrievedDocs   []Candidate     `json:"retrieved_docs,omitempty"`
	// Error carries a generation failure message on the terminal event.
	Error string `json:"error,omitempty"`
}
