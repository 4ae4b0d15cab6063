package domain

import "time"

// KnowledgePoint is a testable fact extracted from a parent chunk, the raw
// material for question generation.
type KnowledgePoint struct {
	Point      string `json:"point"`
	SourceText string `json:"source_text"`
	Chapter    string `json:"chapter"`
	Section    string `json:"section"`
}

// QuestionType selects the generation template.
type QuestionType string

const (
	QuestionFact     QuestionType = "fact"
	QuestionNegative QuestionType = "negative"
	QuestionScenario QuestionType = "scenario"
)

// QuestionOptions are the four single-choice options.
type QuestionOptions struct {
	A string `json:"A"`
	B string `json:"B"`
	C string `json:"C"`
	D string `json:"D"`
}

// QuestionCandidate is a generated question before verification.
type QuestionCandidate struct {
	Stem          string          `json:"stem"`
	Options       QuestionOptions `json:"options"`
	CorrectOption string          `json:"correct_option"`
	Explanation   string          `json:"explanation"`
	Type          QuestionType    `json:"type"`
	Chapter       string          `json:"chapter"`
	Section       string          `json:"section"`
}

// QuestionStatus is the verification verdict.
type QuestionStatus string

const (
	QuestionVerified QuestionStatus = "verified"
	QuestionRejected QuestionStatus = "rejected"
)

// GeneratedQuestion is a persisted, verified question.
type GeneratedQuestion struct {
	ID            string          `json:"id"`
	Stem          string          `json:"stem"`
	Options       QuestionOptions `json:"options"`
	CorrectOption string          `json:"correct_option"`
	Explanation   string          `json:"explanation"`
	Type          QuestionType    `json:"type"`
	Chapter       string          `json:"chapter"`
	Section       string          `json:"section"`
	Status        QuestionStatus  `json:"status"`
	VerifyScore   float64         `json:"verify_score"`
	CreatedAt     time.Time       `json:"created_at"`
}

// GenerationJob is the queue payload asking the worker to produce questions
// for a set of chapters.
type GenerationJob struct {
	ID       string         `json:"id"`
	Chapters []string       `json:"chapters"`
	Count    int            `json:"count"`
	Types    []QuestionType `json:"types"`
}

// GenerationReport summarizes one worker job run.
type GenerationReport struct {
	JobID      string `json:"job_id"`
	Extracted  int    `json:"extracted"`
	Generated  int    `json:"generated"`
	Duplicates int    `json:"duplicates"`
	Verified   int    `json:"verified"`
	Rejected   int    `json:"rejected"`
}

// ChapterNode is one chapter with its sections, used by the generation UI to
// scope jobs.
type ChapterNode struct {
	Chapter  string   `json:"chapter"`
	Sections []string `json:"sections"`
}
