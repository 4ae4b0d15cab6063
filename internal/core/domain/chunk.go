package domain

// ChunkType marks how a corpus passage was produced. Table rewrites are
// hand-rewritten prose versions of textbook tables and carry more exam
// signal per character than plain text.
type ChunkType string

const (
	ChunkTypeText         ChunkType = "text"
	ChunkTypeTableRewrite ChunkType = "manual_table_rewrite"
)

// ChunkMetadata is the provenance record shared by parents and children.
type ChunkMetadata struct {
	Book         string    `json:"book"`
	Chapter      string    `json:"chapter"`
	Section      string    `json:"section"`
	FigureRef    string    `json:"figure_ref,omitempty"`
	ChunkType    ChunkType `json:"chunk_type"`
	ExamPriority int       `json:"exam_priority"`
	SplitPart    int       `json:"split_part,omitempty"`
}

// ParentChunk is a self-contained textbook passage, the unit shown to the
// user as evidence.
type ParentChunk struct {
	ID       string        `json:"id"`
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
}

// ChildChunk is an overlapping slice of exactly one parent, the unit
// actually indexed for search granularity. It inherits the parent metadata.
type ChildChunk struct {
	ID       string        `json:"id"`
	ParentID string        `json:"parent_id"`
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
}

// SourceSection is a pre-chunk unit produced by corpus preparation, before
// parent/child splitting.
type SourceSection struct {
	Book         string    `json:"book"`
	Chapter      string    `json:"chapter"`
	Section      string    `json:"section"`
	Content      string    `json:"content"`
	FigureRef    string    `json:"figure_ref,omitempty"`
	ChunkType    ChunkType `json:"chunk_type,omitempty"`
	ExamPriority int       `json:"exam_priority,omitempty"`
}

// IndexStats summarizes one corpus build run.
type IndexStats struct {
	Parents  int `json:"parents"`
	Children int `json:"children"`
}
