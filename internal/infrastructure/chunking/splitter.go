package chunking

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/fundqa/exam-copilot/internal/core/domain"
)

// Splitter builds the two corpus tiers. Parents aim for self-contained
// passages split on paragraph boundaries; children are fixed sliding windows
// sized for search granularity.
type Splitter struct {
	MinParent    int
	TargetParent int
	MaxParent    int

	ChildSize    int
	ChildOverlap int
}

func NewSplitter() *Splitter {
	return &Splitter{
		MinParent:    300,
		TargetParent: 1000,
		MaxParent:    2000,
		ChildSize:    300,
		ChildOverlap: 50,
	}
}

// SplitParents turns source sections into parent chunks. Hand-rewritten
// table sections are never split: their prose encodes a whole table and
// loses meaning in pieces. Length limits are measured in runes so CJK text
// is not cut mid-character.
func (s *Splitter) SplitParents(sections []domain.SourceSection) []domain.ParentChunk {
	var out []domain.ParentChunk
	for _, section := range sections {
		content := strings.TrimSpace(section.Content)
		if content == "" {
			continue
		}

		meta := domain.ChunkMetadata{
			Book:         section.Book,
			Chapter:      section.Chapter,
			Section:      section.Section,
			FigureRef:    section.FigureRef,
			ChunkType:    section.ChunkType,
			ExamPriority: section.ExamPriority,
		}
		if meta.ChunkType == "" {
			meta.ChunkType = domain.ChunkTypeText
		}
		if meta.ExamPriority <= 0 {
			meta.ExamPriority = 1
		}

		if meta.ChunkType == domain.ChunkTypeTableRewrite || len([]rune(content)) <= s.MaxParent {
			out = append(out, domain.ParentChunk{
				ID:       uuid.NewString(),
				Content:  content,
				Metadata: meta,
			})
			continue
		}

		pieces := s.splitLongSection(content)
		for i, piece := range pieces {
			pieceMeta := meta
			if len(pieces) > 1 {
				pieceMeta.SplitPart = i + 1
			}
			out = append(out, domain.ParentChunk{
				ID:       uuid.NewString(),
				Content:  piece,
				Metadata: pieceMeta,
			})
		}
	}
	return out
}

// splitLongSection accumulates paragraphs up to the target length and merges
// a trailing fragment shorter than the minimum into its predecessor.
func (s *Splitter) splitLongSection(content string) []string {
	var pieces []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		piece := strings.TrimSpace(current.String())
		if piece != "" {
			pieces = append(pieces, piece)
		}
		current.Reset()
		currentLen = 0
	}

	for _, paragraph := range splitParagraphs(content) {
		paraLen := len([]rune(paragraph))

		// A single oversized paragraph gets hard-cut at the max length.
		if paraLen > s.MaxParent {
			flush()
			for _, part := range hardSplit(paragraph, s.MaxParent) {
				pieces = append(pieces, part)
			}
			continue
		}

		if currentLen > 0 && currentLen+paraLen > s.TargetParent {
			flush()
		}
		if currentLen > 0 {
			current.WriteString("\n")
			currentLen++
		}
		current.WriteString(paragraph)
		currentLen += paraLen
	}
	flush()

	if n := len(pieces); n > 1 && len([]rune(pieces[n-1])) < s.MinParent {
		pieces[n-2] = pieces[n-2] + "\n" + pieces[n-1]
		pieces = pieces[:n-1]
	}
	return pieces
}

func splitParagraphs(content string) []string {
	separator := "\n\n"
	if !strings.Contains(content, separator) {
		separator = "\n"
	}

	raw := strings.Split(content, separator)
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{strings.TrimSpace(content)}
	}
	return out
}

func hardSplit(text string, size int) []string {
	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			out = append(out, piece)
		}
	}
	return out
}

// SplitChildren windows each parent into overlapping child chunks that
// inherit the parent metadata.
func (s *Splitter) SplitChildren(parents []domain.ParentChunk) []domain.ChildChunk {
	step := s.ChildSize - s.ChildOverlap
	if step <= 0 {
		step = s.ChildSize
	}

	var out []domain.ChildChunk
	for _, parent := range parents {
		runes := []rune(parent.Content)
		n := 0
		for start := 0; start < len(runes); start += step {
			end := start + s.ChildSize
			if end > len(runes) {
				end = len(runes)
			}
			content := strings.TrimSpace(string(runes[start:end]))
			if content != "" {
				out = append(out, domain.ChildChunk{
					ID:       fmt.Sprintf("%s-c%03d", parent.ID, n),
					ParentID: parent.ID,
					Content:  content,
					Metadata: parent.Metadata,
				})
				n++
			}
			if end == len(runes) {
				break
			}
		}
	}
	return out
}
