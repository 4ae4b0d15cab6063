package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/fundqa/exam-copilot/internal/core/domain"
)

// ChunkRepository persists the two-tier corpus and serves the lexical search
// channel over the child tier.
type ChunkRepository struct {
	db *sql.DB
}

func NewChunkRepository(db *sql.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ChunkRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker/indexer startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS doc_parents (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb
);

CREATE TABLE IF NOT EXISTS doc_children (
	id TEXT PRIMARY KEY,
	parent_id TEXT NOT NULL REFERENCES doc_parents(id) ON DELETE CASCADE,
	content TEXT NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	content_tsv TSVECTOR GENERATED ALWAYS AS (to_tsvector('simple', content)) STORED
);

CREATE INDEX IF NOT EXISTS idx_doc_children_tsv ON doc_children USING GIN (content_tsv);
CREATE INDEX IF NOT EXISTS idx_doc_children_parent ON doc_children(parent_id);
CREATE INDEX IF NOT EXISTS idx_doc_parents_chapter ON doc_parents((metadata->>'chapter'));
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ChunkRepository) InsertParents(ctx context.Context, parents []domain.ParentChunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin parents tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, parent := range parents {
		meta, err := json.Marshal(parent.Metadata)
		if err != nil {
			return fmt.Errorf("marshal parent metadata: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO doc_parents (id, content, metadata)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, metadata = EXCLUDED.metadata
`, parent.ID, parent.Content, meta); err != nil {
			return fmt.Errorf("insert parent %s: %w", parent.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit parents tx: %w", err)
	}
	return nil
}

func (r *ChunkRepository) InsertChildren(ctx context.Context, children []domain.ChildChunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin children tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, child := range children {
		meta, err := json.Marshal(child.Metadata)
		if err != nil {
			return fmt.Errorf("marshal child metadata: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO doc_children (id, parent_id, content, metadata)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET parent_id = EXCLUDED.parent_id, content = EXCLUDED.content, metadata = EXCLUDED.metadata
`, child.ID, child.ParentID, child.Content, meta); err != nil {
			return fmt.Errorf("insert child %s: %w", child.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit children tx: %w", err)
	}
	return nil
}

func (r *ChunkRepository) GetParents(ctx context.Context, ids []string) (map[string]domain.ParentChunk, error) {
	if len(ids) == 0 {
		return map[string]domain.ParentChunk{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := fmt.Sprintf(`
SELECT id, content, metadata
FROM doc_parents
WHERE id IN (%s)
`, strings.Join(placeholders, ","))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select parents: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.ParentChunk, len(ids))
	for rows.Next() {
		var parent domain.ParentChunk
		var meta []byte
		if err := rows.Scan(&parent.ID, &parent.Content, &meta); err != nil {
			return nil, fmt.Errorf("scan parent: %w", err)
		}
		if err := json.Unmarshal(meta, &parent.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal parent metadata: %w", err)
		}
		out[parent.ID] = parent
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parents: %w", err)
	}
	return out, nil
}

func (r *ChunkRepository) ListParentsByChapters(ctx context.Context, chapters []string) ([]domain.ParentChunk, error) {
	query := `
SELECT id, content, metadata
FROM doc_parents
`
	var args []any
	if len(chapters) > 0 {
		placeholders := make([]string, len(chapters))
		for i, chapter := range chapters {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args = append(args, chapter)
		}
		query += fmt.Sprintf("WHERE metadata->>'chapter' IN (%s)\n", strings.Join(placeholders, ","))
	}
	query += "ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select parents by chapter: %w", err)
	}
	defer rows.Close()

	var out []domain.ParentChunk
	for rows.Next() {
		var parent domain.ParentChunk
		var meta []byte
		if err := rows.Scan(&parent.ID, &parent.Content, &meta); err != nil {
			return nil, fmt.Errorf("scan parent: %w", err)
		}
		if err := json.Unmarshal(meta, &parent.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal parent metadata: %w", err)
		}
		out = append(out, parent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parents: %w", err)
	}
	return out, nil
}

// trailingPageNumber strips the page artifacts PDF extraction leaves on
// chapter headings, including full-width and non-breaking spaces.
var trailingPageNumber = regexp.MustCompile(`[\s\x{00A0}\x{3000}]+\d+[\s\x{00A0}\x{3000}]*$`)

func cleanChapterName(name string) string {
	return strings.TrimSpace(trailingPageNumber.ReplaceAllString(name, ""))
}

func (r *ChunkRepository) ChapterTree(ctx context.Context) ([]domain.ChapterNode, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT DISTINCT metadata->>'chapter', metadata->>'section'
FROM doc_parents
ORDER BY 1, 2
`)
	if err != nil {
		return nil, fmt.Errorf("select chapters: %w", err)
	}
	defer rows.Close()

	index := make(map[string]int)
	var nodes []domain.ChapterNode
	for rows.Next() {
		var chapter, section sql.NullString
		if err := rows.Scan(&chapter, &section); err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}

		name := cleanChapterName(chapter.String)
		if name == "" {
			continue
		}
		i, ok := index[name]
		if !ok {
			i = len(nodes)
			index[name] = i
			nodes = append(nodes, domain.ChapterNode{Chapter: name})
		}
		if sec := strings.TrimSpace(section.String); sec != "" && !containsString(nodes[i].Sections, sec) {
			nodes[i].Sections = append(nodes[i].Sections, sec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chapters: %w", err)
	}
	return nodes, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// SearchChildren runs full-text search with phrase semantics: embedded
// double quotes are escaped and the whole query is quoted so
// websearch_to_tsquery treats it literally.
func (r *ChunkRepository) SearchChildren(ctx context.Context, query string, limit int) ([]domain.RetrievalHit, error) {
	sanitized := `"` + strings.ReplaceAll(query, `"`, `""`) + `"`

	rows, err := r.db.QueryContext(ctx, `
SELECT c.parent_id, c.content, c.metadata, ts_rank(c.content_tsv, q.query) AS rank
FROM doc_children c, websearch_to_tsquery('simple', $1) AS q(query)
WHERE c.content_tsv @@ q.query
ORDER BY rank DESC
LIMIT $2
`, sanitized, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	var out []domain.RetrievalHit
	for rows.Next() {
		var hit domain.RetrievalHit
		var meta []byte
		if err := rows.Scan(&hit.ParentID, &hit.ChildContent, &meta, &hit.Score); err != nil {
			return nil, fmt.Errorf("scan lexical hit: %w", err)
		}
		if err := json.Unmarshal(meta, &hit.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal hit metadata: %w", err)
		}
		hit.Source = domain.SourceKeyword
		out = append(out, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lexical hits: %w", err)
	}
	return out, nil
}
