package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fundqa/exam-copilot/internal/core/domain"
)

// QuestionRepository persists generated practice questions.
type QuestionRepository struct {
	db *sql.DB
}

func NewQuestionRepository(db *sql.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

func (r *QuestionRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082102)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS generated_questions (
	id TEXT PRIMARY KEY,
	stem TEXT NOT NULL,
	options JSONB NOT NULL,
	correct_option TEXT NOT NULL,
	explanation TEXT,
	question_type TEXT NOT NULL,
	chapter TEXT,
	section TEXT,
	status TEXT NOT NULL,
	verify_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_generated_questions_chapter ON generated_questions(chapter);
CREATE INDEX IF NOT EXISTS idx_generated_questions_status ON generated_questions(status);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *QuestionRepository) SaveQuestion(ctx context.Context, q domain.GeneratedQuestion) error {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO generated_questions (
	id, stem, options, correct_option, explanation, question_type, chapter, section, status, verify_score, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`,
		q.ID, q.Stem, options, q.CorrectOption, q.Explanation, string(q.Type),
		q.Chapter, q.Section, string(q.Status), q.VerifyScore, q.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

// ListQuestionTexts returns stems of previously saved questions, scoped to
// chapters when given. The duplicate filter embeds these.
func (r *QuestionRepository) ListQuestionTexts(ctx context.Context, chapters []string) ([]string, error) {
	query := `
SELECT stem
FROM generated_questions
`
	var args []any
	if len(chapters) > 0 {
		placeholders := make([]string, len(chapters))
		for i, chapter := range chapters {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args = append(args, chapter)
		}
		query += fmt.Sprintf("WHERE chapter IN (%s)\n", strings.Join(placeholders, ","))
	}
	query += "ORDER BY created_at"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select question texts: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var stem string
		if err := rows.Scan(&stem); err != nil {
			return nil, fmt.Errorf("scan question text: %w", err)
		}
		out = append(out, stem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate question texts: %w", err)
	}
	return out, nil
}
