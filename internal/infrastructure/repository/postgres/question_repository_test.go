package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/fundqa/exam-copilot/internal/core/domain"
)

func newQuestionRepoWithMock(t *testing.T) (*QuestionRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &QuestionRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestSaveQuestion(t *testing.T) {
	repo, mock, done := newQuestionRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	mock.ExpectExec("INSERT INTO generated_questions").
		WithArgs(
			"q1", "开放式基金的特点是？", sqlmock.AnyArg(), "A", "解析",
			string(domain.QuestionFact), "第一章", "1.1",
			string(domain.QuestionVerified), 0.9, now,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveQuestion(context.Background(), domain.GeneratedQuestion{
		ID:            "q1",
		Stem:          "开放式基金的特点是？",
		Options:       domain.QuestionOptions{A: "可随时申购赎回", B: "份额固定", C: "场内交易", D: "封闭运作"},
		CorrectOption: "A",
		Explanation:   "解析",
		Type:          domain.QuestionFact,
		Chapter:       "第一章",
		Section:       "1.1",
		Status:        domain.QuestionVerified,
		VerifyScore:   0.9,
		CreatedAt:     now,
	})
	if err != nil {
		t.Fatalf("SaveQuestion() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListQuestionTextsScopedToChapters(t *testing.T) {
	repo, mock, done := newQuestionRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"stem"}).
		AddRow("问题一").
		AddRow("问题二")

	mock.ExpectQuery(`WHERE chapter IN \(\$1\)`).
		WithArgs("第一章").
		WillReturnRows(rows)

	texts, err := repo.ListQuestionTexts(context.Background(), []string{"第一章"})
	if err != nil {
		t.Fatalf("ListQuestionTexts() error = %v", err)
	}
	if len(texts) != 2 || texts[0] != "问题一" {
		t.Fatalf("texts = %v", texts)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListQuestionTextsUnscoped(t *testing.T) {
	repo, mock, done := newQuestionRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT stem").
		WillReturnRows(sqlmock.NewRows([]string{"stem"}))

	texts, err := repo.ListQuestionTexts(context.Background(), nil)
	if err != nil || len(texts) != 0 {
		t.Fatalf("texts=%v err=%v", texts, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
