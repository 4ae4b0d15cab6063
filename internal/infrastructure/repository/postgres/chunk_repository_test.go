package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/fundqa/exam-copilot/internal/core/domain"
)

func newChunkRepoWithMock(t *testing.T) (*ChunkRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &ChunkRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestSearchChildrenSanitizesQuery(t *testing.T) {
	repo, mock, done := newChunkRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"parent_id", "content", "metadata", "rank"}).
		AddRow("p1", "货币市场基金投资于短期工具", `{"book":"基金基础","chapter":"第一章","section":"1.2","chunk_type":"text","exam_priority":1}`, 0.61)

	mock.ExpectQuery("SELECT c.parent_id, c.content, c.metadata, ts_rank").
		WithArgs(`"货币市场基金 ""短期"" 工具"`, 20).
		WillReturnRows(rows)

	hits, err := repo.SearchChildren(context.Background(), `货币市场基金 "短期" 工具`, 20)
	if err != nil {
		t.Fatalf("SearchChildren() error = %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %d, want 1", len(hits))
	}
	hit := hits[0]
	if hit.ParentID != "p1" || hit.Source != domain.SourceKeyword || hit.Score != 0.61 {
		t.Fatalf("hit = %+v", hit)
	}
	if hit.Metadata.Chapter != "第一章" {
		t.Fatalf("metadata = %+v", hit.Metadata)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetParentsBuildsPlaceholdersPerID(t *testing.T) {
	repo, mock, done := newChunkRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"id", "content", "metadata"}).
		AddRow("p1", "第一段", `{"book":"基金基础","chapter":"第一章","section":"1.1","chunk_type":"text","exam_priority":1}`).
		AddRow("p2", "第二段", `{"book":"基金基础","chapter":"第一章","section":"1.2","chunk_type":"text","exam_priority":1}`)

	mock.ExpectQuery(`WHERE id IN \(\$1,\$2\)`).
		WithArgs("p1", "p2").
		WillReturnRows(rows)

	parents, err := repo.GetParents(context.Background(), []string{"p1", "p2"})
	if err != nil {
		t.Fatalf("GetParents() error = %v", err)
	}
	if len(parents) != 2 {
		t.Fatalf("parents = %d, want 2", len(parents))
	}
	if parents["p2"].Content != "第二段" {
		t.Fatalf("p2 = %+v", parents["p2"])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetParentsEmptyInputSkipsQuery(t *testing.T) {
	repo, mock, done := newChunkRepoWithMock(t)
	defer done()

	parents, err := repo.GetParents(context.Background(), nil)
	if err != nil || len(parents) != 0 {
		t.Fatalf("parents=%v err=%v", parents, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertParentsUpserts(t *testing.T) {
	repo, mock, done := newChunkRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO doc_parents").
		WithArgs("p1", "内容", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.InsertParents(context.Background(), []domain.ParentChunk{
		{ID: "p1", Content: "内容"},
	})
	if err != nil {
		t.Fatalf("InsertParents() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestChapterTreeCleansPageNumbers(t *testing.T) {
	repo, mock, done := newChunkRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"chapter", "section"}).
		AddRow("第一章 基金概述  12", "1.1").
		AddRow("第一章 基金概述", "1.2").
		AddRow("第二章 基金类型　034", "2.1")

	mock.ExpectQuery("SELECT DISTINCT metadata").WillReturnRows(rows)

	nodes, err := repo.ChapterTree(context.Background())
	if err != nil {
		t.Fatalf("ChapterTree() error = %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("nodes = %+v, want page-number variants merged into 2 chapters", nodes)
	}
	if nodes[0].Chapter != "第一章 基金概述" || len(nodes[0].Sections) != 2 {
		t.Fatalf("first node = %+v", nodes[0])
	}
	if nodes[1].Chapter != "第二章 基金类型" {
		t.Fatalf("second node = %+v", nodes[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCleanChapterName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"第一章 基金概述 12", "第一章 基金概述"},
		{"第一章 基金概述 5", "第一章 基金概述"},
		{"第三章 3Q策略", "第三章 3Q策略"},
		{"第四章", "第四章"},
	}
	for _, tc := range cases {
		if got := cleanChapterName(tc.in); got != tc.want {
			t.Fatalf("cleanChapterName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
