package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/fundqa/exam-copilot/internal/core/domain"
)

// Column headers recognized in validation datasets. Files come from several
// annotators, so both Chinese and English headings appear.
var (
	questionHeaders = []string{"题目", "题干", "问题", "question"}
	answerHeaders   = []string{"答案", "正确答案", "标准答案", "answer", "expected_answer"}
)

// ReadEvalItems loads a validation dataset from a .xlsx or .csv file.
// limit <= 0 means all rows.
func ReadEvalItems(path string, limit int) ([]domain.EvalItem, error) {
	var rows [][]string
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = readXLSX(path)
	case ".csv":
		rows, err = readCSV(path)
	default:
		return nil, fmt.Errorf("unsupported dataset format: %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("dataset %s is empty", path)
	}

	qCol, aCol, hasHeader := locateColumns(rows[0])
	if hasHeader {
		rows = rows[1:]
	}

	var items []domain.EvalItem
	for _, row := range rows {
		if qCol >= len(row) || aCol >= len(row) {
			continue
		}
		question := strings.TrimSpace(row[qCol])
		answer := strings.TrimSpace(row[aCol])
		if question == "" {
			continue
		}
		items = append(items, domain.EvalItem{Question: question, ExpectedAnswer: answer})
		if limit > 0 && len(items) >= limit {
			break
		}
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("dataset %s has no usable rows", path)
	}
	return items, nil
}

func locateColumns(header []string) (qCol, aCol int, hasHeader bool) {
	qCol, aCol = 0, 1
	for i, cell := range header {
		name := strings.ToLower(strings.TrimSpace(cell))
		for _, h := range questionHeaders {
			if name == h {
				qCol = i
				hasHeader = true
			}
		}
		for _, h := range answerHeaders {
			if name == h {
				aCol = i
				hasHeader = true
			}
		}
	}
	return qCol, aCol, hasHeader
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

// WriteEvalWorkbook writes per-question results plus a summary sheet.
func WriteEvalWorkbook(path string, records []domain.EvalRecord, summary *domain.EvalSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "results"
	f.SetSheetName("Sheet1", sheet)

	headers := []any{"题目", "标准答案", "模型回答", "解析选项", "是否正确", "管线", "耗时ms", "错误"}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, rec := range records {
		correct := "否"
		if rec.Correct {
			correct = "是"
		}
		row := []any{
			rec.Question,
			rec.ExpectedAnswer,
			rec.ModelAnswer,
			rec.ParsedOption,
			correct,
			string(rec.Pipeline),
			rec.Latency.Milliseconds(),
			rec.Err,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("row coordinates: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if summary != nil {
		const summarySheet = "summary"
		if _, err := f.NewSheet(summarySheet); err != nil {
			return fmt.Errorf("create summary sheet: %w", err)
		}
		cells := [][]any{
			{"总题数", summary.Total},
			{"正确数", summary.Correct},
			{"失败数", summary.Failed},
			{"准确率", summary.Accuracy},
		}
		for i, pair := range cells {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				return fmt.Errorf("summary coordinates: %w", err)
			}
			if err := f.SetSheetRow(summarySheet, cell, &pair); err != nil {
				return fmt.Errorf("write summary row %d: %w", i+1, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}
