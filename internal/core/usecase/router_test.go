package usecase

import (
	"testing"

	"github.com/fundqa/exam-copilot/internal/core/domain"
)

func TestClassifyQuestion(t *testing.T) {
	cases := []struct {
		name     string
		question string
		want     domain.Pipeline
	}{
		{
			name:     "definition question stays std",
			question: "什么是开放式基金？",
			want:     domain.PipelineStd,
		},
		{
			name:     "single keyword without numbers stays std",
			question: "基金的费用包括哪些？",
			want:     domain.PipelineStd,
		},
		{
			name:     "keyword plus digits is calc",
			question: "某基金净值为1.5元，申购费率1.5%，计算申购份额",
			want:     domain.PipelineCalc,
		},
		{
			name:     "numeric options alone are calc",
			question: "正确的是 A：1.05 B：1.10 C：1.15 D：1.20",
			want:     domain.PipelineCalc,
		},
		{
			name:     "ascii keyword matches case-insensitively",
			question: "若期限为N年，年收益率如何换算",
			want:     domain.PipelineCalc,
		},
		{
			name:     "empty question is std",
			question: "",
			want:     domain.PipelineStd,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyQuestion(tc.question); got != tc.want {
				t.Fatalf("ClassifyQuestion(%q) = %s, want %s", tc.question, got, tc.want)
			}
		})
	}
}
