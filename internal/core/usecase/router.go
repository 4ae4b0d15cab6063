package usecase

import (
	"regexp"
	"strings"

	"github.com/fundqa/exam-copilot/internal/core/domain"
)

// calcKeywords are signals that a question requires numeric work. Matching is
// substring containment on the lowercased question, so ASCII entries are
// case-insensitive.
var calcKeywords = []string{
	"计算", "多少", "收益率", "净值", "费用", "金额", "比率", "份额",
	"%", "＋", "－", "+", "-", "×", "÷", "=",
	"大于", "小于", "转换", "换算", "公式",
	"n", "m", "比例", "期限",
}

// optionPattern matches exam options that carry numbers, e.g. "A：1.05" or
// "B. 200". Numeric options are the strongest calc signal.
var (
	optionPattern = regexp.MustCompile(`[A-D]\s*[：:.]\s*\d+`)
	digitPattern  = regexp.MustCompile(`\d+`)
)

// ClassifyQuestion routes a question to the std or calc pipeline. It scores
// surface features only: +1 per calc keyword present, +2 for a numeric
// option pattern, +1 for any digit run. Score 2 or more means calc.
func ClassifyQuestion(question string) domain.Pipeline {
	lower := strings.ToLower(question)

	score := 0
	for _, kw := range calcKeywords {
		if strings.Contains(lower, kw) {
			score++
		}
	}
	if optionPattern.MatchString(question) {
		score += 2
	}
	if digitPattern.MatchString(question) {
		score++
	}

	if score >= 2 {
		return domain.PipelineCalc
	}
	return domain.PipelineStd
}
