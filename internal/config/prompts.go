package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Prompts are the question-answering templates. Both must reference
// {context} and {question}; the defaults ship in the binary so a template
// file is optional.
type Prompts struct {
	StdQA  string `yaml:"std_qa"`
	CalcQA string `yaml:"calc_qa"`
}

const defaultStdQA = `你是基金从业资格考试的答疑助手。请严格依据下面提供的教材证据回答问题，不要使用证据以外的知识。
如果证据不足以回答，请直接说明教材中没有相关内容。

教材证据：
{context}

问题：{question}

请先给出简要解析，最后单独一行以"答案：X"的格式给出选项（如果是选择题）。`

const defaultCalcQA = `你是基金从业资格考试的计算题助手。请严格依据下面提供的教材证据，逐步列出计算过程并求解。
计算过程必须引用证据中给出的公式和数值，不要引入教材以外的假设。

教材证据：
{context}

问题：{question}

请按以下结构回答：
1. 适用公式
2. 代入数值的计算步骤
3. 最后单独一行以"答案：X"的格式给出结果或选项。`

// DefaultPrompts returns the built-in templates.
func DefaultPrompts() Prompts {
	return Prompts{StdQA: defaultStdQA, CalcQA: defaultCalcQA}
}

// LoadPrompts reads a YAML template file, filling missing entries from the
// defaults. An empty path means defaults only.
func LoadPrompts(path string) (Prompts, error) {
	prompts := DefaultPrompts()
	if path == "" {
		return prompts, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Prompts{}, fmt.Errorf("read prompt templates: %w", err)
	}

	var loaded Prompts
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return Prompts{}, fmt.Errorf("parse prompt templates: %w", err)
	}
	if loaded.StdQA != "" {
		prompts.StdQA = loaded.StdQA
	}
	if loaded.CalcQA != "" {
		prompts.CalcQA = loaded.CalcQA
	}

	if err := prompts.validate(); err != nil {
		return Prompts{}, err
	}
	return prompts, nil
}

func (p Prompts) validate() error {
	for name, tmpl := range map[string]string{"std_qa": p.StdQA, "calc_qa": p.CalcQA} {
		for _, placeholder := range []string{"{context}", "{question}"} {
			if !strings.Contains(tmpl, placeholder) {
				return fmt.Errorf("prompt template %s is missing %s", name, placeholder)
			}
		}
	}
	return nil
}
