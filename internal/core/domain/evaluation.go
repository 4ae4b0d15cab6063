package domain

import "time"

// EvalItem is one row of a validation dataset.
type EvalItem struct {
	Question       string `json:"question"`
	ExpectedAnswer string `json:"expected_answer"`
}

// EvalRecord is the outcome of answering one validation item.
type EvalRecord struct {
	Question       string        `json:"question"`
	ExpectedAnswer string        `json:"expected_answer"`
	ModelAnswer    string        `json:"model_answer"`
	ParsedOption   string        `json:"parsed_option"`
	Correct        bool          `json:"correct"`
	Pipeline       Pipeline      `json:"pipeline"`
	Latency        time.Duration `json:"latency"`
	Err            string        `json:"error,omitempty"`
}

// EvalSummary aggregates a full evaluation run.
type EvalSummary struct {
	Total    int     `json:"total"`
	Correct  int     `json:"correct"`
	Failed   int     `json:"failed"`
	Accuracy float64 `json:"accuracy"`
}
