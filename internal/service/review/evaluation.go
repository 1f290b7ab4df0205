package review

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrEmptyEvaluation   = errors.New("review: evaluation is empty or invalid")
	ErrInvalidEvaluation = errors.New("review: evaluation has an invalid format")
)

type FeedbackItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Evaluation is the normalized evaluator verdict. Absent fields take their
// zero defaults.
type Evaluation struct {
	Feedback        []FeedbackItem `json:"feedback"`
	FeedbackSummary string         `json:"feedbackSummary"`
	IsPassed        bool           `json:"isPassed"`
}

type rawEvaluation struct {
	Feedback *[]struct {
		Question *string `json:"question"`
		Answer   *string `json:"answer"`
	} `json:"feedback"`
	FeedbackSummary *string `json:"feedbackSummary"`
	IsPassed        *bool   `json:"isPassed"`
}

// ParseEvaluation accepts the evaluator's assistantMessage, which is either
// a JSON object or a string holding one. It returns the normalized verdict
// and the object as it should be stored.
func ParseEvaluation(raw json.RawMessage) (Evaluation, json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Evaluation{}, nil, ErrEmptyEvaluation
	}

	switch raw[0] {
	case '"':
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return Evaluation{}, nil, fmt.Errorf("%w: %v", ErrEmptyEvaluation, err)
		}
		inner := bytes.TrimSpace([]byte(text))
		if len(inner) == 0 || inner[0] != '{' {
			return Evaluation{}, nil, ErrEmptyEvaluation
		}
		raw = inner
	case '{':
	default:
		return Evaluation{}, nil, ErrEmptyEvaluation
	}

	var parsed rawEvaluation
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Evaluation{}, nil, fmt.Errorf("%w: %v", ErrInvalidEvaluation, err)
	}

	out := Evaluation{Feedback: []FeedbackItem{}}
	if parsed.Feedback != nil {
		for i, item := range *parsed.Feedback {
			if item.Question == nil || item.Answer == nil {
				return Evaluation{}, nil, fmt.Errorf("%w: feedback[%d] needs question and answer", ErrInvalidEvaluation, i)
			}
			out.Feedback = append(out.Feedback, FeedbackItem{Question: *item.Question, Answer: *item.Answer})
		}
	}
	if parsed.FeedbackSummary != nil {
		out.FeedbackSummary = *parsed.FeedbackSummary
	}
	if parsed.IsPassed != nil {
		out.IsPassed = *parsed.IsPassed
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return Evaluation{}, nil, fmt.Errorf("%w: %v", ErrInvalidEvaluation, err)
	}
	return out, compact.Bytes(), nil
}
