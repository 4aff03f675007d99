// Package parse turns free-form model output into clarifying questions and
// search plans.
//
// Parsing never fails from the caller's point of view: malformed output
// yields a deterministic fallback. The returned error only describes why the
// fallback was used so it can be logged.
package parse

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rhuss/openresearch/pkg/api"
)

// MaxPlanQueries caps the number of queries kept from a model plan.
const MaxPlanQueries = 6

// ErrNoQueries is reported when a plan object carries no usable query.
var ErrNoQueries = errors.New("plan contains no usable queries")

// Error describes a model response that could not be used as-is.
type Error struct {
	Kind string // "plan" or "questions"
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ExtractJSON returns the span from the first '{' to the last '}' of text,
// or text itself when no such span exists.
func ExtractJSON(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start != -1 && end != -1 && end > start {
		return text[start : end+1]
	}
	return text
}

// FallbackPlan is the plan used when the model's plan is unusable.
func FallbackPlan(topic string) *api.SearchPlan {
	return &api.SearchPlan{
		Topic: topic,
		Queries: []api.SearchQuery{
			{Query: topic + " overview"},
			{Query: topic + " latest developments"},
			{Query: topic + " research papers"},
		},
	}
}

type planObject struct {
	Topic   any               `json:"topic"`
	Queries []json.RawMessage `json:"queries"`
}

type questionsObject struct {
	Topic     any               `json:"topic"`
	Questions []json.RawMessage `json:"questions"`
}

// Plan parses a search plan. At most MaxPlanQueries entries are kept.
func Plan(text, topic string) (*api.SearchPlan, error) {
	var obj planObject
	if err := json.Unmarshal([]byte(ExtractJSON(text)), &obj); err != nil {
		return FallbackPlan(topic), &Error{Kind: "plan", Err: err}
	}

	queries := make([]api.SearchQuery, 0, len(obj.Queries))
	for _, raw := range obj.Queries {
		if q, ok := toQuery(raw); ok {
			queries = append(queries, q)
		}
	}
	if len(queries) == 0 {
		return FallbackPlan(topic), &Error{Kind: "plan", Err: ErrNoQueries}
	}
	if len(queries) > MaxPlanQueries {
		queries = queries[:MaxPlanQueries]
	}
	return &api.SearchPlan{Topic: stringOr(obj.Topic, topic), Queries: queries}, nil
}

func toQuery(raw json.RawMessage) (api.SearchQuery, bool) {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if strings.TrimSpace(s) == "" {
			return api.SearchQuery{}, false
		}
		return api.SearchQuery{Query: s}, true
	}
	var m map[string]any
	if json.Unmarshal(raw, &m) != nil {
		return api.SearchQuery{}, false
	}
	q, _ := m["query"].(string)
	if strings.TrimSpace(q) == "" {
		return api.SearchQuery{}, false
	}
	return api.SearchQuery{Query: q, Rationale: optString(m["rationale"])}, true
}

// Questions parses a clarifying question set. Malformed output yields an
// empty set, which sends the workflow straight to planning.
func Questions(text, topic string) (*api.ClarifyingQuestions, error) {
	var obj questionsObject
	if err := json.Unmarshal([]byte(ExtractJSON(text)), &obj); err != nil {
		return &api.ClarifyingQuestions{Topic: topic, Questions: []api.ClarifyingQuestion{}}, &Error{Kind: "questions", Err: err}
	}

	questions := make([]api.ClarifyingQuestion, 0, len(obj.Questions))
	for _, raw := range obj.Questions {
		if q, ok := toQuestion(raw); ok {
			questions = append(questions, q)
		}
	}
	return &api.ClarifyingQuestions{Topic: stringOr(obj.Topic, topic), Questions: questions}, nil
}

func toQuestion(raw json.RawMessage) (api.ClarifyingQuestion, bool) {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if strings.TrimSpace(s) == "" {
			return api.ClarifyingQuestion{}, false
		}
		return api.ClarifyingQuestion{Question: s, Type: api.QuestionTypeText}, true
	}
	var m map[string]any
	if json.Unmarshal(raw, &m) != nil {
		return api.ClarifyingQuestion{}, false
	}
	text, _ := m["question"].(string)
	if strings.TrimSpace(text) == "" {
		return api.ClarifyingQuestion{}, false
	}

	q := api.ClarifyingQuestion{
		Question: text,
		Context:  optString(m["context"]),
		Type:     api.QuestionTypeText,
	}
	if t, _ := m["type"].(string); t == string(api.QuestionTypeMultipleChoice) {
		q.Type = api.QuestionTypeMultipleChoice
	}
	if opts, ok := m["options"].([]any); ok {
		q.Options = stringList(opts)
	}
	return q, true
}

// stringList keeps options only when every entry is a string.
func stringList(in []any) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		s, ok := v.(string)
		if !ok {
			return nil
		}
		out = append(out, s)
	}
	return out
}

func optString(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}
