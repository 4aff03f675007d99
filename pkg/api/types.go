package api

import (
	"slices"
	"strings"
	"time"
)

// TaskStatus is the stage a research task is currently in.
type TaskStatus string

const (
	TaskStatusStarting              TaskStatus = "starting"
	TaskStatusClarifying            TaskStatus = "clarifying"
	TaskStatusAwaitingClarification TaskStatus = "awaiting_clarification"
	TaskStatusPlanning              TaskStatus = "planning"
	TaskStatusAwaitingConfirmation  TaskStatus = "awaiting_confirmation"
	TaskStatusSearching             TaskStatus = "searching"
	TaskStatusReporting             TaskStatus = "reporting"
	TaskStatusDone                  TaskStatus = "done"
	TaskStatusError                 TaskStatus = "error"
)

// IsTerminal reports whether no further transitions are possible.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusDone || s == TaskStatusError
}

// Depth controls how broad the plan and the report should be.
type Depth string

const (
	DepthBrief    Depth = "brief"
	DepthStandard Depth = "standard"
	DepthDeep     Depth = "deep"
)

// NormalizeDepth maps a requested depth onto a known Depth. "surface" is
// accepted as an alias of brief; anything unknown becomes standard.
func NormalizeDepth(s string) Depth {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "brief", "surface":
		return DepthBrief
	case "deep":
		return DepthDeep
	default:
		return DepthStandard
	}
}

// QuestionType distinguishes free-text from multiple-choice questions.
type QuestionType string

const (
	QuestionTypeText           QuestionType = "text"
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
)

// ClarifyingQuestion is a single question asked before planning.
type ClarifyingQuestion struct {
	Question string       `json:"question"`
	Context  *string      `json:"context"`
	Type     QuestionType `json:"type"`
	Options  []string     `json:"options"`
}

// ClarifyingQuestions is the question set produced by the clarify stage.
type ClarifyingQuestions struct {
	Topic     string               `json:"topic"`
	Questions []ClarifyingQuestion `json:"questions"`
}

// SearchQuery is one planned web search.
type SearchQuery struct {
	Query     string  `json:"query"`
	Rationale *string `json:"rationale"`
}

// SearchPlan is the ordered list of searches for a topic.
type SearchPlan struct {
	Topic   string        `json:"topic"`
	Queries []SearchQuery `json:"queries"`
}

// SearchHit is a single result returned by a search backend.
type SearchHit struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Snippet *string `json:"snippet"`
}

// SearchStep holds the hits collected for one planned query.
type SearchStep struct {
	Query string      `json:"query"`
	Hits  []SearchHit `json:"hits"`
}

// Debug holds the last prompt/response pair sent for each model-backed stage.
type Debug struct {
	ClarifyingPrompt   *string `json:"debug_clarifying_prompt"`
	ClarifyingResponse *string `json:"debug_clarifying_response"`
	PlanPrompt         *string `json:"debug_plan_prompt"`
	PlanResponse       *string `json:"debug_plan_response"`
	ReportPrompt       *string `json:"debug_report_prompt"`
	ReportResponse     *string `json:"debug_report_response"`
}

// Task is the unit of work tracked by the engine.
type Task struct {
	ID        string     `json:"task_id"`
	Topic     string     `json:"topic"`
	Depth     Depth      `json:"depth"`
	Owner     string     `json:"-"`
	StartedAt time.Time  `json:"started_at"`
	Status    TaskStatus `json:"status"`
	Message   string     `json:"message"`

	ClarifyingQuestions   *ClarifyingQuestions `json:"clarifying_questions"`
	AwaitingClarification bool                 `json:"awaiting_clarification"`
	AwaitingConfirmation  bool                 `json:"awaiting_confirmation"`

	Plan           *SearchPlan  `json:"plan"`
	Steps          []SearchStep `json:"steps"`
	ReportMarkdown *string      `json:"report_markdown"`

	Debug
}

// Clone returns a deep copy of the task. Readers of the task store only
// ever see clones, so a snapshot never aliases state a stage is writing.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.ClarifyingQuestions != nil {
		cq := *t.ClarifyingQuestions
		cq.Questions = make([]ClarifyingQuestion, len(t.ClarifyingQuestions.Questions))
		for i, q := range t.ClarifyingQuestions.Questions {
			q.Options = slices.Clone(q.Options)
			cq.Questions[i] = q
		}
		c.ClarifyingQuestions = &cq
	}
	if t.Plan != nil {
		p := *t.Plan
		p.Queries = slices.Clone(t.Plan.Queries)
		c.Plan = &p
	}
	c.Steps = make([]SearchStep, len(t.Steps))
	for i, s := range t.Steps {
		s.Hits = slices.Clone(s.Hits)
		c.Steps[i] = s
	}
	return &c
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// StartRequest is the body of a start call.
type StartRequest struct {
	Topic string `json:"topic"`
	Depth string `json:"depth,omitempty"`
}

// TaskResponse wraps a task snapshot for the calling API layer.
type TaskResponse struct {
	TaskID   string     `json:"task_id"`
	Status   TaskStatus `json:"status"`
	Progress *Task      `json:"progress"`
}

// QueryConfirmation carries the human-approved search queries.
type QueryConfirmation struct {
	ApprovedQueries []SearchQuery `json:"approved_queries"`
}

// ClarificationResponse carries the answers to the clarifying questions.
type ClarificationResponse struct {
	Answers []string `json:"answers"`
}

// MessageResponse is the acknowledgement for confirm and clarify calls.
type MessageResponse struct {
	Message string `json:"message"`
}
