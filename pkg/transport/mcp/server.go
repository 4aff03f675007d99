// Package mcp exposes the research engine as Model Context Protocol tools.
//
// The four tools mirror the engine operations one to one:
//
//   - research_start: create a task for a topic
//   - research_get: return the task snapshot
//   - research_confirm: approve the planned queries
//   - research_clarify: answer the clarifying questions
//
// The HTTP handler is stateless: every request gets a server bound to the
// owner the auth middleware put in the request context.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/openresearch/pkg/api"
	"github.com/rhuss/openresearch/pkg/storage"
)

// Engine is the subset of the orchestration engine exposed as tools.
type Engine interface {
	Start(ctx context.Context, topic, depth string) (string, error)
	Get(ctx context.Context, id string) (*api.Task, error)
	Confirm(ctx context.Context, id string, queries []api.SearchQuery) bool
	Clarify(ctx context.Context, id string, answers []string) bool
}

// StartInput is the argument of research_start.
type StartInput struct {
	Topic string `json:"topic" jsonschema:"the research topic"`
	Depth string `json:"depth,omitempty" jsonschema:"brief, standard or deep (default standard)"`
}

// TaskInput is the argument of research_get.
type TaskInput struct {
	TaskID string `json:"task_id" jsonschema:"the task identifier returned by research_start"`
}

// QueryInput is one approved search query.
type QueryInput struct {
	Query     string `json:"query" jsonschema:"the search query"`
	Rationale string `json:"rationale,omitempty" jsonschema:"why the query is useful"`
}

// ConfirmInput is the argument of research_confirm.
type ConfirmInput struct {
	TaskID          string       `json:"task_id" jsonschema:"the task identifier"`
	ApprovedQueries []QueryInput `json:"approved_queries" jsonschema:"the queries to run, in order"`
}

// ClarifyInput is the argument of research_clarify.
type ClarifyInput struct {
	TaskID  string   `json:"task_id" jsonschema:"the task identifier"`
	Answers []string `json:"answers" jsonschema:"answers to the clarifying questions, in question order"`
}

type tools struct {
	engine Engine
	owner  string
}

// NewServer builds an MCP server whose tools act on behalf of owner. An
// empty owner sees every task.
func NewServer(eng Engine, version, owner string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "openresearch", Version: version}, nil)
	t := &tools{engine: eng, owner: owner}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "research_start",
		Description: "Start a research task. The task first asks clarifying questions or proposes a search plan; poll research_get for its status.",
	}, t.start)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "research_get",
		Description: "Return the current status, questions, plan, search results and report of a research task.",
	}, t.get)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "research_confirm",
		Description: "Approve the search queries of a task that is awaiting confirmation and start searching.",
	}, t.confirm)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "research_clarify",
		Description: "Answer the clarifying questions of a task that is awaiting clarification.",
	}, t.clarify)

	return server
}

// Handler serves the tools over streamable HTTP.
func Handler(eng Engine, version string) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return NewServer(eng, version, storage.GetOwner(r.Context()))
	}, &mcp.StreamableHTTPOptions{Stateless: true, JSONResponse: true})
}

func (t *tools) scope(ctx context.Context) context.Context {
	if t.owner == "" {
		return ctx
	}
	return storage.SetOwner(ctx, t.owner)
}

func (t *tools) start(ctx context.Context, _ *mcp.CallToolRequest, in StartInput) (*mcp.CallToolResult, any, error) {
	req := api.StartRequest{Topic: in.Topic, Depth: in.Depth}
	if apiErr := api.ValidateStartRequest(&req); apiErr != nil {
		return nil, nil, errors.New(apiErr.Message)
	}
	ctx = t.scope(ctx)
	id, err := t.engine.Start(ctx, req.Topic, req.Depth)
	if err != nil {
		return nil, nil, fmt.Errorf("starting research: %w", err)
	}
	task, err := t.engine.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return taskResult(task)
}

func (t *tools) get(ctx context.Context, _ *mcp.CallToolRequest, in TaskInput) (*mcp.CallToolResult, any, error) {
	task, err := t.engine.Get(t.scope(ctx), in.TaskID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, errors.New("Task not found")
		}
		return nil, nil, err
	}
	return taskResult(task)
}

func (t *tools) confirm(ctx context.Context, _ *mcp.CallToolRequest, in ConfirmInput) (*mcp.CallToolResult, any, error) {
	queries := make([]api.SearchQuery, 0, len(in.ApprovedQueries))
	for _, q := range in.ApprovedQueries {
		sq := api.SearchQuery{Query: q.Query}
		if q.Rationale != "" {
			sq.Rationale = api.StringPtr(q.Rationale)
		}
		queries = append(queries, sq)
	}
	conf := api.QueryConfirmation{ApprovedQueries: queries}
	if apiErr := api.ValidateQueryConfirmation(&conf); apiErr != nil {
		return nil, nil, errors.New(apiErr.Message)
	}
	if !t.engine.Confirm(t.scope(ctx), in.TaskID, queries) {
		return nil, nil, errors.New("Task not found or not awaiting confirmation")
	}
	return textResult("Queries confirmed, continuing research"), nil, nil
}

func (t *tools) clarify(ctx context.Context, _ *mcp.CallToolRequest, in ClarifyInput) (*mcp.CallToolResult, any, error) {
	answers := in.Answers
	if answers == nil {
		answers = []string{}
	}
	if !t.engine.Clarify(t.scope(ctx), in.TaskID, answers) {
		return nil, nil, errors.New("Task not found or not awaiting clarification")
	}
	return textResult("Clarifications received, creating enhanced search plan"), nil, nil
}

func taskResult(task *api.Task) (*mcp.CallToolResult, any, error) {
	data, err := json.Marshal(api.TaskResponse{TaskID: task.ID, Status: task.Status, Progress: task})
	if err != nil {
		return nil, nil, fmt.Errorf("encoding task: %w", err)
	}
	return textResult(string(data)), nil, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}
