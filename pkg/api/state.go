package api

import "fmt"

// transitions lists the allowed next statuses for every status. The error
// status is reachable from any non-terminal status and is handled separately.
var transitions = map[TaskStatus][]TaskStatus{
	"":                              {TaskStatusStarting},
	TaskStatusStarting:              {TaskStatusClarifying},
	TaskStatusClarifying:            {TaskStatusAwaitingClarification, TaskStatusPlanning},
	TaskStatusAwaitingClarification: {TaskStatusPlanning},
	TaskStatusPlanning:              {TaskStatusAwaitingConfirmation},
	TaskStatusAwaitingConfirmation:  {TaskStatusSearching},
	TaskStatusSearching:             {TaskStatusSearching, TaskStatusReporting},
	TaskStatusReporting:             {TaskStatusDone},
	TaskStatusDone:                  {},
	TaskStatusError:                 {},
}

// ValidateTaskTransition checks whether a task status transition is valid.
// An empty "from" status represents a task that has not been created yet.
// Searching to searching is allowed so per-query progress can be recorded.
func ValidateTaskTransition(from, to TaskStatus) *APIError {
	if to == TaskStatusError {
		if from == "" || from.IsTerminal() {
			return NewInvalidRequestError("status",
				fmt.Sprintf("invalid transition from %s to %s", from, to))
		}
		return nil
	}

	allowed, exists := transitions[from]
	if !exists {
		return NewInvalidRequestError("status",
			fmt.Sprintf("invalid transition from %s to %s", from, to))
	}

	for _, s := range allowed {
		if s == to {
			return nil
		}
	}

	return NewInvalidRequestError("status",
		fmt.Sprintf("invalid transition from %s to %s", from, to))
}
