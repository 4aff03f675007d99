package api

import (
	"fmt"
	"strings"
)

// MaxTopicLength bounds the topic accepted by start.
const MaxTopicLength = 2000

// ValidateStartRequest checks a StartRequest for validity.
func ValidateStartRequest(req *StartRequest) *APIError {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return NewInvalidRequestError("topic", "topic is required")
	}
	if len(topic) > MaxTopicLength {
		return NewInvalidRequestError("topic",
			fmt.Sprintf("topic exceeds maximum of %d characters", MaxTopicLength))
	}
	if req.Depth != "" {
		switch strings.ToLower(req.Depth) {
		case "brief", "surface", "standard", "deep":
		default:
			return NewInvalidRequestError("depth", "depth must be one of brief, standard, deep")
		}
	}
	return nil
}

// ValidateQueryConfirmation checks the approved queries of a confirm call.
func ValidateQueryConfirmation(c *QueryConfirmation) *APIError {
	if len(c.ApprovedQueries) == 0 {
		return NewInvalidRequestError("approved_queries", "at least one query is required")
	}
	for i, q := range c.ApprovedQueries {
		if strings.TrimSpace(q.Query) == "" {
			return NewInvalidRequestError(fmt.Sprintf("approved_queries[%d].query", i), "query must not be empty")
		}
	}
	return nil
}

// ValidateClarificationResponse checks the answers of a clarify call.
func ValidateClarificationResponse(c *ClarificationResponse) *APIError {
	if c.Answers == nil {
		return NewInvalidRequestError("answers", "answers is required")
	}
	return nil
}
