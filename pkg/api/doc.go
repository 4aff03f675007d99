// Package api defines the core data model for the OpenResearch engine.
//
// It provides the research Task and its parts (clarifying questions, search
// plan, search steps), the task status state machine, request validation
// for the calling API layer, error types, and ID generation.
//
// The package performs no I/O. All types serialize to the JSON wire format
// served by the HTTP transport.
//
// Core types:
//   - [Task]: one research run, from clarification through the final report
//   - [SearchPlan]: ordered search queries approved by a human
//   - [ClarifyingQuestions]: questions asked before planning
//   - [SearchStep]: hits collected for one planned query
//   - [APIError]: structured error with type, code, param, and message
package api
