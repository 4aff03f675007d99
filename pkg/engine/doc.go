// Package engine drives research tasks through their stages.
//
// A task moves starting -> clarifying -> (awaiting_clarification ->)
// planning -> awaiting_confirmation -> searching -> reporting -> done, with
// error reachable from every non-terminal status. Each stage runs on its own
// goroutine and either advances on its own or parks the task behind a gate.
// A parked task has no goroutine; Clarify and Confirm close the gate and
// launch the next stage. Every launched stage is tracked by a Handle that
// can be awaited or cancelled.
//
// The task store is the only shared state. Provider calls and response
// parsing happen outside the store lock; their results are written back in
// short critical sections.
package engine
