// Package storage holds what the task store and the report archive share:
// sentinel errors and the owner context helpers used to scope tasks to the
// authenticated caller.
package storage
