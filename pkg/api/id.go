package api

import "github.com/google/uuid"

// NewTaskID generates a new random task identifier (UUIDv4).
func NewTaskID() string {
	return uuid.NewString()
}

// ValidateTaskID checks whether the given string parses as a UUID.
func ValidateTaskID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}
