package storage

import "context"

// ownerKey is a private type for the owner context key.
type ownerKey struct{}

// SetOwner injects the authenticated subject into the context.
func SetOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// GetOwner extracts the subject from the context. An empty string means no
// owner scoping: every task is visible.
func GetOwner(ctx context.Context) string {
	if v, ok := ctx.Value(ownerKey{}).(string); ok {
		return v
	}
	return ""
}

// Visible reports whether a task owned by taskOwner may be seen from ctx.
func Visible(ctx context.Context, taskOwner string) bool {
	owner := GetOwner(ctx)
	return owner == "" || owner == taskOwner
}
