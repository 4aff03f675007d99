// Package auth provides pluggable authentication for the research API.
//
// Authentication uses a chain-of-responsibility pattern with three-outcome
// voting: each authenticator returns Yes (identity found), No (credentials
// invalid), or Abstain (can't handle). A configurable default voter decides
// when all authenticators abstain.
//
// Auth is implemented as HTTP middleware, keeping it decoupled from the
// engine. The middleware injects the caller's owner into the request
// context so the task store only shows a caller its own tasks.
package auth
