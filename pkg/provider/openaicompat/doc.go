// Package openaicompat implements a Reasoner for any OpenAI-compatible Chat
// Completions backend. OpenAI, OpenRouter, Groq, Mistral and LM Studio are
// all configured instances of the same Client; they differ in base URL,
// credentials, extra headers and model mapping.
package openaicompat
