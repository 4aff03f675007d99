// Package provider defines the capability contracts the research engine uses
// to reach model and search backends.
//
// A Reasoner turns a prompt into text; a Searcher turns a query into ranked
// hits. Concrete adapters live in subpackages (openaicompat, ollama,
// anthropic, gemini, lmstudio) and in pkg/search. The engine only sees these
// interfaces, obtained from an atomically swapped Registry, so a settings
// change never races an in-flight stage.
package provider
