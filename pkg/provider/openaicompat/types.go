package openaicompat

// Chat Completions request/response types. Only the fields the research
// engine sends or reads are modelled.

// ChatCompletionRequest is the request body for /chat/completions.
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

// ChatMessage represents a message in the Chat Completions format.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionResponse is the non-streaming response from /chat/completions.
// Some gateways (OpenRouter) report failures with a 200 status and an
// error object, so Error is decoded as well.
type ChatCompletionResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Error   *ChatError   `json:"error,omitempty"`
}

// ChatChoice represents one completion choice.
type ChatChoice struct {
	Index        int             `json:"index"`
	Message      ChatRespMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

// ChatRespMessage is the assistant message of a choice. Content is a
// pointer because reasoning models may return null content.
type ChatRespMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

// ChatError is the error object some backends embed in responses.
type ChatError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Code    any    `json:"code,omitempty"`
}

// ChatModelsResponse is the response from /models.
type ChatModelsResponse struct {
	Object string          `json:"object"`
	Data   []ChatModelInfo `json:"data"`
}

// ChatModelInfo is a single entry of a models listing.
type ChatModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}
