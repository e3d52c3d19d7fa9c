package types

// TokenUsage represents token consumption statistics.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// Add adds another TokenUsage to this one.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// TokenCounter is the minimal counting interface used by the context window.
// llm/tokenizer implementations satisfy it through an adapter.
type TokenCounter interface {
	CountTokens(text string) int
}

// MessageOverhead is the per-message framing cost added on top of content tokens.
const MessageOverhead = 4

// CountMessageTokens counts tokens for a single message with the given counter.
func CountMessageTokens(c TokenCounter, msg Message) int {
	tokens := MessageOverhead + c.CountTokens(msg.Content)
	if msg.Name != "" {
		tokens += c.CountTokens(msg.Name)
	}
	for _, tc := range msg.ToolCalls {
		tokens += c.CountTokens(tc.Name)
		tokens += c.CountTokens(string(tc.Arguments))
	}
	return tokens
}

// CountMessagesTokens counts total tokens in a message slice.
func CountMessagesTokens(c TokenCounter, msgs []Message) int {
	total := 0
	for _, msg := range msgs {
		total += CountMessageTokens(c, msg)
	}
	return total
}

// EstimateCounter provides a simple character-based token estimation.
type EstimateCounter struct{}

// CountTokens approximates four characters per token.
func (EstimateCounter) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	n := len([]rune(text)) / 4
	if n < 1 {
		return 1
	}
	return n
}
