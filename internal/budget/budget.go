// Package budget provides token budget estimation and message trimming for
// the chat pipeline. Because the assistant can point at any OpenAI-compatible
// backend with its own tokenizer, this package uses a conservative
// character-based heuristic: 1 token ≈ 4 characters (English prose). This
// deliberately under-estimates token counts to leave headroom for
// model-specific overhead.
package budget

import (
	"github.com/54b3r/chartchat-go/internal/llm"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English prose; using 3
	// would be more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Conservative enough to fit 8k-context models while leaving room for
	// the fact block and the answer. Override via the history config.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// chat messages, summing role + content for each message.
func EstimateMessages(msgs []llm.ChatMessage) int {
	total := 0
	for _, m := range msgs {
		// Each message has a small per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(m.Role)
		total += Estimate(m.Content)
	}
	return total
}

// TrimHistory removes the oldest messages from history until the total
// estimated token count of fixed + history fits within maxTokens. fixed
// contains messages that must not be trimmed (system prompt, fact block,
// current user message). history contains prior conversation turns that may
// be dropped oldest-first.
//
// Returns the trimmed history slice. If even an empty history exceeds the
// budget, the empty slice is returned — fixed messages are never dropped
// here, callers should warn separately when fixed alone overflows.
func TrimHistory(fixed, history []llm.ChatMessage, maxTokens int) []llm.ChatMessage {
	if len(history) == 0 {
		return history
	}

	fixedTokens := EstimateMessages(fixed)

	// History is typically short; a linear scan dropping oldest-first is
	// clear and correct.
	for len(history) > 0 {
		if fixedTokens+EstimateMessages(history) <= maxTokens {
			break
		}
		history = history[1:]
	}
	return history
}
