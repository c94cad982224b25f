package chat

import (
	"context"
	"fmt"

	"github.com/54b3r/chartchat-go/internal/llm"
	"github.com/54b3r/chartchat-go/internal/logging"
)

// systemPrompt frames every model call. It encodes the grading scale once so
// the model never reinterprets scores as school grades or percentages.
const systemPrompt = `You are a knowledgeable, friendly assistant for a personal album-rating catalog.
Users ask about bands, albums, scores and how ratings developed over the years.

Ground rules:
- Album scores use a 0 to 5 scale where higher is better. Never convert them to any other scale.
- Only state facts that come from the catalog data provided to you. If you have no data for something, say so plainly.
- Never invent, estimate or round scores, years or chart ranks.
- Keep answers conversational and concise; use the user's language.`

// staticWelcome is the fallback greeting used when the model cannot be
// reached at session start.
const staticWelcome = "Hi! I can tell you anything about the album catalog: scores, chart ranks, and how a band's ratings developed over the years. What would you like to know?"

// welcome produces the session greeting. It asks the generation model for a
// short opener so each session feels fresh, and falls back to the static
// greeting on any failure.
func (c *Conversation) welcome(ctx context.Context) string {
	if c.completer == nil || c.opts.GenerationModel == "" {
		return staticWelcome
	}

	prompt := "Write a one-or-two sentence greeting for a chat assistant that answers questions about a personal album-rating catalog"
	if c.catalog != nil && c.catalog.Size() > 0 {
		prompt = fmt.Sprintf("%s covering %d rated albums", prompt, c.catalog.Size())
	}
	prompt += ". Invite the user to ask about bands, scores or rating trends. Do not state any specific score."

	text, err := c.completer.Complete(ctx, c.opts.GenerationModel, []llm.ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	}, c.opts.Sampling)
	if err != nil || text == "" {
		logging.FromContext(ctx).Debug("welcome generation failed, using static greeting", "error", err)
		return staticWelcome
	}
	return text
}
