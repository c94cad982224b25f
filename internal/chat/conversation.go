// Package chat owns the conversation: message history, the two-stage
// generate-then-validate model protocol, and session persistence. A turn
// moves through a small state machine (idle, awaiting generation, awaiting
// validation) and every external failure degrades along a fixed policy:
// retrieval faults never block generation, validation faults never discard a
// draft, and only a generation fault is surfaced to the user.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/54b3r/chartchat-go/internal/budget"
	"github.com/54b3r/chartchat-go/internal/catalog"
	"github.com/54b3r/chartchat-go/internal/llm"
	"github.com/54b3r/chartchat-go/internal/logging"
	"github.com/54b3r/chartchat-go/internal/mention"
	"github.com/54b3r/chartchat-go/internal/retrieval"
	"github.com/54b3r/chartchat-go/internal/store"
)

var (
	// ErrEmptyMessage is returned when the user message is empty or
	// whitespace-only.
	ErrEmptyMessage = errors.New("chat: message is empty")
	// ErrBusy is returned while another turn is still in flight. There is
	// no queueing; the caller resends later.
	ErrBusy = errors.New("chat: a request is already in flight")
)

// State is the conversation's turn-processing state.
type State int

const (
	// StateIdle means no turn is in flight.
	StateIdle State = iota
	// StateAwaitingGeneration means the generation call is outstanding.
	StateAwaitingGeneration
	// StateAwaitingValidation means the draft is being validated.
	StateAwaitingValidation
)

// Completer produces a chat completion. Satisfied by *llm.CompletionClient.
type Completer interface {
	Complete(ctx context.Context, model string, messages []llm.ChatMessage, sampling llm.Sampling) (string, error)
}

// Enricher augments a query with a fact segment. Satisfied by
// *retrieval.Service. A nil Enricher means retrieval is unavailable and
// queries go to the model bare.
type Enricher interface {
	EnrichQuery(ctx context.Context, query string, topK int, useHybrid bool) retrieval.Enriched
}

// Options configures a Conversation.
type Options struct {
	// GenerationModel answers the user's question.
	GenerationModel string
	// ValidationModel re-grounds draft answers; typically cheaper and
	// faster than the generator.
	ValidationModel string
	// TopK is the retrieval result budget per query.
	TopK int
	// UseHybrid selects hybrid retrieval over semantic-only.
	UseHybrid bool
	// Sampling is the generation sampling config. The validation pass
	// reuses it with the temperature lowered.
	Sampling llm.Sampling
	// MaxContextTokens bounds the prompt size; older history is trimmed
	// first. Zero means budget.DefaultMaxContextTokens.
	MaxContextTokens int
}

// Conversation is one chat session. Safe for concurrent use; concurrent
// SendMessage calls beyond the first are rejected with ErrBusy rather than
// queued.
type Conversation struct {
	completer Completer
	enricher  Enricher
	extractor *mention.Extractor
	catalog   *catalog.Catalog
	sessions  store.SessionStore
	sessionID string
	opts      Options

	mu       sync.Mutex
	state    State
	messages []store.Message
	watchers []chan struct{}
}

// NewConversation constructs a Conversation. sessions may be nil for an
// ephemeral, in-memory session.
func NewConversation(completer Completer, enricher Enricher, extractor *mention.Extractor, cat *catalog.Catalog, sessions store.SessionStore, sessionID string, opts Options) *Conversation {
	if opts.TopK == 0 {
		opts.TopK = 15
	}
	if opts.Sampling == (llm.Sampling{}) {
		opts.Sampling = llm.DefaultSampling()
	}
	if opts.MaxContextTokens == 0 {
		opts.MaxContextTokens = budget.DefaultMaxContextTokens
	}
	return &Conversation{
		completer: completer,
		enricher:  enricher,
		extractor: extractor,
		catalog:   cat,
		sessions:  sessions,
		sessionID: sessionID,
		opts:      opts,
	}
}

// Start restores the persisted session history, or seeds a fresh session
// with a welcome message. Call once before the first SendMessage.
func (c *Conversation) Start(ctx context.Context) error {
	if c.sessions != nil {
		msgs, err := c.sessions.Messages(ctx, c.sessionID)
		if err != nil {
			return fmt.Errorf("chat: restore session: %w", err)
		}
		if len(msgs) > 0 {
			c.mu.Lock()
			c.messages = msgs
			c.mu.Unlock()
			c.notify()
			return nil
		}
	}

	greeting := store.Message{
		Role:      store.RoleAssistant,
		Content:   c.welcome(ctx),
		Timestamp: time.Now(),
	}
	c.mu.Lock()
	c.messages = []store.Message{greeting}
	c.mu.Unlock()
	if err := c.persist(ctx, greeting); err != nil {
		logging.FromContext(ctx).Warn("persist greeting failed", "error", err)
	}
	c.notify()
	return nil
}

// Messages returns a copy of the current message sequence, oldest-first.
func (c *Conversation) Messages() []store.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]store.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// State returns the current turn-processing state.
func (c *Conversation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe returns a channel that receives a signal after every history
// mutation. The channel has capacity one and signals are coalesced.
func (c *Conversation) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	c.mu.Lock()
	c.watchers = append(c.watchers, ch)
	c.mu.Unlock()
	return ch
}

func (c *Conversation) notify() {
	c.mu.Lock()
	watchers := c.watchers
	c.mu.Unlock()
	for _, ch := range watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (c *Conversation) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Conversation) appendMessage(m store.Message) {
	c.mu.Lock()
	c.messages = append(c.messages, m)
	c.mu.Unlock()
	c.notify()
}

func (c *Conversation) persist(ctx context.Context, m store.Message) error {
	if c.sessions == nil {
		return nil
	}
	return c.sessions.Append(ctx, c.sessionID, m)
}

// SendMessage runs one full turn: enrich, generate, validate, persist. It
// returns the final assistant message. Empty input and in-flight turns are
// rejected without touching the history.
func (c *Conversation) SendMessage(ctx context.Context, text string) (store.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return store.Message{}, ErrEmptyMessage
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return store.Message{}, ErrBusy
	}
	c.state = StateAwaitingGeneration
	c.mu.Unlock()
	defer c.setState(StateIdle)

	log := logging.FromContext(ctx)

	userMsg := store.Message{Role: store.RoleUser, Content: text, Timestamp: time.Now()}
	c.appendMessage(userMsg)
	if err := c.persist(ctx, userMsg); err != nil {
		log.Warn("persist user message failed", "error", err)
	}

	// Retrieval faults never block the turn; the query goes bare instead.
	enriched := retrieval.Enriched{Query: text}
	if c.enricher != nil {
		enriched = c.enricher.EnrichQuery(ctx, text, c.opts.TopK, c.opts.UseHybrid)
	}

	draft, err := c.completer.Complete(ctx, c.opts.GenerationModel, c.buildPrompt(enriched), c.opts.Sampling)
	if err != nil {
		// Generation failure is the only user-visible fault; no retry.
		log.Error("generation failed", "error", err)
		failMsg := store.Message{
			Role:      store.RoleAssistant,
			Content:   fmt.Sprintf("Sorry, I could not answer that right now (%v). Please try again.", err),
			Timestamp: time.Now(),
		}
		c.appendMessage(failMsg)
		if perr := c.persist(ctx, failMsg); perr != nil {
			log.Warn("persist failure message failed", "error", perr)
		}
		return failMsg, nil
	}

	c.setState(StateAwaitingValidation)
	answer := draft
	outcome := c.validateAndCorrect(ctx, draft, text)
	switch outcome.Kind {
	case OutcomeCorrected:
		answer = outcome.Text
		log.Info("draft corrected by validation pass")
	case OutcomeFailed:
		// Validation faults never discard a valid draft.
		log.Warn("validation failed, keeping draft", "error", outcome.Err)
	}

	assistantMsg := store.Message{Role: store.RoleAssistant, Content: answer, Timestamp: time.Now()}
	c.appendMessage(assistantMsg)
	if err := c.persist(ctx, assistantMsg); err != nil {
		log.Warn("persist assistant message failed", "error", err)
	}
	return assistantMsg, nil
}

// Reset clears the history and reseeds it with a single assistant greeting,
// in storage and in memory.
func (c *Conversation) Reset(ctx context.Context) error {
	greeting := store.Message{
		Role:      store.RoleAssistant,
		Content:   c.welcome(ctx),
		Timestamp: time.Now(),
	}

	if c.sessions != nil {
		if err := c.sessions.Replace(ctx, c.sessionID, []store.Message{greeting}); err != nil {
			return fmt.Errorf("chat: reset session: %w", err)
		}
	}

	c.mu.Lock()
	c.messages = []store.Message{greeting}
	c.state = StateIdle
	c.mu.Unlock()
	c.notify()
	return nil
}

// buildPrompt assembles the model message list: system prompt, trimmed prior
// history, then the current user turn carrying the fact block. The just-sent
// user message is excluded from the history portion because it is re-sent as
// the final enriched turn.
func (c *Conversation) buildPrompt(enriched retrieval.Enriched) []llm.ChatMessage {
	system := systemPrompt
	userTurn := enriched.Query
	if enriched.Segment != nil {
		system = system + "\n\n" + enriched.Segment.SystemBlock()
		userTurn = enriched.Segment.Render() + "\n\nQuestion: " + enriched.Query + "\n\n" + enriched.Segment.Reminder()
	}

	fixed := []llm.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: userTurn},
	}

	c.mu.Lock()
	prior := make([]llm.ChatMessage, 0, len(c.messages))
	for _, m := range c.messages[:len(c.messages)-1] {
		prior = append(prior, llm.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	c.mu.Unlock()

	prior = budget.TrimHistory(fixed, prior, c.opts.MaxContextTokens)

	out := make([]llm.ChatMessage, 0, len(prior)+2)
	out = append(out, fixed[0])
	out = append(out, prior...)
	out = append(out, fixed[1])
	return out
}
