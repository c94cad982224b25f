package chat

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/54b3r/chartchat-go/internal/catalog"
	"github.com/54b3r/chartchat-go/internal/llm"
	"github.com/54b3r/chartchat-go/internal/mention"
	"github.com/54b3r/chartchat-go/internal/retrieval"
	"github.com/54b3r/chartchat-go/internal/store"
)

// completerCall records one Complete invocation.
type completerCall struct {
	model    string
	messages []llm.ChatMessage
	sampling llm.Sampling
}

// scriptedCompleter answers calls in order from replies; a reply holding an
// error fails that call. When block is set, calls wait until release is
// closed.
type scriptedCompleter struct {
	mu      sync.Mutex
	calls   []completerCall
	replies []any // string or error
	block   bool
	release chan struct{}
}

func (s *scriptedCompleter) Complete(_ context.Context, model string, messages []llm.ChatMessage, sampling llm.Sampling) (string, error) {
	if s.block {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, completerCall{model: model, messages: messages, sampling: sampling})
	if len(s.replies) == 0 {
		return "default answer", nil
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	if err, ok := reply.(error); ok {
		return "", err
	}
	return reply.(string), nil
}

func (s *scriptedCompleter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *scriptedCompleter) call(i int) completerCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[i]
}

// staticEnricher returns a fixed enrichment for every query.
type staticEnricher struct {
	segment *retrieval.FactBlock
}

func (e *staticEnricher) EnrichQuery(_ context.Context, query string, _ int, _ bool) retrieval.Enriched {
	return retrieval.Enriched{Query: query, Segment: e.segment}
}

func chatCatalog() *catalog.Catalog {
	return catalog.New([]catalog.Entry{
		{Group: "Kraftklub", Item: "Mit K", Year: 2012, Rank: 1, Score: 3.40, ScoreText: "3.40"},
		{Group: "Kraftklub", Item: "Keine Nacht", Year: 2017, Rank: 1, Score: 3.60, ScoreText: "3.60"},
	})
}

func newTestConversation(t *testing.T, completer Completer, enricher Enricher, sessions store.SessionStore) *Conversation {
	t.Helper()
	cat := chatCatalog()
	return NewConversation(completer, enricher, mention.NewExtractor(cat.Groups(), nil), cat, sessions, "test-session", Options{
		GenerationModel: "gen-model",
		ValidationModel: "val-model",
		UseHybrid:       true,
	})
}

func Test_Conversation_RejectsEmptyMessage(t *testing.T) {
	t.Parallel()
	c := newTestConversation(t, &scriptedCompleter{}, nil, nil)

	if _, err := c.SendMessage(context.Background(), "   \n\t"); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("want ErrEmptyMessage, got %v", err)
	}
	if len(c.Messages()) != 0 {
		t.Errorf("history must stay untouched, got %d messages", len(c.Messages()))
	}
}

func Test_Conversation_RejectsConcurrentTurn(t *testing.T) {
	t.Parallel()
	completer := &scriptedCompleter{block: true, release: make(chan struct{})}
	c := newTestConversation(t, completer, nil, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := c.SendMessage(context.Background(), "first"); err != nil {
			t.Errorf("first turn: %v", err)
		}
	}()

	// Wait until the first turn is inside the generation call.
	for c.State() == StateIdle {
		runtime.Gosched()
	}

	if _, err := c.SendMessage(context.Background(), "second"); !errors.Is(err, ErrBusy) {
		t.Errorf("want ErrBusy, got %v", err)
	}

	close(completer.release)
	<-done
}

func Test_Conversation_GenerationFailureIsUserVisible(t *testing.T) {
	t.Parallel()
	completer := &scriptedCompleter{replies: []any{errors.New("upstream down")}}
	c := newTestConversation(t, completer, nil, nil)

	msg, err := c.SendMessage(context.Background(), "question")
	if err != nil {
		t.Fatalf("generation failure must not error the turn: %v", err)
	}
	if msg.Role != store.RoleAssistant || !strings.Contains(msg.Content, "upstream down") {
		t.Errorf("want apologetic message carrying the error, got %q", msg.Content)
	}
	if completer.callCount() != 1 {
		t.Errorf("no retry allowed, got %d calls", completer.callCount())
	}
}

func Test_Conversation_ValidationCorrectsDraft(t *testing.T) {
	t.Parallel()
	completer := &scriptedCompleter{replies: []any{
		"Kraftklub's Mit K was rated 4.9", // draft with a wrong score
		"Kraftklub's Mit K was rated 3.40",
	}}
	c := newTestConversation(t, completer, nil, nil)

	msg, err := c.SendMessage(context.Background(), "what did Mit K get?")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Content != "Kraftklub's Mit K was rated 3.40" {
		t.Errorf("corrected answer not kept: %q", msg.Content)
	}

	if completer.callCount() != 2 {
		t.Fatalf("want generate + validate calls, got %d", completer.callCount())
	}
	val := completer.call(1)
	if val.model != "val-model" {
		t.Errorf("validation model: got %q", val.model)
	}
	if val.sampling.Temperature != validationTemperature {
		t.Errorf("validation temperature: got %v", val.sampling.Temperature)
	}
	prompt := val.messages[len(val.messages)-1].Content
	for _, want := range []string{"trend rising", "score 3.40", "score 3.60", "meta-commentary"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("correction prompt missing %q:\n%s", want, prompt)
		}
	}
}

func Test_Conversation_ValidationFailureKeepsDraft(t *testing.T) {
	t.Parallel()
	completer := &scriptedCompleter{replies: []any{
		"Kraftklub made loud albums",
		errors.New("validator down"),
	}}
	c := newTestConversation(t, completer, nil, nil)

	msg, err := c.SendMessage(context.Background(), "tell me about Kraftklub")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Content != "Kraftklub made loud albums" {
		t.Errorf("draft must survive validation failure, got %q", msg.Content)
	}
}

func Test_Conversation_NoMentionsSkipsValidation(t *testing.T) {
	t.Parallel()
	completer := &scriptedCompleter{replies: []any{"I have no data on that."}}
	c := newTestConversation(t, completer, nil, nil)

	if _, err := c.SendMessage(context.Background(), "what about jazz?"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if completer.callCount() != 1 {
		t.Errorf("validation must be skipped without mentions, got %d calls", completer.callCount())
	}
}

func Test_Conversation_FactSegmentReachesPrompt(t *testing.T) {
	t.Parallel()
	cat := chatCatalog()
	segment := retrieval.NewFactBlock([]retrieval.Result{
		{Entry: cat.Entries()[0], Similarity: 1.0, MatchType: retrieval.MatchExact},
	})
	completer := &scriptedCompleter{replies: []any{"answer"}}
	c := newTestConversation(t, completer, &staticEnricher{segment: segment}, nil)

	if _, err := c.SendMessage(context.Background(), "score of Mit K?"); err != nil {
		t.Fatalf("send: %v", err)
	}

	gen := mustCall(t, completer, 0)
	final := gen.messages[len(gen.messages)-1].Content
	if !strings.Contains(final, "| Kraftklub | Mit K | 2012 | 1 | 3.40 |") {
		t.Errorf("fact table missing from user turn:\n%s", final)
	}
	if !strings.Contains(final, "score of Mit K?") {
		t.Errorf("original question missing from user turn:\n%s", final)
	}
	if !strings.Contains(gen.messages[0].Content, "only source of numeric facts") {
		t.Errorf("system block missing:\n%s", gen.messages[0].Content)
	}
}

// mustCall asserts the call index exists and returns it.
func mustCall(t *testing.T, s *scriptedCompleter, i int) completerCall {
	t.Helper()
	if s.callCount() <= i {
		t.Fatalf("want at least %d completer calls, got %d", i+1, s.callCount())
	}
	return s.call(i)
}

func Test_Conversation_ResetReseedsGreeting(t *testing.T) {
	t.Parallel()
	sessions, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = sessions.Close() })

	completer := &scriptedCompleter{replies: []any{"welcome!", "an answer", "welcome again!"}}
	c := newTestConversation(t, completer, nil, sessions)
	ctx := context.Background()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := c.SendMessage(ctx, "a question with no group"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(c.Messages()) != 3 {
		t.Fatalf("want greeting + user + assistant, got %d", len(c.Messages()))
	}

	if err := c.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}

	msgs := c.Messages()
	if len(msgs) != 1 || msgs[0].Role != store.RoleAssistant {
		t.Fatalf("after reset: want exactly one assistant message, got %v", msgs)
	}

	persisted, err := sessions.Messages(ctx, "test-session")
	if err != nil {
		t.Fatalf("persisted messages: %v", err)
	}
	if len(persisted) != 1 || persisted[0].Role != store.RoleAssistant {
		t.Errorf("persisted history not reseeded: %v", persisted)
	}
}

func Test_Conversation_StartRestoresHistory(t *testing.T) {
	t.Parallel()
	sessions, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = sessions.Close() })
	ctx := context.Background()

	if err := sessions.Append(ctx, "test-session", store.Message{Role: store.RoleUser, Content: "old question"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := sessions.Append(ctx, "test-session", store.Message{Role: store.RoleAssistant, Content: "old answer"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	c := newTestConversation(t, &scriptedCompleter{}, nil, sessions)
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	msgs := c.Messages()
	if len(msgs) != 2 || msgs[0].Content != "old question" || msgs[1].Content != "old answer" {
		t.Errorf("restored history wrong: %v", msgs)
	}
}

func Test_Conversation_WelcomeFallsBackWhenModelFails(t *testing.T) {
	t.Parallel()
	completer := &scriptedCompleter{replies: []any{errors.New("down")}}
	c := newTestConversation(t, completer, nil, nil)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	msgs := c.Messages()
	if len(msgs) != 1 || msgs[0].Content != staticWelcome {
		t.Errorf("want static welcome, got %v", msgs)
	}
}

func Test_Conversation_SubscribeSignalsOnMutation(t *testing.T) {
	t.Parallel()
	completer := &scriptedCompleter{replies: []any{"answer"}}
	c := newTestConversation(t, completer, nil, nil)
	ch := c.Subscribe()

	if _, err := c.SendMessage(context.Background(), "no group here"); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case <-ch:
	default:
		t.Error("want a re-render signal after the turn")
	}
}
