package budget

import (
	"strings"
	"testing"

	"github.com/54b3r/chartchat-go/internal/llm"
)

func Test_Estimate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcdefgh", 2},
		{strings.Repeat("x", 400), 100},
	}
	for _, tc := range cases {
		if got := Estimate(tc.input); got != tc.want {
			t.Errorf("Estimate(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func Test_EstimateMessages(t *testing.T) {
	t.Parallel()
	msgs := []llm.ChatMessage{
		{Role: "user", Content: "hello world"},
		{Role: "user", Content: "hello world"},
	}
	// Each message: 4 overhead + Estimate("user")=1 + Estimate("hello world")=2 = 7.
	if got := EstimateMessages(msgs); got != 14 {
		t.Errorf("EstimateMessages = %d, want 14", got)
	}
}

func Test_TrimHistory_NoTrimNeeded(t *testing.T) {
	t.Parallel()
	fixed := []llm.ChatMessage{{Role: "system", Content: "sys"}}
	history := []llm.ChatMessage{
		{Role: "user", Content: "hi"},
		{Role: "user", Content: "there"},
	}
	if got := TrimHistory(fixed, history, DefaultMaxContextTokens); len(got) != 2 {
		t.Errorf("want 2 history messages, got %d", len(got))
	}
}

func Test_TrimHistory_DropsOldest(t *testing.T) {
	t.Parallel()
	history := []llm.ChatMessage{
		{Role: "user", Content: "oldest"},
		{Role: "user", Content: "newest"},
	}
	// Each message costs 4 overhead + 1 (role) + 1 (content) = 6 tokens.
	// Budget 7 fits one message but not two; the oldest must go.
	got := TrimHistory(nil, history, 7)
	if len(got) != 1 {
		t.Fatalf("want 1 history message after trim, got %d", len(got))
	}
	if got[0].Content != "newest" {
		t.Errorf("want newest message retained, got %q", got[0].Content)
	}
}

func Test_TrimHistory_AllDroppedWhenFixedExceedsBudget(t *testing.T) {
	t.Parallel()
	fixed := []llm.ChatMessage{{Role: "system", Content: strings.Repeat("x", 4*7000)}}
	history := []llm.ChatMessage{
		{Role: "user", Content: "a"},
		{Role: "user", Content: "b"},
	}
	if got := TrimHistory(fixed, history, 6000); len(got) != 0 {
		t.Errorf("want 0 history messages, got %d", len(got))
	}
}
