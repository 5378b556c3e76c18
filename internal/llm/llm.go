// Package llm wraps the text-completion service used to generate assistant
// replies. The rest of the code base only sees Completer.
package llm

import (
	"context"
	"errors"
)

// Roles understood by the completion API.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of the model context.
type Message struct {
	Role    string
	Content string
}

// Options tune a single completion call. Zero values fall back to the
// client defaults.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Completion is the result of a completion call.
type Completion struct {
	Content      string
	TokensUsed   int
	FinishReason string
	Model        string
}

// Completer produces the next assistant turn for a conversation.
type Completer interface {
	Complete(ctx context.Context, messages []Message, opts Options) (*Completion, error)
}

// ErrEmptyCompletion is returned when the provider answers without choices.
var ErrEmptyCompletion = errors.New("llm: empty completion")
