// Package chat sends one non-streaming chat-completion request to a hosted
// LLM and returns the reply text.
package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role Role
	Text string
}

// Request is a whole conversation plus the system instruction.
type Request struct {
	System      string
	Temperature float64
	Messages    []Message
}

// Client completes a conversation with the next assistant message. The
// reply may be blank; callers decide what to show in that case.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

type Kind int

const (
	KindUnknown Kind = iota
	MissingCredential
	Network
	Auth
	Status
	Malformed
)

func (k Kind) String() string {
	switch k {
	case MissingCredential:
		return "missing_credential"
	case Network:
		return "network"
	case Auth:
		return "auth"
	case Status:
		return "status"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error is the failure half of a completion.
type Error struct {
	Kind     Kind
	Provider string
	// HTTP status, when the service answered.
	Code int
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	if e.Code != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Code)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf classifies err. Errors that did not come from a client are
// KindUnknown.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

func statusError(provider string, code int, body []byte) *Error {
	kind := Status
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		kind = Auth
	}
	var err error
	if len(body) > 0 {
		if len(body) > 200 {
			body = body[:200]
		}
		err = errors.New(string(body))
	}
	return &Error{Kind: kind, Provider: provider, Code: code, Err: err}
}

// Options selects and configures a provider.
type Options struct {
	Provider string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

func New(opts Options) (Client, error) {
	switch opts.Provider {
	case "", ProviderGemini:
		return NewGemini(opts.BaseURL, opts.Model, opts.Timeout), nil
	case ProviderOpenAI:
		return NewOpenAI(opts.BaseURL, opts.Model, opts.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown chat provider %q", opts.Provider)
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
