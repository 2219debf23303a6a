// Package session holds the lab's conversation and selection state and turns
// user actions into chat requests.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/san-kum/qlab/internal/chat"
	"github.com/san-kum/qlab/internal/concept"
	"github.com/san-kum/qlab/internal/logger"
)

const (
	// BlankReply replaces an empty answer from the assistant.
	BlankReply = "量子通信信道暂时关闭，请重试。"
	// FailureReply is shown for every failed request.
	FailureReply = "连接 AI 助理失败，请检查 API 配置。"

	DefaultTemperature = 0.7
)

var ErrUnknownTopic = errors.New("unknown topic")

type Speaker string

const (
	User      Speaker = "user"
	Assistant Speaker = "assistant"
)

type Entry struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

type Selection struct {
	Topic    concept.ID `json:"topic"`
	Measured bool       `json:"measured"`
}

type Option func(*Controller)

func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.log = logger.Component(l, "session") }
}

func WithTemperature(t float64) Option {
	return func(c *Controller) { c.temperature = t }
}

// Controller is safe for concurrent use. At most one chat request is in
// flight at a time.
type Controller struct {
	client      chat.Client
	log         zerolog.Logger
	temperature float64

	mu         sync.Mutex
	transcript []Entry
	sel        Selection
	typing     bool
	rev        uint64
}

// New returns a controller whose transcript holds the welcome message.
func New(client chat.Client, opts ...Option) *Controller {
	c := &Controller{
		client:      client,
		log:         zerolog.Nop(),
		temperature: DefaultTemperature,
		transcript:  []Entry{{Speaker: Assistant, Text: concept.Welcome}},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Transcript() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.transcript))
	copy(out, c.transcript)
	return out
}

func (c *Controller) Selection() Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sel
}

// Typing reports whether a request is in flight.
func (c *Controller) Typing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.typing
}

// Revision increases on every transcript or typing change.
func (c *Controller) Revision() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rev
}

// Select makes id the active topic with measurement cleared and prepares
// the introductory question for it. The exchange is nil when a request is
// already in flight; the selection changes regardless.
func (c *Controller) Select(id concept.ID) (*Exchange, error) {
	d, ok := concept.Get(id)
	if !ok {
		return nil, ErrUnknownTopic
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sel = Selection{Topic: id}
	return c.ask(concept.IntroQuestion(d)), nil
}

// Measure marks the active topic measured and prepares its lab prompt.
// Without an active topic it does nothing.
func (c *Controller) Measure() *Exchange {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sel.Topic == concept.Idle {
		return nil
	}
	c.sel.Measured = true
	return c.ask(concept.LabPrompt(c.sel.Topic))
}

// Ask prepares a request for text. Blank text, or text sent while another
// request is in flight, is ignored and yields nil.
func (c *Controller) Ask(text string) *Exchange {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ask(text)
}

func (c *Controller) ask(text string) *Exchange {
	if strings.TrimSpace(text) == "" || c.typing {
		return nil
	}

	c.transcript = append(c.transcript, Entry{Speaker: User, Text: text})
	c.typing = true
	c.rev++

	req := chat.Request{
		System:      concept.SystemPrompt,
		Temperature: c.temperature,
		Messages:    make([]chat.Message, 0, len(c.transcript)),
	}
	for _, e := range c.transcript {
		role := chat.RoleUser
		if e.Speaker == Assistant {
			role = chat.RoleAssistant
		}
		req.Messages = append(req.Messages, chat.Message{Role: role, Text: e.Text})
	}
	return &Exchange{c: c, req: req}
}

// SelectTopic selects id and waits for the assistant's answer.
func (c *Controller) SelectTopic(ctx context.Context, id concept.ID) error {
	ex, err := c.Select(id)
	if err != nil {
		return err
	}
	ex.Run(ctx)
	return nil
}

// TriggerLabAction measures the active topic and waits for the answer.
func (c *Controller) TriggerLabAction(ctx context.Context) {
	c.Measure().Run(ctx)
}

// ResetLab clears the measured flag. The transcript is untouched.
func (c *Controller) ResetLab() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sel.Measured = false
}

// Submit sends text and waits for the answer.
func (c *Controller) Submit(ctx context.Context, text string) {
	c.Ask(text).Run(ctx)
}

func (c *Controller) finish(reply string, err error) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case err != nil:
		c.log.Error().Err(err).Str("kind", chat.KindOf(err).String()).Msg("chat request failed")
		reply = FailureReply
	case strings.TrimSpace(reply) == "":
		reply = BlankReply
	}
	c.transcript = append(c.transcript, Entry{Speaker: Assistant, Text: reply})
	c.rev++
	return reply
}

func (c *Controller) settle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.typing = false
	c.rev++
}

// Exchange is one prepared chat request. Run it exactly once.
type Exchange struct {
	c    *Controller
	req  chat.Request
	once sync.Once
}

// Request is the payload that Run sends.
func (e *Exchange) Request() chat.Request { return e.req }

// Run sends the request, appends the reply (or the matching fallback) to the
// transcript and returns it. The typing flag is cleared however the call
// ends. A nil exchange runs as a no-op.
func (e *Exchange) Run(ctx context.Context) string {
	if e == nil {
		return ""
	}
	var reply string
	e.once.Do(func() {
		defer e.c.settle()
		text, err := e.complete(ctx)
		reply = e.c.finish(text, err)
	})
	return reply
}

func (e *Exchange) complete(ctx context.Context) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &chat.Error{Kind: chat.KindUnknown, Provider: "client", Err: errors.New("client panicked")}
		}
	}()
	if e.c.client == nil {
		return "", &chat.Error{Kind: chat.MissingCredential, Provider: "none", Err: errors.New("no chat client configured")}
	}
	return e.c.client.Complete(ctx, e.req)
}
