package session_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/san-kum/qlab/internal/chat"
	"github.com/san-kum/qlab/internal/concept"
	"github.com/san-kum/qlab/internal/session"
)

// fakeClient answers with reply or err and records every request.
type fakeClient struct {
	mu       sync.Mutex
	reply    string
	err      error
	panics   bool
	requests []chat.Request
}

func (f *fakeClient) Complete(_ context.Context, req chat.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.panics {
		panic("boom")
	}
	return f.reply, f.err
}

func (f *fakeClient) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// blockingClient holds every request until release is closed.
type blockingClient struct {
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingClient) Complete(ctx context.Context, _ chat.Request) (string, error) {
	b.calls.Add(1)
	<-b.release
	return "ok", nil
}

var _ = Describe("Controller", func() {
	var (
		ctx    context.Context
		client *fakeClient
		c      *session.Controller
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = &fakeClient{reply: "坍缩..."}
		c = session.New(client)
	})

	It("starts with the welcome message", func() {
		Expect(c.Transcript()).To(Equal([]session.Entry{{Speaker: session.Assistant, Text: concept.Welcome}}))
		Expect(c.Selection()).To(Equal(session.Selection{}))
		Expect(c.Typing()).To(BeFalse())
	})

	Describe("selecting a topic", func() {
		for _, d := range concept.All() {
			d := d
			It("activates "+string(d.ID)+" unmeasured", func() {
				Expect(c.SelectTopic(ctx, concept.Superposition)).To(Succeed())
				c.TriggerLabAction(ctx)
				Expect(c.Selection().Measured).To(BeTrue())

				Expect(c.SelectTopic(ctx, d.ID)).To(Succeed())
				Expect(c.Selection()).To(Equal(session.Selection{Topic: d.ID, Measured: false}))
			})
		}

		It("sends one synthesized question and records the reply", func() {
			Expect(c.SelectTopic(ctx, concept.Superposition)).To(Succeed())

			d, _ := concept.Get(concept.Superposition)
			Expect(c.Transcript()).To(Equal([]session.Entry{
				{Speaker: session.Assistant, Text: concept.Welcome},
				{Speaker: session.User, Text: concept.IntroQuestion(d)},
				{Speaker: session.Assistant, Text: "坍缩..."},
			}))
			Expect(client.calls()).To(Equal(1))
			Expect(c.Typing()).To(BeFalse())
		})

		It("rejects unknown topics without changing anything", func() {
			err := c.SelectTopic(ctx, concept.ID("teleportation"))
			Expect(err).To(MatchError(session.ErrUnknownTopic))
			Expect(c.Transcript()).To(HaveLen(1))
			Expect(c.Selection()).To(Equal(session.Selection{}))
			Expect(client.calls()).To(BeZero())
		})
	})

	Describe("building the request", func() {
		It("sends the whole transcript with roles, the system prompt and temperature", func() {
			c.Submit(ctx, "first")
			ex := c.Ask("second")
			Expect(ex).NotTo(BeNil())

			req := ex.Request()
			Expect(req.System).To(Equal(concept.SystemPrompt))
			Expect(req.Temperature).To(Equal(0.7))
			Expect(req.Messages).To(Equal([]chat.Message{
				{Role: chat.RoleAssistant, Text: concept.Welcome},
				{Role: chat.RoleUser, Text: "first"},
				{Role: chat.RoleAssistant, Text: "坍缩..."},
				{Role: chat.RoleUser, Text: "second"},
			}))
			ex.Run(ctx)
		})

		It("honours a configured temperature", func() {
			c = session.New(client, session.WithTemperature(0.2))
			Expect(c.Ask("hi").Request().Temperature).To(Equal(0.2))
		})
	})

	Describe("submitting", func() {
		It("ignores blank text", func() {
			for _, text := range []string{"", "   ", "\n\t"} {
				rev := c.Revision()
				Expect(c.Ask(text)).To(BeNil())
				c.Submit(ctx, text)
				Expect(c.Transcript()).To(HaveLen(1))
				Expect(c.Typing()).To(BeFalse())
				Expect(c.Revision()).To(Equal(rev))
			}
			Expect(client.calls()).To(BeZero())
		})

		It("sets typing while the request is in flight", func() {
			ex := c.Ask("hello")
			Expect(c.Typing()).To(BeTrue())
			Expect(c.Transcript()).To(HaveLen(2))

			Expect(ex.Run(ctx)).To(Equal("坍缩..."))
			Expect(c.Typing()).To(BeFalse())
			Expect(c.Transcript()).To(HaveLen(3))
		})

		It("ignores submissions while typing", func() {
			ex := c.Ask("hello")
			Expect(c.Ask("again")).To(BeNil())
			c.Submit(ctx, "again")
			ex.Run(ctx)

			Expect(client.calls()).To(Equal(1))
			Expect(c.Transcript()).To(HaveLen(3))
		})

		It("allows a single in-flight request across goroutines", func() {
			blocking := &blockingClient{release: make(chan struct{})}
			c = session.New(blocking)

			var attempted, wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				attempted.Add(1)
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					ex := c.Ask("hello")
					attempted.Done()
					ex.Run(ctx)
				}()
			}
			attempted.Wait()
			Expect(c.Typing()).To(BeTrue())
			close(blocking.release)
			wg.Wait()

			Expect(blocking.calls.Load()).To(Equal(int32(1)))
			Expect(c.Transcript()).To(HaveLen(3))
			Expect(c.Typing()).To(BeFalse())
		})

		It("runs an exchange only once", func() {
			ex := c.Ask("hello")
			ex.Run(ctx)
			Expect(ex.Run(ctx)).To(BeEmpty())
			Expect(client.calls()).To(Equal(1))
			Expect(c.Transcript()).To(HaveLen(3))
		})

		It("replaces a blank reply", func() {
			client.reply = "  "
			c.Submit(ctx, "hello")
			Expect(c.Transcript()[2].Text).To(Equal(session.BlankReply))
		})
	})

	Describe("failures", func() {
		It("appends the failure message and clears typing", func() {
			var buf bytes.Buffer
			client.err = &chat.Error{Kind: chat.Network, Provider: "fake", Err: errors.New("connection refused")}
			c = session.New(client, session.WithLogger(zerolog.New(&buf)))

			Expect(c.SelectTopic(ctx, concept.QKD)).To(Succeed())

			transcript := c.Transcript()
			Expect(transcript[len(transcript)-1]).To(Equal(session.Entry{Speaker: session.Assistant, Text: session.FailureReply}))
			Expect(c.Typing()).To(BeFalse())
			Expect(buf.String()).To(ContainSubstring(`"kind":"network"`))
			Expect(buf.String()).To(ContainSubstring(`"component":"session"`))
		})

		It("survives a panicking client", func() {
			client.panics = true
			c.Submit(ctx, "hello")

			transcript := c.Transcript()
			Expect(transcript[len(transcript)-1].Text).To(Equal(session.FailureReply))
			Expect(c.Typing()).To(BeFalse())
		})

		It("fails cleanly without a client", func() {
			c = session.New(nil)
			c.Submit(ctx, "hello")
			Expect(c.Transcript()[2].Text).To(Equal(session.FailureReply))
		})
	})

	Describe("the lab action", func() {
		It("does nothing without a topic", func() {
			Expect(c.Measure()).To(BeNil())
			c.TriggerLabAction(ctx)
			Expect(c.Selection().Measured).To(BeFalse())
			Expect(c.Transcript()).To(HaveLen(1))
		})

		It("measures and sends the topic's prompt", func() {
			Expect(c.SelectTopic(ctx, concept.Entanglement)).To(Succeed())
			c.TriggerLabAction(ctx)

			Expect(c.Selection()).To(Equal(session.Selection{Topic: concept.Entanglement, Measured: true}))
			transcript := c.Transcript()
			Expect(transcript).To(HaveLen(5))
			Expect(transcript[3]).To(Equal(session.Entry{Speaker: session.User, Text: concept.LabPrompt(concept.Entanglement)}))
		})

		It("resets without a network call", func() {
			Expect(c.SelectTopic(ctx, concept.QKD)).To(Succeed())
			c.TriggerLabAction(ctx)
			calls := client.calls()

			c.ResetLab()
			Expect(c.Selection()).To(Equal(session.Selection{Topic: concept.QKD}))
			Expect(client.calls()).To(Equal(calls))
			Expect(c.Transcript()).To(HaveLen(5))
		})

		It("changes the selection even while a request is in flight", func() {
			ex := c.Ask("hello")
			next, err := c.Select(concept.Superposition)
			Expect(err).NotTo(HaveOccurred())
			Expect(next).To(BeNil())
			Expect(c.Selection().Topic).To(Equal(concept.Superposition))
			ex.Run(ctx)
		})
	})

	It("bumps the revision on every visible change", func() {
		rev := c.Revision()
		ex := c.Ask("hello")
		Expect(c.Revision()).To(BeNumerically(">", rev))
		rev = c.Revision()
		ex.Run(ctx)
		Expect(c.Revision()).To(BeNumerically(">", rev))
	})
})
