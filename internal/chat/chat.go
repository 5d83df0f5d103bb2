// Package chat implements transcript-grounded conversations and summaries on
// top of a streaming [llm.Provider].
//
// A [Conversation] holds the ordered message history for one transcript. The
// [Service] sends user turns with optimistic append semantics: the user
// message joins the history immediately, and is rolled back if the model call
// fails before producing any content. Assistant replies are assembled
// incrementally through [stream.Assembler] and have their reasoning preamble
// separated by [stream.Splitter] before they are stored.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rishikanthc/Scriberr-sub000/internal/observe"
	"github.com/rishikanthc/Scriberr-sub000/internal/stream"
	"github.com/rishikanthc/Scriberr-sub000/pkg/provider/llm"
)

const defaultSystemPrompt = `You are a helpful assistant answering questions about an audio transcript.
Ground every answer in the transcript content provided. If the transcript does
not contain the answer, say so instead of guessing.`

const summaryPrompt = `Summarize the following transcript. Cover the main topics discussed,
any decisions made, and any action items. Be concise.`

const titlePrompt = `Generate a short title (at most six words) for a conversation about a
transcript. Reply with the title only, no quotes and no trailing punctuation.`

// Message is one turn in a conversation.
type Message struct {
	// Role is "user" or "assistant".
	Role string `json:"role"`

	// Content is the visible message text. For assistant messages the
	// reasoning preamble has already been stripped into Thinking.
	Content string `json:"content"`

	// Thinking is the extracted reasoning preamble, empty when the model
	// produced none.
	Thinking string `json:"thinking,omitempty"`

	// CreatedAt is when the message was appended to the conversation.
	CreatedAt time.Time `json:"created_at"`
}

// Conversation is an ordered message history with an optional title.
// Safe for concurrent use.
type Conversation struct {
	mu       sync.Mutex
	messages []Message
	title    string
}

// NewConversation returns an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{}
}

// Messages returns a copy of the message history in order.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Title returns the conversation title, empty until one is generated.
func (c *Conversation) Title() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.title
}

func (c *Conversation) setTitle(t string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.title = t
}

func (c *Conversation) append(m Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, m)
}

// removeLast drops the most recent message if it matches the given role and
// content. Used to roll back an optimistic append after a failed send.
func (c *Conversation) removeLast(role, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.messages)
	if n == 0 {
		return
	}
	last := c.messages[n-1]
	if last.Role == role && last.Content == content {
		c.messages = c.messages[:n-1]
	}
}

// exchanges counts completed user/assistant pairs.
func (c *Conversation) exchanges() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var users, assistants int
	for _, m := range c.messages {
		switch m.Role {
		case "user":
			users++
		case "assistant":
			assistants++
		}
	}
	if assistants < users {
		return assistants
	}
	return users
}

// TitlePolicy decides when a conversation should receive an auto-generated
// title. The exchanges argument counts completed user/assistant pairs.
type TitlePolicy interface {
	ShouldGenerateTitle(exchanges int) bool
}

// AfterExchanges is a TitlePolicy that fires exactly once, when the
// conversation reaches the given number of exchanges. A non-positive value
// never fires.
type AfterExchanges int

// ShouldGenerateTitle implements TitlePolicy.
func (n AfterExchanges) ShouldGenerateTitle(exchanges int) bool {
	return n > 0 && exchanges == int(n)
}

// Update is a streaming progress callback payload. Thinking and Response
// reflect the full text assembled so far, re-split on every delta.
type Update struct {
	Thinking          string
	Response          string
	ThinkingStreaming bool
}

// Service sends conversation turns and summary requests to an LLM backend.
type Service struct {
	provider     llm.Provider
	providerName string
	splitter     *stream.Splitter
	titles       TitlePolicy
	log          *slog.Logger
	metrics      *observe.Metrics
	systemPrompt string
	temperature  float64
}

// Option is a functional option for Service.
type Option func(*Service)

// WithSplitter overrides the default reasoning splitter.
func WithSplitter(s *stream.Splitter) Option {
	return func(svc *Service) { svc.splitter = s }
}

// WithTitlePolicy sets the auto-title trigger. Default: never.
func WithTitlePolicy(p TitlePolicy) Option {
	return func(svc *Service) { svc.titles = p }
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(svc *Service) { svc.log = log }
}

// WithMetrics sets the metrics instance. Default: observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(svc *Service) { svc.metrics = m }
}

// WithProviderName sets the provider label attached to error metrics.
// Default: "llm".
func WithProviderName(name string) Option {
	return func(svc *Service) { svc.providerName = name }
}

// WithSystemPrompt overrides the default grounding prompt.
func WithSystemPrompt(p string) Option {
	return func(svc *Service) { svc.systemPrompt = p }
}

// WithTemperature sets the sampling temperature passed to the provider.
func WithTemperature(t float64) Option {
	return func(svc *Service) { svc.temperature = t }
}

// NewService creates a chat service backed by the given provider.
func NewService(provider llm.Provider, opts ...Option) (*Service, error) {
	if provider == nil {
		return nil, fmt.Errorf("chat: provider must not be nil")
	}
	svc := &Service{
		provider:     provider,
		providerName: "llm",
		splitter:     stream.NewSplitter(stream.SplitterConfig{}),
		titles:       AfterExchanges(0),
		log:          slog.Default(),
		systemPrompt: defaultSystemPrompt,
	}
	for _, o := range opts {
		o(svc)
	}
	if svc.metrics == nil {
		svc.metrics = observe.DefaultMetrics()
	}
	return svc, nil
}

// Send appends userText to conv, streams the assistant reply, and appends the
// finished reply to conv. onDelta, if non-nil, is invoked after every chunk
// with the text assembled so far.
//
// The user message is appended before the provider is called. If the call
// fails, or the stream ends with an error or without any content, the user
// message is removed again and the conversation is left as it was.
func (s *Service) Send(ctx context.Context, conv *Conversation, transcriptText, userText string, onDelta func(Update)) (Message, error) {
	if conv == nil {
		return Message{}, fmt.Errorf("chat: conversation must not be nil")
	}
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return Message{}, fmt.Errorf("chat: message must not be empty")
	}

	conv.append(Message{Role: "user", Content: userText, CreatedAt: time.Now()})

	req := llm.CompletionRequest{
		Messages:     s.buildMessages(conv, transcriptText),
		SystemPrompt: s.systemPrompt,
		Temperature:  s.temperature,
	}

	reply, err := s.streamReply(ctx, req, onDelta)
	if err != nil {
		conv.removeLast("user", userText)
		return Message{}, err
	}

	conv.append(reply)
	s.maybeTitle(ctx, conv)
	return reply, nil
}

// Summarize streams a one-shot summary of the transcript. onDelta, if
// non-nil, is invoked after every chunk with the text assembled so far.
func (s *Service) Summarize(ctx context.Context, transcriptText string, onDelta func(Update)) (Message, error) {
	if strings.TrimSpace(transcriptText) == "" {
		return Message{}, fmt.Errorf("chat: transcript must not be empty")
	}

	req := llm.CompletionRequest{
		Messages: []llm.Message{{
			Role:    "user",
			Content: summaryPrompt + "\n\n" + transcriptText,
		}},
		Temperature: s.temperature,
	}
	return s.streamReply(ctx, req, onDelta)
}

// streamReply drives one provider stream to completion, splitting reasoning
// from response on every delta and once more on the final text.
func (s *Service) streamReply(ctx context.Context, req llm.CompletionRequest, onDelta func(Update)) (Message, error) {
	chunks, err := s.provider.StreamCompletion(ctx, req)
	if err != nil {
		s.metrics.RecordProviderError(ctx, s.providerName, "start")
		return Message{}, fmt.Errorf("chat: start stream: %w", err)
	}

	asm := stream.NewAssembler()
	for chunk := range chunks {
		if chunk.FinishReason == "error" {
			// Drain so the provider goroutine can exit.
			for range chunks {
			}
			s.metrics.RecordProviderError(ctx, s.providerName, "stream")
			return Message{}, fmt.Errorf("chat: stream failed: %s", chunk.Text)
		}
		if chunk.Text == "" {
			continue
		}
		text := asm.Append([]byte(chunk.Text))
		if onDelta != nil {
			split := s.splitter.Split(text, true)
			onDelta(Update{
				Thinking:          split.Thinking,
				Response:          split.Response,
				ThinkingStreaming: split.ThinkingStreaming,
			})
		}
	}
	if err := ctx.Err(); err != nil {
		s.metrics.RecordProviderError(ctx, s.providerName, "canceled")
		return Message{}, fmt.Errorf("chat: stream: %w", err)
	}
	final, err := asm.Finish()
	if err != nil {
		s.metrics.RecordProviderError(ctx, s.providerName, "no_content")
		return Message{}, fmt.Errorf("chat: stream: %w", err)
	}

	split := s.splitter.Split(final, false)
	return Message{
		Role:      "assistant",
		Content:   split.Response,
		Thinking:  split.Thinking,
		CreatedAt: time.Now(),
	}, nil
}

// maybeTitle generates a conversation title when the policy fires. Title
// failures are logged, never surfaced: the exchange already succeeded.
func (s *Service) maybeTitle(ctx context.Context, conv *Conversation) {
	if conv.Title() != "" || !s.titles.ShouldGenerateTitle(conv.exchanges()) {
		return
	}

	var b strings.Builder
	b.WriteString(titlePrompt)
	b.WriteString("\n\n")
	for _, m := range conv.Messages() {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}

	resp, err := s.provider.Complete(ctx, llm.CompletionRequest{
		Messages:  []llm.Message{{Role: "user", Content: b.String()}},
		MaxTokens: 32,
	})
	if err != nil {
		s.log.Warn("chat: title generation failed", "error", err)
		return
	}
	title := strings.TrimSpace(resp.Content)
	if title != "" {
		conv.setTitle(title)
	}
}

// buildMessages flattens the conversation into provider messages, injecting
// the transcript as context ahead of the first user turn.
func (s *Service) buildMessages(conv *Conversation, transcriptText string) []llm.Message {
	history := conv.Messages()
	msgs := make([]llm.Message, 0, len(history)+1)
	if transcriptText != "" {
		msgs = append(msgs, llm.Message{
			Role:    "user",
			Content: "Transcript:\n\n" + transcriptText,
		})
	}
	for _, m := range history {
		msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
	}
	return msgs
}
