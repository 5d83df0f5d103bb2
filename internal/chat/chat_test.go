package chat_test

import (
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/rishikanthc/Scriberr-sub000/internal/chat"
	"github.com/rishikanthc/Scriberr-sub000/internal/observe"
	"github.com/rishikanthc/Scriberr-sub000/pkg/provider/llm"
	"github.com/rishikanthc/Scriberr-sub000/pkg/provider/llm/mock"
)

func newService(t *testing.T, p llm.Provider, opts ...chat.Option) *chat.Service {
	t.Helper()
	svc, err := chat.NewService(p, opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestSendAppendsBothTurns(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		StreamChunks: []llm.Chunk{
			{Text: "The speakers "},
			{Text: "agreed on a date."},
			{FinishReason: "stop"},
		},
	}
	svc := newService(t, provider)
	conv := chat.NewConversation()

	reply, err := svc.Send(context.Background(), conv, "transcript text", "When did they agree?", nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if reply.Content != "The speakers agreed on a date." {
		t.Fatalf("reply.Content = %q", reply.Content)
	}

	msgs := conv.Messages()
	if len(msgs) != 2 {
		t.Fatalf("len(Messages) = %d, want 2", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[0].Content != "When did they agree?" {
		t.Fatalf("msgs[0] = %+v", msgs[0])
	}
	if msgs[1].Role != "assistant" || msgs[1].Content != reply.Content {
		t.Fatalf("msgs[1] = %+v", msgs[1])
	}

	// Transcript context precedes the history in the provider request.
	if len(provider.StreamCalls) != 1 {
		t.Fatalf("StreamCalls = %d, want 1", len(provider.StreamCalls))
	}
	sent := provider.StreamCalls[0].Messages
	if len(sent) != 2 || sent[0].Content != "Transcript:\n\ntranscript text" {
		t.Fatalf("sent messages = %+v", sent)
	}
}

func TestSendRollsBackUserMessage(t *testing.T) {
	t.Parallel()

	t.Run("provider refuses to start", func(t *testing.T) {
		t.Parallel()
		provider := &mock.Provider{StreamErr: errors.New("connection refused")}
		svc := newService(t, provider)
		conv := chat.NewConversation()

		if _, err := svc.Send(context.Background(), conv, "", "hello", nil); err == nil {
			t.Fatal("Send: expected error")
		}
		if n := len(conv.Messages()); n != 0 {
			t.Fatalf("len(Messages) = %d after failed send, want 0", n)
		}
	})

	t.Run("stream fails mid-flight", func(t *testing.T) {
		t.Parallel()
		provider := &mock.Provider{
			StreamChunks: []llm.Chunk{
				{Text: "partial"},
				{FinishReason: "error", Text: "backend overloaded"},
			},
		}
		svc := newService(t, provider)
		conv := chat.NewConversation()

		if _, err := svc.Send(context.Background(), conv, "", "hello", nil); err == nil {
			t.Fatal("Send: expected error")
		}
		if n := len(conv.Messages()); n != 0 {
			t.Fatalf("len(Messages) = %d after failed send, want 0", n)
		}
	})

	t.Run("stream produces no content", func(t *testing.T) {
		t.Parallel()
		provider := &mock.Provider{
			StreamChunks: []llm.Chunk{{FinishReason: "stop"}},
		}
		svc := newService(t, provider)
		conv := chat.NewConversation()

		if _, err := svc.Send(context.Background(), conv, "", "hello", nil); err == nil {
			t.Fatal("Send: expected error for empty stream")
		}
		if n := len(conv.Messages()); n != 0 {
			t.Fatalf("len(Messages) = %d after empty stream, want 0", n)
		}
	})

	t.Run("earlier history survives a rollback", func(t *testing.T) {
		t.Parallel()
		provider := &mock.Provider{
			StreamChunks: []llm.Chunk{{Text: "First answer."}},
		}
		svc := newService(t, provider)
		conv := chat.NewConversation()

		if _, err := svc.Send(context.Background(), conv, "", "first", nil); err != nil {
			t.Fatalf("Send: %v", err)
		}

		provider.StreamErr = errors.New("down")
		if _, err := svc.Send(context.Background(), conv, "", "second", nil); err == nil {
			t.Fatal("Send: expected error")
		}
		msgs := conv.Messages()
		if len(msgs) != 2 || msgs[1].Content != "First answer." {
			t.Fatalf("history after rollback = %+v", msgs)
		}
	})
}

func TestSendReassemblesSplitRunes(t *testing.T) {
	t.Parallel()

	// A provider may cut a chunk boundary through a multi-byte rune; the
	// carry in the assembler has to stitch it back together.
	provider := &mock.Provider{
		StreamChunks: []llm.Chunk{
			{Text: "caf"},
			{Text: "\xc3"},
			{Text: "\xa9 au lait"},
		},
	}
	svc := newService(t, provider)
	conv := chat.NewConversation()

	reply, err := svc.Send(context.Background(), conv, "", "what was ordered?", nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if reply.Content != "café au lait" {
		t.Fatalf("Content = %q, want %q", reply.Content, "café au lait")
	}
}

func TestSendSplitsThinking(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		StreamChunks: []llm.Chunk{
			{Text: "<think>checking the speaker turns</think>"},
			{Text: "Three people spoke."},
		},
	}
	svc := newService(t, provider)
	conv := chat.NewConversation()

	reply, err := svc.Send(context.Background(), conv, "", "who spoke?", nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if reply.Thinking != "checking the speaker turns" {
		t.Fatalf("Thinking = %q", reply.Thinking)
	}
	if reply.Content != "Three people spoke." {
		t.Fatalf("Content = %q", reply.Content)
	}
}

func TestSendDeltaCallbacks(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		StreamChunks: []llm.Chunk{
			{Text: "<think>rea"},
			{Text: "soning</think>ans"},
			{Text: "wer"},
		},
	}
	svc := newService(t, provider)
	conv := chat.NewConversation()

	var updates []chat.Update
	_, err := svc.Send(context.Background(), conv, "", "q", func(u chat.Update) {
		updates = append(updates, u)
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(updates) != 3 {
		t.Fatalf("len(updates) = %d, want 3", len(updates))
	}
	if !updates[0].ThinkingStreaming || updates[0].Thinking != "rea" {
		t.Fatalf("updates[0] = %+v", updates[0])
	}
	if updates[1].ThinkingStreaming || updates[1].Response != "ans" {
		t.Fatalf("updates[1] = %+v", updates[1])
	}
	last := updates[len(updates)-1]
	if last.Response != "answer" || last.Thinking != "reasoning" {
		t.Fatalf("final update = %+v", last)
	}
}

func TestAutoTitle(t *testing.T) {
	t.Parallel()

	t.Run("fires at the configured exchange count", func(t *testing.T) {
		t.Parallel()
		provider := &mock.Provider{
			StreamChunks:     []llm.Chunk{{Text: "Answer."}},
			CompleteResponse: &llm.CompletionResponse{Content: "Planning The Offsite\n"},
		}
		svc := newService(t, provider, chat.WithTitlePolicy(chat.AfterExchanges(1)))
		conv := chat.NewConversation()

		if _, err := svc.Send(context.Background(), conv, "", "q", nil); err != nil {
			t.Fatalf("Send: %v", err)
		}
		if got := conv.Title(); got != "Planning The Offsite" {
			t.Fatalf("Title = %q", got)
		}
		if len(provider.CompleteCalls) != 1 {
			t.Fatalf("CompleteCalls = %d, want 1", len(provider.CompleteCalls))
		}
	})

	t.Run("does not fire before the threshold", func(t *testing.T) {
		t.Parallel()
		provider := &mock.Provider{
			StreamChunks: []llm.Chunk{{Text: "Answer."}},
		}
		svc := newService(t, provider, chat.WithTitlePolicy(chat.AfterExchanges(2)))
		conv := chat.NewConversation()

		if _, err := svc.Send(context.Background(), conv, "", "q", nil); err != nil {
			t.Fatalf("Send: %v", err)
		}
		if got := conv.Title(); got != "" {
			t.Fatalf("Title = %q, want empty", got)
		}
		if len(provider.CompleteCalls) != 0 {
			t.Fatalf("CompleteCalls = %d, want 0", len(provider.CompleteCalls))
		}
	})

	t.Run("title failure does not fail the exchange", func(t *testing.T) {
		t.Parallel()
		provider := &mock.Provider{
			StreamChunks: []llm.Chunk{{Text: "Answer."}},
			CompleteErr:  errors.New("quota exceeded"),
		}
		svc := newService(t, provider, chat.WithTitlePolicy(chat.AfterExchanges(1)))
		conv := chat.NewConversation()

		if _, err := svc.Send(context.Background(), conv, "", "q", nil); err != nil {
			t.Fatalf("Send: %v", err)
		}
		if n := len(conv.Messages()); n != 2 {
			t.Fatalf("len(Messages) = %d, want 2", n)
		}
	})
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	t.Run("streams and returns the summary", func(t *testing.T) {
		t.Parallel()
		provider := &mock.Provider{
			StreamChunks: []llm.Chunk{
				{Text: "The meeting covered "},
				{Text: "the Q3 roadmap."},
			},
		}
		svc := newService(t, provider)

		var deltas int
		msg, err := svc.Summarize(context.Background(), "full transcript text", func(chat.Update) {
			deltas++
		})
		if err != nil {
			t.Fatalf("Summarize: %v", err)
		}
		if msg.Content != "The meeting covered the Q3 roadmap." {
			t.Fatalf("Content = %q", msg.Content)
		}
		if deltas != 2 {
			t.Fatalf("deltas = %d, want 2", deltas)
		}
	})

	t.Run("rejects an empty transcript", func(t *testing.T) {
		t.Parallel()
		svc := newService(t, &mock.Provider{})
		if _, err := svc.Summarize(context.Background(), "   ", nil); err == nil {
			t.Fatal("Summarize: expected error")
		}
	})
}

func TestSendRecordsProviderError(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	provider := &mock.Provider{StreamErr: errors.New("connection refused")}
	svc := newService(t, provider, chat.WithMetrics(m), chat.WithProviderName("ollama"))
	conv := chat.NewConversation()

	if _, err := svc.Send(context.Background(), conv, "", "hello", nil); err == nil {
		t.Fatal("Send: expected error")
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var found bool
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != "scriberr.provider.errors" {
				continue
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok || len(sum.DataPoints) != 1 {
				t.Fatalf("unexpected data shape: %+v", met.Data)
			}
			dp := sum.DataPoints[0]
			if dp.Value != 1 {
				t.Fatalf("provider error count = %d, want 1", dp.Value)
			}
			for _, kv := range dp.Attributes.ToSlice() {
				if string(kv.Key) == "provider" && kv.Value.AsString() != "ollama" {
					t.Fatalf("provider attribute = %q", kv.Value.AsString())
				}
			}
			found = true
		}
	}
	if !found {
		t.Fatal("provider error counter was not recorded")
	}
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	t.Parallel()

	svc := newService(t, &mock.Provider{})
	conv := chat.NewConversation()
	if _, err := svc.Send(context.Background(), conv, "", "  \n ", nil); err == nil {
		t.Fatal("Send: expected error for blank message")
	}
	if n := len(conv.Messages()); n != 0 {
		t.Fatalf("len(Messages) = %d, want 0", n)
	}
}
