// Package api exposes the transcript engine over HTTP: transcript fetch and
// search, notes CRUD, and streamed chat/summary generation.
//
// Streaming endpoints deliver newline-delimited JSON ([StreamEvent] per line)
// over a chunked response; /api/chat/ws offers the same event stream over a
// websocket for clients that want server push.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/rishikanthc/Scriberr-sub000/internal/annotation"
	"github.com/rishikanthc/Scriberr-sub000/internal/chat"
	"github.com/rishikanthc/Scriberr-sub000/internal/observe"
	"github.com/rishikanthc/Scriberr-sub000/internal/transcript"
)

// Server holds the handler dependencies for one transcript.
type Server struct {
	log      *slog.Logger
	metrics  *observe.Metrics
	notes    annotation.Store
	chat     *chat.Service
	searcher *transcript.Searcher

	doc *transcript.Transcript
	idx *transcript.Index
}

// Option is a functional option for Server.
type Option func(*Server)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithMetrics sets the metrics instance. Default: observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithChat enables the chat and summary endpoints. Without it they return
// 503 Service Unavailable.
func WithChat(svc *chat.Service) Option {
	return func(s *Server) { s.chat = svc }
}

// NewServer creates a Server for the given transcript and note store.
func NewServer(doc *transcript.Transcript, notes annotation.Store, opts ...Option) (*Server, error) {
	if doc == nil {
		return nil, fmt.Errorf("api: transcript must not be nil")
	}
	if notes == nil {
		return nil, fmt.Errorf("api: note store must not be nil")
	}

	s := &Server{
		log:      slog.Default(),
		notes:    notes,
		doc:      doc,
		searcher: transcript.NewSearcher(),
	}
	if doc.HasWords() {
		s.idx = transcript.NewIndex(doc.Words)
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s, nil
}

// Handler returns the full route set wrapped in the observability middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/transcript", s.handleTranscript)
	mux.HandleFunc("GET /api/transcript/search", s.handleSearch)

	mux.HandleFunc("GET /api/notes", s.handleListNotes)
	mux.HandleFunc("POST /api/notes", s.handleCreateNote)
	mux.HandleFunc("GET /api/notes/{id}", s.handleGetNote)
	mux.HandleFunc("PATCH /api/notes/{id}", s.handleUpdateNote)
	mux.HandleFunc("DELETE /api/notes/{id}", s.handleDeleteNote)

	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/chat/ws", s.handleChatWS)

	return observe.Middleware(s.metrics)(mux)
}

// ─── Transcript ──────────────────────────────────────────────────────────────

func (s *Server) handleTranscript(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.doc)
}

// searchResult is one fuzzy search hit.
type searchResult struct {
	WordIndex int     `json:"word_index"`
	Text      string  `json:"text"`
	Start     float64 `json:"start"`
	Score     float64 `json:"score"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	if s.idx == nil {
		writeJSON(w, http.StatusOK, []searchResult{})
		return
	}

	matches := s.searcher.Search(s.idx, q)
	results := make([]searchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, searchResult{
			WordIndex: m.Token.Index,
			Text:      m.Token.Text,
			Start:     m.Token.Start,
			Score:     m.Score,
		})
	}
	writeJSON(w, http.StatusOK, results)
}

// ─── Notes ───────────────────────────────────────────────────────────────────

// createNoteRequest is the POST /api/notes body.
type createNoteRequest struct {
	StartWordIndex int     `json:"start_word_index"`
	EndWordIndex   int     `json:"end_word_index"`
	StartTime      float64 `json:"start_time"`
	EndTime        float64 `json:"end_time"`
	Quote          string  `json:"quote"`
	Content        string  `json:"content"`
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := s.notes.List(r.Context())
	if err != nil {
		s.metrics.RecordNoteOperation(r.Context(), "list", "error")
		writeError(w, http.StatusInternalServerError, "list notes failed")
		return
	}
	s.metrics.RecordNoteOperation(r.Context(), "list", "ok")
	writeJSON(w, http.StatusOK, notes)
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var req createNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	note, err := s.notes.Create(r.Context(), annotation.Note{
		StartWordIndex: req.StartWordIndex,
		EndWordIndex:   req.EndWordIndex,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		Quote:          req.Quote,
		Content:        req.Content,
	})
	if errors.Is(err, annotation.ErrInvalidRange) {
		s.metrics.RecordNoteOperation(r.Context(), "create", "error")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.metrics.RecordNoteOperation(r.Context(), "create", "error")
		writeError(w, http.StatusInternalServerError, "create note failed")
		return
	}
	s.metrics.RecordNoteOperation(r.Context(), "create", "ok")
	writeJSON(w, http.StatusCreated, note)
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	note, err := s.notes.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, annotation.ErrNotFound) {
		s.metrics.RecordNoteOperation(r.Context(), "get", "not_found")
		writeError(w, http.StatusNotFound, "note not found")
		return
	}
	if err != nil {
		s.metrics.RecordNoteOperation(r.Context(), "get", "error")
		writeError(w, http.StatusInternalServerError, "get note failed")
		return
	}
	s.metrics.RecordNoteOperation(r.Context(), "get", "ok")
	writeJSON(w, http.StatusOK, note)
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	id := r.PathValue("id")
	err := s.notes.UpdateContent(r.Context(), id, req.Content)
	if errors.Is(err, annotation.ErrNotFound) {
		// The note vanished under the editor. Not actionable for the client;
		// treat like the viewer does and report success.
		s.metrics.RecordNoteOperation(r.Context(), "update", "not_found")
		s.log.Warn("api: update of missing note ignored", "note_id", id)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		s.metrics.RecordNoteOperation(r.Context(), "update", "error")
		writeError(w, http.StatusInternalServerError, "update note failed")
		return
	}
	s.metrics.RecordNoteOperation(r.Context(), "update", "ok")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.notes.Delete(r.Context(), id)
	if errors.Is(err, annotation.ErrNotFound) {
		s.metrics.RecordNoteOperation(r.Context(), "delete", "not_found")
		s.log.Warn("api: delete of missing note ignored", "note_id", id)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		s.metrics.RecordNoteOperation(r.Context(), "delete", "error")
		writeError(w, http.StatusInternalServerError, "delete note failed")
		return
	}
	s.metrics.RecordNoteOperation(r.Context(), "delete", "ok")
	w.WriteHeader(http.StatusNoContent)
}

// ─── Chat and summary streaming ──────────────────────────────────────────────

// chatRequest is the POST /api/chat and websocket request body.
type chatRequest struct {
	Message string `json:"message"`
}

// StreamEvent is one line of a streamed chat or summary response.
type StreamEvent struct {
	// Thinking and Response mirror the split text assembled so far.
	Thinking          string `json:"thinking,omitempty"`
	Response          string `json:"response"`
	ThinkingStreaming bool   `json:"thinking_streaming,omitempty"`

	// Done marks the final event. Error carries a failure description and is
	// only set together with Done.
	Done  bool   `json:"done,omitempty"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		writeError(w, http.StatusServiceUnavailable, "chat is not configured")
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	// One conversation per request; multi-turn state lives on the client,
	// which replays history via the websocket endpoint when it needs it.
	conv := chat.NewConversation()
	start := time.Now()
	s.streamNDJSON(w, r, func(onDelta func(chat.Update)) (chat.Message, error) {
		return s.chat.Send(r.Context(), conv, s.doc.FullText, req.Message, onDelta)
	})
	s.metrics.ChatStreamDuration.Record(r.Context(), time.Since(start).Seconds())
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		writeError(w, http.StatusServiceUnavailable, "chat is not configured")
		return
	}

	start := time.Now()
	s.streamNDJSON(w, r, func(onDelta func(chat.Update)) (chat.Message, error) {
		return s.chat.Summarize(r.Context(), s.doc.FullText, onDelta)
	})
	s.metrics.SummaryDuration.Record(r.Context(), time.Since(start).Seconds())
}

// streamNDJSON runs one streaming generation and writes each update as a JSON
// line, flushing after every write so clients see tokens as they arrive.
func (s *Server) streamNDJSON(w http.ResponseWriter, r *http.Request, run func(func(chat.Update)) (chat.Message, error)) {
	w.Header().Set("Content-Type", "application/x-ndjson; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	writeEvent := func(ev StreamEvent) {
		if err := enc.Encode(ev); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	msg, err := run(func(u chat.Update) {
		s.metrics.RecordStreamChunk(r.Context(), "llm")
		writeEvent(StreamEvent{
			Thinking:          u.Thinking,
			Response:          u.Response,
			ThinkingStreaming: u.ThinkingStreaming,
		})
	})
	if err != nil {
		s.log.Warn("api: stream failed", "err", err)
		writeEvent(StreamEvent{Done: true, Error: err.Error()})
		return
	}
	writeEvent(StreamEvent{Thinking: msg.Thinking, Response: msg.Content, Done: true})
}

// handleChatWS serves a persistent chat conversation over a websocket. Each
// client text message is a [chatRequest]; the server pushes [StreamEvent]
// frames while the reply streams. The conversation lives as long as the
// socket, so history accumulates across turns.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		writeError(w, http.StatusServiceUnavailable, "chat is not configured")
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("api: websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	s.metrics.ActiveConversations.Add(ctx, 1)
	defer s.metrics.ActiveConversations.Add(ctx, -1)

	conv := chat.NewConversation()
	for {
		var req chatRequest
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			s.log.Debug("api: websocket read ended", "err", err)
			return
		}

		msg, err := s.chat.Send(ctx, conv, s.doc.FullText, req.Message, func(u chat.Update) {
			s.metrics.RecordStreamChunk(ctx, "llm")
			_ = wsjson.Write(ctx, conn, StreamEvent{
				Thinking:          u.Thinking,
				Response:          u.Response,
				ThinkingStreaming: u.ThinkingStreaming,
			})
		})
		if err != nil {
			if wErr := wsjson.Write(ctx, conn, StreamEvent{Done: true, Error: err.Error()}); wErr != nil {
				return
			}
			continue
		}
		if err := wsjson.Write(ctx, conn, StreamEvent{Thinking: msg.Thinking, Response: msg.Content, Done: true}); err != nil {
			return
		}
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}

// writeError writes a JSON error body with the given status code.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
