package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// FakeBackend is an in-process stand-in for the Anime Q&A HTTP backend.
// Configure its fields before the first request.
type FakeBackend struct {
	URL string

	// AnswerStatus and AnswerBody are returned by POST /anime. When
	// AnswerBody is empty a success envelope echoing the question is sent.
	AnswerStatus int
	AnswerBody   string

	// Chunks are written to POST /anime/stream, each flushed on its own.
	Chunks []string

	// Messages are sent as event data on GET /anime_stream.
	Messages []string

	// InitBody is returned by POST /initialize. Empty means success.
	InitStatus int
	InitBody   string

	// Delay is applied before any response is written.
	Delay time.Duration

	// Hold keeps streaming handlers open after their payload until the
	// client goes away or Release is called.
	Hold bool

	server  *httptest.Server
	release chan struct{}
	once    sync.Once

	mu       sync.Mutex
	hits     map[string]int
	queries  []string
	initBody []byte
}

// NewFakeBackend starts a fake backend that is closed with the test.
func NewFakeBackend(t testing.TB) *FakeBackend {
	t.Helper()
	f := &FakeBackend{
		hits:    make(map[string]int),
		release: make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /anime", f.handleAnime)
	mux.HandleFunc("POST /anime/stream", f.handleChunked)
	mux.HandleFunc("GET /anime_stream", f.handleEvents)
	mux.HandleFunc("POST /initialize", f.handleInitialize)

	f.server = httptest.NewServer(mux)
	f.URL = f.server.URL
	t.Cleanup(func() {
		f.Release()
		f.server.CloseClientConnections()
		f.server.Close()
	})
	return f
}

// Release unblocks handlers parked by Hold.
func (f *FakeBackend) Release() {
	f.once.Do(func() { close(f.release) })
}

// Hits returns how many requests reached path.
func (f *FakeBackend) Hits(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

// Queries returns every question received, in order.
func (f *FakeBackend) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// LastInitialize decodes the last /initialize body into a generic map.
func (f *FakeBackend) LastInitialize() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.initBody == nil {
		return nil
	}
	var out map[string]any
	_ = json.Unmarshal(f.initBody, &out)
	return out
}

func (f *FakeBackend) record(path, question string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits[path]++
	if question != "" {
		f.queries = append(f.queries, question)
	}
}

func (f *FakeBackend) wait(ctx context.Context) bool {
	if f.Delay <= 0 {
		return true
	}
	select {
	case <-time.After(f.Delay):
		return true
	case <-ctx.Done():
		return false
	case <-f.release:
		return true
	}
}

func (f *FakeBackend) hold(ctx context.Context) {
	if !f.Hold {
		return
	}
	select {
	case <-ctx.Done():
	case <-f.release:
	}
}

func decodeQuestion(r *http.Request) string {
	var body struct {
		Input string `json:"input_"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	return body.Input
}

func (f *FakeBackend) handleAnime(w http.ResponseWriter, r *http.Request) {
	question := decodeQuestion(r)
	f.record("/anime", question)
	if !f.wait(r.Context()) {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	status := f.AnswerStatus
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	if f.AnswerBody != "" {
		io.WriteString(w, f.AnswerBody)
		return
	}
	json.NewEncoder(w).Encode(map[string]string{
		"status":   "success",
		"response": "Answer to: " + question,
	})
}

func (f *FakeBackend) handleChunked(w http.ResponseWriter, r *http.Request) {
	f.record("/anime/stream", decodeQuestion(r))
	if !f.wait(r.Context()) {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	for _, chunk := range f.Chunks {
		io.WriteString(w, chunk)
		if flusher != nil {
			flusher.Flush()
		}
	}
	f.hold(r.Context())
}

func (f *FakeBackend) handleEvents(w http.ResponseWriter, r *http.Request) {
	f.record("/anime_stream", r.URL.Query().Get("q"))
	if !f.wait(r.Context()) {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	for _, msg := range f.Messages {
		fmt.Fprintf(w, "data: %s\n\n", msg)
		if flusher != nil {
			flusher.Flush()
		}
	}
	f.hold(r.Context())
}

func (f *FakeBackend) handleInitialize(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.hits["/initialize"]++
	f.initBody = body
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	status := f.InitStatus
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if f.InitBody != "" {
		io.WriteString(w, f.InitBody)
		return
	}
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "success",
		"message": "System initialized successfully",
	})
}

// PipeTransport is an http.RoundTripper whose response bodies are written
// by the test. Bodies fail with the request's context error once it is done,
// as a real transport would.
type PipeTransport struct {
	Status      int
	ContentType string

	writers chan *io.PipeWriter

	mu       sync.Mutex
	requests []*http.Request
}

// NewPipeTransport creates a transport answering with status.
func NewPipeTransport(status int, contentType string) *PipeTransport {
	return &PipeTransport{
		Status:      status,
		ContentType: contentType,
		writers:     make(chan *io.PipeWriter, 8),
	}
}

// RoundTrip implements http.RoundTripper.
func (p *PipeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	pr, pw := io.Pipe()
	ctx := req.Context()
	context.AfterFunc(ctx, func() { pw.CloseWithError(ctx.Err()) })

	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()
	p.writers <- pw

	header := make(http.Header)
	if p.ContentType != "" {
		header.Set("Content-Type", p.ContentType)
	}
	return &http.Response{
		StatusCode: p.Status,
		Status:     http.StatusText(p.Status),
		Header:     header,
		Body:       pr,
		Request:    req,
	}, nil
}

// Next returns the body writer of the next request.
func (p *PipeTransport) Next(t testing.TB) *io.PipeWriter {
	t.Helper()
	select {
	case w := <-p.writers:
		return w
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a request")
		return nil
	}
}

// Requests returns the requests seen so far.
func (p *PipeTransport) Requests() []*http.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*http.Request(nil), p.requests...)
}
