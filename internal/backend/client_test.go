package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/animeqa/animeqa/internal/testutil"
)

func TestNewClientNormalizesBaseURL(t *testing.T) {
	tests := map[string]string{
		"":                        DefaultBaseURL,
		"   ":                     DefaultBaseURL,
		"http://example.com/":     "http://example.com",
		"http://example.com/api/": "http://example.com/api",
		" http://host:5000 ":      "http://host:5000",
	}
	for in, want := range tests {
		if got := NewClient(in).BaseURL(); got != want {
			t.Errorf("NewClient(%q).BaseURL() = %q, want %q", in, got, want)
		}
	}

	c := NewClient("")
	if c.Timeout() != DefaultTimeout {
		t.Fatalf("default timeout = %v, want %v", c.Timeout(), DefaultTimeout)
	}
}

func TestSubmitSuccess(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	c := NewClient(fb.URL)

	answer, err := c.Submit(context.Background(), "Who is Naruto?")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if answer.Text != "Answer to: Who is Naruto?" {
		t.Fatalf("answer = %q", answer.Text)
	}
	if fb.Hits("/anime") != 1 {
		t.Fatalf("hits = %d, want 1", fb.Hits("/anime"))
	}
	if q := fb.Queries(); len(q) != 1 || q[0] != "Who is Naruto?" {
		t.Fatalf("queries = %v", q)
	}
}

func TestSubmitEmptyInputSkipsNetwork(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	c := NewClient(fb.URL)

	for _, q := range []string{"", "  \n\t"} {
		_, err := c.Submit(context.Background(), q)
		if !errors.Is(err, ErrEmptyInput) {
			t.Fatalf("Submit(%q) err = %v, want ErrEmptyInput", q, err)
		}
	}
	if fb.Hits("/anime") != 0 {
		t.Fatalf("backend was contacted %d times for blank input", fb.Hits("/anime"))
	}
}

func TestSubmitEnvelopeFailure(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"message", `{"status":"error","message":"RAG failed"}`, "RAG failed"},
		{"error field", `{"status":"error","error":"vector store missing"}`, "vector store missing"},
		{"nothing", `{"status":"error"}`, "Unknown error from backend."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fb := testutil.NewFakeBackend(t)
			fb.AnswerBody = tc.body
			c := NewClient(fb.URL)

			_, err := c.Submit(context.Background(), "q")
			var be *BackendError
			if !errors.As(err, &be) {
				t.Fatalf("err = %#v, want *BackendError", err)
			}
			if UserMessage(err) != tc.want {
				t.Fatalf("message = %q, want %q", UserMessage(err), tc.want)
			}
		})
	}
}

func TestSubmitHTTPError(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.AnswerStatus = http.StatusInternalServerError
	fb.AnswerBody = `{"status":"error","message":"System not initialized"}`
	c := NewClient(fb.URL)

	_, err := c.Submit(context.Background(), "q")
	var he *HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("err = %#v, want *HTTPError", err)
	}
	if he.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d", he.StatusCode)
	}
	if he.Message != "System not initialized" {
		t.Fatalf("message = %q", he.Message)
	}
	if KindOf(err) != KindHTTP {
		t.Fatalf("kind = %v, want http", KindOf(err))
	}
}

func TestSubmitTimeout(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.Delay = 5 * time.Second
	c := NewClient(fb.URL, WithTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := c.Submit(context.Background(), "slow question")
	if time.Since(start) > 3*time.Second {
		t.Fatalf("Submit took %v, ceiling not enforced", time.Since(start))
	}

	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("err = %#v, want *TimeoutError", err)
	}
	if te.After != 50*time.Millisecond {
		t.Fatalf("After = %v", te.After)
	}
	if !errors.Is(err, ErrTimeout) {
		t.Fatal("expected errors.Is(err, ErrTimeout)")
	}
}

func TestSubmitCancelled(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.Delay = 5 * time.Second
	c := NewClient(fb.URL)

	ctx, cancel := context.WithCancelCause(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel(ErrCancelled)
	}()

	_, err := c.Submit(ctx, "q")
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
}

func TestSubmitNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).Submit(context.Background(), "q")
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("err = %#v, want *NetworkError", err)
	}
	if UserMessage(err) != "Network error. Check that the backend is running and reachable." {
		t.Fatalf("message = %q", UserMessage(err))
	}
}

func TestInitialize(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	c := NewClient(fb.URL)

	msg, err := c.Initialize(context.Background(), InitializeRequest{
		DataDir:  "./data",
		LLMModel: "groq:llama-3.1-8b-instant",
		KDocs:    5,
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if msg != "System initialized successfully" {
		t.Fatalf("message = %q", msg)
	}

	body := fb.LastInitialize()
	if body["data_dir"] != "./data" || body["llm_model"] != "groq:llama-3.1-8b-instant" {
		t.Fatalf("body = %v", body)
	}
	if body["k_docs"] != float64(5) {
		t.Fatalf("k_docs = %v", body["k_docs"])
	}
	if _, ok := body["db_dir"]; ok {
		t.Fatal("unset db_dir should be omitted")
	}
}

func TestInitializeFailure(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.InitBody = `{"status":"error","message":"data_dir does not exist"}`
	c := NewClient(fb.URL)

	_, err := c.Initialize(context.Background(), InitializeRequest{DataDir: "/missing"})
	if UserMessage(err) != "data_dir does not exist" {
		t.Fatalf("err = %v", err)
	}
}
