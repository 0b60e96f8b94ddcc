package openai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(nil, server.URL, "test-key", time.Millisecond, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestCreateThreadAndAddMessage(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("OpenAI-Beta") != "assistants=v2" {
			t.Errorf("missing assistants beta header")
		}
		switch r.URL.Path {
		case "/threads":
			_, _ = w.Write([]byte(`{"id":"thread_abc"}`))
		case "/threads/thread_abc/messages":
			_, _ = w.Write([]byte(`{"id":"msg_1"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	id, err := client.CreateThread(context.Background())
	if err != nil {
		t.Fatalf("create thread: %v", err)
	}
	if id != "thread_abc" {
		t.Fatalf("thread id = %q", id)
	}
	if err := client.AddMessage(context.Background(), id, "user", "hola"); err != nil {
		t.Fatalf("add message: %v", err)
	}
}

func TestWaitForRunCompletes(t *testing.T) {
	t.Parallel()

	polls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls++
		status := RunStatusInProgress
		if polls >= 3 {
			status = RunStatusCompleted
		}
		_, _ = w.Write([]byte(`{"id":"run_1","thread_id":"thread_1","status":"` + status + `"}`))
	}))

	run, err := client.WaitForRun(context.Background(), "thread_1", "run_1")
	if err != nil {
		t.Fatalf("wait for run: %v", err)
	}
	if run.Status != RunStatusCompleted {
		t.Fatalf("status = %q", run.Status)
	}
	if polls < 3 {
		t.Fatalf("expected at least 3 polls, got %d", polls)
	}
}

func TestWaitForRunTimesOut(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"run_1","thread_id":"thread_1","status":"in_progress"}`))
	}))

	_, err := client.WaitForRun(context.Background(), "thread_1", "run_1")
	if !errors.Is(err, ErrRunTimeout) {
		t.Fatalf("err = %v, want ErrRunTimeout", err)
	}
}

func TestThreadNotFound(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	err := client.AddMessage(context.Background(), "thread_gone", "user", "hola")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLatestAssistantMessage(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[
			{"id":"m2","role":"assistant","content":[{"type":"text","text":{"value":"respuesta"}}]},
			{"id":"m1","role":"user","content":[{"type":"text","text":{"value":"pregunta"}}]}
		]}`))
	}))

	text, err := client.LatestAssistantMessage(context.Background(), "thread_1")
	if err != nil {
		t.Fatalf("latest assistant message: %v", err)
	}
	if text != "respuesta" {
		t.Fatalf("text = %q", text)
	}
}

func TestChatCompletionFallback(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"fallback reply"}}]}`))
	}))

	text, err := client.ChatCompletion(context.Background(), "gpt-4o-mini", []ChatMessage{{Role: "user", Content: "hola"}})
	if err != nil {
		t.Fatalf("chat completion: %v", err)
	}
	if text != "fallback reply" {
		t.Fatalf("text = %q", text)
	}
}
