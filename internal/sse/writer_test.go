package sse

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriterSendsFramesAndSingleDone(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	if err := w.Send(Frame{Text: "hi"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	w.Done()
	w.Done()
	if err := w.Send(Frame{Text: "late"}); err != nil {
		t.Fatalf("Send after Done: %v", err)
	}

	body := rec.Body.String()
	if !strings.Contains(body, `data: {"text":"hi"}`) {
		t.Fatalf("missing text frame in %q", body)
	}
	if strings.Contains(body, "late") {
		t.Fatalf("frame written after Done in %q", body)
	}
	if got := strings.Count(body, "data: [DONE]"); got != 1 {
		t.Fatalf("expected exactly 1 terminal marker, got %d in %q", got, body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
}
