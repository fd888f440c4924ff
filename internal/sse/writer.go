package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// Frame is the provider-agnostic payload of one client-facing data line.
// Exactly one of Text or Error is set.
type Frame struct {
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

// DoneMarker terminates every client stream, exactly once per request.
const DoneMarker = "[DONE]"

// Writer serializes frames onto an http.ResponseWriter as server-sent events.
// It is safe for concurrent use and guarantees the terminal marker is written
// at most once no matter how many paths race to close the stream.
type Writer struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	done    bool
}

func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	return &Writer{w: w, flusher: flusher}, nil
}

func (sw *Writer) Send(frame Frame) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.done {
		return nil
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}

// Done writes the terminal marker and seals the writer. Subsequent Send and
// Done calls are no-ops, which is what lets error paths and the normal close
// path both call it unconditionally.
func (sw *Writer) Done() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.done {
		return
	}
	sw.done = true
	_, _ = fmt.Fprintf(sw.w, "data: %s\n\n", DoneMarker)
	sw.flusher.Flush()
}
