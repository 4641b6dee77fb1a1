package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/port-research/internal/research"
)

// sseSink streams pipeline events to an HTTP response as server-sent events.
// Writes after the client disconnects are swallowed; the run itself decides
// whether disconnection cancels it.
type sseSink struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	gone    bool
}

func newSSESink(w http.ResponseWriter) (*sseSink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &sseSink{w: w, flusher: flusher}, nil
}

func (s *sseSink) send(event string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gone {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		zap.L().Error("server: failed to marshal sse payload",
			zap.String("event", event), zap.Error(err))
		return
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		s.gone = true
		return
	}
	s.flusher.Flush()
}

type statusEvent struct {
	Step     research.Step `json:"step"`
	Message  string        `json:"message"`
	Progress int           `json:"progress"`
}

type errorEvent struct {
	Category      research.Category `json:"category"`
	Message       string            `json:"message"`
	Retryable     bool              `json:"retryable"`
	OriginalError string            `json:"original_error,omitempty"`
}

func newErrorEvent(e *research.Error) errorEvent {
	ev := errorEvent{Category: e.Category, Message: e.Message, Retryable: e.Retryable}
	if e.Err != nil {
		ev.OriginalError = e.Err.Error()
	}
	return ev
}

func (s *sseSink) Status(step research.Step, message string, progress int) {
	s.send("status", statusEvent{Step: step, Message: message, Progress: progress})
}

func (s *sseSink) Preview(p research.Preview) {
	s.send("preview", p)
}

func (s *sseSink) Error(e *research.Error) {
	s.send("error", newErrorEvent(e))
}

func (s *sseSink) Warning(e *research.Error) {
	s.send("warning", newErrorEvent(e))
}
