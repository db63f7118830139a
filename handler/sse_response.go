package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Stream writes server-sent events to one client.
type Stream interface {
	Context
	// Send writes one event whose data is v encoded as JSON.
	Send(event string, v any) error
}

// SSEHandler runs for the lifetime of an event stream.
type SSEHandler func(stream Stream) error

type sseResponse struct {
	handler SSEHandler
}

// SSE streams events produced by h until h returns or the client disconnects.
func SSE(h SSEHandler) Response {
	return sseResponse{handler: h}
}

func (s sseResponse) Render(w http.ResponseWriter, r *http.Request) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return ErrStreamingUnsupported
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return s.handler(&stream{Context: NewContext(w, r), w: w, f: flusher})
}

type stream struct {
	Context
	w http.ResponseWriter
	f http.Flusher
}

func (s *stream) Send(event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	s.f.Flush()
	return nil
}
