package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// setupSSE sets the event-stream headers. On failure it writes an error
// response and returns false.
func setupSSE(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	return flusher, true
}

// sendSSEEvent writes one event and flushes it.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	flusher.Flush()
}

// streamSessionEvents streams events until the broadcaster closes or the
// client disconnects. initial is sent first as a snapshot.
func streamSessionEvents(w http.ResponseWriter, r *http.Request, events *EventBroadcaster, initial any) {
	flusher, ok := setupSSE(w)
	if !ok {
		return
	}

	eventCh := events.AddListener()
	defer events.RemoveListener(eventCh)

	sendSSEEvent(w, flusher, EventSnapshot, initial)

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, event.Type, event.Data)
			if event.Type == EventClosed {
				return
			}
		}
	}
}
