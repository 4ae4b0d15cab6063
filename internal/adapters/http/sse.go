package httpadapter

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/fundqa/exam-copilot/internal/core/domain"
)

// writeEventStream frames answer events as server-sent events and closes the
// stream with a [DONE] marker. It returns the pipeline and document count seen
// on the metadata event for observability.
func writeEventStream(w http.ResponseWriter, events <-chan domain.StreamEvent) (pipeline string, docsFound int, err error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return "", 0, fmt.Errorf("streaming is not supported by response writer")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for event := range events {
		if event.Type == domain.EventMetadata {
			pipeline = string(event.Pipeline)
			docsFound = event.DocsFound
		}

		payload, err := json.Marshal(event)
		if err != nil {
			return pipeline, docsFound, fmt.Errorf("marshal stream event: %w", err)
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return pipeline, docsFound, err
		}
		flusher.Flush()
	}

	if _, err := io.WriteString(w, "data: [DONE]\n\n"); err != nil {
		return pipeline, docsFound, err
	}
	flusher.Flush()
	return pipeline, docsFound, nil
}
