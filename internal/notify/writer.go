// Package notify relays engine events between processes that share a data
// directory. One-shot commands write event files; the server watches the
// directory and republishes them to its websocket clients.
package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	eventDir    = "events"
	eventSuffix = ".event"
)

// Event is the payload written to an event file.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
	Time int64           `json:"time"`
}

// Written returns when the event was emitted.
func (e Event) Written() time.Time {
	return time.Unix(0, e.Time)
}

// EventWriter writes notification event files to a shared directory.
type EventWriter struct {
	dir string
}

// NewEventWriter creates a writer that emits events to {dataPath}/events/.
func NewEventWriter(dataPath string) *EventWriter {
	return &EventWriter{dir: filepath.Join(dataPath, eventDir)}
}

// Notify writes one event file. The file is renamed into place so watchers
// never see a partial payload. Safe to call concurrently.
func (w *EventWriter) Notify(eventType string, data any) error {
	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return fmt.Errorf("notify: mkdir %s: %w", w.dir, err)
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("notify: marshal %s: %w", eventType, err)
	}
	evt := Event{Type: eventType, Data: payload, Time: time.Now().UnixNano()}
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("notify: marshal %s: %w", eventType, err)
	}

	// Zero-padded so lexical order is chronological.
	name := fmt.Sprintf("%019d-%s-%s", evt.Time, sanitizeName(eventType), uuid.NewString()[:8])
	tmp := filepath.Join(w.dir, name+".tmp")
	if err := os.WriteFile(tmp, body, 0o600); err != nil {
		return fmt.Errorf("notify: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, filepath.Join(w.dir, name+eventSuffix)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("notify: publish %s: %w", name, err)
	}
	return nil
}

// sanitizeName replaces characters unsafe for filenames.
func sanitizeName(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '/', ':', '\\':
			out[i] = '_'
		default:
			out[i] = s[i]
		}
	}
	return string(out)
}
