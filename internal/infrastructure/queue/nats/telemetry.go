package nats

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// TelemetrySink publishes pipeline debug events on a side subject,
// fire-and-forget. A dropped event is invisible to the caller; the pipeline
// must never slow down for telemetry.
type TelemetrySink struct {
	conn    *nats.Conn
	subject string
}

func NewTelemetrySink(conn *nats.Conn, subject string) *TelemetrySink {
	return &TelemetrySink{conn: conn, subject: subject}
}

// SinkFromQueue reuses the queue's connection for telemetry.
func SinkFromQueue(q *Queue, subject string) *TelemetrySink {
	return &TelemetrySink{conn: q.conn, subject: subject}
}

func (s *TelemetrySink) Emit(event string, fields map[string]any) {
	payload, err := json.Marshal(map[string]any{
		"event":  event,
		"at":     time.Now().UTC().Format(time.RFC3339Nano),
		"fields": fields,
	})
	if err != nil {
		return
	}
	if err := s.conn.Publish(s.subject, payload); err != nil {
		slog.Debug("telemetry_publish_failed", "event", event, "error", err)
	}
}
