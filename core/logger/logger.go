package logger

import (
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Field names every entry carries.
const (
	FieldTimestamp = "timestamp_micros"
	FieldSessionID = "session_id"
	FieldEvent     = "event"
)

// LogRecorder is a callback that stores entries in an external datastore.
type LogRecorder func(le *structpb.Struct) error

// Logger captures events.
type Logger struct {
	Record LogRecorder
	// Now is the time source for entries, defaults to time.Now.
	Now func() time.Time
}

// NewJSONLinesLogRecorder creates a Logger that exports logs in newline
// delimited JSON object format. It's safe for concurrent use.
func NewJSONLinesLogRecorder(w io.Writer) *Logger {
	var mu sync.Mutex
	return &Logger{
		Record: func(le *structpb.Struct) error {
			entry, err := protojson.Marshal(le)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			_, err = fmt.Fprintln(w, string(entry))
			return err
		},
	}
}

func (l *Logger) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

func (l *Logger) record(sessionID, event string, fields map[string]interface{}) error {
	le, err := structpb.NewStruct(fields)
	if err != nil {
		return fmt.Errorf("couldn't log %s: %w", event, err)
	}

	le.Fields[FieldTimestamp] = structpb.NewNumberValue(float64(l.now().UnixNano() / int64(time.Microsecond)))
	le.Fields[FieldSessionID] = structpb.NewStringValue(sessionID)
	le.Fields[FieldEvent] = structpb.NewStringValue(event)

	return l.Record(le)
}

// NewSession creates a logger with attached random session ID.
func (l *Logger) NewSession() *SessionLogger {
	return &SessionLogger{Logger: l, sessionID: fmt.Sprintf("%d", rand.Uint64())}
}

// SessionLogger logs events with a shared session ID.
type SessionLogger struct {
	*Logger
	sessionID string
}

// SessionID returns the ID attached to every event.
func (l *SessionLogger) SessionID() string {
	return l.sessionID
}

// Record implements vos.EventRecorder.
func (l *SessionLogger) Record(event string, fields map[string]interface{}) error {
	return l.record(l.sessionID, event, fields)
}
