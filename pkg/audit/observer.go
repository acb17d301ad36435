// pkg/audit/observer.go
package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/David-Botos/data-anonymizer/pkg/model"
)

// EventType names a run lifecycle event
type EventType string

const (
	EventRunStarted       EventType = "run_started"
	EventValidationFailed EventType = "validation_failed"
	EventMappingBuilt     EventType = "mapping_built"
	EventMethodFallback   EventType = "method_fallback"
	EventRunCompleted     EventType = "run_completed"
	EventRunFailed        EventType = "run_failed"
)

// Event is delivered to observers as a run progresses. Record is set on
// EventRunCompleted only.
type Event struct {
	Type   EventType
	RunID  string
	Time   time.Time
	Data   map[string]interface{}
	Record *model.AuditRecord
}

// NewEvent creates an event stamped with the current time
func NewEvent(eventType EventType, runID string, data map[string]interface{}) Event {
	return Event{
		Type:  eventType,
		RunID: runID,
		Time:  time.Now(),
		Data:  data,
	}
}

// Observer receives run events
type Observer interface {
	Notify(ctx context.Context, event Event) error
}

// Observers fans an event out to several observers and collects the failures
type Observers []Observer

// Notify delivers event to every observer, even after one fails
func (o Observers) Notify(ctx context.Context, event Event) []error {
	var errs []error
	for _, obs := range o {
		if err := obs.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// LoggingObserver writes events to a zap logger
type LoggingObserver struct {
	logger *zap.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *zap.Logger) (*LoggingObserver, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &LoggingObserver{logger: logger.Named("audit")}, nil
}

func (o *LoggingObserver) Notify(_ context.Context, event Event) error {
	fields := []zap.Field{
		zap.String("event", string(event.Type)),
		zap.String("runID", event.RunID),
	}
	if len(event.Data) > 0 {
		fields = append(fields, zap.Any("data", event.Data))
	}

	switch event.Type {
	case EventValidationFailed, EventMethodFallback:
		o.logger.Warn("Anonymization event", fields...)
	case EventRunFailed:
		o.logger.Error("Anonymization event", fields...)
	default:
		o.logger.Info("Anonymization event", fields...)
	}
	return nil
}

// FileObserver appends "<ts> - <event>: <data>" lines to a text file
type FileObserver struct {
	mu   sync.Mutex
	path string
}

// NewFileObserver creates an observer appending to path, creating its directory
func NewFileObserver(path string) (*FileObserver, error) {
	if path == "" {
		return nil, fmt.Errorf("event log path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create event log directory: %w", err)
	}
	return &FileObserver{path: path}, nil
}

// Path returns the file events are appended to
func (o *FileObserver) Path() string {
	return o.path
}

func (o *FileObserver) Notify(_ context.Context, event Event) error {
	data := map[string]interface{}{"run_id": event.RunID}
	for k, v := range event.Data {
		data[k] = v
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode event data: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	f, err := os.OpenFile(o.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("%s - %s: %s\n", event.Time.Format(model.ArtifactTimestampLayout), event.Type, encoded)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("failed to write event log: %w", err)
	}
	return nil
}
