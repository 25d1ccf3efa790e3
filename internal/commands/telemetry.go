package commands

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/goliatone/go-cms-ci/internal/logging"
	"github.com/goliatone/go-cms-ci/pkg/interfaces"
	command "github.com/goliatone/go-command"
)

// TelemetryStatus captures the result category for command execution.
type TelemetryStatus string

const (
	TelemetryStatusSuccess      TelemetryStatus = "success"
	TelemetryStatusFailed       TelemetryStatus = "failed"
	TelemetryStatusContextError TelemetryStatus = "context_error"
)

// TelemetryInfo describes a command execution outcome provided to telemetry callbacks.
// Result holds the values the command recorded with RecordResult, such as
// unit counts of a rebuild or the number of drifted files.
type TelemetryInfo struct {
	Command   string
	Operation string
	Fields    map[string]any
	Result    map[string]any
	Duration  time.Duration
	Error     error
	Status    TelemetryStatus
	Logger    interfaces.Logger
}

// Telemetry represents an optional callback invoked after command execution.
type Telemetry[T command.Message] func(ctx context.Context, msg T, info TelemetryInfo)

// FieldsReporter is implemented by messages that scope their execution,
// e.g. a rebuild limited to one site. The fields are attached to every
// log entry of the execution.
type FieldsReporter interface {
	TelemetryFields() map[string]any
}

func messageFields(msg any) map[string]any {
	reporter, ok := msg.(FieldsReporter)
	if !ok {
		return nil
	}
	return reporter.TelemetryFields()
}

type resultKey struct{}

type resultRecorder struct {
	mu     sync.Mutex
	values map[string]any
}

func withResultRecorder(ctx context.Context) (context.Context, *resultRecorder) {
	rec := &resultRecorder{values: map[string]any{}}
	return context.WithValue(ctx, resultKey{}, rec), rec
}

func (r *resultRecorder) snapshot() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.values) == 0 {
		return nil
	}
	return maps.Clone(r.values)
}

// RecordResult attaches an outcome value to the telemetry of the command
// executing under ctx. Outside a Handler it does nothing.
func RecordResult(ctx context.Context, key string, value any) {
	if ctx == nil {
		return
	}
	rec, ok := ctx.Value(resultKey{}).(*resultRecorder)
	if !ok {
		return
	}
	rec.mu.Lock()
	rec.values[key] = value
	rec.mu.Unlock()
}

// DefaultTelemetry returns a telemetry callback that logs command outcomes with the supplied logger.
// Recorded results are appended in key order so repeated runs log alike.
func DefaultTelemetry[T command.Message](logger interfaces.Logger) Telemetry[T] {
	if logger == nil {
		logger = logging.NoOp()
	}
	return func(ctx context.Context, _ T, info TelemetryInfo) {
		entry := logging.WithFields(logger, info.Fields)
		args := []any{"duration_ms", info.Duration.Milliseconds()}
		for _, key := range slices.Sorted(maps.Keys(info.Result)) {
			args = append(args, key, info.Result[key])
		}
		switch info.Status {
		case TelemetryStatusSuccess:
			entry.Info("command.execute.success", args...)
		case TelemetryStatusContextError:
			entry.Warn("command.execute.context_error", append(args, "error", info.Error)...)
		default:
			entry.Error("command.execute.failed", append(args, "error", info.Error)...)
		}
	}
}
