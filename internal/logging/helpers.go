package logging

import (
	"maps"
	"strings"

	"github.com/goliatone/go-cms-ci/pkg/interfaces"
)

// WithFields attaches fields when logger implements interfaces.FieldsLogger.
// Other loggers are returned unchanged.
func WithFields(logger interfaces.Logger, fields map[string]any) interfaces.Logger {
	if logger == nil || len(fields) == 0 {
		return logger
	}

	fieldsLogger, ok := logger.(interfaces.FieldsLogger)
	if !ok {
		return logger
	}
	copied := make(map[string]any, len(fields))
	maps.Copy(copied, fields)
	return fieldsLogger.WithFields(copied)
}

// Ensure substitutes a no-op logger for nil.
func Ensure(logger interfaces.Logger) interfaces.Logger {
	if logger == nil {
		return NoOp()
	}
	return logger
}

// WithUnit annotates logger with a repository unit: its object kind, e.g.
// "cms.acl", and its location below the repository root.
func WithUnit(logger interfaces.Logger, kind, location string) interfaces.Logger {
	fields := map[string]any{}
	if kind = strings.TrimSpace(kind); kind != "" {
		fields["unit_kind"] = kind
	}
	if location = strings.TrimSpace(location); location != "" {
		fields["location"] = location
	}
	return WithFields(logger, fields)
}
