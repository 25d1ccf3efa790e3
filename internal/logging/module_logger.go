package logging

import (
	"context"
	"strings"

	"github.com/goliatone/go-cms-ci/pkg/interfaces"
	"github.com/google/uuid"
)

const (
	rootModule      = "cms"
	documentsModule = "cms.documents"
	ciModule        = "cms.ci"
	stagingModule   = "cms.staging"
	commandsModule  = "cms.commands"
)

const (
	fieldNodeID    = "node_id"
	fieldCulture   = "culture"
	fieldAliasPath = "alias_path"
	fieldOperation = "operation"
)

// ModuleLogger returns a logger scoped to module. When provider is nil or
// does not know the module, a no-op logger is returned. The module name is
// always attached as the "module" field.
func ModuleLogger(provider interfaces.LoggerProvider, module string) interfaces.Logger {
	if strings.TrimSpace(module) == "" {
		module = rootModule
	}

	logger := NoOp()
	if provider != nil {
		if provided := provider.GetLogger(module); provided != nil {
			logger = provided
		}
	}

	return WithFields(logger, map[string]any{
		"module": module,
	})
}

// DocumentsLogger returns the logger used by the document API.
func DocumentsLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, documentsModule)
}

// CILogger returns the logger used by the continuous integration repository.
func CILogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, ciModule)
}

// StagingLogger returns the logger used by the staging task logger.
func StagingLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, stagingModule)
}

// CommandsLogger returns the logger used by command handlers.
func CommandsLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, commandsModule)
}

// WithDocumentContext annotates logger with the identity of a culture
// version. Zero values are skipped.
func WithDocumentContext(logger interfaces.Logger, nodeID uuid.UUID, culture, aliasPath string) interfaces.Logger {
	fields := map[string]any{}
	if nodeID != uuid.Nil {
		fields[fieldNodeID] = nodeID
	}
	if trimmed := strings.TrimSpace(culture); trimmed != "" {
		fields[fieldCulture] = trimmed
	}
	if trimmed := strings.TrimSpace(aliasPath); trimmed != "" {
		fields[fieldAliasPath] = trimmed
	}
	return WithFields(logger, fields)
}

// WithOperation annotates logger with an operation name.
func WithOperation(logger interfaces.Logger, operation string) interfaces.Logger {
	if strings.TrimSpace(operation) == "" {
		return logger
	}
	return WithFields(logger, map[string]any{fieldOperation: operation})
}

// NoOp returns a logger that drops every entry.
func NoOp() interfaces.Logger {
	return noopLogger{}
}

type noopLogger struct{}

var (
	_ interfaces.Logger       = noopLogger{}
	_ interfaces.FieldsLogger = noopLogger{}
)

func (noopLogger) Trace(string, ...any) {}
func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Fatal(string, ...any) {}

func (n noopLogger) WithFields(map[string]any) interfaces.Logger { return n }

func (n noopLogger) WithContext(context.Context) interfaces.Logger { return n }
