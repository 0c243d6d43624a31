// Package helog wraps github.com/luxfi/log behind a small Logger interface,
// the way the teacher's own log package (_examples/luxfi-consensus/log/noop.go,
// nolog.go) wraps that same library for every stateful runtime component to
// embed. The no-op path constructs a real log.Logger via
// log.NewNoOpLogger() exactly as the teacher's noop.go does; the leveled
// production path builds on zap, since log.Logger's own "Node compatibility"
// methods (WithFields/WithOptions/Fatal) are themselves zap.Field-typed and
// no leveled zap-independent constructor for it is present anywhere in the
// retrieved pack (see DESIGN.md's helog entry).
package helog

import (
	"github.com/luxfi/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging surface every Core, Broker, FederateState, and
// TimeCoordinator embeds. It is deliberately small: structured fields via
// zap.Field, four severities, and With for attaching persistent context
// (federate name, core id, ...).
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	With(fields ...zap.Field) Logger
	Sync() error
}

type zapLogger struct {
	l *zap.Logger
}

// New builds a Logger at the given level ("debug", "info", "warn", "error").
// Unrecognized levels fall back to "info", matching the federation config
// surface's logLevel/fileLogLevel/consoleLogLevel options (spec §6).
func New(level string) (Logger, error) {
	cfg := zap.NewProductionConfig()
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &zapLogger{l: l}, nil
}

func (z *zapLogger) Debug(msg string, fields ...zap.Field) { z.l.Debug(msg, fields...) }
func (z *zapLogger) Info(msg string, fields ...zap.Field)  { z.l.Info(msg, fields...) }
func (z *zapLogger) Warn(msg string, fields ...zap.Field)  { z.l.Warn(msg, fields...) }
func (z *zapLogger) Error(msg string, fields ...zap.Field) { z.l.Error(msg, fields...) }
func (z *zapLogger) Sync() error                           { return z.l.Sync() }

func (z *zapLogger) With(fields ...zap.Field) Logger {
	return &zapLogger{l: z.l.With(fields...)}
}

// noOpLogger adapts a real github.com/luxfi/log.Logger (constructed via
// log.NewNoOpLogger(), the teacher's own noop.go path) to our Logger
// interface. zap.Field values pass straight through log.Logger's variadic
// ctx parameters, which accept any value.
type noOpLogger struct {
	l log.Logger
}

// NewNoOp returns a Logger backed by github.com/luxfi/log's own no-op
// implementation, for tests and for federates configured with
// fileLogLevel=0.
func NewNoOp() Logger {
	return &noOpLogger{l: log.NewNoOpLogger()}
}

func fieldsToCtx(fields []zap.Field) []interface{} {
	ctx := make([]interface{}, len(fields))
	for i, f := range fields {
		ctx[i] = f
	}
	return ctx
}

func (n *noOpLogger) Debug(msg string, fields ...zap.Field) { n.l.Debug(msg, fieldsToCtx(fields)...) }
func (n *noOpLogger) Info(msg string, fields ...zap.Field)  { n.l.Info(msg, fieldsToCtx(fields)...) }
func (n *noOpLogger) Warn(msg string, fields ...zap.Field)  { n.l.Warn(msg, fieldsToCtx(fields)...) }
func (n *noOpLogger) Error(msg string, fields ...zap.Field) { n.l.Error(msg, fieldsToCtx(fields)...) }
func (n *noOpLogger) Sync() error                           { return nil }

func (n *noOpLogger) With(fields ...zap.Field) Logger {
	return &noOpLogger{l: n.l.WithFields(fields...)}
}
