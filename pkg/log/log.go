// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy
// of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations
// under the License.

// Package log provides the process-global structured logger used by every
// petrel component. Callers use the package-level helpers or derive a child
// logger via With; request-scoped loggers travel inside context.Context.
package log

import (
	"context"
	"os"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _globalL atomic.Value // *zap.Logger

type ctxLogKeyType struct{}

var ctxLogKey ctxLogKeyType

func init() {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.Lock(os.Stderr), zap.InfoLevel)
	ReplaceGlobal(zap.New(core, zap.AddCaller()))
}

// L returns the global logger.
func L() *zap.Logger {
	return _globalL.Load().(*zap.Logger)
}

// ReplaceGlobal swaps the global logger, returning the previous one.
func ReplaceGlobal(logger *zap.Logger) *zap.Logger {
	prev, _ := _globalL.Load().(*zap.Logger)
	_globalL.Store(logger)
	return prev
}

// With creates a child logger carrying the given fields.
func With(fields ...zap.Field) *zap.Logger {
	return L().With(fields...)
}

// WithFields returns a context holding a child logger with the extra fields.
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	return context.WithValue(ctx, ctxLogKey, Ctx(ctx).With(fields...))
}

// Ctx returns the logger stored in ctx, or the global logger.
func Ctx(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return L()
	}
	if logger, ok := ctx.Value(ctxLogKey).(*zap.Logger); ok {
		return logger
	}
	return L()
}

func Debug(msg string, fields ...zap.Field) {
	L().WithOptions(zap.AddCallerSkip(1)).Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	L().WithOptions(zap.AddCallerSkip(1)).Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	L().WithOptions(zap.AddCallerSkip(1)).Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	L().WithOptions(zap.AddCallerSkip(1)).Error(msg, fields...)
}
