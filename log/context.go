// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package log

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
)

var (
	// G is an alias for FromContext.
	G = FromContext

	// L is the fallback logger used when none has been attached to a context.
	L = logrus.StandardLogger()
)

type contextKey struct{}

// WithLogger returns a new context carrying logger.
func WithLogger(ctx context.Context, logger *logrus.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger carried by ctx or the global logger.
func FromContext(ctx context.Context) *logrus.Logger {
	if ctx == nil {
		return L
	}

	l, ok := ctx.Value(contextKey{}).(*logrus.Logger)
	if !ok || l == nil {
		return L
	}

	return l
}

// New prepares a logger writing to out, formatted according to the given
// type and filtered to the named level.  Unknown levels fall back to info.
func New(out io.Writer, t LoggerType, level string, timestamps bool) *logrus.Logger {
	logger := logrus.New()
	Configure(logger, out, t, level, timestamps)

	return logger
}

// Configure applies output, type, level and timestamps to an existing
// logger, e.g. once command line flags have been parsed.
func Configure(logger *logrus.Logger, out io.Writer, t LoggerType, level string, timestamps bool) {
	logger.SetOutput(out)

	lvl, ok := Levels()[level]
	if !ok {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	switch t {
	case QUIET:
		logger.SetOutput(io.Discard)
	case JSON:
		logger.SetFormatter(&logrus.JSONFormatter{
			DisableTimestamp: !timestamps,
		})
	case FANCY:
		logger.SetFormatter(&TextFormatter{
			ForceFormatting:  true,
			DisableTimestamp: !timestamps,
			FullTimestamp:    timestamps,
		})
	default:
		logger.SetFormatter(&TextFormatter{
			DisableTimestamp: !timestamps,
		})
	}
}
