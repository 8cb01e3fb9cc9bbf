// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Copyright (c) 2024, The TremoKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file expect in compliance with the License.
package log

import "github.com/sirupsen/logrus"

// Levels returns a map of log level string names to their constant equivalent.
func Levels() map[string]logrus.Level {
	return map[string]logrus.Level{
		"panic":   logrus.PanicLevel,
		"fatal":   logrus.FatalLevel,
		"error":   logrus.ErrorLevel,
		"warning": logrus.WarnLevel,
		"warn":    logrus.WarnLevel,
		"info":    logrus.InfoLevel,
		"debug":   logrus.DebugLevel,
		"trace":   logrus.TraceLevel,
	}
}

// LevelNames lists the accepted level names, most severe first.
func LevelNames() []string {
	return []string{"fatal", "error", "warn", "info", "debug", "trace"}
}
