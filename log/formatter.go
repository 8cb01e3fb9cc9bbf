// SPDX-License-Identifier: MIT
// Copyright (c) 2017, Denis Parchenko.
// Copyright (c) 2022, Unikraft GmbH. All rights reserved.
// Copyright (c) 2024, The TremoKit Authors.
package log

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

const defaultTimestampFormat = time.RFC3339

// PrefixField is the entry field rendered as a short tag before the message,
// e.g. `log.G(ctx).WithField(log.PrefixField, "asr")`.
const PrefixField = "prefix"

var baseTimestamp = time.Now()

type renderFunc func(...string) string

func badge(bg string) renderFunc {
	return lipgloss.NewStyle().
		Background(lipgloss.Color(bg)).
		Foreground(lipgloss.AdaptiveColor{Light: "15", Dark: "0"}).
		Render
}

var (
	levelBadges = map[logrus.Level]renderFunc{
		logrus.PanicLevel: badge("9"),
		logrus.FatalLevel: badge("9"),
		logrus.ErrorLevel: badge("9"),
		logrus.WarnLevel:  badge("11"),
		logrus.InfoLevel:  badge("8"),
		logrus.DebugLevel: badge("12"),
		logrus.TraceLevel: lipgloss.NewStyle().Background(lipgloss.Color("0")).Foreground(lipgloss.Color("15")).Render,
	}
	levelLetters = map[logrus.Level]string{
		logrus.PanicLevel: "X",
		logrus.FatalLevel: "!",
		logrus.ErrorLevel: "E",
		logrus.WarnLevel:  "W",
		logrus.InfoLevel:  "i",
		logrus.DebugLevel: "D",
		logrus.TraceLevel: "T",
	}
	prefixStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render
	plain       = func(strs ...string) string { return strings.Join(strs, " ") }
)

// TextFormatter renders entries either as a compact, colored line when
// attached to a terminal, or as logfmt-style key/value pairs otherwise.
type TextFormatter struct {
	// Bypass the TTY check and always render the compact layout.
	ForceFormatting bool

	// Never emit colors, even on a terminal.
	DisableColors bool

	// Omit timestamps altogether.
	DisableTimestamp bool

	// Print the full timestamp instead of seconds since start.
	FullTimestamp bool

	// Timestamp layout used for full timestamps.
	TimestampFormat string

	isTerminal bool
	once       sync.Once
}

func (f *TextFormatter) init(entry *logrus.Entry) {
	if entry.Logger == nil {
		return
	}

	if file, ok := entry.Logger.Out.(*os.File); ok {
		f.isTerminal = term.IsTerminal(int(file.Fd()))
	}
}

// Format implements logrus.Formatter
func (f *TextFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	f.once.Do(func() { f.init(entry) })

	b := entry.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if k == PrefixField {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	timestampFormat := f.TimestampFormat
	if timestampFormat == "" {
		timestampFormat = defaultTimestampFormat
	}

	if f.ForceFormatting || f.isTerminal {
		f.printCompact(b, entry, keys, timestampFormat, f.isTerminal && !f.DisableColors)
	} else {
		f.printKeyValues(b, entry, keys, timestampFormat)
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

func (f *TextFormatter) printCompact(b *bytes.Buffer, entry *logrus.Entry, keys []string, timestampFormat string, colored bool) {
	var level, prefix renderFunc = plain, plain
	if colored {
		level = levelBadges[entry.Level]
		prefix = prefixStyle
	}

	fmt.Fprint(b, level(fmt.Sprintf(" %s ", levelLetters[entry.Level])))

	if !f.DisableTimestamp {
		if f.FullTimestamp {
			fmt.Fprintf(b, " %s", entry.Time.Format(timestampFormat))
		} else {
			fmt.Fprintf(b, " [%04d]", int(time.Since(baseTimestamp)/time.Second))
		}
	}

	if p, ok := entry.Data[PrefixField]; ok {
		fmt.Fprint(b, " ", prefix(fmt.Sprintf("%v:", p)))
	}

	fmt.Fprint(b, " ", entry.Message)

	for _, k := range keys {
		fmt.Fprintf(b, " %s=%+v", prefix(k), entry.Data[k])
	}
}

func (f *TextFormatter) printKeyValues(b *bytes.Buffer, entry *logrus.Entry, keys []string, timestampFormat string) {
	if !f.DisableTimestamp {
		appendKeyValue(b, "time", entry.Time.Format(timestampFormat))
	}

	appendKeyValue(b, "level", entry.Level.String())

	if p, ok := entry.Data[PrefixField]; ok {
		appendKeyValue(b, PrefixField, p)
	}

	appendKeyValue(b, "msg", entry.Message)

	for _, k := range keys {
		appendKeyValue(b, k, entry.Data[k])
	}

	b.Truncate(b.Len() - 1)
}

func needsQuoting(text string) bool {
	if len(text) == 0 {
		return true
	}

	return strings.IndexFunc(text, func(ch rune) bool {
		return !((ch >= 'a' && ch <= 'z') ||
			(ch >= 'A' && ch <= 'Z') ||
			(ch >= '0' && ch <= '9') ||
			ch == '-' || ch == '.' || ch == '/' || ch == '_')
	}) >= 0
}

func appendKeyValue(w io.Writer, key string, value any) {
	var str string
	switch v := value.(type) {
	case string:
		str = v
	case error:
		str = v.Error()
	default:
		str = fmt.Sprint(v)
	}

	if needsQuoting(str) {
		str = fmt.Sprintf("%q", str)
	}

	fmt.Fprintf(w, "%s=%s ", key, str)
}
