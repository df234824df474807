// Copyright 2026 The memlayout Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mllog is the engine's logging facility: a small interface over
// logrus, injected into the allocator rather than reached for as a
// package global.
package mllog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the logging surface the allocator depends on. Any type
// satisfying it — not just *logrusLogger — can be injected.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type logrusLogger struct {
	entry *logrus.Entry
}

// New returns a Logger backed by logrus, writing to stdout at level.
func New(level logrus.Level) Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: false, DisableTimestamp: true})
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

// WithFields returns a Logger that attaches fields to every message it
// logs, mirroring logrus's structured-field idiom.
func WithFields(base Logger, fields map[string]any) Logger {
	ll, ok := base.(*logrusLogger)
	if !ok {
		return base
	}
	return &logrusLogger{entry: ll.entry.WithFields(fields)}
}

func (l *logrusLogger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *logrusLogger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *logrusLogger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }

type noop struct{}

func (noop) Debugf(string, ...any) {}
func (noop) Infof(string, ...any)  {}
func (noop) Warnf(string, ...any)  {}
func (noop) Errorf(string, ...any) {}

// Noop discards every message. It is the default Logger for components
// that don't have one injected.
var Noop Logger = noop{}
