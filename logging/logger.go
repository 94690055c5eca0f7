// Copyright 2015 Zalando SE
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logging

import log "github.com/sirupsen/logrus"

// Logger instances provide custom logging.
type Logger interface {

	// Log with level ERROR
	Error(...any)

	// Log formatted messages with level ERROR
	Errorf(string, ...any)

	// Log with level WARN
	Warn(...any)

	// Log formatted messages with level WARN
	Warnf(string, ...any)

	// Log with level INFO
	Info(...any)

	// Log formatted messages with level INFO
	Infof(string, ...any)

	// Log with level DEBUG
	Debug(...any)

	// Log formatted messages with level DEBUG
	Debugf(string, ...any)
}

// DefaultLog provides a default implementation of the Logger interface,
// forwarding to the logrus standard logger.
type DefaultLog struct{}

func (dl *DefaultLog) Error(a ...any)            { log.Error(a...) }
func (dl *DefaultLog) Errorf(f string, a ...any) { log.Errorf(f, a...) }
func (dl *DefaultLog) Warn(a ...any)             { log.Warn(a...) }
func (dl *DefaultLog) Warnf(f string, a ...any)  { log.Warnf(f, a...) }
func (dl *DefaultLog) Info(a ...any)             { log.Info(a...) }
func (dl *DefaultLog) Infof(f string, a ...any)  { log.Infof(f, a...) }
func (dl *DefaultLog) Debug(a ...any)            { log.Debug(a...) }
func (dl *DefaultLog) Debugf(f string, a ...any) { log.Debugf(f, a...) }

// FieldLog is a Logger attaching the same fields to every entry.
type FieldLog struct {
	entry *log.Entry
}

// WithFields returns a Logger that adds the fields to each entry written
// to the logrus standard logger.
func WithFields(fields map[string]any) *FieldLog {
	return &FieldLog{entry: log.WithFields(log.Fields(fields))}
}

func (fl *FieldLog) Error(a ...any)            { fl.entry.Error(a...) }
func (fl *FieldLog) Errorf(f string, a ...any) { fl.entry.Errorf(f, a...) }
func (fl *FieldLog) Warn(a ...any)             { fl.entry.Warn(a...) }
func (fl *FieldLog) Warnf(f string, a ...any)  { fl.entry.Warnf(f, a...) }
func (fl *FieldLog) Info(a ...any)             { fl.entry.Info(a...) }
func (fl *FieldLog) Infof(f string, a ...any)  { fl.entry.Infof(f, a...) }
func (fl *FieldLog) Debug(a ...any)            { fl.entry.Debug(a...) }
func (fl *FieldLog) Debugf(f string, a ...any) { fl.entry.Debugf(f, a...) }
