/*
 * Copyright 2025 finch-orm.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"fmt"
	"strings"
	"sync"

	"github.com/finch-orm/finch/utils"
)

const loggerName = "finch.database"

var (
	globalLogger   Logger
	globalLoggerMu sync.RWMutex
)

type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	}
	return "DEBUG"
}

// Logger is the logging surface the database layer writes to. Fields are
// alternating key/value pairs appended to the message.
type Logger interface {
	SetLevel(LogLevel)
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// InitLogger installs a custom logger; the first non-nil install wins.
func InitLogger(log Logger) {
	if log == nil {
		return
	}
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()
	if globalLogger == nil {
		globalLogger = log
	}
}

// GetLogger returns the installed logger, creating the logrus-backed
// default on first use.
func GetLogger() Logger {
	globalLoggerMu.RLock()
	l := globalLogger
	globalLoggerMu.RUnlock()
	if l != nil {
		return l
	}

	dl := &DefaultLogger{logger: utils.NewLogger(loggerName)}
	globalLoggerMu.Lock()
	if globalLogger == nil {
		globalLogger = dl
	}
	l = globalLogger
	globalLoggerMu.Unlock()
	return l
}

// DefaultLogger adapts the named logrus logger from utils to the Logger
// interface.
type DefaultLogger struct {
	logger *utils.Logger
}

func (l *DefaultLogger) Debug(msg string, fields ...interface{}) {
	l.logger.Debug(msg + formatFields(fields))
}

func (l *DefaultLogger) Info(msg string, fields ...interface{}) {
	l.logger.Info(msg + formatFields(fields))
}

func (l *DefaultLogger) Warn(msg string, fields ...interface{}) {
	l.logger.Warn(msg + formatFields(fields))
}

func (l *DefaultLogger) Error(msg string, fields ...interface{}) {
	l.logger.Error(msg + formatFields(fields))
}

func (l *DefaultLogger) SetLevel(level LogLevel) {
	utils.SetLoggerLevel(loggerName, strings.ToLower(level.String()))
}

func formatFields(fields []interface{}) string {
	if len(fields) < 2 {
		return ""
	}
	var sb strings.Builder
	for i := 0; i+1 < len(fields); i += 2 {
		fmt.Fprintf(&sb, " %v=%v", fields[i], fields[i+1])
	}
	return sb.String()
}
