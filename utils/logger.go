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

package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type PathFormat int

type Logger = logrus.Logger

const (
	PathFormatFilenameOnly PathFormat = iota
	PathFormatShortRelative
)

var (
	defaultConsoleLevel = logrus.DebugLevel
	defaultFileLevel    = logrus.TraceLevel
	loggerRegistryMu    sync.RWMutex
	loggerRegistry      = map[string]*logrus.Logger{}
	fileLogEnabled      = EnvDefaultBool("FILE_LOG_ENABLED", false)
	fileLogDir          = "logs"
	fileLogMaxAgeDays   = 0
	fileLogFormat       = EnvDefaultString("FILE_LOG_FORMAT", "text")
	consoleLogFormat    = EnvDefaultString("CONSOLE_LOG_FORMAT", "text")
)

// ConfigureFileLog sets the file log directory and retention in days.
func ConfigureFileLog(dir string, maxAgeDays int) {
	if dir != "" {
		fileLogDir = dir
	}
	if maxAgeDays >= 0 {
		fileLogMaxAgeDays = maxAgeDays
	}
}

func ConfigureFileLogFormat(format string) {
	if strings.ToLower(strings.TrimSpace(format)) == "json" {
		fileLogFormat = "json"
	} else {
		fileLogFormat = "text"
	}
}

func ConfigureConsoleLogFormat(format string) {
	if strings.ToLower(strings.TrimSpace(format)) == "json" {
		consoleLogFormat = "json"
	} else {
		consoleLogFormat = "text"
	}
}

type levelWriterHook struct {
	writers   map[logrus.Level]io.Writer
	formatter logrus.Formatter
}

func (h *levelWriterHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *levelWriterHook) Fire(e *logrus.Entry) error {
	if e.Level > defaultFileLevel {
		return nil
	}
	w, ok := h.writers[e.Level]
	if !ok || w == nil {
		return nil
	}
	b, err := h.formatter.Format(e)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

type dailyLevelWriter struct {
	baseDir    string
	level      string
	maxAgeDays int
	mu         sync.Mutex
	curDate    string
	file       *os.File
}

func newDailyLevelWriter(baseDir, level string, maxAgeDays int) io.Writer {
	return &dailyLevelWriter{baseDir: baseDir, level: level, maxAgeDays: maxAgeDays}
}

func (w *dailyLevelWriter) ensureOpen(date string) error {
	if w.file != nil && w.curDate == date {
		return nil
	}
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}
	dir := filepath.Join(w.baseDir, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s.log", w.level))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	w.curDate = date
	return nil
}

func (w *dailyLevelWriter) cleanup() {
	if w.maxAgeDays < 0 {
		return
	}
	now := time.Now()
	cutoffDate := now.AddDate(0, 0, -w.maxAgeDays)
	cutoffMidnight := time.Date(cutoffDate.Year(), cutoffDate.Month(), cutoffDate.Day(), 0, 0, 0, 0, time.Local)

	entries, err := os.ReadDir(w.baseDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		d, err := time.Parse("2006-01-02", e.Name())
		if err != nil {
			continue
		}
		if d.Before(cutoffMidnight) {
			_ = os.RemoveAll(filepath.Join(w.baseDir, e.Name()))
		}
	}
}

func (w *dailyLevelWriter) Write(p []byte) (int, error) {
	nowDate := time.Now().Format("2006-01-02")
	w.mu.Lock()
	oldDate := w.curDate
	if err := w.ensureOpen(nowDate); err != nil {
		w.mu.Unlock()
		return 0, err
	}
	if oldDate != nowDate {
		w.cleanup()
	}
	f := w.file
	w.mu.Unlock()
	return f.Write(p)
}

// AddDailyRollingFileHook attaches per-level daily rolling file writers to the
// logger. Files land under dir/<date>/<level>.log.
func AddDailyRollingFileHook(l *logrus.Logger, name, dir string, maxAgeDays int) error {
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	errorW := newDailyLevelWriter(dir, "error", maxAgeDays)

	var fileFmt logrus.Formatter
	if fileLogFormat == "json" {
		fileFmt = &JSONLogFormatter{
			LoggerName:      name,
			TimestampFormat: "2006-01-02 15:04:05.000",
			PathFmt:         PathFormatShortRelative,
		}
	} else {
		fileFmt = &TextLogFormatter{
			LoggerName:      name,
			TimestampFormat: "2006-01-02 15:04:05.000",
			PathFmt:         PathFormatShortRelative,
			NameWidth:       10,
		}
	}

	l.AddHook(&levelWriterHook{
		writers: map[logrus.Level]io.Writer{
			logrus.TraceLevel: newDailyLevelWriter(dir, "trace", maxAgeDays),
			logrus.DebugLevel: newDailyLevelWriter(dir, "debug", maxAgeDays),
			logrus.InfoLevel:  newDailyLevelWriter(dir, "info", maxAgeDays),
			logrus.WarnLevel:  newDailyLevelWriter(dir, "warn", maxAgeDays),
			logrus.ErrorLevel: errorW,
			logrus.FatalLevel: errorW,
			logrus.PanicLevel: errorW,
		},
		formatter: fileFmt,
	})
	return nil
}

func ParseLogLevel(s string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "info", "":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}

func RegisterLogger(name string, l *logrus.Logger) {
	loggerRegistryMu.Lock()
	defer loggerRegistryMu.Unlock()
	loggerRegistry[name] = l
}

func maxLevel(a, b logrus.Level) logrus.Level {
	if a >= b {
		return a
	}
	return b
}

func applyBaseLevelToRegistered() {
	base := maxLevel(defaultConsoleLevel, defaultFileLevel)
	loggerRegistryMu.RLock()
	for _, lg := range loggerRegistry {
		lg.SetLevel(base)
	}
	loggerRegistryMu.RUnlock()
	logrus.SetLevel(base)
}

func SetAllLoggersLevel(lvl logrus.Level) {
	loggerRegistryMu.RLock()
	for _, lg := range loggerRegistry {
		lg.SetLevel(lvl)
	}
	loggerRegistryMu.RUnlock()
	logrus.SetLevel(lvl)
	defaultConsoleLevel = lvl
	defaultFileLevel = lvl
}

func SetLoggerLevel(name string, lvlStr string) bool {
	lvl := ParseLogLevel(lvlStr)
	loggerRegistryMu.RLock()
	lg, ok := loggerRegistry[name]
	loggerRegistryMu.RUnlock()
	if !ok {
		return false
	}
	lg.SetLevel(lvl)
	return true
}

func ConfigureLogLevel(levelStr string) {
	lvl := ParseLogLevel(levelStr)
	defaultConsoleLevel = lvl
	defaultFileLevel = lvl
	applyBaseLevelToRegistered()
}

func ConfigureConsoleLogLevel(levelStr string) {
	defaultConsoleLevel = ParseLogLevel(levelStr)
	applyBaseLevelToRegistered()
}

func ConfigureFileLogLevel(levelStr string) {
	defaultFileLevel = ParseLogLevel(levelStr)
	applyBaseLevelToRegistered()
}

type consoleWriterHook struct {
	formatter logrus.Formatter
}

func (h *consoleWriterHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *consoleWriterHook) Fire(e *logrus.Entry) error {
	if e.Level > defaultConsoleLevel {
		return nil
	}
	b, err := h.formatter.Format(e)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(b)
	return err
}

// NewLogger creates a named logger with console output and, when enabled,
// daily rolling file output, and registers it for level control.
func NewLogger(name string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(maxLevel(defaultConsoleLevel, defaultFileLevel))
	l.SetReportCaller(true)
	var consoleFmt logrus.Formatter
	if consoleLogFormat == "json" {
		consoleFmt = &JSONLogFormatter{
			LoggerName:      name,
			TimestampFormat: "2006-01-02 15:04:05.000",
			PathFmt:         PathFormatShortRelative,
		}
	} else {
		consoleFmt = &TextLogFormatter{
			LoggerName:      name,
			TimestampFormat: "2006-01-02 15:04:05.000",
			PathFmt:         PathFormatShortRelative,
			ColorCaller:     true,
			NameWidth:       10,
			CallerWidth:     25,
		}
	}
	l.SetFormatter(consoleFmt)
	l.AddHook(&consoleWriterHook{formatter: l.Formatter})
	if fileLogEnabled {
		_ = AddDailyRollingFileHook(l, name, fileLogDir, fileLogMaxAgeDays)
	}
	RegisterLogger(name, l)
	return l
}

// TextLogFormatter renders log4j-style colored lines for terminals.
type TextLogFormatter struct {
	LoggerName      string
	TimestampFormat string
	PathFmt         PathFormat
	ColorCaller     bool
	NameWidth       int
	CallerWidth     int
}

func (f *TextLogFormatter) tsFormat() string {
	if f.TimestampFormat != "" {
		return f.TimestampFormat
	}
	return "2006-01-02 15:04:05.000"
}

func (f *TextLogFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	ts := time.Now().Format(f.tsFormat())
	lvl := strings.ToUpper(entry.Level.String())
	coloredLvl := colorLevel(padLeft(lvl, 7), entry.Level)
	pid := colorMagenta(fmt.Sprintf("%-6d", os.Getpid()))
	name := limitRunes(f.LoggerName, f.NameWidth)
	cyanName := colorCyan(padLeft(name, f.NameWidth))
	callerInfo := ""
	if entry.Caller != nil {
		fileLine := fmt.Sprintf("%s:%d", callerPath(entry.Caller.File, f.PathFmt), entry.Caller.Line)
		if f.CallerWidth > 0 {
			fileLine = padLeftRunes(fileLine, f.CallerWidth)
		}
		if f.ColorCaller {
			callerInfo = colorFaint(" " + fileLine)
		} else {
			callerInfo = " " + fileLine
		}
	}
	sep := colorFaint(":")

	line := fmt.Sprintf("%s %s %s - %s%s %s %s\n", ts, coloredLvl, pid, cyanName, callerInfo, sep, entry.Message)
	return []byte(line), nil
}

// JSONLogFormatter renders one JSON object per line.
type JSONLogFormatter struct {
	LoggerName      string
	TimestampFormat string
	PathFmt         PathFormat
}

func (f *JSONLogFormatter) tsFormat() string {
	if f.TimestampFormat != "" {
		return f.TimestampFormat
	}
	return "2006-01-02 15:04:05.000"
}

func (f *JSONLogFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	type jsonLogRecord struct {
		Time    string                 `json:"time"`
		Level   string                 `json:"level"`
		Name    string                 `json:"name"`
		Caller  string                 `json:"caller"`
		Message string                 `json:"message"`
		Fields  map[string]interface{} `json:"fields,omitempty"`
	}

	rec := jsonLogRecord{
		Time:    time.Now().Format(f.tsFormat()),
		Level:   strings.ToLower(entry.Level.String()),
		Name:    f.LoggerName,
		Message: entry.Message,
	}
	if entry.Caller != nil {
		rec.Caller = fmt.Sprintf("%s:%d", callerPath(entry.Caller.File, f.PathFmt), entry.Caller.Line)
	}
	if len(entry.Data) > 0 {
		fields := make(map[string]interface{}, len(entry.Data))
		for k, v := range entry.Data {
			fields[k] = v
		}
		rec.Fields = fields
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func callerPath(p string, format PathFormat) string {
	sp := filepath.ToSlash(p)
	parts := strings.Split(sp, "/")
	switch format {
	case PathFormatShortRelative:
		if len(parts) >= 2 {
			return parts[len(parts)-2] + "/" + parts[len(parts)-1]
		}
		return parts[len(parts)-1]
	default:
		return parts[len(parts)-1]
	}
}

func padLeft(s string, width int) string { return fmt.Sprintf("%"+strconv.Itoa(width)+"s", s) }

const (
	ansiReset   = "\x1b[0m"
	ansiFaint   = "\x1b[2m"
	ansiRed     = "\x1b[31m"
	ansiYellow  = "\x1b[33m"
	ansiGreen   = "\x1b[32m"
	ansiBlue    = "\x1b[34m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"
)

func colorWrap(s, code string) string { return code + s + ansiReset }

func colorMagenta(s string) string { return colorWrap(s, ansiMagenta) }

func colorCyan(s string) string { return colorWrap(s, ansiCyan) }

func colorFaint(s string) string { return colorWrap(s, ansiFaint) }

func colorLevel(s string, level logrus.Level) string {
	switch level {
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return colorWrap(s, ansiRed)
	case logrus.WarnLevel:
		return colorWrap(s, ansiYellow)
	case logrus.InfoLevel:
		return colorWrap(s, ansiGreen)
	case logrus.DebugLevel:
		return colorWrap(s, ansiBlue)
	default:
		return colorWrap(s, ansiMagenta)
	}
}

func limitRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func padLeftRunes(s string, width int) string {
	r := []rune(s)
	if len(r) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(r)) + s
}

// EnvDefaultString returns the environment value for key or def when unset.
func EnvDefaultString(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// EnvDefaultBool returns the boolean environment value for key or def when unset.
func EnvDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, _ := strconv.ParseBool(v)
		return b
	}
	return def
}
