/*
 * Copyright 2025 tomoncle.
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
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type Logger = logrus.Logger

// Logger names used across the service.
const (
	LoggerAPI      = "API"
	LoggerDatabase = "DATABASE"
	LoggerMutation = "MUTATION"
	LoggerStorage  = "STORAGE"
)

const timestampFormat = "2006-01-02 15:04:05.000"

var (
	loggerRegistryMu sync.RWMutex
	loggerRegistry   = map[string]*logrus.Logger{}
	defaultLevel     = ParseLogLevel(EnvDefaultString("LOG_LEVEL", "info"))
	consoleLogFormat = EnvDefaultString("CONSOLE_LOG_FORMAT", "text")
	outputMu         sync.RWMutex
	output           io.Writer = os.Stdout
)

// ConfigureConsoleLogFormat switches newly created loggers between the
// "text" and "json" formatters.
func ConfigureConsoleLogFormat(format string) {
	if strings.ToLower(strings.TrimSpace(format)) == "json" {
		consoleLogFormat = "json"
	} else {
		consoleLogFormat = "text"
	}
}

// SetOutput redirects every logger created by NewLogger.
func SetOutput(w io.Writer) {
	outputMu.Lock()
	defer outputMu.Unlock()
	if w == nil {
		w = os.Stdout
	}
	output = w
}

func currentOutput() io.Writer {
	outputMu.RLock()
	defer outputMu.RUnlock()
	return output
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

// SetLoggerLevel changes the level of one named logger.
func SetLoggerLevel(name string, lvlStr string) bool {
	loggerRegistryMu.RLock()
	lg, ok := loggerRegistry[name]
	loggerRegistryMu.RUnlock()
	if !ok {
		return false
	}
	lg.SetLevel(ParseLogLevel(lvlStr))
	return true
}

// ConfigureLogLevel sets the level of every registered logger and the
// default for loggers created afterwards.
func ConfigureLogLevel(levelStr string) {
	defaultLevel = ParseLogLevel(levelStr)
	loggerRegistryMu.RLock()
	for _, lg := range loggerRegistry {
		lg.SetLevel(defaultLevel)
	}
	loggerRegistryMu.RUnlock()
	logrus.SetLevel(defaultLevel)
}

type consoleWriterHook struct {
	formatter logrus.Formatter
}

func (h *consoleWriterHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *consoleWriterHook) Fire(e *logrus.Entry) error {
	b, err := h.formatter.Format(e)
	if err != nil {
		return err
	}
	_, err = currentOutput().Write(b)
	return err
}

// NewLogger returns a named logrus logger, or the already registered one.
func NewLogger(name string) *logrus.Logger {
	loggerRegistryMu.RLock()
	existing, ok := loggerRegistry[name]
	loggerRegistryMu.RUnlock()
	if ok {
		return existing
	}

	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(defaultLevel)
	l.SetReportCaller(true)
	var consoleFmt logrus.Formatter
	if consoleLogFormat == "json" {
		consoleFmt = &JSONLogFormatter{LoggerName: name, TimestampFormat: timestampFormat}
	} else {
		consoleFmt = &Log4jColorFormatter{
			LoggerName:      name,
			TimestampFormat: timestampFormat,
			ColorCaller:     true,
			NameWidth:       10,
		}
	}
	l.SetFormatter(consoleFmt)
	l.AddHook(&consoleWriterHook{formatter: consoleFmt})
	RegisterLogger(name, l)
	return l
}

type Log4jColorFormatter struct {
	LoggerName      string
	TimestampFormat string
	ColorCaller     bool
	NameWidth       int
}

func (f *Log4jColorFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	ts := entry.Time.Format(orDefault(f.TimestampFormat, timestampFormat))
	lvl := colorLevel(padLeft(strings.ToUpper(entry.Level.String()), 7), entry.Level)
	pid := colorMagenta(fmt.Sprintf("%-6d", os.Getpid()))
	name := colorCyan(padLeft(limitRunes(f.LoggerName, f.NameWidth), f.NameWidth))

	caller := ""
	if entry.Caller != nil {
		caller = " " + callerLine(entry)
		if f.ColorCaller {
			caller = colorFaint(caller)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s - %s%s %s %s", ts, lvl, pid, name, caller, colorFaint(":"), entry.Message)
	for _, k := range sortedKeys(entry.Data) {
		fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

type JSONLogFormatter struct {
	LoggerName      string
	TimestampFormat string
}

func (f *JSONLogFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	type jsonLogRecord struct {
		Time        string                 `json:"time"`
		Level       string                 `json:"level"`
		Model       string                 `json:"model"`
		Caller      string                 `json:"caller,omitempty"`
		Message     string                 `json:"message"`
		RequestID   string                 `json:"request_id,omitempty"`
		ClientIP    string                 `json:"client_ip,omitempty"`
		Method      string                 `json:"method,omitempty"`
		Path        string                 `json:"path,omitempty"`
		StatusCode  int                    `json:"status_code,omitempty"`
		LatencyTime string                 `json:"latency_time,omitempty"`
		Fields      map[string]interface{} `json:"fields,omitempty"`
	}

	rec := jsonLogRecord{
		Time:    entry.Time.Format(orDefault(f.TimestampFormat, timestampFormat)),
		Level:   strings.ToLower(entry.Level.String()),
		Model:   f.LoggerName,
		Message: entry.Message,
	}
	if entry.Caller != nil {
		rec.Caller = callerLine(entry)
	}

	extra := make(map[string]interface{}, len(entry.Data))
	for k, v := range entry.Data {
		s, isString := v.(string)
		switch {
		case k == "req_uri" && isString:
			rec.Path = s
		case k == "req_method" && isString:
			rec.Method = s
		case k == "client_ip" && isString:
			rec.ClientIP = s
		case k == "latency_time" && isString:
			rec.LatencyTime = s
		case k == "request_id" && isString:
			rec.RequestID = s
		case k == "status_code":
			if n, ok := v.(int); ok {
				rec.StatusCode = n
			} else {
				extra[k] = v
			}
		default:
			if err, ok := v.(error); ok {
				v = err.Error()
			}
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		rec.Fields = extra
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func callerLine(entry *logrus.Entry) string {
	dir := filepath.Base(filepath.Dir(entry.Caller.File))
	return dir + "/" + filepath.Base(entry.Caller.File) + ":" + strconv.Itoa(entry.Caller.Line)
}

func sortedKeys(m logrus.Fields) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func padLeft(s string, width int) string { return fmt.Sprintf("%*s", width, s) }

func limitRunes(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n])
}

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

func EnvDefaultString(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return def
		}
		return b
	}
	return def
}

// EnvDefaultDuration parses key as a Go duration ("5s") or whole seconds.
func EnvDefaultDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}
